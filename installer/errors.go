// Package installer downloads and extracts the warden CLI payload into
// the private install root.
package installer

import "fmt"

// DownloadError reports a failed or truncated payload transfer.
type DownloadError struct {
	URL string
	Msg string
	Err error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("download %s: %s: %v", e.URL, e.Msg, e.Err)
	}
	return fmt.Sprintf("download %s: %s", e.URL, e.Msg)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// ExtractError reports a malformed or unextractable payload archive.
type ExtractError struct {
	Entry string
	Msg   string
	Err   error
}

func (e *ExtractError) Error() string {
	prefix := "extract"
	if e.Entry != "" {
		prefix = fmt.Sprintf("extract %q", e.Entry)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Msg)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// IntegrityError reports a reported-successful install that is missing
// required files. Fatal to the attempt; the next run redoes the install.
type IntegrityError struct {
	Path string
	Msg  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("install integrity: %s: %s", e.Path, e.Msg)
}
