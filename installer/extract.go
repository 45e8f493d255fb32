package installer

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/covalent-sh/warden/iox"
)

// wrapperDir is the conventional top-level directory inside registry
// tarballs. It is stripped so entries land directly under the root.
const wrapperDir = "package"

// maxPayloadBytes bounds in-memory archive parsing (decompressed).
const maxPayloadBytes = 256 * 1024 * 1024

// archiveEntry is one sanitized entry ready to be written.
type archiveEntry struct {
	relPath    string
	dir        bool
	executable bool
	data       []byte
}

// parseArchive decompresses and parses a gzipped tarball fully in memory,
// sanitizing every entry path. Entries that sanitize to nothing (the
// wrapper directory itself, pax headers, links) are dropped. An archive
// with zero remaining entries is an ExtractError.
func parseArchive(tgz []byte) ([]archiveEntry, error) {
	gz, err := gzip.NewReader(bytes.NewReader(tgz))
	if err != nil {
		return nil, &ExtractError{Msg: "not a gzip archive", Err: err}
	}
	defer iox.DiscardClose(gz)

	var entries []archiveEntry
	var total int64

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ExtractError{Msg: "corrupt tar stream", Err: err}
		}

		switch header.Typeflag {
		case tar.TypeDir, tar.TypeReg:
		default:
			// Links and special files never belong in a payload; writing
			// them could alias paths outside the root.
			continue
		}

		rel, ok := sanitizeEntryPath(header.Name)
		if !ok {
			continue
		}

		entry := archiveEntry{
			relPath:    rel,
			dir:        header.Typeflag == tar.TypeDir,
			executable: header.FileInfo().Mode()&0o111 != 0,
		}

		if !entry.dir {
			total += header.Size
			if total > maxPayloadBytes {
				return nil, &ExtractError{Entry: header.Name, Msg: fmt.Sprintf("payload exceeds %d bytes", int64(maxPayloadBytes))}
			}
			data, err := io.ReadAll(io.LimitReader(tr, maxPayloadBytes))
			if err != nil {
				return nil, &ExtractError{Entry: header.Name, Msg: "read entry", Err: err}
			}
			entry.data = data
		}

		entries = append(entries, entry)
	}

	if len(entries) == 0 {
		return nil, &ExtractError{Msg: "archive has no entries"}
	}
	return entries, nil
}

// sanitizeEntryPath normalizes an archive entry name to a relative path
// that cannot escape the install root, regardless of crafted input:
// separators are remapped, the wrapper directory is stripped, and every
// "." / ".." / empty / absolute segment is dropped rather than resolved.
// Returns ok=false for entries that sanitize to nothing.
func sanitizeEntryPath(name string) (string, bool) {
	// Remap Windows separators before splitting.
	name = strings.ReplaceAll(name, `\`, "/")

	segments := strings.Split(name, "/")
	clean := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".", "..":
			// Dropping (not resolving) dot-dot makes escape structurally
			// impossible: no surviving segment can point upward.
			continue
		}
		clean = append(clean, seg)
	}

	if len(clean) > 0 && clean[0] == wrapperDir {
		clean = clean[1:]
	}
	if len(clean) == 0 {
		return "", false
	}
	return path.Join(clean...), true
}

// writeEntries materializes sanitized entries under root. Directories
// first, then files; the executable bit is preserved where the platform
// honors it (a chmod failure is a warning via the returned list, not
// fatal).
func writeEntries(root string, entries []archiveEntry) (warnings []string, err error) {
	for _, entry := range entries {
		target := filepath.Join(root, filepath.FromSlash(entry.relPath))

		if entry.dir {
			if err := withFSRetry(func() error { return os.MkdirAll(target, 0o755) }); err != nil {
				return warnings, &ExtractError{Entry: entry.relPath, Msg: "create directory", Err: err}
			}
			continue
		}

		if err := withFSRetry(func() error { return os.MkdirAll(filepath.Dir(target), 0o755) }); err != nil {
			return warnings, &ExtractError{Entry: entry.relPath, Msg: "create parent directory", Err: err}
		}

		mode := os.FileMode(0o644)
		if entry.executable {
			mode = 0o755
		}
		if err := withFSRetry(func() error { return os.WriteFile(target, entry.data, mode) }); err != nil {
			return warnings, &ExtractError{Entry: entry.relPath, Msg: "write file", Err: err}
		}

		// WriteFile only applies mode on create; reinstalls over an
		// existing tree need an explicit chmod.
		if err := os.Chmod(target, mode); err != nil {
			warnings = append(warnings, fmt.Sprintf("chmod %s: %v", entry.relPath, err))
		}
	}
	return warnings, nil
}
