package installer

import (
	"errors"
	"syscall"
	"time"
)

// Retry budget for transient filesystem errors. Exponential backoff
// starting at 100ms: 100, 200, 400.
const (
	fsRetries      = 3
	fsRetryBackoff = 100 * time.Millisecond
)

// transientFSError reports whether err is a transient filesystem
// condition worth retrying. Permission and not-found errors are
// deterministic and never retried.
func transientFSError(err error) bool {
	for _, code := range []syscall.Errno{
		syscall.EBUSY,
		syscall.EAGAIN,
		syscall.EINTR,
		syscall.EMFILE,
		syscall.ENFILE,
	} {
		if errors.Is(err, code) {
			return true
		}
	}
	return false
}

// withFSRetry runs fn, retrying with bounded backoff on transient
// filesystem errors only. The last error is returned unwrapped so
// callers can classify it.
func withFSRetry(fn func() error) error {
	var lastErr error
	for i := 0; i <= fsRetries; i++ {
		if i > 0 {
			time.Sleep(fsRetryBackoff << uint(i-1))
		}
		lastErr = fn()
		if lastErr == nil || !transientFSError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
