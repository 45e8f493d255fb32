// Package lockfile implements the exclusive install lock.
//
// Independent processes race to perform the first payload install;
// without mutual exclusion, concurrent extractions corrupt each other's
// output. The lock is a plain-text pid file created with O_EXCL. A lock
// whose recorded holder is no longer alive is stale and reclaimable.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// LockFileName is the lock file name under the lock root.
const LockFileName = ".install.lock"

// Defaults for acquisition retry. ~40 attempts at 750ms covers a full
// cold install by a sibling process before giving up loudly.
const (
	DefaultMaxAttempts   = 40
	DefaultRetryInterval = 750 * time.Millisecond
)

// ErrLockTimeout is returned when the retry budget is exhausted while a
// live holder keeps the lock.
var ErrLockTimeout = errors.New("timed out waiting for install lock")

// Options tune acquisition behavior. Zero values select defaults.
type Options struct {
	MaxAttempts   int
	RetryInterval time.Duration
	// probePID overrides the liveness probe in tests.
	probePID func(pid int) bool
}

// Handle represents a held lock. Release is best-effort and never fails.
type Handle struct {
	path     string
	released bool
}

// Path returns the lock file path.
func (h *Handle) Path() string {
	return h.path
}

// Acquire takes the exclusive install lock under root.
//
// The liveness probe is a zero-cost signal check on the recorded pid.
// Pid reuse can make a stale lock look live for one retry interval;
// that only delays reclaim, it never corrupts the install.
func Acquire(root string, opts Options) (*Handle, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	probe := opts.probePID
	if probe == nil {
		probe = processAlive
	}

	path := filepath.Join(root, LockFileName)

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		handle, err := tryCreate(path)
		if err == nil {
			return handle, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file %q: %w", path, err)
		}

		holder, readErr := readHolder(path)
		if readErr != nil || !probe(holder) {
			// Unreadable or dead holder: reclaim and retry immediately.
			// Losing the removal race to a sibling is fine; the next
			// tryCreate settles it.
			_ = os.Remove(path)
			continue
		}

		time.Sleep(opts.RetryInterval)
	}

	return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
}

// Release deletes the lock file. Best-effort: a failed delete leaves a
// stale lock that the next acquirer reclaims via the liveness probe.
func (h *Handle) Release() {
	if h == nil || h.released {
		return
	}
	h.released = true
	_ = os.Remove(h.path)
}

// tryCreate atomically creates the lock file holding our pid.
func tryCreate(path string) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}

	_, writeErr := fmt.Fprintf(f, "%d\n", os.Getpid())
	closeErr := f.Close()
	if writeErr != nil || closeErr != nil {
		// A lock file without a readable pid would be reclaimed as stale
		// by siblings while we still hold it. Back out.
		_ = os.Remove(path)
		if writeErr != nil {
			return nil, fmt.Errorf("write lock holder: %w", writeErr)
		}
		return nil, fmt.Errorf("close lock file: %w", closeErr)
	}

	return &Handle{path: path}, nil
}

// readHolder parses the holder pid from the lock file.
func readHolder(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("malformed lock holder %q", strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// processAlive probes pid liveness with signal 0.
// EPERM means the pid exists but belongs to another user; that still
// counts as alive.
func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}
