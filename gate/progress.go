package gate

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// spinnerFrames cycle on the progress line.
var spinnerFrames = []string{"|", "/", "-", `\`}

// Spinner is a minimal stderr progress indicator. It renders only on a
// TTY and only when the invocation allows progress, so piped and CI
// output stays clean. Stop is safe to call at any point, including
// before Start and more than once.
type Spinner struct {
	enabled bool

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewSpinner creates a spinner. allowed reflects the caller's
// progress-allowed flag; TTY detection is applied on top.
func NewSpinner(allowed bool) *Spinner {
	return &Spinner{
		enabled: allowed && isatty.IsTerminal(os.Stderr.Fd()),
	}
}

// Start begins rendering with a label. No-op when disabled or running.
func (s *Spinner) Start(label string) {
	if s == nil || !s.enabled {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.done = make(chan struct{})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()
		frame := 0
		for {
			select {
			case <-s.done:
				// Clear the progress line before ceding stderr.
				fmt.Fprintf(os.Stderr, "\r\033[K")
				return
			case <-ticker.C:
				fmt.Fprintf(os.Stderr, "\r%s %s", spinnerFrames[frame%len(spinnerFrames)], label)
				frame++
			}
		}
	}()
}

// Stop halts rendering and clears the progress line.
func (s *Spinner) Stop() {
	if s == nil || !s.enabled {
		return
	}
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.done)
	s.mu.Unlock()
	s.wg.Wait()
}
