package ipc

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/covalent-sh/warden/types"
)

// HandshakeFD is the child-side file descriptor of the reserved channel.
// Descriptors 0-2 remain interactive stdio passthrough; the handshake
// rides on the first inherited extra descriptor.
const HandshakeFD = 3

// ChannelName labels the reserved descriptor in diagnostics.
const ChannelName = "warden-handshake"

// DefaultReceiveTimeout bounds how long a child waits for a handshake
// before falling back to standalone startup.
const DefaultReceiveTimeout = 3 * time.Second

// ErrNoHandshake is returned when no handshake arrived within the
// receive window. Callers degrade to cold-start, never fail.
var ErrNoHandshake = errors.New("no handshake received")

// Send writes one handshake envelope to the parent's end of the reserved
// channel. Called exactly once per spawned child, after the spawn is
// confirmed and before the parent awaits exit.
func Send(w *os.File, env *types.HandshakeEnvelope) error {
	payload, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	if err := WriteFrame(w, payload); err != nil {
		return fmt.Errorf("send handshake: %w", err)
	}
	return nil
}

// Receive reads one handshake envelope from the reserved channel,
// waiting at most timeout. Returns ErrNoHandshake when the window
// expires, the channel was never inherited, or the frame is not a
// handshake envelope. All of those degrade to standalone startup.
//
// The blocked reader goroutine is abandoned on timeout. The process is
// short-lived, so the leak is bounded to one goroutine per startup.
func Receive(r *os.File, timeout time.Duration) (*types.HandshakeEnvelope, error) {
	if r == nil {
		return nil, ErrNoHandshake
	}
	if timeout <= 0 {
		timeout = DefaultReceiveTimeout
	}

	type result struct {
		env *types.HandshakeEnvelope
		err error
	}
	ch := make(chan result, 1)

	go func() {
		payload, err := ReadFrame(r)
		if err != nil {
			ch <- result{err: err}
			return
		}
		env, err := DecodeEnvelope(payload)
		ch <- result{env: env, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			// EOF, a dead descriptor, or a foreign frame all mean the
			// parent had nothing for us.
			return nil, fmt.Errorf("%w: %v", ErrNoHandshake, res.err)
		}
		return res.env, nil
	case <-time.After(timeout):
		return nil, ErrNoHandshake
	}
}

// InheritedChannel returns the reserved descriptor as a file, if the
// parent passed one. The descriptor may still be closed or unrelated;
// Receive treats read failures as absence.
func InheritedChannel() *os.File {
	return os.NewFile(uintptr(HandshakeFD), ChannelName)
}
