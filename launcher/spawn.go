package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/ipc"
	"github.com/covalent-sh/warden/log"
	"github.com/covalent-sh/warden/types"
)

// Exit codes.
const (
	// ExitGenericFailure is the fallback for unclassified failures.
	ExitGenericFailure = 1
	// ExitNotFound mirrors the shell convention for a missing executable.
	ExitNotFound = 127
)

// ErrExecutableNotFound wraps spawn failures caused by a missing
// executable, distinguished from other OS errors so orchestrators can
// exit 127.
var ErrExecutableNotFound = errors.New("executable not found")

// Child is a spawned runtime process under supervision.
type Child struct {
	cmd        *exec.Cmd
	handshakeW *os.File
	sent       bool
	logger     *log.SugaredLogger
}

// PID returns the child process id.
func (c *Child) PID() int {
	return c.cmd.Process.Pid
}

// Spawn launches the invocation with interactive stdio passthrough plus
// the reserved handshake channel on the child's first extra descriptor.
func Spawn(ctx context.Context, inv *Invocation, logger *log.SugaredLogger) (*Child, error) {
	cmd := exec.CommandContext(ctx, inv.Path, inv.Argv...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	// Mark the channel for this child only. Preload hooks propagate to
	// every descendant node process through NODE_OPTIONS, and an
	// unmarked process must never read whatever happens to sit on the
	// handshake descriptor.
	env := make(map[string]string, len(inv.Env)+1)
	for key, value := range inv.Env {
		env[key] = value
	}
	env[config.EnvHandshakeFD] = strconv.Itoa(ipc.HandshakeFD)
	cmd.Env = types.FlattenEnv(env)

	// Reserved duplex channel: child reads fd 3, parent keeps the write
	// end for the post-spawn handshake.
	childR, parentW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create handshake pipe: %w", err)
	}
	cmd.ExtraFiles = []*os.File{childR}

	if err := cmd.Start(); err != nil {
		_ = childR.Close()
		_ = parentW.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrExecutableNotFound, inv.Path)
		}
		return nil, fmt.Errorf("spawn %s: %w", inv.Path, err)
	}

	// The child owns its read end now.
	_ = childR.Close()

	return &Child{cmd: cmd, handshakeW: parentW, logger: logger}, nil
}

// SendHandshake sends the envelope over the reserved channel, exactly
// once, after the spawn is confirmed. Best-effort: a send failure is
// logged and the child degrades to standalone startup.
func (c *Child) SendHandshake(env *types.HandshakeEnvelope) {
	if c.sent || c.handshakeW == nil {
		return
	}
	c.sent = true

	if env != nil {
		if err := ipc.Send(c.handshakeW, env); err != nil {
			c.logger.Warnf("handshake send failed (child falls back to standalone startup): %v", err)
		}
	}
	// Closing lets a waiting receiver fail fast instead of burning its
	// whole receive window.
	_ = c.handshakeW.Close()
	c.handshakeW = nil
}

// Wait blocks until the child exits and returns its termination outcome.
func (c *Child) Wait() (types.SpawnOutcome, error) {
	// An unsent handshake would leave the child blocked on its receive
	// window; close the channel before waiting.
	c.SendHandshake(nil)

	err := c.cmd.Wait()
	if err == nil {
		return types.SpawnOutcome{Code: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return types.SpawnOutcome{Signal: int(status.Signal())}, nil
			}
			return types.SpawnOutcome{Code: status.ExitStatus()}, nil
		}
		return types.SpawnOutcome{Code: ExitGenericFailure}, nil
	}

	return types.SpawnOutcome{}, fmt.Errorf("wait for child: %w", err)
}

// isNotFound classifies a start error as "executable not found".
func isNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT)
}
