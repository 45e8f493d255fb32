package launcher

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"testing"

	"github.com/covalent-sh/warden/types"
)

// TestPropagateExitHelper is the re-exec target for the propagation
// tests below. It acts only when dispatched as a child process.
func TestPropagateExitHelper(t *testing.T) {
	switch os.Getenv("WARDEN_EXIT_HELPER") {
	case "":
		t.Skip("runs only as a re-exec helper")
	case "signal":
		PropagateExit(types.SpawnOutcome{Signal: int(syscall.SIGTERM)})
	case "code":
		PropagateExit(types.SpawnOutcome{Code: 7})
	}
}

func runExitHelper(t *testing.T, mode string) *exec.ExitError {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^TestPropagateExitHelper$")
	cmd.Env = append(os.Environ(), "WARDEN_EXIT_HELPER="+mode)

	err := cmd.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("helper did not terminate abnormally: %v", err)
	}
	return exitErr
}

func TestPropagateExit_ReRaisesSignal(t *testing.T) {
	exitErr := runExitHelper(t, "signal")

	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		t.Fatalf("no wait status in %v", exitErr)
	}
	if !status.Signaled() || status.Signal() != syscall.SIGTERM {
		t.Fatalf("helper status = %v, want death by SIGTERM, not a plain exit", exitErr)
	}
}

func TestPropagateExit_MirrorsExitCode(t *testing.T) {
	exitErr := runExitHelper(t, "code")

	if code := exitErr.ExitCode(); code != 7 {
		t.Fatalf("helper exit code = %d, want 7", code)
	}
}
