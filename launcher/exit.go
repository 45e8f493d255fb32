package launcher

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/covalent-sh/warden/types"
)

// PropagateExit reproduces the child's termination in the current
// process: a numeric code becomes the same exit code, and a signal death
// re-raises the same signal so shells and CI observe the identical
// outcome they would from a direct invocation. Does not return.
func PropagateExit(outcome types.SpawnOutcome) {
	if !outcome.Signaled() {
		os.Exit(outcome.Code)
	}

	sig := syscall.Signal(outcome.Signal)
	signal.Reset(sig)
	_ = syscall.Kill(os.Getpid(), sig)

	// Delivery is asynchronous; give the kernel a beat before the
	// fallback exit with the conventional 128+n encoding.
	time.Sleep(100 * time.Millisecond)
	os.Exit(128 + outcome.Signal)
}
