//nolint:revive // types is a common Go package naming convention
package types

import (
	"os"
	"strings"
)

// InvocationRequest captures a single wrapped-tool invocation.
// Built exactly once per process start and never mutated afterwards;
// every downstream component reads from the same snapshot.
type InvocationRequest struct {
	// ToolName is the basename the process was invoked as (npm, npx, ...).
	ToolName string
	// Args are the raw arguments after the program name, in order.
	Args []string
	// WorkingDir is the process working directory at startup.
	WorkingDir string
	// Env is a snapshot of the process environment.
	// Spawns always derive a fresh copy from this map; the live process
	// environment is never mutated.
	Env map[string]string
}

// CaptureInvocation builds an InvocationRequest from the current process.
// The tool name is the basename of argv[0] with any extension stripped,
// so a shim installed as "npm" dispatches as "npm" regardless of path.
func CaptureInvocation(argv []string) *InvocationRequest {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}

	name := ""
	args := []string{}
	if len(argv) > 0 {
		name = BaseToolName(argv[0])
	}
	if len(argv) > 1 {
		args = append(args, argv[1:]...)
	}

	return &InvocationRequest{
		ToolName:   name,
		Args:       args,
		WorkingDir: wd,
		Env:        SnapshotEnv(),
	}
}

// BaseToolName reduces an argv[0] path to its dispatchable tool name.
func BaseToolName(argv0 string) string {
	name := argv0
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	// Windows shims carry an extension; dispatch ignores it.
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	return name
}

// SnapshotEnv copies the process environment into a map.
// Later entries win on duplicate keys, matching execve semantics.
func SnapshotEnv() map[string]string {
	environ := os.Environ()
	env := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		env[key] = value
	}
	return env
}

// FlattenEnv converts an environment map back to KEY=VALUE form for exec.
func FlattenEnv(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for key, value := range env {
		out = append(out, key+"="+value)
	}
	return out
}
