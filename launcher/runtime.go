// Package launcher resolves the runtime executable, builds its argument
// vector and environment, and supervises the spawned child.
package launcher

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// minRuntimeMajor is the minimum acceptable external runtime major
// version. Overridable at build time:
//
//	-ldflags "-X github.com/covalent-sh/warden/launcher.minRuntimeMajor=20"
var minRuntimeMajor = "18"

// runtimeName is the external runtime searched for on PATH.
const runtimeName = "node"

// RuntimeKind says how the payload will be executed.
type RuntimeKind string

// Runtime kinds.
const (
	// RuntimeExternal is a compatible runtime found on the search path.
	RuntimeExternal RuntimeKind = "external"
	// RuntimeSelf re-invokes the current executable as its own runtime.
	RuntimeSelf RuntimeKind = "self"
)

// Runtime is a resolved runtime executable.
type Runtime struct {
	Kind RuntimeKind
	Path string
}

// Resolver finds a runtime for the payload.
type Resolver struct {
	// SelfPath is the currently running executable; candidates resolving
	// to it are skipped to avoid trivial recursion.
	SelfPath string
	// probeMajor overrides version probing in tests.
	probeMajor func(path string) (int, bool)
}

// MinRuntimeMajor returns the effective minimum runtime major version.
func MinRuntimeMajor() int {
	major, err := strconv.Atoi(minRuntimeMajor)
	if err != nil || major <= 0 {
		return 18
	}
	return major
}

// Resolve prefers a compatible external runtime on the search path and
// falls back to the current executable acting as its own runtime.
func (r *Resolver) Resolve(env map[string]string) Runtime {
	probe := r.probeMajor
	if probe == nil {
		probe = probeRuntimeMajor
	}

	self, _ := filepath.EvalSymlinks(r.SelfPath)
	minMajor := MinRuntimeMajor()

	for _, dir := range filepath.SplitList(env["PATH"]) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, runtimeName)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
			continue
		}

		resolved, err := filepath.EvalSymlinks(candidate)
		if err != nil {
			continue
		}
		if self != "" && resolved == self {
			continue
		}

		major, ok := probe(candidate)
		if !ok || major < minMajor {
			continue
		}

		return Runtime{Kind: RuntimeExternal, Path: candidate}
	}

	return Runtime{Kind: RuntimeSelf, Path: r.SelfPath}
}

// probeRuntimeMajor asks a candidate for its version and parses the
// major component out of "vNN.x.y". An unparsable or failing candidate
// is skipped, not fatal.
func probeRuntimeMajor(path string) (int, bool) {
	out, err := exec.Command(path, "--version").Output()
	if err != nil {
		return 0, false
	}
	return ParseRuntimeMajor(string(out))
}

// ParseRuntimeMajor extracts the major version from a "vNN.x.y" string.
func ParseRuntimeMajor(version string) (int, bool) {
	version = strings.TrimSpace(version)
	version = strings.TrimPrefix(version, "v")
	majorStr, _, _ := strings.Cut(version, ".")
	major, err := strconv.Atoi(majorStr)
	if err != nil || major <= 0 {
		return 0, false
	}
	return major, true
}
