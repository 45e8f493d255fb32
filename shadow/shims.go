package shadow

import (
	"fmt"
	"os"
	"path/filepath"
)

// ShimDirName is the shim directory under the warden home.
const ShimDirName = "shims"

// ShimDir returns the shim directory for a warden home.
func ShimDir(home string) string {
	return filepath.Join(home, ShimDirName)
}

// EnsureShims makes the shadow shim binaries exist first on the search
// path: one symlink per shadowed tool, all pointing at the shim binary.
// Idempotent; an existing correct link is left alone, a wrong one is
// replaced. Returns the shim directory.
func EnsureShims(home, selfPath string) (string, error) {
	dir := ShimDir(home)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create shim directory %q: %w", dir, err)
	}

	for _, tool := range ShadowedTools() {
		link := filepath.Join(dir, tool)
		if target, err := os.Readlink(link); err == nil && target == selfPath {
			continue
		}
		// Replace whatever is there; a stale link from a moved binary
		// would dispatch nothing.
		_ = os.Remove(link)
		if err := os.Symlink(selfPath, link); err != nil {
			return "", fmt.Errorf("link shim %q: %w", link, err)
		}
	}

	return dir, nil
}

// RemoveShims deletes the shim directory. Used by teardown; best-effort
// on individual entries is unnecessary since the directory is ours.
func RemoveShims(home string) error {
	return os.RemoveAll(ShimDir(home))
}

// PrependPath returns PATH with dir first, dropping earlier occurrences
// of dir so repeated dispatches do not grow the variable.
func PrependPath(path, dir string) string {
	sep := string(os.PathListSeparator)
	out := dir
	for _, entry := range filepath.SplitList(path) {
		if entry == dir || entry == "" {
			continue
		}
		out += sep + entry
	}
	return out
}

// recursionGuard is the allow/deny check on a resolved binary's
// directory, evaluated once per dispatch. A candidate inside the shim
// directory, or resolving to the shim binary itself, is denied so a
// shadowed PATH can never dispatch back into us.
type recursionGuard struct {
	shimDir  string
	selfPath string
}

func newRecursionGuard(shimDir, selfPath string) *recursionGuard {
	resolvedSelf, err := filepath.EvalSymlinks(selfPath)
	if err != nil {
		resolvedSelf = selfPath
	}
	return &recursionGuard{shimDir: shimDir, selfPath: resolvedSelf}
}

// allows reports whether candidate may be dispatched to.
func (g *recursionGuard) allows(candidate string) bool {
	if filepath.Dir(candidate) == g.shimDir {
		return false
	}
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return false
	}
	return resolved != g.selfPath
}

// resolveReal finds the real tool on the search path, skipping anything
// the recursion guard denies.
func resolveReal(tool, path string, guard *recursionGuard) (string, bool) {
	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, tool)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
			continue
		}
		if !guard.allows(candidate) {
			continue
		}
		return candidate, true
	}
	return "", false
}
