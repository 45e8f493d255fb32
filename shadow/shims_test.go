package shadow

import (
	"os"
	"path/filepath"
	"testing"
)

// writeExecutable drops an executable named tool into dir.
func writeExecutable(t *testing.T, dir, tool string) string {
	t.Helper()
	path := filepath.Join(dir, tool)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write executable %q: %v", path, err)
	}
	return path
}

func TestEnsureShims_CreatesAllLinks(t *testing.T) {
	home := t.TempDir()
	self := writeExecutable(t, t.TempDir(), "warden-shim")

	dir, err := EnsureShims(home, self)
	if err != nil {
		t.Fatalf("EnsureShims failed: %v", err)
	}
	if dir != ShimDir(home) {
		t.Errorf("dir = %q, want %q", dir, ShimDir(home))
	}

	for _, tool := range ShadowedTools() {
		target, err := os.Readlink(filepath.Join(dir, tool))
		if err != nil {
			t.Errorf("shim %q not a symlink: %v", tool, err)
			continue
		}
		if target != self {
			t.Errorf("shim %q points at %q, want %q", tool, target, self)
		}
	}
}

func TestEnsureShims_Idempotent(t *testing.T) {
	home := t.TempDir()
	self := writeExecutable(t, t.TempDir(), "warden-shim")

	if _, err := EnsureShims(home, self); err != nil {
		t.Fatalf("first EnsureShims failed: %v", err)
	}
	if _, err := EnsureShims(home, self); err != nil {
		t.Fatalf("second EnsureShims failed: %v", err)
	}
}

func TestEnsureShims_ReplacesStaleLink(t *testing.T) {
	home := t.TempDir()
	oldSelf := writeExecutable(t, t.TempDir(), "warden-shim")
	newSelf := writeExecutable(t, t.TempDir(), "warden-shim")

	if _, err := EnsureShims(home, oldSelf); err != nil {
		t.Fatalf("EnsureShims failed: %v", err)
	}
	dir, err := EnsureShims(home, newSelf)
	if err != nil {
		t.Fatalf("EnsureShims after relocation failed: %v", err)
	}

	target, err := os.Readlink(filepath.Join(dir, "npm"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != newSelf {
		t.Errorf("stale link not replaced: %q", target)
	}
}

func TestRemoveShims(t *testing.T) {
	home := t.TempDir()
	self := writeExecutable(t, t.TempDir(), "warden-shim")

	if _, err := EnsureShims(home, self); err != nil {
		t.Fatalf("EnsureShims failed: %v", err)
	}
	if err := RemoveShims(home); err != nil {
		t.Fatalf("RemoveShims failed: %v", err)
	}
	if _, err := os.Stat(ShimDir(home)); !os.IsNotExist(err) {
		t.Errorf("shim directory survives teardown: %v", err)
	}

	// Removing an absent directory is fine.
	if err := RemoveShims(home); err != nil {
		t.Errorf("second RemoveShims failed: %v", err)
	}
}

func TestPrependPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		dir  string
		want string
	}{
		{"empty path", "", "/w/shims", "/w/shims"},
		{"prepends", "/usr/bin:/bin", "/w/shims", "/w/shims:/usr/bin:/bin"},
		{"dedupes", "/usr/bin:/w/shims:/bin", "/w/shims", "/w/shims:/usr/bin:/bin"},
		{"already first", "/w/shims:/usr/bin", "/w/shims", "/w/shims:/usr/bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PrependPath(tt.path, tt.dir); got != tt.want {
				t.Errorf("PrependPath(%q, %q) = %q, want %q", tt.path, tt.dir, got, tt.want)
			}
		})
	}
}

func TestResolveReal_SkipsShimDirectory(t *testing.T) {
	home := t.TempDir()
	self := writeExecutable(t, t.TempDir(), "warden-shim")
	realDir := t.TempDir()
	realNpm := writeExecutable(t, realDir, "npm")

	shimDir, err := EnsureShims(home, self)
	if err != nil {
		t.Fatalf("EnsureShims failed: %v", err)
	}

	guard := newRecursionGuard(shimDir, self)
	path := shimDir + string(os.PathListSeparator) + realDir

	resolved, found := resolveReal("npm", path, guard)
	if !found {
		t.Fatal("real npm not found")
	}
	if resolved != realNpm {
		t.Errorf("resolved = %q, want %q past the shim directory", resolved, realNpm)
	}
}

func TestResolveReal_SkipsSymlinkToSelf(t *testing.T) {
	self := writeExecutable(t, t.TempDir(), "warden-shim")

	// A shimmed npm outside the shim directory still resolves to us and
	// must be skipped.
	linkDir := t.TempDir()
	if err := os.Symlink(self, filepath.Join(linkDir, "npm")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	realDir := t.TempDir()
	realNpm := writeExecutable(t, realDir, "npm")

	guard := newRecursionGuard(filepath.Join(t.TempDir(), "shims"), self)
	path := linkDir + string(os.PathListSeparator) + realDir

	resolved, found := resolveReal("npm", path, guard)
	if !found {
		t.Fatal("real npm not found")
	}
	if resolved != realNpm {
		t.Errorf("resolved = %q, want %q past the self link", resolved, realNpm)
	}
}

func TestResolveReal_NothingFound(t *testing.T) {
	guard := newRecursionGuard(filepath.Join(t.TempDir(), "shims"), "/usr/local/bin/warden-shim")

	if _, found := resolveReal("npm", t.TempDir(), guard); found {
		t.Error("resolved a tool on an empty search path")
	}
}
