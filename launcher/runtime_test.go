package launcher

import (
	"os"
	"path/filepath"
	"testing"
)

// fakeExecutable drops an executable file named "node" into dir.
func fakeExecutable(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, runtimeName)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write fake runtime: %v", err)
	}
	return path
}

func TestResolve_PrefersCompatibleExternal(t *testing.T) {
	dir := t.TempDir()
	candidate := fakeExecutable(t, dir)

	resolver := &Resolver{
		SelfPath:   "/usr/local/bin/warden",
		probeMajor: func(string) (int, bool) { return 22, true },
	}

	rt := resolver.Resolve(map[string]string{"PATH": dir})
	if rt.Kind != RuntimeExternal {
		t.Fatalf("kind = %q, want external", rt.Kind)
	}
	if rt.Path != candidate {
		t.Errorf("path = %q, want %q", rt.Path, candidate)
	}
}

func TestResolve_SkipsTooOld(t *testing.T) {
	oldDir := t.TempDir()
	newDir := t.TempDir()
	fakeExecutable(t, oldDir)
	wanted := fakeExecutable(t, newDir)

	resolver := &Resolver{
		SelfPath: "/usr/local/bin/warden",
		probeMajor: func(path string) (int, bool) {
			if filepath.Dir(path) == oldDir {
				return 14, true
			}
			return 20, true
		},
	}

	rt := resolver.Resolve(map[string]string{"PATH": oldDir + string(os.PathListSeparator) + newDir})
	if rt.Path != wanted {
		t.Errorf("path = %q, want the newer candidate %q", rt.Path, wanted)
	}
}

func TestResolve_ExcludesSelf(t *testing.T) {
	dir := t.TempDir()
	self := fakeExecutable(t, dir)

	resolver := &Resolver{
		SelfPath:   self,
		probeMajor: func(string) (int, bool) { return 22, true },
	}

	rt := resolver.Resolve(map[string]string{"PATH": dir})
	if rt.Kind != RuntimeSelf {
		t.Fatalf("kind = %q, want self fallback when only candidate is self", rt.Kind)
	}
	if rt.Path != self {
		t.Errorf("self path = %q, want %q", rt.Path, self)
	}
}

func TestResolve_SelfFallbackOnEmptyPath(t *testing.T) {
	resolver := &Resolver{
		SelfPath:   "/usr/local/bin/warden",
		probeMajor: func(string) (int, bool) { return 22, true },
	}

	rt := resolver.Resolve(map[string]string{})
	if rt.Kind != RuntimeSelf || rt.Path != "/usr/local/bin/warden" {
		t.Errorf("resolve = %+v, want self fallback", rt)
	}
}

func TestResolve_SkipsUnprobeable(t *testing.T) {
	dir := t.TempDir()
	fakeExecutable(t, dir)

	resolver := &Resolver{
		SelfPath:   "/usr/local/bin/warden",
		probeMajor: func(string) (int, bool) { return 0, false },
	}

	rt := resolver.Resolve(map[string]string{"PATH": dir})
	if rt.Kind != RuntimeSelf {
		t.Errorf("kind = %q, want self when version probe fails", rt.Kind)
	}
}

func TestParseRuntimeMajor(t *testing.T) {
	tests := []struct {
		input string
		major int
		ok    bool
	}{
		{"v22.4.1\n", 22, true},
		{"v18.0.0", 18, true},
		{"20.11.0", 20, true},
		{"v0.10.48", 0, false},
		{"devel", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		major, ok := ParseRuntimeMajor(tt.input)
		if major != tt.major || ok != tt.ok {
			t.Errorf("ParseRuntimeMajor(%q) = (%d, %v), want (%d, %v)",
				tt.input, major, ok, tt.major, tt.ok)
		}
	}
}

func TestMinRuntimeMajor_Default(t *testing.T) {
	if got := MinRuntimeMajor(); got != 18 {
		t.Errorf("MinRuntimeMajor() = %d, want 18", got)
	}
}
