package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/installer"
	"github.com/covalent-sh/warden/shadow"
	"github.com/covalent-sh/warden/types"
)

func TestCollectStatus_FreshHome(t *testing.T) {
	home := t.TempDir()

	resp, err := collectStatus(map[string]string{config.EnvHome: home})
	if err != nil {
		t.Fatalf("collectStatus failed: %v", err)
	}

	if resp.Home != home {
		t.Errorf("home = %q", resp.Home)
	}
	if resp.Ready || resp.InstalledVersion != "" || resp.EntryPoint != "" {
		t.Errorf("fresh home reports installed state: %+v", resp)
	}
	if resp.State != string(types.ArtifactAbsent) {
		t.Errorf("state = %q, want absent", resp.State)
	}
	if len(resp.Shims) != len(shadow.ShadowedTools()) {
		t.Errorf("shims = %v, want one entry per shadowed tool", resp.Shims)
	}
	for _, entry := range resp.Shims {
		if !strings.Contains(entry, "(absent)") {
			t.Errorf("fresh home reports a linked shim: %q", entry)
		}
	}
}

func TestCollectStatus_InstalledAndLinked(t *testing.T) {
	home := t.TempDir()

	root := filepath.Join(home, installer.InstallDirName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, installer.MetadataFileName), []byte("1.4.0\n"), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, installer.EntryPointName), []byte("// entry\n"), 0o644); err != nil {
		t.Fatalf("write entry: %v", err)
	}

	self := filepath.Join(t.TempDir(), "warden-shim")
	if err := os.WriteFile(self, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write shim binary: %v", err)
	}
	if _, err := shadow.EnsureShims(home, self); err != nil {
		t.Fatalf("EnsureShims failed: %v", err)
	}

	resp, err := collectStatus(map[string]string{config.EnvHome: home})
	if err != nil {
		t.Fatalf("collectStatus failed: %v", err)
	}

	if !resp.Ready || resp.InstalledVersion != "1.4.0" {
		t.Errorf("installed state not reported: %+v", resp)
	}
	if resp.State != string(types.ArtifactReady) {
		t.Errorf("state = %q, want ready", resp.State)
	}
	if resp.EntryPoint == "" {
		t.Error("entry point missing from ready report")
	}
	for _, entry := range resp.Shims {
		if !strings.Contains(entry, self) {
			t.Errorf("shim entry does not name the target: %q", entry)
		}
	}
}
