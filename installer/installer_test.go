package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/covalent-sh/warden/log"
	"github.com/covalent-sh/warden/types"
)

func testLogger(t *testing.T) *log.SugaredLogger {
	t.Helper()
	return log.NewLogger("installer-test", true).WithOutput(io.Discard).Sugar()
}

// fakeRegistry serves a minimal registry: a packument for pkg and its
// tarball. Truncate cuts the tarball body short of the declared length.
type fakeRegistry struct {
	pkg      string
	version  string
	tarball  []byte
	truncate bool

	metadataHits int
	tarballHits  int
}

func (f *fakeRegistry) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		escaped := escapePackage(f.pkg)
		switch r.URL.EscapedPath() {
		case "/" + escaped:
			f.metadataHits++
			fmt.Fprintf(w, `{"dist-tags":{"latest":%q}}`, f.version)
		case fmt.Sprintf("/%s/-/%s-%s.tgz", escaped, packageBasename(f.pkg), f.version):
			f.tarballHits++
			body := f.tarball
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			if f.truncate {
				body = body[:len(body)/2]
			}
			_, _ = w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}
}

func newTestInstaller(t *testing.T, registryURL, pkg string) *Installer {
	t.Helper()
	return New(Config{
		RegistryURL: registryURL,
		Package:     pkg,
		Home:        t.TempDir(),
		Client:      &http.Client{Timeout: 5 * time.Second},
		Logger:      testLogger(t),
	})
}

func TestInstall_RoundTrip(t *testing.T) {
	registry := &fakeRegistry{
		pkg:     "@covalent/warden-cli",
		version: "1.2.3",
		tarball: buildTarball(t, []tarEntry{
			{name: "package/cli.js", data: "#!/usr/bin/env node\n"},
			{name: "package/lib/", dir: true},
			{name: "package/lib/util.js", data: "module.exports = {}\n"},
		}),
	}
	server := httptest.NewServer(registry.handler())
	defer server.Close()

	inst := newTestInstaller(t, server.URL, "@covalent/warden-cli")
	ctx := context.Background()

	version, err := inst.ResolveLatest(ctx)
	if err != nil {
		t.Fatalf("ResolveLatest failed: %v", err)
	}
	if version != "1.2.3" {
		t.Fatalf("version = %q, want 1.2.3", version)
	}

	artifact, err := inst.Install(ctx, version)
	if err != nil {
		t.Fatalf("Install failed: %v", err)
	}
	if artifact.Version != "1.2.3" {
		t.Errorf("artifact version = %q", artifact.Version)
	}
	if artifact.EntryPoint != inst.EntryPoint() {
		t.Errorf("artifact entry point = %q, want %q", artifact.EntryPoint, inst.EntryPoint())
	}

	if !inst.Ready() {
		t.Error("installer not ready after install")
	}
	if got := inst.InstalledVersion(); got != "1.2.3" {
		t.Errorf("InstalledVersion = %q", got)
	}

	data, err := os.ReadFile(filepath.Join(inst.InstallRoot(), "lib", "util.js"))
	if err != nil {
		t.Fatalf("read extracted file: %v", err)
	}
	if string(data) != "module.exports = {}\n" {
		t.Errorf("extracted content = %q", data)
	}

	// No temp archives left behind.
	entries, err := os.ReadDir(inst.InstallRoot())
	if err != nil {
		t.Fatalf("read install root: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".download-") {
			t.Errorf("temp archive left behind: %q", entry.Name())
		}
	}
}

func TestInstall_TruncatedTransfer(t *testing.T) {
	registry := &fakeRegistry{
		pkg:     "warden-cli",
		version: "1.0.0",
		tarball: buildTarball(t, []tarEntry{
			{name: "package/cli.js", data: strings.Repeat("x", 4096)},
		}),
		truncate: true,
	}
	server := httptest.NewServer(registry.handler())
	defer server.Close()

	inst := newTestInstaller(t, server.URL, "warden-cli")

	_, err := inst.Install(context.Background(), "1.0.0")
	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}

	// Metadata is written last; a failed install must not look ready.
	if inst.Ready() {
		t.Error("installer reports ready after truncated transfer")
	}
	if _, statErr := os.Stat(inst.MetadataPath()); !os.IsNotExist(statErr) {
		t.Errorf("metadata exists after failed install: %v", statErr)
	}
}

func TestInstall_RedoClearsStaleMetadata(t *testing.T) {
	registry := &fakeRegistry{
		pkg:     "warden-cli",
		version: "2.0.0",
		tarball: buildTarball(t, []tarEntry{
			{name: "package/cli.js", data: strings.Repeat("x", 4096)},
		}),
		truncate: true,
	}
	server := httptest.NewServer(registry.handler())
	defer server.Close()

	inst := newTestInstaller(t, server.URL, "warden-cli")

	// A previous install's metadata with the entry point gone, e.g.
	// deleted externally.
	if err := os.MkdirAll(inst.InstallRoot(), 0o755); err != nil {
		t.Fatalf("seed install root: %v", err)
	}
	if err := os.WriteFile(inst.MetadataPath(), []byte("1.0.0\n"), 0o644); err != nil {
		t.Fatalf("seed stale metadata: %v", err)
	}

	_, err := inst.Install(context.Background(), "2.0.0")
	if err == nil {
		t.Fatal("expected the truncated transfer to fail the install")
	}

	// The readiness marker must fall before the tree is touched, so an
	// interrupted redo can never look ready over a partial rewrite.
	if got := inst.InstalledVersion(); got != "" {
		t.Errorf("stale metadata survived a failed reinstall: %q", got)
	}
	if inst.Ready() {
		t.Error("installer reports ready after failed reinstall")
	}
}

func TestInstall_ReportsLifecycle(t *testing.T) {
	registry := &fakeRegistry{
		pkg:     "warden-cli",
		version: "1.0.0",
		tarball: buildTarball(t, []tarEntry{
			{name: "package/cli.js", data: "#!/usr/bin/env node\n"},
		}),
	}
	server := httptest.NewServer(registry.handler())
	defer server.Close()

	var buf bytes.Buffer
	inst := New(Config{
		RegistryURL: server.URL,
		Package:     "warden-cli",
		Home:        t.TempDir(),
		Client:      &http.Client{Timeout: 5 * time.Second},
		Logger:      log.NewLogger("installer-test", true).WithOutput(&buf).Sugar(),
	})

	if _, err := inst.Install(context.Background(), "1.0.0"); err != nil {
		t.Fatalf("Install failed: %v", err)
	}

	out := buf.String()
	for _, state := range []types.ArtifactState{
		types.ArtifactDownloading,
		types.ArtifactExtracting,
		types.ArtifactVerified,
		types.ArtifactReady,
	} {
		if !strings.Contains(out, string(state)) {
			t.Errorf("no %s transition in install diagnostics", state)
		}
	}
}

func TestState(t *testing.T) {
	inst := New(Config{Home: t.TempDir()})

	if got := inst.State(); got != types.ArtifactAbsent {
		t.Errorf("State = %q, want absent before any install", got)
	}

	if err := os.MkdirAll(inst.InstallRoot(), 0o755); err != nil {
		t.Fatalf("create install root: %v", err)
	}
	if got := inst.State(); got != types.ArtifactAbsent {
		t.Errorf("State = %q, want absent for an empty tree", got)
	}

	if err := os.WriteFile(inst.EntryPoint(), []byte("x"), 0o755); err != nil {
		t.Fatalf("write entry point: %v", err)
	}
	if got := inst.State(); got != types.ArtifactExtracting {
		t.Errorf("State = %q, want extracting without metadata", got)
	}

	if err := os.WriteFile(inst.MetadataPath(), []byte("1.0.0\n"), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if got := inst.State(); got != types.ArtifactReady {
		t.Errorf("State = %q, want ready", got)
	}
}

func TestInstall_MissingEntryPointIsIntegrityError(t *testing.T) {
	registry := &fakeRegistry{
		pkg:     "warden-cli",
		version: "1.0.0",
		tarball: buildTarball(t, []tarEntry{
			{name: "package/index.js", data: "// wrong entry\n"},
		}),
	}
	server := httptest.NewServer(registry.handler())
	defer server.Close()

	inst := newTestInstaller(t, server.URL, "warden-cli")

	_, err := inst.Install(context.Background(), "1.0.0")
	var integrityErr *IntegrityError
	if !errors.As(err, &integrityErr) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	if inst.Ready() {
		t.Error("installer reports ready without entry point")
	}
}

func TestResolveLatest_MissingDistTag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"dist-tags":{}}`)
	}))
	defer server.Close()

	inst := newTestInstaller(t, server.URL, "warden-cli")

	_, err := inst.ResolveLatest(context.Background())
	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
}

func TestResolveLatest_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	inst := newTestInstaller(t, server.URL, "warden-cli")

	_, err := inst.ResolveLatest(context.Background())
	var downloadErr *DownloadError
	if !errors.As(err, &downloadErr) {
		t.Fatalf("expected DownloadError, got %v", err)
	}
}

func TestReady_PartialStates(t *testing.T) {
	inst := newTestInstaller(t, "http://registry.invalid", "warden-cli")

	if inst.Ready() {
		t.Fatal("fresh home reports ready")
	}

	if err := os.MkdirAll(inst.InstallRoot(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	// Metadata alone is a crashed extraction.
	if err := os.WriteFile(inst.MetadataPath(), []byte("1.0.0\n"), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if inst.Ready() {
		t.Error("ready with metadata but no entry point")
	}

	// Entry point alone is an aborted finalize.
	if err := os.Remove(inst.MetadataPath()); err != nil {
		t.Fatalf("remove metadata: %v", err)
	}
	if err := os.WriteFile(inst.EntryPoint(), []byte("// entry\n"), 0o644); err != nil {
		t.Fatalf("write entry point: %v", err)
	}
	if inst.Ready() {
		t.Error("ready with entry point but no metadata")
	}

	// Both present is ready.
	if err := os.WriteFile(inst.MetadataPath(), []byte("1.0.0\n"), 0o644); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	if !inst.Ready() {
		t.Error("not ready with both signals present")
	}
}

func TestTarballURL(t *testing.T) {
	tests := []struct {
		pkg  string
		want string
	}{
		{"warden-cli", "https://registry.example/warden-cli/-/warden-cli-2.0.0.tgz"},
		{"@covalent/warden-cli", "https://registry.example/@covalent%2Fwarden-cli/-/warden-cli-2.0.0.tgz"},
	}

	for _, tt := range tests {
		inst := New(Config{RegistryURL: "https://registry.example/", Package: tt.pkg})
		if got := inst.TarballURL("2.0.0"); got != tt.want {
			t.Errorf("TarballURL(%q) = %q, want %q", tt.pkg, got, tt.want)
		}
	}
}

func TestEscapePackage(t *testing.T) {
	tests := []struct {
		pkg  string
		want string
	}{
		{"warden-cli", "warden-cli"},
		{"@covalent/warden-cli", "@covalent%2Fwarden-cli"},
	}
	for _, tt := range tests {
		if got := escapePackage(tt.pkg); got != tt.want {
			t.Errorf("escapePackage(%q) = %q, want %q", tt.pkg, got, tt.want)
		}
	}
}
