package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/covalent-sh/warden/iox"
	"github.com/covalent-sh/warden/log"
	"github.com/covalent-sh/warden/types"
)

// Artifact layout under the install root.
const (
	// InstallDirName is the payload directory under the warden home.
	InstallDirName = "cli"
	// MetadataFileName records the installed version.
	MetadataFileName = ".warden-version"
	// EntryPointName is the payload entry point at a fixed relative path.
	EntryPointName = "cli.js"
)

// Installer downloads and extracts payload versions.
type Installer struct {
	registryURL string
	pkg         string
	home        string
	client      *http.Client
	logger      *log.SugaredLogger
}

// Config configures an Installer.
type Config struct {
	// RegistryURL is the registry base URL, without trailing slash.
	RegistryURL string
	// Package is the payload package name.
	Package string
	// Home is the warden home directory.
	Home string
	// Client is the HTTP client; must carry a hard timeout.
	Client *http.Client
	// Logger receives diagnostics.
	Logger *log.SugaredLogger
}

// New creates an Installer.
func New(cfg Config) *Installer {
	return &Installer{
		registryURL: strings.TrimRight(cfg.RegistryURL, "/"),
		pkg:         cfg.Package,
		home:        cfg.Home,
		client:      cfg.Client,
		logger:      cfg.Logger,
	}
}

// InstallRoot returns the payload install directory.
func (i *Installer) InstallRoot() string {
	return filepath.Join(i.home, InstallDirName)
}

// MetadataPath returns the installed-version metadata file path.
func (i *Installer) MetadataPath() string {
	return filepath.Join(i.InstallRoot(), MetadataFileName)
}

// EntryPoint returns the payload entry-point path.
func (i *Installer) EntryPoint() string {
	return filepath.Join(i.InstallRoot(), EntryPointName)
}

// InstalledVersion reads the installed-version metadata.
// Returns "" when no version is recorded.
func (i *Installer) InstalledVersion() string {
	data, err := os.ReadFile(i.MetadataPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// Ready reports whether an installed artifact is usable. Both signals
// are required: metadata without an entry point is a crashed extraction,
// an entry point without metadata is an aborted finalize. Either way the
// install is redone rather than trusted.
func (i *Installer) Ready() bool {
	if i.InstalledVersion() == "" {
		return false
	}
	info, err := os.Stat(i.EntryPoint())
	return err == nil && info.Mode().IsRegular()
}

// State reports the installed tree's lifecycle position from the
// filesystem alone: ready, absent, or an interrupted extraction that
// the next install will redo.
func (i *Installer) State() types.ArtifactState {
	if i.Ready() {
		return types.ArtifactReady
	}
	entries, err := os.ReadDir(i.InstallRoot())
	if err != nil || len(entries) == 0 {
		return types.ArtifactAbsent
	}
	return types.ArtifactExtracting
}

// Install downloads and extracts the given payload version, returning
// the ready artifact. The caller holds the install lock across the whole
// sequence. The metadata file is written last, so a crash at any earlier
// point leaves nothing marked ready.
func (i *Installer) Install(ctx context.Context, version string) (*types.InstalledArtifact, error) {
	root := i.InstallRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create install root %q: %w", root, err)
	}

	// A redo rewrites the tree in place; drop the readiness marker first
	// so a crash mid rewrite never leaves stale metadata over a partial
	// tree.
	if err := os.Remove(i.MetadataPath()); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("clear stale metadata: %w", err)
	}

	tarball := i.TarballURL(version)
	tempPath := filepath.Join(root, fmt.Sprintf(".download-%s.tgz", uuid.NewString()))

	i.logger.Debugf("install %s@%s: %s", i.pkg, version, types.ArtifactDownloading)
	tgz, err := i.download(ctx, tarball, tempPath)
	// The temp archive is working state either way; keep the tree clean.
	defer func() { _ = os.Remove(tempPath) }()
	if err != nil {
		return nil, err
	}

	entries, err := parseArchive(tgz)
	if err != nil {
		return nil, err
	}

	i.logger.Debugf("install %s@%s: %s", i.pkg, version, types.ArtifactExtracting)
	warnings, err := writeEntries(root, entries)
	for _, warning := range warnings {
		i.logger.Warnf("install %s@%s: %s", i.pkg, version, warning)
	}
	if err != nil {
		return nil, err
	}

	entryPoint := i.EntryPoint()
	if info, statErr := os.Stat(entryPoint); statErr != nil || !info.Mode().IsRegular() {
		return nil, &IntegrityError{Path: entryPoint, Msg: "entry point missing after extraction"}
	}
	i.logger.Debugf("install %s@%s: %s", i.pkg, version, types.ArtifactVerified)

	if err := withFSRetry(func() error {
		return os.WriteFile(i.MetadataPath(), []byte(version+"\n"), 0o644)
	}); err != nil {
		return nil, fmt.Errorf("write version metadata: %w", err)
	}

	i.logger.Debugf("install %s@%s: %s under %s (%d entries)", i.pkg, version, types.ArtifactReady, root, len(entries))

	return &types.InstalledArtifact{
		Version:     version,
		InstallRoot: root,
		EntryPoint:  entryPoint,
	}, nil
}

// download streams the tarball to tempPath, validating the transferred
// size against any declared content length, and returns the bytes.
func (i *Installer) download(ctx context.Context, tarball, tempPath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tarball, nil)
	if err != nil {
		return nil, &DownloadError{URL: tarball, Msg: "create request", Err: err}
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: tarball, Msg: "transfer failed", Err: err}
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, &DownloadError{URL: tarball, Msg: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	temp, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, &DownloadError{URL: tarball, Msg: "create temp file", Err: err}
	}

	written, copyErr := io.Copy(temp, io.LimitReader(resp.Body, maxPayloadBytes))
	closeErr := temp.Close()
	if copyErr != nil {
		return nil, &DownloadError{URL: tarball, Msg: "stream to temp file", Err: copyErr}
	}
	if closeErr != nil {
		return nil, &DownloadError{URL: tarball, Msg: "close temp file", Err: closeErr}
	}

	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return nil, &DownloadError{
			URL: tarball,
			Msg: fmt.Sprintf("truncated transfer: got %d bytes, declared %d", written, resp.ContentLength),
		}
	}

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return nil, &DownloadError{URL: tarball, Msg: "read temp file", Err: err}
	}
	return data, nil
}
