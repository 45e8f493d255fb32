// Package hook provides the embedded gate preload script.
//
// The script is embedded at build time and extracted to a temporary
// directory on first use, so the shim binary is self-contained. The
// script carries no configuration: gate config travels over the
// handshake channel only.
package hook

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/covalent-sh/warden/types"
)

//go:embed bundle/preload.cjs
var embeddedHook []byte

// extractOnce ensures extraction happens only once per process.
var extractOnce sync.Once
var extractedPath string
var extractErr error

// Checksum returns the SHA256 checksum of the embedded hook.
func Checksum() string {
	hash := sha256.Sum256(embeddedHook)
	return hex.EncodeToString(hash[:])
}

// ExtractedPath returns the path to the extracted hook script.
// Extracts on first call; subsequent calls return the cached path.
func ExtractedPath() (string, error) {
	extractOnce.Do(func() {
		extractedPath, extractErr = extractHook()
	})
	return extractedPath, extractErr
}

// extractHook writes the embedded hook to a versioned temp directory.
// The hash-based name lets multiple installed versions coexist and makes
// re-extraction idempotent.
func extractHook() (string, error) {
	if len(embeddedHook) == 0 {
		return "", fmt.Errorf("no embedded hook available")
	}

	dirName := fmt.Sprintf("warden-hook-%s-%s", types.Version, Checksum()[:16])
	tempDir := filepath.Join(os.TempDir(), dirName)
	hookPath := filepath.Join(tempDir, "preload.cjs")

	if info, err := os.Stat(hookPath); err == nil && info.Size() == int64(len(embeddedHook)) {
		return hookPath, nil
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create hook directory: %w", err)
	}
	if err := os.WriteFile(hookPath, embeddedHook, 0o644); err != nil {
		return "", fmt.Errorf("failed to write hook: %w", err)
	}

	return hookPath, nil
}
