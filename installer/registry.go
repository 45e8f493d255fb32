package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/covalent-sh/warden/iox"
)

// packumentSlim is the subset of registry package metadata we read.
type packumentSlim struct {
	DistTags map[string]string `json:"dist-tags"`
}

// ResolveLatest queries the registry for the package's latest version.
func (i *Installer) ResolveLatest(ctx context.Context) (string, error) {
	metaURL := i.registryURL + "/" + escapePackage(i.pkg)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, metaURL, nil)
	if err != nil {
		return "", &DownloadError{URL: metaURL, Msg: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/vnd.npm.install-v1+json")

	resp, err := i.client.Do(req)
	if err != nil {
		return "", &DownloadError{URL: metaURL, Msg: "registry query failed", Err: err}
	}
	defer iox.DiscardClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", &DownloadError{URL: metaURL, Msg: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	var meta packumentSlim
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxMetadataBytes)).Decode(&meta); err != nil {
		return "", &DownloadError{URL: metaURL, Msg: "decode registry metadata", Err: err}
	}

	latest := meta.DistTags["latest"]
	if latest == "" {
		return "", &DownloadError{URL: metaURL, Msg: "registry metadata has no latest dist-tag"}
	}
	return latest, nil
}

// maxMetadataBytes bounds registry metadata reads.
const maxMetadataBytes = 4 * 1024 * 1024

// TarballURL builds the deterministic download URL for a version.
// Registry convention: <registry>/<pkg>/-/<basename>-<version>.tgz,
// where basename drops the scope.
func (i *Installer) TarballURL(version string) string {
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz",
		i.registryURL, escapePackage(i.pkg), packageBasename(i.pkg), version)
}

// escapePackage encodes a package name for a registry URL path.
// Scoped names keep the '@' but escape the scope separator.
func escapePackage(pkg string) string {
	if strings.HasPrefix(pkg, "@") {
		return "@" + url.PathEscape(pkg[1:])
	}
	return url.PathEscape(pkg)
}

// packageBasename returns the unscoped package name.
func packageBasename(pkg string) string {
	if idx := strings.LastIndex(pkg, "/"); idx >= 0 {
		return pkg[idx+1:]
	}
	return pkg
}
