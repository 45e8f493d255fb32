package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/cli/render"
	"github.com/covalent-sh/warden/installer"
	"github.com/covalent-sh/warden/launcher"
	"github.com/covalent-sh/warden/shadow"
	"github.com/covalent-sh/warden/types"
)

// StatusResponse is the response for the status command.
type StatusResponse struct {
	Version          string   `json:"version"`
	Home             string   `json:"home"`
	InstalledVersion string   `json:"installed_version,omitempty"`
	EntryPoint       string   `json:"entry_point,omitempty"`
	State            string   `json:"state"`
	Ready            bool     `json:"ready"`
	ShimDir          string   `json:"shim_dir"`
	Shims            []string `json:"shims"`
}

// StatusCommand returns the status command: a read-only report of the
// installed payload and the shim links. It touches no network.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show install and shim state",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}

			resp, err := collectStatus(types.SnapshotEnv())
			if err != nil {
				return cli.Exit(err.Error(), launcher.ExitGenericFailure)
			}
			return r.Render(resp)
		},
	}
}

// collectStatus gathers the report from the filesystem only.
func collectStatus(env map[string]string) (*StatusResponse, error) {
	home, err := config.Home(env)
	if err != nil {
		return nil, err
	}

	inst := installer.New(installer.Config{Home: home})
	resp := &StatusResponse{
		Version:          types.Version,
		Home:             home,
		InstalledVersion: inst.InstalledVersion(),
		State:            string(inst.State()),
		Ready:            inst.Ready(),
		ShimDir:          shadow.ShimDir(home),
	}
	if resp.Ready {
		resp.EntryPoint = inst.EntryPoint()
	}

	for _, tool := range shadow.ShadowedTools() {
		target, err := os.Readlink(filepath.Join(resp.ShimDir, tool))
		if err != nil {
			resp.Shims = append(resp.Shims, tool+" (absent)")
			continue
		}
		resp.Shims = append(resp.Shims, fmt.Sprintf("%s -> %s", tool, target))
	}

	return resp, nil
}
