package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/covalent-sh/warden/cli/render"
	"github.com/covalent-sh/warden/launcher"
	"github.com/covalent-sh/warden/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	MinRuntime int    `json:"min_runtime"`
}

// VersionCommand returns the version command. It reports the binary's
// own version and never touches the installed payload.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Flags: ReadOnlyFlags(),
		Action: func(c *cli.Context) error {
			r, err := render.NewRenderer(c)
			if err != nil {
				return err
			}
			return r.Render(VersionResponse{
				Version:    types.Version,
				Commit:     commit,
				MinRuntime: launcher.MinRuntimeMajor(),
			})
		},
	}
}
