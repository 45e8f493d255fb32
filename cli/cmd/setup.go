package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/launcher"
	"github.com/covalent-sh/warden/shadow"
	"github.com/covalent-sh/warden/types"
)

// SetupCommand returns the setup command: install the shadow shim links
// for every supported package manager.
func SetupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Install shadow shim links for the supported package managers",
		Action: func(c *cli.Context) error {
			home, err := config.Home(types.SnapshotEnv())
			if err != nil {
				return cli.Exit(err.Error(), launcher.ExitGenericFailure)
			}
			selfPath, err := os.Executable()
			if err != nil {
				return cli.Exit(err.Error(), launcher.ExitGenericFailure)
			}
			dir, err := shadow.EnsureShims(home, selfPath)
			if err != nil {
				return cli.Exit(err.Error(), launcher.ExitGenericFailure)
			}
			fmt.Printf("shims installed in %s\n", dir)
			fmt.Println("add it to the front of PATH to activate shadowing")
			return nil
		},
	}
}

// TeardownCommand returns the teardown command: remove the shim links.
func TeardownCommand() *cli.Command {
	return &cli.Command{
		Name:  "teardown",
		Usage: "Remove shadow shim links",
		Action: func(c *cli.Context) error {
			home, err := config.Home(types.SnapshotEnv())
			if err != nil {
				return cli.Exit(err.Error(), launcher.ExitGenericFailure)
			}
			if err := shadow.RemoveShims(home); err != nil {
				return cli.Exit(err.Error(), launcher.ExitGenericFailure)
			}
			fmt.Println("shims removed")
			return nil
		},
	}
}
