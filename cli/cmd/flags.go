// Package cmd provides the maintenance commands shared by the warden
// binaries. The dispatch and bootstrap paths never route through here;
// these commands only run when a binary is invoked under its own name.
package cmd

import "github.com/urfave/cli/v2"

// FormatFlag selects output format: json, table, yaml.
var FormatFlag = &cli.StringFlag{
	Name:    "format",
	Aliases: []string{"f"},
	Usage:   "Output format: json, table, yaml",
}

// ReadOnlyFlags returns the shared flags for read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{FormatFlag}
}
