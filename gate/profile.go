// Package gate decides, per invocation, whether the wrapped tool may
// proceed, by querying the remote scoring service for every package
// reference the invocation would introduce.
package gate

// Profile describes how one wrapped tool's invocations are gated.
// Profiles are resolved once per dispatch from a fixed strategy table;
// commands outside a profile's gated sets are never gated.
type Profile struct {
	// Tool is the wrapped tool name (npm, npx, ...).
	Tool string
	// ManifestCommands are install/update-style subcommands: the project
	// manifest's dependency groups are unioned with any positional
	// specifiers.
	ManifestCommands map[string]bool
	// EphemeralCommands are execute-style subcommands whose non-flag
	// positional arguments are package specifiers.
	EphemeralCommands map[string]bool
	// BareExec marks tools (npx) whose positional arguments are
	// specifiers without any subcommand.
	BareExec bool
}

// Gated reports whether the profile gates anything at all.
func (p *Profile) Gated() bool {
	return p != nil && (p.BareExec || len(p.ManifestCommands) > 0 || len(p.EphemeralCommands) > 0)
}

// dryRunFlags disable gating entirely: a dry run hands nothing to the
// real tool that could execute.
var dryRunFlags = map[string]bool{
	"--dry-run": true,
	"--dryrun":  true,
}
