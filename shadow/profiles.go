// Package shadow implements shadow dispatch: intercepting a package
// manager invocation, inserting the security gate, and handing off to
// the real tool only on a proceed verdict.
package shadow

import "github.com/covalent-sh/warden/gate"

// profiles is the strategy table mapping a shim basename to its dispatch
// profile. Resolved once at dispatch start; there is no runtime-path
// sniffing beyond this lookup.
var profiles = map[string]*gate.Profile{
	"npm": {
		Tool: "npm",
		ManifestCommands: map[string]bool{
			"install": true, "i": true, "in": true, "ins": true,
			"add":    true,
			"update": true, "up": true, "upgrade": true,
		},
		EphemeralCommands: map[string]bool{
			"exec": true,
		},
	},
	"npx": {
		Tool:     "npx",
		BareExec: true,
	},
	"pnpm": {
		Tool: "pnpm",
		ManifestCommands: map[string]bool{
			"install": true, "i": true,
			"add":    true,
			"update": true, "up": true,
		},
		EphemeralCommands: map[string]bool{
			"dlx": true, "exec": true,
		},
	},
	"yarn": {
		Tool: "yarn",
		ManifestCommands: map[string]bool{
			"install": true,
			"add":     true,
			"up":      true, "upgrade": true,
		},
		EphemeralCommands: map[string]bool{
			"dlx": true,
		},
	},
}

// ShadowedTools lists the tool names the shim shadows, in stable order.
func ShadowedTools() []string {
	return []string{"npm", "npx", "pnpm", "yarn"}
}

// ProfileFor resolves the dispatch profile for a shim basename.
func ProfileFor(tool string) (*gate.Profile, bool) {
	profile, ok := profiles[tool]
	return profile, ok
}
