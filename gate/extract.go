package gate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/covalent-sh/warden/types"
)

// manifestSlim is the subset of a project manifest we union.
type manifestSlim struct {
	Dependencies         map[string]string `json:"dependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
}

// ExtractReferences parses the references an invocation would introduce.
// Returns an empty slice (no gating) for commands outside the profile's
// gated sets and for any dry-run invocation. Unparsable specifiers are
// dropped, never fatal.
func (g *Gate) ExtractReferences(inv *types.InvocationRequest, profile *Profile) []types.PackageReference {
	if !profile.Gated() {
		return nil
	}

	args, _, _ := splitTerminator(inv.Args)
	for _, arg := range args {
		if dryRunFlags[arg] {
			return nil
		}
	}

	subcommand, positionals := splitCommand(args, profile.BareExec)

	var refs []types.PackageReference
	switch {
	case profile.BareExec, profile.EphemeralCommands[subcommand]:
		refs = g.parseSpecifiers(positionals)
	case profile.ManifestCommands[subcommand]:
		refs = g.parseSpecifiers(positionals)
		refs = append(refs, g.manifestReferences(inv.WorkingDir)...)
	default:
		return nil
	}

	return types.DedupeReferences(refs)
}

// splitCommand separates the leading subcommand from positional
// arguments, skipping flags. BareExec tools have no subcommand; every
// positional is a candidate specifier.
func splitCommand(args []string, bareExec bool) (subcommand string, positionals []string) {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if subcommand == "" && !bareExec {
			subcommand = arg
			continue
		}
		positionals = append(positionals, arg)
	}
	return subcommand, positionals
}

// parseSpecifiers normalizes positional specifiers, dropping the
// unparsable ones with a debug note.
func (g *Gate) parseSpecifiers(specs []string) []types.PackageReference {
	refs := make([]types.PackageReference, 0, len(specs))
	for _, spec := range specs {
		ref, err := types.ParseSpecifier(spec)
		if err != nil {
			g.logger.Debugf("dropping specifier: %v", err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

// manifestReferences reads the project manifest in dir and unions all
// dependency groups. A missing or malformed manifest gates nothing.
func (g *Gate) manifestReferences(dir string) []types.PackageReference {
	path := filepath.Join(dir, "package.json")
	data, err := os.ReadFile(path)
	if err != nil {
		g.logger.Debugf("no readable manifest at %s: %v", path, err)
		return nil
	}

	var manifest manifestSlim
	if err := json.Unmarshal(data, &manifest); err != nil {
		g.logger.Debugf("malformed manifest at %s: %v", path, err)
		return nil
	}

	var refs []types.PackageReference
	for _, group := range []map[string]string{
		manifest.Dependencies,
		manifest.DevDependencies,
		manifest.OptionalDependencies,
		manifest.PeerDependencies,
	} {
		for name, version := range group {
			ref, err := types.ParseSpecifier(name)
			if err != nil {
				g.logger.Debugf("dropping manifest entry: %v", err)
				continue
			}
			ref.Version = version
			refs = append(refs, ref)
		}
	}
	return refs
}

// splitTerminator splits args at the first "--"; arguments after it are
// never inspected.
func splitTerminator(args []string) (pre, post []string, found bool) {
	for i, arg := range args {
		if arg == "--" {
			return args[:i], args[i+1:], true
		}
	}
	return args, nil, false
}
