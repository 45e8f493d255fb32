package types

import (
	"fmt"
	"strings"
)

// Ecosystem identifies a package registry namespace.
type Ecosystem string

// Supported ecosystems. All current dispatch profiles resolve to npm.
const (
	EcosystemNPM Ecosystem = "npm"
)

// PackageReference is a normalized (ecosystem, name, version) triple.
// It is the unit of scanning: references with equal triples are the same
// query regardless of how the user spelled the specifier.
type PackageReference struct {
	Ecosystem Ecosystem `json:"ecosystem"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
}

// String renders the reference in purl-like form for display and queries.
func (r PackageReference) String() string {
	if r.Version == "" {
		return fmt.Sprintf("%s/%s", r.Ecosystem, r.Name)
	}
	return fmt.Sprintf("%s/%s@%s", r.Ecosystem, r.Name, r.Version)
}

// ErrUnparsableSpecifier is returned for specifiers that cannot be
// normalized. Callers drop such specifiers rather than failing the gate.
var ErrUnparsableSpecifier = fmt.Errorf("unparsable package specifier")

// ParseSpecifier normalizes an npm-style package specifier into a
// PackageReference. Accepted shapes:
//
//	left-pad
//	left-pad@1.0.0
//	@scope/name
//	@scope/name@^2.1.0
//
// Paths, URLs, and aliases are not package specifiers and return
// ErrUnparsableSpecifier.
func ParseSpecifier(spec string) (PackageReference, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return PackageReference{}, fmt.Errorf("%w: empty", ErrUnparsableSpecifier)
	}

	// Local paths and URLs resolve outside the registry; nothing to scan.
	if strings.ContainsAny(spec, "/\\") && !strings.HasPrefix(spec, "@") {
		return PackageReference{}, fmt.Errorf("%w: %q", ErrUnparsableSpecifier, spec)
	}
	if strings.Contains(spec, "://") {
		return PackageReference{}, fmt.Errorf("%w: %q", ErrUnparsableSpecifier, spec)
	}

	name := spec
	version := ""

	// The version separator is the last '@' past position 0, so scoped
	// names (@scope/name) keep their leading '@'.
	if idx := strings.LastIndex(spec, "@"); idx > 0 {
		name = spec[:idx]
		version = spec[idx+1:]
	}

	if !validPackageName(name) {
		return PackageReference{}, fmt.Errorf("%w: %q", ErrUnparsableSpecifier, spec)
	}

	return PackageReference{
		Ecosystem: EcosystemNPM,
		Name:      name,
		Version:   version,
	}, nil
}

// validPackageName checks npm naming rules loosely: lowercase-ish,
// optionally scoped, no spaces, no leading dot or underscore.
func validPackageName(name string) bool {
	if name == "" || len(name) > 214 {
		return false
	}

	rest := name
	if strings.HasPrefix(name, "@") {
		scope, pkg, ok := strings.Cut(name[1:], "/")
		if !ok || scope == "" || pkg == "" {
			return false
		}
		if strings.Contains(pkg, "/") {
			return false
		}
		rest = scope + pkg
	} else if strings.Contains(name, "/") {
		return false
	}

	if strings.HasPrefix(rest, ".") || strings.HasPrefix(rest, "_") {
		return false
	}
	for _, r := range rest {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		case r >= 'A' && r <= 'Z':
			// Legacy mixed-case names still exist on the registry.
		default:
			return false
		}
	}
	return true
}

// DedupeReferences removes duplicate triples, preserving first-seen order.
func DedupeReferences(refs []PackageReference) []PackageReference {
	seen := make(map[PackageReference]struct{}, len(refs))
	out := make([]PackageReference, 0, len(refs))
	for _, ref := range refs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}
