// Package scan defines the remote scoring boundary.
//
// The scoring service itself is an external collaborator; this package
// owns only the query protocol around it. Query failures are surfaced as
// errors for the gate to treat as fail-open.
package scan

import (
	"context"

	"github.com/covalent-sh/warden/types"
)

// Scanner answers batched risk queries for package references.
type Scanner interface {
	// Scan queries findings for all references in one batch.
	// The returned slice may cover any subset of the references; a
	// reference without findings is clean.
	Scan(ctx context.Context, refs []types.PackageReference) ([]types.Finding, error)
}
