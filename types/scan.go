package types

// Severity classifies a scan finding.
type Severity string

// Severity levels, ordered low to critical.
const (
	SeverityLow      Severity = "low"
	SeverityWarn     Severity = "warn"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// severityRank orders severities for filter comparison.
var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityWarn:     1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// Known returns true for a recognized severity value.
func (s Severity) Known() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast returns true if s is at or above the filter severity.
// Unknown severities never satisfy a filter; forward compatibility means
// new server-side levels are ignored rather than blocking.
func (s Severity) AtLeast(filter Severity) bool {
	rank, ok := severityRank[s]
	if !ok {
		return false
	}
	want, ok := severityRank[filter]
	if !ok {
		return false
	}
	return rank >= want
}

// Finding is a single risk reported for a package reference.
type Finding struct {
	Reference PackageReference `json:"reference"`
	Severity  Severity         `json:"severity"`
	Kind      string           `json:"kind"`
	Title     string           `json:"title"`
}

// Verdict is the gate's decision for one invocation.
type Verdict string

// Verdict values.
const (
	VerdictProceed Verdict = "proceed"
	VerdictBlock   Verdict = "block"
)

// ScanDecision is the outcome of gating one invocation.
// Derived per invocation and never persisted.
type ScanDecision struct {
	// Verdict says whether the wrapped tool may run.
	Verdict Verdict
	// Blocking lists the findings that forced a block, empty on proceed.
	Blocking []Finding
	// Reason is a short human-readable explanation.
	Reason string
}

// Proceed reports whether the wrapped tool may be launched.
func (d *ScanDecision) Proceed() bool {
	return d.Verdict == VerdictProceed
}
