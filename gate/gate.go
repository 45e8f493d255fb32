package gate

import (
	"context"
	"io"
	"os"

	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/log"
	"github.com/covalent-sh/warden/scan"
	"github.com/covalent-sh/warden/types"
)

// Gate is the per-invocation security decision.
type Gate struct {
	scanner  scan.Scanner
	severity types.Severity
	logger   *log.SugaredLogger
	out      io.Writer

	// Override signals, read from the invocation's env snapshot.
	viewAllRisks bool
	acceptRisks  bool
}

// Config configures a Gate.
type Config struct {
	// Scanner is the scoring collaborator.
	Scanner scan.Scanner
	// Severity is the active filter; findings below it never block.
	Severity types.Severity
	// Env is the invocation's environment snapshot, used for the two
	// documented override signals.
	Env map[string]string
	// Logger receives diagnostics.
	Logger *log.SugaredLogger
	// Out receives the block report (default stderr; stdout stays
	// transparent for the wrapped tool).
	Out io.Writer
}

// New creates a Gate.
func New(cfg Config) *Gate {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}
	return &Gate{
		scanner:      cfg.Scanner,
		severity:     cfg.Severity,
		logger:       cfg.Logger,
		out:          out,
		viewAllRisks: config.Truthy(cfg.Env[config.EnvViewAllRisks]),
		acceptRisks:  config.Truthy(cfg.Env[config.EnvAcceptRisks]),
	}
}

// Decide gates a set of references. Empty input proceeds without
// contacting anything; a failed scoring query is fail-open. The gate
// must never make the wrapped tool unavailable.
func (g *Gate) Decide(ctx context.Context, refs []types.PackageReference) *types.ScanDecision {
	if len(refs) == 0 {
		return &types.ScanDecision{Verdict: types.VerdictProceed, Reason: "nothing to scan"}
	}

	findings, err := g.scanner.Scan(ctx, refs)
	if err != nil {
		g.logger.Warnf("scoring query failed, proceeding without gate: %v", err)
		return &types.ScanDecision{Verdict: types.VerdictProceed, Reason: "scoring unavailable (fail-open)"}
	}

	var blocking []types.Finding
	for _, finding := range findings {
		if finding.Severity.AtLeast(g.severity) {
			blocking = append(blocking, finding)
		}
	}

	if len(blocking) == 0 {
		return &types.ScanDecision{Verdict: types.VerdictProceed, Reason: "no disqualifying findings"}
	}

	if g.acceptRisks {
		g.logger.Warnf("%d disqualifying finding(s) accepted via %s", len(blocking), config.EnvAcceptRisks)
		return &types.ScanDecision{
			Verdict:  types.VerdictProceed,
			Blocking: blocking,
			Reason:   "risks explicitly accepted",
		}
	}

	reported := blocking
	if g.viewAllRisks {
		reported = findings
	}

	return &types.ScanDecision{
		Verdict:  types.VerdictBlock,
		Blocking: reported,
		Reason:   "disqualifying findings at or above severity " + string(g.severity),
	}
}

// Check runs the full gate for one invocation: extract, decide, and on
// block, stop the progress indicator and render the report.
func (g *Gate) Check(ctx context.Context, inv *types.InvocationRequest, profile *Profile, spinner *Spinner) *types.ScanDecision {
	refs := g.ExtractReferences(inv, profile)
	if len(refs) == 0 {
		return &types.ScanDecision{Verdict: types.VerdictProceed, Reason: "invocation not gated"}
	}

	spinner.Start("scanning " + pluralRefs(len(refs)))
	decision := g.Decide(ctx, refs)
	spinner.Stop()

	if !decision.Proceed() {
		g.RenderBlock(decision)
	}
	return decision
}
