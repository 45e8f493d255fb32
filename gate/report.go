package gate

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/covalent-sh/warden/cli/config"
	"github.com/covalent-sh/warden/types"
)

// Color palette.
var (
	errorColor   = lipgloss.Color("#EF4444") // Red
	warningColor = lipgloss.Color("#F59E0B") // Amber
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

// Report styles.
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	refStyle = lipgloss.NewStyle().
			Bold(true)

	severityStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	hintStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

// RenderBlock prints the blocking references, the decision reason, and
// the two remediation signals. Output goes to the gate's writer (stderr
// by default): the wrapped tool's stdout contract stays untouched.
func (g *Gate) RenderBlock(decision *types.ScanDecision) {
	fmt.Fprintln(g.out)
	fmt.Fprintln(g.out, headerStyle.Render("Blocked by warden"))
	fmt.Fprintf(g.out, "%s\n\n", decision.Reason)

	for _, finding := range decision.Blocking {
		fmt.Fprintf(g.out, "  %s  %s  %s\n",
			refStyle.Render(finding.Reference.String()),
			severityStyle.Render(string(finding.Severity)),
			finding.Title,
		)
	}

	fmt.Fprintln(g.out)
	fmt.Fprintln(g.out, hintStyle.Render(fmt.Sprintf(
		"To see every finding, re-run with %s=1.", config.EnvViewAllRisks)))
	fmt.Fprintln(g.out, hintStyle.Render(fmt.Sprintf(
		"To proceed anyway, re-run with %s=1.", config.EnvAcceptRisks)))
}

// pluralRefs renders a human count of references.
func pluralRefs(n int) string {
	if n == 1 {
		return "1 package"
	}
	return fmt.Sprintf("%d packages", n)
}
