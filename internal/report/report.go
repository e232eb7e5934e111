// Package report renders a scheduler.ScanReport as colored terminal
// text or as JSON, for the `scan` command's --format flag.
package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"synx/internal/model"
	"synx/internal/scheduler"
)

var (
	styleValid   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))  // green
	styleInvalid = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // red
	styleWarn    = lipgloss.NewStyle().Foreground(lipgloss.Color("214")) // orange
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("243")) // grey
	styleBold    = lipgloss.NewStyle().Bold(true)
)

// FormatText renders a human-readable, color-coded summary: one line
// per issue, grouped by file, followed by a totals line.
func FormatText(r scheduler.ScanReport) string {
	var b strings.Builder

	for _, file := range r.Files {
		if len(file.Outcomes) == 0 {
			continue
		}
		header := fmt.Sprintf("%s  %s", file.Path, styleDim.Render("("+file.Tag+")"))
		fmt.Fprintln(&b, header)

		for _, outcome := range file.Outcomes {
			switch outcome.Kind {
			case model.OutcomeSuccess:
				fmt.Fprintf(&b, "  %s %s\n", styleValid.Render("✓"), outcome.PluginID)
			case model.OutcomeFailure:
				for _, issue := range outcome.Issues {
					fmt.Fprintf(&b, "  %s %s\n", severityMark(issue.Severity), formatIssue(issue))
				}
			case model.OutcomeTimeout:
				fmt.Fprintf(&b, "  %s %s timed out\n", styleWarn.Render("!"), outcome.PluginID)
			case model.OutcomeToolMissing:
				fmt.Fprintf(&b, "  %s %s unavailable\n", styleDim.Render("-"), outcome.PluginID)
			case model.OutcomePolicyDenied:
				fmt.Fprintf(&b, "  %s %s denied by policy\n", styleInvalid.Render("x"), outcome.PluginID)
			case model.OutcomeInternalError:
				fmt.Fprintf(&b, "  %s %s: %s\n", styleInvalid.Render("x"), outcome.PluginID, outcome.InternalErrKind)
			}
		}
	}

	summary := fmt.Sprintf("%d scanned, %d valid, %d invalid",
		r.FilesScanned, r.FilesValid, r.FilesInvalid)
	if r.FilesInvalid > 0 {
		fmt.Fprintln(&b, styleBold.Render(styleInvalid.Render(summary)))
	} else {
		fmt.Fprintln(&b, styleBold.Render(styleValid.Render(summary)))
	}

	return b.String()
}

func severityMark(s model.Severity) string {
	switch s {
	case model.SeverityCritical, model.SeverityHigh:
		return styleInvalid.Render("x")
	case model.SeverityMedium, model.SeverityLow:
		return styleWarn.Render("!")
	default:
		return styleDim.Render("i")
	}
}

func formatIssue(issue model.Issue) string {
	loc := ""
	if issue.Location != nil && issue.Location.StartLine > 0 {
		loc = fmt.Sprintf("line %d: ", issue.Location.StartLine)
	}
	msg := issue.Message
	if issue.RuleCode != "" {
		msg = fmt.Sprintf("[%s] %s", issue.RuleCode, msg)
	}
	return loc + msg
}

// FormatJSON renders the report as indented JSON, suitable for
// --format json or --report PATH.
func FormatJSON(r scheduler.ScanReport) ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal scan report: %w", err)
	}
	return data, nil
}
