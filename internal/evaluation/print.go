package evaluation

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("247"))

	goodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// maxPrintedFailures bounds the failure list in PrintReport.
const maxPrintedFailures = 5

// PrintReport writes a human-readable summary of r, wrapping long failure
// messages at width columns.
func PrintReport(w io.Writer, r *Report, width int) {
	if width <= 0 {
		width = 80
	}
	s := r.Summary
	rule := strings.Repeat("=", min(width, 60))

	var b strings.Builder
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, titleStyle.Render("EVALUATION REPORT"))
	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, dimStyle.Render(fmt.Sprintf("run %s, generator v%d, %s",
		r.RunID, r.GeneratorVersion, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))))
	fmt.Fprintln(&b)

	row(&b, "Total cases", fmt.Sprint(s.Total))
	row(&b, "Scored", fmt.Sprint(s.Scored))
	row(&b, "Failed", countStyle(s.Failed, badStyle).Render(fmt.Sprint(s.Failed)))
	row(&b, "Skipped", countStyle(s.Skipped, warnStyle).Render(fmt.Sprint(s.Skipped)))

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, headingStyle.Render("Classification Accuracy"))
	row(&b, "Severity", percent(s.SeverityAccuracy))
	row(&b, "Stage", percent(s.StageAccuracy))
	row(&b, "Complexity", percent(s.ComplexityAccuracy))
	row(&b, "Overall", percent(s.OverallAccuracy))
	row(&b, "Pass rate", percent(s.PassRate))

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, headingStyle.Render("Fix Suggestions"))
	row(&b, "Avg count", fmt.Sprintf("%.2f", s.AvgSuggestionCount))
	row(&b, "Avg confidence", fmt.Sprintf("%.2f%%", s.AvgConfidence*100))

	if len(r.Categories) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, headingStyle.Render("By Category"))
		names := make([]string, 0, len(r.Categories))
		for name := range r.Categories {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := r.Categories[name]
			row(&b, name, fmt.Sprintf("%s  %d/%d passed", percent(c.OverallAccuracy), c.Passed, c.Total))
		}
	}

	if failures := r.Failures(); len(failures) > 0 {
		fmt.Fprintln(&b)
		fmt.Fprintln(&b, badStyle.Render(fmt.Sprintf("Errors Encountered: %d", len(failures))))
		for _, f := range failures[:min(len(failures), maxPrintedFailures)] {
			lines := strings.Split(wordwrap.String(fmt.Sprintf("Case %s: %s", f.ID, f.Error), width-6), "\n")
			fmt.Fprintf(&b, "  - %s\n", lines[0])
			if len(lines) > 1 {
				fmt.Fprintln(&b, indent.String(strings.Join(lines[1:], "\n"), 4))
			}
		}
	}
	fmt.Fprintln(&b, rule)

	_, _ = io.WriteString(w, b.String())
}

func row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-22s", label+":")), value)
}

func percent(v float64) string {
	text := fmt.Sprintf("%.2f%%", v*100)
	switch {
	case v >= 0.9:
		return goodStyle.Render(text)
	case v >= 0.6:
		return warnStyle.Render(text)
	default:
		return badStyle.Render(text)
	}
}

func countStyle(n int, style lipgloss.Style) lipgloss.Style {
	if n == 0 {
		return goodStyle
	}
	return style
}
