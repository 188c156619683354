package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/newhook/plclog/internal/model"
	"github.com/newhook/plclog/internal/service"
)

const wrapWidth = 78

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	typeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	severityStyles = map[model.Severity]lipgloss.Style{
		model.SeverityBlocking: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		model.SeverityWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		model.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func severity(s model.Severity) string {
	if style, ok := severityStyles[s]; ok {
		return style.Render(string(s))
	}
	return string(s)
}

func wrapped(text string, spaces uint) string {
	return indent.String(wordwrap.String(text, wrapWidth-int(spaces)), spaces)
}

func printParseResult(w io.Writer, result *model.ParseResult) {
	if len(result.Errors) == 0 {
		fmt.Fprintln(w, "No errors found")
		return
	}

	header := fmt.Sprintf("%d errors", len(result.Errors))
	if result.HasCascadingErrors {
		header += " (cascading)"
	}
	fmt.Fprintln(w, headerStyle.Render(header))

	for i, e := range result.Errors {
		fmt.Fprintf(w, "\n[%d] %s %s %s\n", i, typeStyle.Render(e.ErrorType), severity(e.Severity), dimStyle.Render(string(e.Stage)))
		fmt.Fprintln(w, wrapped(e.Message, 4))

		var loc []string
		if e.FilePath != "" {
			loc = append(loc, e.FilePath)
		}
		if e.LineNumber != nil {
			loc = append(loc, fmt.Sprintf("line %d", *e.LineNumber))
		}
		if e.Timestamp != "" {
			loc = append(loc, "at "+e.Timestamp)
		}
		if e.CausedBy != nil {
			loc = append(loc, fmt.Sprintf("caused by [%d]", *e.CausedBy))
		}
		if len(loc) > 0 {
			fmt.Fprintln(w, dimStyle.Render("    "+strings.Join(loc, ", ")))
		}
	}
}

func printClassification(w io.Writer, cls model.Classification) {
	fmt.Fprintln(w, headerStyle.Render("Classification"))
	fmt.Fprintf(w, "    severity:   %s\n", severity(cls.Severity))
	fmt.Fprintf(w, "    stage:      %s\n", cls.Stage)
	fmt.Fprintf(w, "    complexity: %s\n", cls.Complexity)
	if cls.Reasoning != "" {
		fmt.Fprintln(w, wrapped(cls.Reasoning, 4))
	}
}

func printSuggestions(w io.Writer, sugs []model.Suggestion) {
	fmt.Fprintln(w, headerStyle.Render("Suggested fixes"))
	for i, s := range sugs {
		fmt.Fprintf(w, "\n%d. %s %s\n", i+1, typeStyle.Render(s.Title),
			dimStyle.Render(fmt.Sprintf("(confidence %.0f%%, error [%d])", s.Confidence*100, s.ErrorIndex)))
		if s.RootCause != "" {
			fmt.Fprintln(w, wrapped("Cause: "+s.RootCause, 4))
		}
		if s.Description != "" {
			fmt.Fprintln(w, wrapped(s.Description, 4))
		}
		if s.CodeBefore != nil {
			fmt.Fprintln(w, indent.String("- "+*s.CodeBefore, 6))
		}
		if s.CodeAfter != nil {
			fmt.Fprintln(w, indent.String("+ "+*s.CodeAfter, 6))
		}
	}
}

func printResponse(w io.Writer, resp *service.Response) {
	fmt.Fprintln(w, dimStyle.Render("request "+resp.RequestID))
	printClassification(w, resp.Classification)
	fmt.Fprintln(w)
	printSuggestions(w, resp.Suggestions)
}
