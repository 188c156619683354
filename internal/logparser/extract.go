package logparser

import (
	"strings"

	"github.com/newhook/plclog/internal/model"
)

// Extract walks the segmented lines with the default library.
func Extract(lines []Line) []model.ParsedError {
	return defaultLibrary.Extract(lines)
}

// Extract walks the segmented lines, matching a bounded window at each
// position. Consumed lines are skipped so one line never yields two errors.
func (l *Library) Extract(lines []Line) []model.ParsedError {
	errs := []model.ParsedError{}
	lastTimestamp := ""

	for i := 0; i < len(lines); {
		if lines[i].Timestamp != "" {
			lastTimestamp = lines[i].Timestamp
		}

		end := min(i+MaxWindow, len(lines))
		ext, n, ok := l.Match(lines[i:end])
		if !ok {
			i++
			continue
		}

		window := lines[i : i+n]
		errs = append(errs, newParsedError(ext, window, lastTimestamp))

		for _, line := range window[1:] {
			if line.Timestamp != "" {
				lastTimestamp = line.Timestamp
			}
		}
		i += n
	}
	return errs
}

func newParsedError(ext Extraction, window []Line, timestamp string) model.ParsedError {
	stage := window[0].Stage
	if ext.Stage != "" {
		stage = ext.Stage
	}
	severity := ext.Severity
	if severity == "" {
		severity = model.SeverityBlocking
	}
	return model.ParsedError{
		ErrorType:  ext.ErrorType,
		Message:    ext.Message,
		Stage:      stage,
		Severity:   severity,
		LineNumber: ext.LineNumber,
		FilePath:   ext.FilePath,
		Context:    windowContext(window),
		Timestamp:  timestamp,
		SourceLine: window[0].Number,
		Umbrella:   ext.Umbrella,
	}
}

// windowContext is the window minus its matched line, blank lines dropped,
// keeping the last MaxContextLines.
func windowContext(window []Line) []string {
	ctx := []string{}
	for _, line := range window[1:] {
		if text := strings.TrimSpace(line.Text); text != "" {
			ctx = append(ctx, text)
		}
	}
	if len(ctx) > MaxContextLines {
		ctx = ctx[len(ctx)-MaxContextLines:]
	}
	return ctx
}
