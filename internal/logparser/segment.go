package logparser

import (
	"regexp"
	"strings"

	"github.com/newhook/plclog/internal/model"
)

// Line is one log line tagged with the pipeline stage active when it was
// written.
type Line struct {
	Number    int // 1-based
	Timestamp string
	Stage     model.Stage
	Text      string
}

var (
	// timestampPattern matches the builder's "[HH:MM:SS]" line prefix.
	timestampPattern = regexp.MustCompile(`^\[(\d{2}:\d{2}:\d{2})\]`)

	// ansiPattern matches ANSI escape codes (color codes, etc).
	ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// stageMarker announces the start of a pipeline stage.
type stageMarker struct {
	pattern *regexp.Regexp
	stage   model.Stage
}

var stageMarkers = []stageMarker{
	{regexp.MustCompile(`doesn't follow XSD schema`), model.StageXMLValidation},
	{regexp.MustCompile(`Generating SoftPLC IEC-61131`), model.StageCodeGeneration},
	{regexp.MustCompile(`Compiling IEC Program into C code`), model.StageIECCompilation},
	{regexp.MustCompile(`C code generated successfully|^\s*\[CC\]|^\s*Linking\b`), model.StageCCompilation},
}

// segmentState is the fold accumulator threaded through Segment.
type segmentState struct {
	stage model.Stage
}

func (s segmentState) advance(text string) segmentState {
	for _, m := range stageMarkers {
		if m.pattern.MatchString(text) {
			return segmentState{stage: m.stage}
		}
	}
	return s
}

// CleanLog normalizes line endings and strips ANSI color codes.
func CleanLog(log string) string {
	log = strings.ReplaceAll(log, "\r\n", "\n")
	log = strings.ReplaceAll(log, "\r", "\n")
	return ansiPattern.ReplaceAllString(log, "")
}

// Segment splits a raw log into stage-tagged lines. A line that announces a
// new stage is itself tagged with that stage. Lines are never dropped or
// reordered; an empty or whitespace-only log has no lines.
func Segment(raw string) []Line {
	cleaned := CleanLog(raw)
	if strings.TrimSpace(cleaned) == "" {
		return nil
	}

	texts := strings.Split(cleaned, "\n")
	lines := make([]Line, 0, len(texts))
	state := segmentState{stage: model.StageUnknown}
	for i, text := range texts {
		state = state.advance(text)
		line := Line{Number: i + 1, Stage: state.stage, Text: text}
		if m := timestampPattern.FindStringSubmatch(text); m != nil {
			line.Timestamp = m[1]
		}
		lines = append(lines, line)
	}
	return lines
}
