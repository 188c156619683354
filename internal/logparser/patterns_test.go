package logparser

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/plclog/internal/model"
)

func linesOf(texts ...string) []Line {
	lines := make([]Line, len(texts))
	for i, text := range texts {
		lines[i] = Line{Number: i + 1, Stage: model.StageUnknown, Text: text}
	}
	return lines
}

func TestDefaultLibrary_PriorityOrder(t *testing.T) {
	rs := DefaultLibrary().Recognizers()
	require.NotEmpty(t, rs)
	for i := 1; i < len(rs); i++ {
		assert.LessOrEqual(t, rs[i-1].Priority, rs[i].Priority)
	}
	assert.Equal(t, "iec2c_failure", rs[0].Name)
	assert.Equal(t, "python_traceback", rs[len(rs)-1].Name)
}

func TestLibrary_RegisterKeepsOrder(t *testing.T) {
	always := func(name string, priority int) Recognizer {
		return Recognizer{
			Name:     name,
			Priority: priority,
			Trigger:  regexp.MustCompile(`boom`),
			Extract: func(_ []string, _ []Line) (Extraction, bool) {
				return Extraction{ErrorType: name}, true
			},
		}
	}

	lib := NewLibrary(always("late", 50), always("first", 10))
	lib.Register(always("second", 10))

	names := []string{}
	for _, r := range lib.Recognizers() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"first", "second", "late"}, names)

	ext, n, ok := lib.Match(linesOf("boom"))
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, "first", ext.ErrorType)
}

func TestMatch_XMLSchemaWithDetail(t *testing.T) {
	window := linesOf(
		"stdout: Warning: PLC XML file doesn't follow XSD schema at line 42:",
		"Element '{http://www.plcopen.org/xml/tc6_0201}data': Missing child element(s).",
		"Generating SoftPLC IEC-61131 ST/IL/SFC code...",
	)

	ext, n, ok := DefaultLibrary().Match(window)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, "XMLValidationError", ext.ErrorType)
	assert.Equal(t, model.SeverityWarning, ext.Severity)
	require.NotNil(t, ext.LineNumber)
	assert.Equal(t, 42, *ext.LineNumber)
	assert.NotContains(t, ext.Message, "stdout:")
}

func TestMatch_IECErrorStopsAtNextTrigger(t *testing.T) {
	window := linesOf(
		"Warning: /tmp/b/plc.st:12-4..12-9: error: Undefined identifier Foo",
		"Warning: In section: PROGRAM main_program",
		"Warning: /tmp/b/plc.st:14-4..14-9: error: Undefined identifier Bar",
	)

	lib := DefaultLibrary()
	ext, n, ok := lib.Match(window)
	require.True(t, ok)
	assert.Equal(t, 2, n)
	assert.Equal(t, "IECCompilationError", ext.ErrorType)
	assert.Equal(t, "/tmp/b/plc.st", ext.FilePath)
	assert.Equal(t, "Undefined identifier Foo", ext.Message)

	errs := lib.Extract(window)
	require.Len(t, errs, 2)
	assert.Equal(t, "Undefined identifier Bar", errs[1].Message)
	assert.Equal(t, 3, errs[1].SourceLine)
}

func TestMatch_TracebackWithoutException(t *testing.T) {
	window := linesOf(
		"stderr: Traceback (most recent call last):",
		`  File "/root/beremiz/Beremiz_cli.py", line 130, in <module>`,
		"    cli()",
	)

	_, _, ok := DefaultLibrary().Match(window)
	assert.False(t, ok)
}

func TestMatch_UmbrellaOverridesStage(t *testing.T) {
	ext, n, ok := DefaultLibrary().Match(linesOf("Error: Error : IEC to C compiler returned 1"))
	require.True(t, ok)
	assert.Equal(t, 1, n)
	assert.True(t, ext.Umbrella)
	assert.Equal(t, model.StageCCompilation, ext.Stage)
	assert.Equal(t, "Error: Error : IEC to C compiler returned 1", ext.Message)
}

func TestMatch_NoMatch(t *testing.T) {
	_, _, ok := DefaultLibrary().Match(linesOf("Collecting data types"))
	assert.False(t, ok)

	_, _, ok = DefaultLibrary().Match(nil)
	assert.False(t, ok)
}

func TestNewParsedError_StageOverride(t *testing.T) {
	window := []Line{{Number: 1, Stage: model.StageIECCompilation, Text: "x"}}

	e := newParsedError(Extraction{ErrorType: "A"}, window, "")
	assert.Equal(t, model.StageIECCompilation, e.Stage, "empty stage keeps the segment stage")

	e = newParsedError(Extraction{ErrorType: "A", Stage: model.StageUnknown}, window, "")
	assert.Equal(t, model.StageUnknown, e.Stage, "explicit unknown forces unknown")

	e = newParsedError(Extraction{ErrorType: "A", Stage: model.StageCCompilation}, window, "")
	assert.Equal(t, model.StageCCompilation, e.Stage)
}
