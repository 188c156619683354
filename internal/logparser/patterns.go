package logparser

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/newhook/plclog/internal/model"
)

const (
	// MaxWindow bounds how many lines a recognizer may consume.
	MaxWindow = 32
	// MaxContextLines caps ParsedError.Context.
	MaxContextLines = 5
)

// Extraction is what a recognizer pulls out of a matching window.
type Extraction struct {
	ErrorType  string
	Message    string
	LineNumber *int
	FilePath   string
	// Stage overrides the segment stage when non-empty. The empty stage
	// keeps the segment stage; model.StageUnknown forces unknown.
	Stage    model.Stage
	Severity model.Severity
	Umbrella bool
}

// Recognizer maps a line-window shape to an error category.
type Recognizer struct {
	Name     string
	Priority int
	// Trigger must match the first line of the window.
	Trigger *regexp.Regexp
	// MaxLines bounds the window including the trigger line. Zero means 1.
	MaxLines int
	// Continue reports whether next belongs to the window started by the
	// lines consumed so far. Nil means single-line windows.
	Continue func(consumed []Line, next string) bool
	// Extract builds the error from the trigger submatches and the window.
	Extract func(m []string, window []Line) (Extraction, bool)
}

// Library is an ordered set of recognizers.
type Library struct {
	recognizers []Recognizer
}

// NewLibrary returns a library holding the given recognizers.
func NewLibrary(rs ...Recognizer) *Library {
	l := &Library{}
	for _, r := range rs {
		l.Register(r)
	}
	return l
}

// Register adds a recognizer, keeping priority order. Equal priorities keep
// registration order. Register is not safe to call concurrently with Match.
func (l *Library) Register(r Recognizer) {
	l.recognizers = append(l.recognizers, r)
	sort.SliceStable(l.recognizers, func(i, j int) bool {
		return l.recognizers[i].Priority < l.recognizers[j].Priority
	})
}

// Recognizers returns the recognizers in the order Match tries them.
func (l *Library) Recognizers() []Recognizer {
	out := make([]Recognizer, len(l.recognizers))
	copy(out, l.recognizers)
	return out
}

// IsTrigger reports whether any recognizer would start a window at text.
func (l *Library) IsTrigger(text string) bool {
	for _, r := range l.recognizers {
		if r.Trigger.MatchString(text) {
			return true
		}
	}
	return false
}

// Match tries each recognizer in priority order against the window's first
// line. The first successful extraction wins; the int result is the number
// of lines consumed.
func (l *Library) Match(window []Line) (Extraction, int, bool) {
	if len(window) == 0 {
		return Extraction{}, 0, false
	}
	for _, r := range l.recognizers {
		m := r.Trigger.FindStringSubmatch(window[0].Text)
		if m == nil {
			continue
		}
		n := l.span(r, window)
		if ext, ok := r.Extract(m, window[:n]); ok {
			return ext, n, true
		}
	}
	return Extraction{}, 0, false
}

// span measures the window a recognizer consumes. A continuation line that
// is itself a trigger always ends the window.
func (l *Library) span(r Recognizer, window []Line) int {
	limit := r.MaxLines
	if limit <= 0 {
		limit = 1
	}
	limit = min(limit, MaxWindow, len(window))

	n := 1
	for n < limit && r.Continue != nil {
		next := window[n].Text
		if !r.Continue(window[:n], next) || l.IsTrigger(next) {
			break
		}
		n++
	}
	return n
}

var defaultLibrary = DefaultLibrary()

// Register adds a recognizer to the default library. Call it from init.
func Register(r Recognizer) {
	defaultLibrary.Register(r)
}

var (
	streamPrefix = regexp.MustCompile(`^\s*(?:stdout|stderr):\s*`)

	iec2cFailurePattern   = regexp.MustCompile(`IEC to C compiler returned (\d+)`)
	cBuildFailurePattern  = regexp.MustCompile(`C Build failed`)
	codegenFailurePattern = regexp.MustCompile(`PLC code generation failed`)
	xmlSchemaPattern      = regexp.MustCompile(`PLC XML file doesn't follow XSD schema at line (\d+):`)
	xmlDetailPattern      = regexp.MustCompile(`^\s*Element '`)

	// matiec: Warning: /tmp/.x/build/plc.st:30-4..30-12: error: Assignment to CONSTANT variables is not allowed.
	iecErrorPattern = regexp.MustCompile(`^(?:\s*(?:stdout|stderr):)?\s*(?:Warning:\s*)?(\S+?):(\d+)-\d+\.\.\d+-\d+: error: (.+)$`)

	// gcc: /tmp/.x/build/POUS.c:42:5: error: 'X' undeclared
	cErrorPattern = regexp.MustCompile(`^(?:\s*(?:stdout|stderr):)?\s*(?:(?:Warning|Error):\s*)?(\S+\.(?:c|h|cpp)):(\d+):\d+: (?:fatal )?error: (.+)$`)

	tracebackPattern = regexp.MustCompile(`Traceback \(most recent call last\):`)
	exceptionPattern = regexp.MustCompile(`^(?:\s*(?:stdout|stderr):)?\s*([A-Za-z_][\w.]*(?:Error|Exception|Exit|Interrupt)):\s*(.*)$`)
	framePattern     = regexp.MustCompile(`File "(.+?)", line (\d+)`)
)

// normalizeMessage trims whitespace and the stdout:/stderr: stream prefix.
func normalizeMessage(s string) string {
	return strings.TrimSpace(streamPrefix.ReplaceAllString(s, ""))
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func isIndented(s string) bool {
	return strings.TrimSpace(s) != "" && (strings.HasPrefix(s, " ") || strings.HasPrefix(s, "\t"))
}

// umbrella builds a single-line recognizer for a build summary line.
func umbrella(name, errorType string, priority int, pattern *regexp.Regexp, stage model.Stage) Recognizer {
	return Recognizer{
		Name:     name,
		Priority: priority,
		Trigger:  pattern,
		Extract: func(m []string, window []Line) (Extraction, bool) {
			return Extraction{
				ErrorType: errorType,
				Message:   normalizeMessage(window[0].Text),
				Stage:     stage,
				Severity:  model.SeverityBlocking,
				Umbrella:  true,
			}, true
		},
	}
}

// DefaultLibrary returns the built-in recognizers for the Beremiz/matiec
// toolchain.
func DefaultLibrary() *Library {
	return NewLibrary(
		umbrella("iec2c_failure", "BuildFailure", 10, iec2cFailurePattern, model.StageCCompilation),
		umbrella("c_build_failure", "BuildFailure", 11, cBuildFailurePattern, model.StageCCompilation),
		umbrella("codegen_failure", "CodeGenerationFailure", 12, codegenFailurePattern, model.StageCodeGeneration),
		Recognizer{
			Name:     "xml_schema",
			Priority: 20,
			Trigger:  xmlSchemaPattern,
			MaxLines: 2,
			Continue: func(_ []Line, next string) bool {
				return xmlDetailPattern.MatchString(next)
			},
			Extract: func(m []string, window []Line) (Extraction, bool) {
				return Extraction{
					ErrorType:  "XMLValidationError",
					Message:    normalizeMessage(window[0].Text),
					LineNumber: atoiPtr(m[1]),
					Stage:      model.StageXMLValidation,
					Severity:   model.SeverityWarning,
				}, true
			},
		},
		Recognizer{
			Name:     "iec_error",
			Priority: 30,
			Trigger:  iecErrorPattern,
			MaxLines: 4,
			Continue: func(_ []Line, next string) bool {
				return strings.HasPrefix(strings.TrimSpace(next), "Warning:")
			},
			Extract: func(m []string, window []Line) (Extraction, bool) {
				return Extraction{
					ErrorType:  "IECCompilationError",
					Message:    strings.TrimSpace(m[3]),
					LineNumber: atoiPtr(m[2]),
					FilePath:   m[1],
					Stage:      model.StageIECCompilation,
					Severity:   model.SeverityBlocking,
				}, true
			},
		},
		Recognizer{
			Name:     "c_compiler_error",
			Priority: 40,
			Trigger:  cErrorPattern,
			MaxLines: 4,
			Continue: func(_ []Line, next string) bool {
				return isIndented(next)
			},
			Extract: func(m []string, window []Line) (Extraction, bool) {
				return Extraction{
					ErrorType:  "CCompilationError",
					Message:    strings.TrimSpace(m[3]),
					LineNumber: atoiPtr(m[2]),
					FilePath:   m[1],
					Stage:      model.StageCCompilation,
					Severity:   model.SeverityBlocking,
				}, true
			},
		},
		Recognizer{
			Name:     "python_traceback",
			Priority: 50,
			Trigger:  tracebackPattern,
			MaxLines: MaxWindow,
			Continue: func(consumed []Line, next string) bool {
				if len(consumed) > 1 && exceptionPattern.MatchString(consumed[len(consumed)-1].Text) {
					return false
				}
				return isIndented(next) || exceptionPattern.MatchString(next)
			},
			Extract: extractTraceback,
		},
	)
}

// extractTraceback requires the window to end on the exception line; the
// file and line come from the innermost frame.
func extractTraceback(_ []string, window []Line) (Extraction, bool) {
	if len(window) < 2 {
		return Extraction{}, false
	}
	exc := exceptionPattern.FindStringSubmatch(window[len(window)-1].Text)
	if exc == nil {
		return Extraction{}, false
	}

	ext := Extraction{
		ErrorType: exc[1],
		Message:   strings.TrimSpace(exc[2]),
		Severity:  model.SeverityBlocking,
	}
	if ext.Message == "" {
		ext.Message = exc[1]
	}
	for _, line := range window[1:] {
		if f := framePattern.FindStringSubmatch(line.Text); f != nil {
			ext.FilePath = f[1]
			ext.LineNumber = atoiPtr(f[2])
		}
	}
	return ext, true
}
