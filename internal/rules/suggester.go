package rules

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/newhook/plclog/internal/model"
)

// fix is the content of a suggestion before confidence and targeting are
// assigned.
type fix struct {
	title       string
	description string
	rootCause   string
	codeBefore  *string
	codeAfter   *string
}

// fixRule produces a fix for errors it applies to. Rules are tried in order.
type fixRule struct {
	errorType string // empty matches any type
	message   *regexp.Regexp
	build     func(e model.ParsedError) fix
}

var (
	// matiec echoes the offending statement as "Warning: 0030: A := B;".
	statementPattern  = regexp.MustCompile(`^Warning:\s*\d+:\s*(.+)$`)
	identifierPattern = regexp.MustCompile(`Undefined identifier (\w+)`)
	cIdentPattern     = regexp.MustCompile(`'(\w+)' undeclared`)
	headerPattern     = regexp.MustCompile(`([\w.]+\.h): No such file`)
)

var fixRules = []fixRule{
	{
		errorType: "IECCompilationError",
		message:   regexp.MustCompile(`CONSTANT`),
		build: func(e model.ParsedError) fix {
			f := fix{
				title:       "Stop writing to the CONSTANT variable",
				description: fmt.Sprintf("The statement at line %s assigns to a variable declared in a VAR CONSTANT block. Move the variable to a regular VAR block, or assign the value to a writable variable instead.", lineOf(e)),
				rootCause:   "A variable declared CONSTANT is the target of an assignment.",
			}
			if stmt, ok := offendingStatement(e); ok {
				after := "(* write to a non-constant variable *)\n" + stmt
				f.codeBefore = &stmt
				f.codeAfter = &after
			}
			return f
		},
	},
	{
		errorType: "IECCompilationError",
		message:   identifierPattern,
		build: func(e model.ParsedError) fix {
			name := "the identifier"
			if m := identifierPattern.FindStringSubmatch(e.Message); m != nil {
				name = m[1]
			}
			after := fmt.Sprintf("VAR\n    %s : INT;\nEND_VAR", name)
			return fix{
				title:       fmt.Sprintf("Declare %s", name),
				description: fmt.Sprintf("%s is used but never declared in the POU. Add a declaration with the intended type, or correct the spelling to match an existing variable.", name),
				rootCause:   "The program references a variable that has no declaration in scope.",
				codeAfter:   &after,
			}
		},
	},
	{
		errorType: "IECCompilationError",
		build: func(e model.ParsedError) fix {
			return fix{
				title:       "Correct the IEC statement",
				description: fmt.Sprintf("matiec rejected the statement at line %s: %s. Edit the POU so the statement satisfies the IEC 61131-3 rules.", lineOf(e), e.Message),
				rootCause:   "The generated IEC program violates a semantic rule checked by matiec.",
			}
		},
	},
	{
		errorType: "XMLValidationError",
		build: func(e model.ParsedError) fix {
			return fix{
				title:       "Re-export the PLCopen XML",
				description: fmt.Sprintf("The project file does not validate against the PLCopen XSD at line %s. Re-export the project from the editor and validate it against the schema instead of editing the XML by hand.", lineOf(e)),
				rootCause:   "The project XML is missing or misplaces an element the schema requires.",
			}
		},
	},
	{
		errorType: "CCompilationError",
		message:   headerPattern,
		build: func(e model.ParsedError) fix {
			header := headerPattern.FindStringSubmatch(e.Message)[1]
			return fix{
				title:       fmt.Sprintf("Make %s available to the C build", header),
				description: fmt.Sprintf("The compiler cannot find %s. Check the target's include paths and that the runtime library is installed where the toolchain expects it.", header),
				rootCause:   "A header required by the generated C code is missing from the include path.",
			}
		},
	},
	{
		errorType: "CCompilationError",
		message:   cIdentPattern,
		build: func(e model.ParsedError) fix {
			name := cIdentPattern.FindStringSubmatch(e.Message)[1]
			return fix{
				title:       fmt.Sprintf("Declare %s for the C code", name),
				description: fmt.Sprintf("The generated C file %s uses %s without a declaration. Declare it in the PLC program or in the extension code that references it.", e.FilePath, name),
				rootCause:   "Generated or user C code references a symbol that is not declared.",
			}
		},
	},
	{
		errorType: "CCompilationError",
		build: func(e model.ParsedError) fix {
			return fix{
				title:       "Fix the C compilation error",
				description: fmt.Sprintf("gcc failed on %s line %s: %s.", e.FilePath, lineOf(e), e.Message),
				rootCause:   "The generated C code does not compile with the target toolchain.",
			}
		},
	},
	{
		errorType: "AttributeError",
		message:   regexp.MustCompile(`NoneType`),
		build: func(e model.ParsedError) fix {
			return fix{
				title:       "Fill in the empty POU body",
				description: "The code generator read a POU whose body is missing. Open each POU in the project, make sure it has a body in its declared language, and rebuild.",
				rootCause:   "A project element is empty, so the generator dereferenced a missing value.",
			}
		},
	},
}

// defaultFix is used when no rule applies.
func defaultFix(model.ParsedError) fix {
	return fix{
		title:       "Review Error Log",
		description: "Unable to generate specific fix suggestions. Please review the error log and check for common issues like syntax errors, type mismatches, or missing declarations.",
		rootCause:   "Insufficient context to determine root cause",
	}
}

// runtimeFix covers tracebacks the table does not name.
func runtimeFix(e model.ParsedError) fix {
	return fix{
		title:       fmt.Sprintf("Investigate the %s in the build tooling", e.ErrorType),
		description: fmt.Sprintf("The build tool raised %s in %s: %s. Check the project for elements the tool cannot handle before changing the tool itself.", e.ErrorType, e.FilePath, e.Message),
		rootCause:   "The build tooling crashed on the project input.",
	}
}

func fixFor(e model.ParsedError) fix {
	for _, r := range fixRules {
		if r.errorType != "" && r.errorType != e.ErrorType {
			continue
		}
		if r.message != nil && !r.message.MatchString(e.Message) {
			continue
		}
		return r.build(e)
	}
	if _, known := complexityByType[e.ErrorType]; !known && !e.Umbrella {
		return runtimeFix(e)
	}
	return defaultFix(e)
}

func lineOf(e model.ParsedError) string {
	if e.LineNumber == nil {
		return "?"
	}
	return fmt.Sprint(*e.LineNumber)
}

func offendingStatement(e model.ParsedError) (string, bool) {
	for _, line := range e.Context {
		if m := statementPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// Suggester proposes one fix per root-cause candidate, primary error first.
type Suggester struct{}

// NewSuggester returns a rule-based suggester.
func NewSuggester() *Suggester {
	return &Suggester{}
}

func (s *Suggester) Suggest(ctx context.Context, result *model.ParseResult, cls model.Classification) ([]model.Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(result.Errors) == 0 {
		return []model.Suggestion{suggestion(defaultFix(model.ParsedError{}), cls, 0, 0)}, nil
	}

	targets := targetErrors(result)
	out := make([]model.Suggestion, 0, len(targets))
	for n, i := range targets {
		out = append(out, suggestion(fixFor(result.Errors[i]), cls, n, i))
	}
	return out, nil
}

// targetErrors orders the non-summary errors with the primary first, capped
// at MaxSuggestions. A log of only summary lines targets its first error.
func targetErrors(result *model.ParseResult) []int {
	primary := PrimaryError(result)
	targets := []int{primary}
	for i, e := range result.Errors {
		if len(targets) == model.MaxSuggestions {
			break
		}
		if i == primary || e.Umbrella {
			continue
		}
		targets = append(targets, i)
	}
	return targets
}

func suggestion(f fix, cls model.Classification, n, errorIndex int) model.Suggestion {
	return model.Suggestion{
		Title:       f.title,
		Description: f.description,
		RootCause:   f.rootCause,
		CodeBefore:  f.codeBefore,
		CodeAfter:   f.codeAfter,
		Confidence:  Confidence(cls, n),
		ErrorIndex:  errorIndex,
	}
}

var (
	severityWeights = map[model.Severity]float64{
		model.SeverityBlocking: 0.9,
		model.SeverityWarning:  0.6,
		model.SeverityInfo:     0.4,
	}
	complexityWeights = map[model.Complexity]float64{
		model.ComplexityTrivial:  0.5,
		model.ComplexityModerate: 0.65,
		model.ComplexityComplex:  0.8,
	}
	stageOffsets = map[model.Stage]float64{
		model.StageXMLValidation:  0.0,
		model.StageCodeGeneration: 0.03,
		model.StageIECCompilation: 0.05,
		model.StageCCompilation:   0.07,
	}
)

// Confidence is a repeatable score for the n-th suggestion under cls.
func Confidence(cls model.Classification, n int) float64 {
	sev, ok := severityWeights[cls.Severity]
	if !ok {
		sev = 0.5
	}
	cx, ok := complexityWeights[cls.Complexity]
	if !ok {
		cx = 0.6
	}
	c := (sev+cx)/2 + stageOffsets[cls.Stage] - float64(n)*0.02
	return max(0, min(1, c))
}
