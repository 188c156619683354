// Package rules implements the classification and suggestion services
// locally with deterministic rules over the parsed errors. It is the default
// backend and the baseline the evaluator measures remote services against.
package rules

import (
	"context"
	"fmt"
	"strings"

	"github.com/newhook/plclog/internal/model"
)

// complexityByType is the fix effort for a root error of each type. Types not
// listed are runtime failures of the toolchain itself.
var complexityByType = map[string]model.Complexity{
	"XMLValidationError":  model.ComplexityTrivial,
	"IECCompilationError": model.ComplexityTrivial,
	"CCompilationError":   model.ComplexityModerate,
}

const runtimeComplexity = model.ComplexityModerate

// Classifier labels a log from its primary error.
type Classifier struct{}

// NewClassifier returns a rule-based classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify never fails except on a cancelled context.
func (c *Classifier) Classify(ctx context.Context, result *model.ParseResult) (model.Classification, error) {
	if err := ctx.Err(); err != nil {
		return model.Classification{}, err
	}
	if len(result.Errors) == 0 {
		return model.Classification{
			Severity:   model.SeverityInfo,
			Stage:      model.StageUnknown,
			Complexity: model.ComplexityTrivial,
			Reasoning:  "No errors were recognized in the log.",
		}, nil
	}

	i := PrimaryError(result)
	primary := result.Errors[i]

	cls := model.Classification{
		Severity:   overallSeverity(result.Errors),
		Stage:      primary.Stage,
		Complexity: complexityOf(primary),
	}
	if types := blockingTypes(result.Errors); len(types) >= 2 {
		cls.Complexity = model.ComplexityComplex
	}
	cls.Reasoning = reasoning(result, i, cls)
	return cls, nil
}

// PrimaryError picks the error a fix should target: the first blocking error
// that is not a summary line, else the first non-summary error, else the
// first error. result must hold at least one error.
func PrimaryError(result *model.ParseResult) int {
	first := -1
	for i, e := range result.Errors {
		if e.Umbrella {
			continue
		}
		if e.Severity == model.SeverityBlocking {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	if first >= 0 {
		return first
	}
	return 0
}

func overallSeverity(errs []model.ParsedError) model.Severity {
	sev := model.SeverityInfo
	for _, e := range errs {
		if e.Umbrella {
			continue
		}
		switch e.Severity {
		case model.SeverityBlocking:
			return model.SeverityBlocking
		case model.SeverityWarning:
			sev = model.SeverityWarning
		}
	}
	// A log made only of summary lines still reports a failed build.
	if sev == model.SeverityInfo {
		for _, e := range errs {
			if e.Severity == model.SeverityBlocking {
				return model.SeverityBlocking
			}
		}
	}
	return sev
}

func complexityOf(e model.ParsedError) model.Complexity {
	if c, ok := complexityByType[e.ErrorType]; ok {
		return c
	}
	if e.Umbrella {
		return model.ComplexityModerate
	}
	return runtimeComplexity
}

// blockingTypes returns the distinct types of blocking, non-summary errors.
func blockingTypes(errs []model.ParsedError) []string {
	var types []string
	seen := make(map[string]bool)
	for _, e := range errs {
		if e.Umbrella || e.Severity != model.SeverityBlocking || seen[e.ErrorType] {
			continue
		}
		seen[e.ErrorType] = true
		types = append(types, e.ErrorType)
	}
	return types
}

func reasoning(result *model.ParseResult, primary int, cls model.Classification) string {
	e := result.Errors[primary]

	var sb strings.Builder
	fmt.Fprintf(&sb, "Root error is %s during %s", e.ErrorType, e.Stage)
	if e.LineNumber != nil {
		fmt.Fprintf(&sb, " at line %d", *e.LineNumber)
	}
	fmt.Fprintf(&sb, ": %s.", strings.TrimSuffix(e.Message, "."))

	if n := len(result.Errors) - len(result.Roots()); n > 0 {
		fmt.Fprintf(&sb, " %d of %d errors are consequences of earlier ones.", n, len(result.Errors))
	}
	if cls.Complexity == model.ComplexityComplex {
		fmt.Fprintf(&sb, " Independent failures: %s.", strings.Join(blockingTypes(result.Errors), ", "))
	}
	return sb.String()
}
