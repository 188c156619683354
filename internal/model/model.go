// Package model defines the records shared by the parser, the external
// classification and suggestion services, and the evaluator.
package model

import (
	"fmt"
)

// Stage is a phase of the PLC build pipeline.
type Stage string

const (
	StageXMLValidation  Stage = "xml_validation"
	StageCodeGeneration Stage = "code_generation"
	StageIECCompilation Stage = "iec_compilation"
	StageCCompilation   Stage = "c_compilation"
	StageUnknown        Stage = "unknown"
)

// Stages lists the known stages in pipeline order, unknown last.
var Stages = []Stage{
	StageXMLValidation,
	StageCodeGeneration,
	StageIECCompilation,
	StageCCompilation,
	StageUnknown,
}

// Rank returns the stage's position in the pipeline (1-4), or 0 for unknown.
func (s Stage) Rank() int {
	switch s {
	case StageXMLValidation:
		return 1
	case StageCodeGeneration:
		return 2
	case StageIECCompilation:
		return 3
	case StageCCompilation:
		return 4
	default:
		return 0
	}
}

// IsDownstreamOf reports whether s runs strictly after other in the pipeline.
// Unknown is never downstream of anything.
func (s Stage) IsDownstreamOf(other Stage) bool {
	return s.Rank() > 0 && other.Rank() > 0 && s.Rank() > other.Rank()
}

// ParseStage converts a string into a Stage.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Severity describes how badly an error affects the build.
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// ParseSeverity converts a string into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityBlocking, SeverityWarning, SeverityInfo:
		return Severity(s), nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Complexity estimates the effort needed to fix an error.
type Complexity string

const (
	ComplexityTrivial  Complexity = "trivial"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// ParseComplexity converts a string into a Complexity.
func ParseComplexity(s string) (Complexity, error) {
	switch Complexity(s) {
	case ComplexityTrivial, ComplexityModerate, ComplexityComplex:
		return Complexity(s), nil
	}
	return "", fmt.Errorf("unknown complexity %q", s)
}

// ParsedError is one problem detected in a build log.
type ParsedError struct {
	ErrorType  string   `json:"error_type"`
	Message    string   `json:"message"`
	Stage      Stage    `json:"stage"`
	Severity   Severity `json:"severity"`
	LineNumber *int     `json:"line_number"`
	FilePath   string   `json:"file_path,omitempty"`
	Context    []string `json:"context"`
	Timestamp  string   `json:"timestamp,omitempty"`

	// CausedBy is the index of an earlier error in the same ParseResult.
	CausedBy *int `json:"caused_by"`

	// SourceLine is the 1-based log line the recognizer matched.
	SourceLine int `json:"source_line"`

	// Umbrella marks summary lines ("PLC code generation failed !") that
	// only report an earlier failure.
	Umbrella bool `json:"-"`
}

// ParseResult is the structured form of one build log.
type ParseResult struct {
	Errors             []ParsedError `json:"errors"`
	HasCascadingErrors bool          `json:"has_cascading_errors"`
	RawLog             string        `json:"-"`
}

// Cause returns the error that Errors[i] links back to, if any.
func (r *ParseResult) Cause(i int) (*ParsedError, bool) {
	if i < 0 || i >= len(r.Errors) || r.Errors[i].CausedBy == nil {
		return nil, false
	}
	j := *r.Errors[i].CausedBy
	if j < 0 || j >= i {
		return nil, false
	}
	return &r.Errors[j], true
}

// Roots returns the indexes of errors with no cause.
func (r *ParseResult) Roots() []int {
	var roots []int
	for i := range r.Errors {
		if r.Errors[i].CausedBy == nil {
			roots = append(roots, i)
		}
	}
	return roots
}

// Classification is the verdict of the classification service for a log.
type Classification struct {
	Severity   Severity   `json:"severity"`
	Stage      Stage      `json:"stage"`
	Complexity Complexity `json:"complexity"`
	Reasoning  string     `json:"reasoning"`
}

// Validate checks that every axis holds a known value.
func (c Classification) Validate() error {
	if _, err := ParseSeverity(string(c.Severity)); err != nil {
		return err
	}
	if _, err := ParseStage(string(c.Stage)); err != nil {
		return err
	}
	if _, err := ParseComplexity(string(c.Complexity)); err != nil {
		return err
	}
	return nil
}

// Suggestion is a proposed fix for one of the parsed errors.
type Suggestion struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	RootCause   string  `json:"root_cause"`
	CodeBefore  *string `json:"code_before,omitempty"`
	CodeAfter   *string `json:"code_after,omitempty"`
	Confidence  float64 `json:"confidence"`
	ErrorIndex  int     `json:"error_index"`
}

// Validate checks the structural constraints of a suggestion.
func (s Suggestion) Validate() error {
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", s.Confidence)
	}
	if s.Title == "" {
		return fmt.Errorf("suggestion has no title")
	}
	return nil
}

// MinSuggestions and MaxSuggestions bound the suggestions for one log.
const (
	MinSuggestions = 1
	MaxSuggestions = 3
)
