package logparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/plclog/internal/model"
)

func intPtr(v int) *int { return &v }

func TestDetectCascades_StageOrdering(t *testing.T) {
	errs := []model.ParsedError{
		{ErrorType: "XMLValidationError", Message: "XML error", Stage: model.StageXMLValidation},
		{ErrorType: "IECCompilationError", Message: "IEC error", Stage: model.StageIECCompilation},
	}

	out := DetectCascades(errs, DefaultCascadeOptions())
	require.NotNil(t, out[1].CausedBy)
	assert.Equal(t, 0, *out[1].CausedBy)
	assert.Nil(t, errs[1].CausedBy, "input must not be modified")
}

func TestDetectCascades_NearestPredecessorWins(t *testing.T) {
	errs := []model.ParsedError{
		{Message: "schema", Stage: model.StageXMLValidation},
		{Message: "alpha", Stage: model.StageCCompilation, FilePath: "POUS.c", LineNumber: intPtr(10)},
		{Message: "beta", Stage: model.StageCCompilation, FilePath: "POUS.c", LineNumber: intPtr(20)},
	}

	out := DetectCascades(errs, DefaultCascadeOptions())
	assert.Equal(t, 0, *out[1].CausedBy)
	assert.Equal(t, 1, *out[2].CausedBy, "shared file with the nearer error beats stage ordering")
}

func TestDetectCascades_SharedLineNeedsSameFile(t *testing.T) {
	opts := CascadeOptions{SharedLine: true}
	errs := []model.ParsedError{
		{Message: "one", FilePath: "a.st", LineNumber: intPtr(5)},
		{Message: "two", FilePath: "b.st", LineNumber: intPtr(5)},
		{Message: "three", FilePath: "a.st", LineNumber: intPtr(5)},
	}

	out := DetectCascades(errs, opts)
	assert.Nil(t, out[1].CausedBy)
	require.NotNil(t, out[2].CausedBy)
	assert.Equal(t, 0, *out[2].CausedBy)
}

func TestDetectCascades_TokenOverlap(t *testing.T) {
	errs := []model.ParsedError{
		{Message: "variable MotorSpeed undeclared in program"},
		{Message: "MotorSpeed undeclared in program main"},
		{Message: "completely unrelated text here"},
	}

	out := DetectCascades(errs, CascadeOptions{TokenOverlap: DefaultTokenOverlap})
	require.NotNil(t, out[1].CausedBy)
	assert.Equal(t, 0, *out[1].CausedBy)
	assert.Nil(t, out[2].CausedBy)

	strict := DetectCascades(errs, CascadeOptions{TokenOverlap: 0.9})
	assert.Nil(t, strict[1].CausedBy)
}

func TestDetectCascades_SummaryAttribution(t *testing.T) {
	errs := []model.ParsedError{
		{Message: "real failure", Stage: model.StageIECCompilation},
		{Message: "IEC to C compiler returned 1", Stage: model.StageCCompilation, Umbrella: true},
		{Message: "PLC code generation failed", Stage: model.StageCodeGeneration, Umbrella: true},
	}

	out := DetectCascades(errs, CascadeOptions{SummaryAttribution: true})
	assert.Equal(t, 0, *out[1].CausedBy)
	assert.Equal(t, 0, *out[2].CausedBy)
}

func TestDetectCascades_NoLinksForIndependentErrors(t *testing.T) {
	errs := []model.ParsedError{
		{Message: "first problem", Stage: model.StageIECCompilation, FilePath: "plc.st"},
		{Message: "other trouble", Stage: model.StageCCompilation, FilePath: "POUS.c"},
	}

	out := DetectCascades(errs, DefaultCascadeOptions())
	for _, e := range out {
		assert.Nil(t, e.CausedBy)
	}
}

func TestJaccard(t *testing.T) {
	a := messageTokens("Assignment to CONSTANT variables")
	b := messageTokens("constant variables assignment")
	assert.InDelta(t, 1.0, jaccard(a, b), 1e-9)
	assert.Zero(t, jaccard(a, messageTokens("")))
}
