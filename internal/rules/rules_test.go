package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/plclog/internal/logparser"
	"github.com/newhook/plclog/internal/model"
	"github.com/newhook/plclog/internal/synthetic"
)

const constantLog = `[17:05:55]: Building project...
stdout: Warning: PLC XML file doesn't follow XSD schema at line 61:
Generating SoftPLC IEC-61131 ST/IL/SFC code...
Compiling IEC Program into C code...
Warning: /tmp/.tmpMngQvj/build/plc.st:30-4..30-12: error: Assignment to CONSTANT variables is not allowed.
Warning: In section: PROGRAM program0
Warning: 0030: LocalVar1 := LocalVar0;
Error: Error : IEC to C compiler returned 1
Error: PLC code generation failed !
`

func TestClassify_ConstantAssignment(t *testing.T) {
	result := logparser.Parse(constantLog)

	cls, err := NewClassifier().Classify(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, model.SeverityBlocking, cls.Severity)
	assert.Equal(t, model.StageIECCompilation, cls.Stage)
	assert.Equal(t, model.ComplexityTrivial, cls.Complexity)
	assert.Contains(t, cls.Reasoning, "IECCompilationError")
	assert.Contains(t, cls.Reasoning, "line 30")
	assert.NoError(t, cls.Validate())
}

func TestClassify_Empty(t *testing.T) {
	cls, err := NewClassifier().Classify(context.Background(), &model.ParseResult{Errors: []model.ParsedError{}})
	require.NoError(t, err)
	assert.Equal(t, model.SeverityInfo, cls.Severity)
	assert.Equal(t, model.StageUnknown, cls.Stage)
}

func TestClassify_WarningOnly(t *testing.T) {
	result := &model.ParseResult{Errors: []model.ParsedError{
		{ErrorType: "XMLValidationError", Stage: model.StageXMLValidation, Severity: model.SeverityWarning},
	}}
	cls, err := NewClassifier().Classify(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, model.SeverityWarning, cls.Severity)
	assert.Equal(t, model.StageXMLValidation, cls.Stage)
	assert.Equal(t, model.ComplexityTrivial, cls.Complexity)
}

func TestClassify_IndependentFailuresAreComplex(t *testing.T) {
	result := &model.ParseResult{Errors: []model.ParsedError{
		{ErrorType: "CCompilationError", Stage: model.StageCCompilation, Severity: model.SeverityBlocking},
		{ErrorType: "subprocess.CalledProcessError", Stage: model.StageCCompilation, Severity: model.SeverityBlocking},
	}}
	cls, err := NewClassifier().Classify(context.Background(), result)
	require.NoError(t, err)
	assert.Equal(t, model.ComplexityComplex, cls.Complexity)
	assert.Equal(t, model.StageCCompilation, cls.Stage)
}

func TestClassify_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClassifier().Classify(ctx, logparser.Parse(constantLog))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrimaryError(t *testing.T) {
	result := logparser.Parse(constantLog)
	assert.Equal(t, 1, PrimaryError(result))

	umbrellaOnly := &model.ParseResult{Errors: []model.ParsedError{
		{ErrorType: "BuildFailure", Umbrella: true, Severity: model.SeverityBlocking},
	}}
	assert.Equal(t, 0, PrimaryError(umbrellaOnly))
}

func TestSuggest_ConstantAssignment(t *testing.T) {
	ctx := context.Background()
	result := logparser.Parse(constantLog)
	cls, err := NewClassifier().Classify(ctx, result)
	require.NoError(t, err)

	sugs, err := NewSuggester().Suggest(ctx, result, cls)
	require.NoError(t, err)
	require.Len(t, sugs, 2)

	first := sugs[0]
	assert.Equal(t, 1, first.ErrorIndex)
	assert.Contains(t, first.Title, "CONSTANT")
	require.NotNil(t, first.CodeBefore)
	assert.Equal(t, "LocalVar1 := LocalVar0;", *first.CodeBefore)
	assert.InDelta(t, 0.75, first.Confidence, 1e-9)

	assert.Equal(t, 0, sugs[1].ErrorIndex)
	assert.InDelta(t, 0.73, sugs[1].Confidence, 1e-9)

	for _, s := range sugs {
		assert.NoError(t, s.Validate())
		assert.NotEmpty(t, s.RootCause)
	}
}

func TestSuggest_DefaultWhenNothingMatches(t *testing.T) {
	result := &model.ParseResult{Errors: []model.ParsedError{
		{ErrorType: "BuildFailure", Umbrella: true, Severity: model.SeverityBlocking, Stage: model.StageCCompilation},
	}}
	sugs, err := NewSuggester().Suggest(context.Background(), result, model.Classification{})
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	assert.Equal(t, "Review Error Log", sugs[0].Title)
}

func TestSuggest_CapsAtMax(t *testing.T) {
	var errs []model.ParsedError
	for i := 0; i < 6; i++ {
		errs = append(errs, model.ParsedError{ErrorType: "CCompilationError", Message: "x", Severity: model.SeverityBlocking})
	}
	sugs, err := NewSuggester().Suggest(context.Background(), &model.ParseResult{Errors: errs}, model.Classification{})
	require.NoError(t, err)
	assert.Len(t, sugs, model.MaxSuggestions)
}

func TestConfidence(t *testing.T) {
	cls := model.Classification{Severity: model.SeverityBlocking, Stage: model.StageCCompilation, Complexity: model.ComplexityComplex}
	assert.InDelta(t, 0.92, Confidence(cls, 0), 1e-9)
	assert.InDelta(t, 0.88, Confidence(cls, 2), 1e-9)
	assert.InDelta(t, 0.0, Confidence(cls, 100), 1e-9)
	assert.InDelta(t, 0.55, Confidence(model.Classification{}, 0), 1e-9)
}

func TestRules_MatchSyntheticGroundTruth(t *testing.T) {
	g, err := synthetic.New()
	require.NoError(t, err)
	cases, err := g.GenerateN(1, 60)
	require.NoError(t, err)

	ctx := context.Background()
	for _, c := range cases {
		cls, err := NewClassifier().Classify(ctx, logparser.Parse(c.RawLog))
		require.NoError(t, err)
		assert.Equal(t, c.GroundTruth.Severity, cls.Severity, c.Category)
		assert.Equal(t, c.GroundTruth.Stage, cls.Stage, c.Category)
		assert.Equal(t, c.GroundTruth.Complexity, cls.Complexity, c.Category)
	}
}
