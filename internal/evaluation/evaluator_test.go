package evaluation

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/plclog/internal/model"
	"github.com/newhook/plclog/internal/rules"
	"github.com/newhook/plclog/internal/service"
	"github.com/newhook/plclog/internal/synthetic"
)

func generateCases(t *testing.T, n int) []*synthetic.Case {
	t.Helper()
	g, err := synthetic.New()
	require.NoError(t, err)
	cases, err := g.GenerateN(100, n)
	require.NoError(t, err)
	return cases
}

func TestRun_RulesBaseline(t *testing.T) {
	cases := generateCases(t, 24)
	e := New(rules.NewClassifier(), rules.NewSuggester(), Options{Workers: 3})

	report := e.Run(context.Background(), cases)

	require.Len(t, report.Cases, 24)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, synthetic.GeneratorVersion, report.GeneratorVersion)
	assert.Equal(t, 24, report.Summary.Scored)
	assert.Equal(t, 1.0, report.Summary.OverallAccuracy)
	assert.Equal(t, 1.0, report.Summary.PassRate)
	assert.GreaterOrEqual(t, report.Summary.AvgSuggestionCount, 1.0)

	for i, c := range report.Cases {
		assert.Equal(t, StatusScored, c.Status)
		assert.Equal(t, c.ExpectedErrorCount, c.ParsedErrorCount)
		if i > 0 {
			assert.Less(t, report.Cases[i-1].ID, c.ID)
		}
	}

	total := 0
	for _, cat := range report.Categories {
		total += cat.Total
	}
	assert.Equal(t, 24, total)
}

func TestRun_PartialFailure(t *testing.T) {
	cases := generateCases(t, 10)
	failing := cases[4].RawLog

	base := rules.NewClassifier()
	classifier := service.ClassifierFunc(func(ctx context.Context, r *model.ParseResult) (model.Classification, error) {
		if r.RawLog == failing {
			return model.Classification{}, service.Hard("classify", errors.New("unparseable response"))
		}
		return base.Classify(ctx, r)
	})

	report := New(classifier, rules.NewSuggester(), Options{Workers: 4}).Run(context.Background(), cases)

	require.Len(t, report.Cases, 10)
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, 9, report.Summary.Scored)
	assert.Zero(t, report.Summary.Skipped)

	failures := report.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, cases[4].ID, failures[0].ID)
	assert.Contains(t, failures[0].Error, "unparseable response")
	assert.Nil(t, failures[0].Predicted)

	assert.InDelta(t, 0.9, report.Summary.OverallAccuracy, 1e-9)
}

func TestRun_CancelMidRun(t *testing.T) {
	cases := generateCases(t, 5)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	base := rules.NewClassifier()
	var calls, suggests atomic.Int32
	classifier := service.ClassifierFunc(func(callCtx context.Context, r *model.ParseResult) (model.Classification, error) {
		calls.Add(1)
		cancel()
		assert.NoError(t, callCtx.Err(), "in-flight calls outlive run cancellation")
		return base.Classify(callCtx, r)
	})
	suggester := service.SuggesterFunc(func(context.Context, *model.ParseResult, model.Classification) ([]model.Suggestion, error) {
		suggests.Add(1)
		return nil, nil
	})

	report := New(classifier, suggester, Options{Workers: 1}).Run(ctx, cases)

	require.Len(t, report.Cases, 5)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, suggests.Load(), "no call is issued after cancellation")

	first := report.Cases[0]
	assert.Equal(t, StatusFailed, first.Status)
	assert.NotNil(t, first.Predicted, "the completed classification is kept")
	assert.Contains(t, first.Error, service.ErrStopped.Error())
	for _, c := range report.Cases[1:] {
		assert.Equal(t, StatusSkipped, c.Status)
	}
	assert.Equal(t, 1, report.Summary.Failed)
	assert.Equal(t, 4, report.Summary.Skipped)
}

func TestRun_CancelStopsGuardedRetries(t *testing.T) {
	cases := generateCases(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	flaky := service.ClassifierFunc(func(context.Context, *model.ParseResult) (model.Classification, error) {
		calls.Add(1)
		cancel()
		return model.Classification{}, service.Transient("classify", errors.New("throttled"))
	})
	guard := service.NewGuard(service.Policy{MaxAttempts: 5, Backoff: time.Millisecond, MaxBackoff: time.Millisecond})

	report := New(guard.Classifier(flaky), rules.NewSuggester(), Options{Workers: 1}).Run(ctx, cases)

	assert.Equal(t, int32(1), calls.Load(), "no retry is issued after cancellation")
	require.Len(t, report.Cases, 3)
	assert.Equal(t, StatusFailed, report.Cases[0].Status)
	assert.Contains(t, report.Cases[0].Error, service.ErrStopped.Error())
	assert.NotContains(t, report.Cases[0].Error, service.ErrUnavailable.Error())
	assert.Equal(t, 2, report.Summary.Skipped)
}

func TestRun_CaseTimeout(t *testing.T) {
	cases := generateCases(t, 2)
	classifier := service.ClassifierFunc(func(ctx context.Context, _ *model.ParseResult) (model.Classification, error) {
		<-ctx.Done()
		return model.Classification{}, ctx.Err()
	})

	report := New(classifier, rules.NewSuggester(), Options{CaseTimeout: 10 * time.Millisecond}).Run(context.Background(), cases)
	assert.Equal(t, 2, report.Summary.Failed)
	assert.Zero(t, report.Summary.OverallAccuracy)
}

func TestRun_PanicIsRecorded(t *testing.T) {
	cases := generateCases(t, 3)
	suggester := service.SuggesterFunc(func(context.Context, *model.ParseResult, model.Classification) ([]model.Suggestion, error) {
		panic("boom")
	})

	report := New(rules.NewClassifier(), suggester, Options{}).Run(context.Background(), cases)
	assert.Equal(t, 3, report.Summary.Failed)
	assert.Contains(t, report.Cases[0].Error, "boom")
}

func TestScore_InvalidSuggestions(t *testing.T) {
	r := CaseResult{GroundTruth: synthetic.GroundTruth{
		Severity: model.SeverityBlocking, Stage: model.StageIECCompilation, Complexity: model.ComplexityTrivial,
	}}
	cls := model.Classification{Severity: model.SeverityBlocking, Stage: model.StageIECCompilation, Complexity: model.ComplexityTrivial}

	r.score(cls, []model.Suggestion{{Title: "a", Confidence: 1.5}})
	assert.True(t, r.Correct.All())
	assert.False(t, r.SuggestionsValid)
	assert.Len(t, r.SuggestionIssues, 2)
	assert.False(t, r.Passed)
}

func TestWriteReport(t *testing.T) {
	report := New(rules.NewClassifier(), rules.NewSuggester(), Options{}).Run(context.Background(), generateCases(t, 4))
	path := filepath.Join(t.TempDir(), "out", "report.json")

	require.NoError(t, WriteReport(path, report))
	loaded, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.RunID, loaded.RunID)
	assert.Equal(t, report.Summary, loaded.Summary)
	assert.Len(t, loaded.Cases, 4)

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".report-*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temp file must not be left behind")
}

func TestPrintReport(t *testing.T) {
	report := &Report{
		RunID: "run-1",
		Cases: []CaseResult{
			{ID: "case-0001", Category: "constant_assignment", Status: StatusScored, Passed: true,
				Correct: AxisMatch{true, true, true}, SuggestionCount: 2, AvgConfidence: 0.74},
			{ID: "case-0002", Category: "empty_project", Status: StatusFailed,
				Error: strings.Repeat("service unavailable ", 12)},
		},
	}
	report.summarize()

	var buf bytes.Buffer
	PrintReport(&buf, report, 60)
	out := buf.String()
	assert.Contains(t, out, "EVALUATION REPORT")
	assert.Contains(t, out, "Errors Encountered: 1")
	assert.Contains(t, out, "case-0002")
	assert.Contains(t, out, "constant_assignment")
	assert.Contains(t, out, "50.00%")
}

func TestLessID(t *testing.T) {
	ids := []string{"case-10000", "case-1001", "case-9999", "case-1000", "case-0002"}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	assert.Equal(t, []string{"case-0002", "case-1000", "case-1001", "case-9999", "case-10000"}, ids)
}
