// Package evaluation scores classification and suggestion services against
// synthetic cases with known labels.
package evaluation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/newhook/plclog/internal/logging"
	"github.com/newhook/plclog/internal/logparser"
	"github.com/newhook/plclog/internal/model"
	"github.com/newhook/plclog/internal/service"
	"github.com/newhook/plclog/internal/synthetic"
)

const tracerName = "github.com/newhook/plclog/internal/evaluation"

const (
	DefaultWorkers     = 4
	DefaultCaseTimeout = 2 * time.Minute
)

// Options tunes a run.
type Options struct {
	// Workers bounds how many cases are evaluated at once.
	Workers int
	// CaseTimeout bounds the service calls of a single case.
	CaseTimeout time.Duration
	// Parser defaults to logparser.NewParser().
	Parser *logparser.Parser
}

// Evaluator runs cases through the parser and the services and scores the
// answers against ground truth.
type Evaluator struct {
	classifier service.Classifier
	suggester  service.Suggester
	parser     *logparser.Parser
	opts       Options
	tracer     trace.Tracer

	// now is replaced in tests.
	now func() time.Time
}

// New returns an evaluator. Zero options take their defaults.
func New(classifier service.Classifier, suggester service.Suggester, opts Options) *Evaluator {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.CaseTimeout <= 0 {
		opts.CaseTimeout = DefaultCaseTimeout
	}
	if opts.Parser == nil {
		opts.Parser = logparser.NewParser()
	}
	return &Evaluator{
		classifier: classifier,
		suggester:  suggester,
		parser:     opts.Parser,
		opts:       opts,
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
		now:        time.Now,
	}
}

// Run evaluates every case and returns the report. It never fails: a case
// whose services fail is recorded as failed and the run continues.
// Cancelling ctx stops new cases from starting; cases already in flight
// finish and are scored, and the rest are recorded as skipped.
func (e *Evaluator) Run(ctx context.Context, cases []*synthetic.Case) *Report {
	report := &Report{
		RunID:            uuid.NewString(),
		GeneratorVersion: synthetic.GeneratorVersion,
		StartedAt:        e.now(),
	}
	log := logging.With("run_id", report.RunID)
	log.Info("evaluation started", "cases", len(cases), "workers", e.opts.Workers)

	results := make([]CaseResult, len(cases))

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for i, c := range cases {
		if ctx.Err() != nil {
			results[i] = skipped(c)
			continue
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				results[i] = skipped(c)
				return nil
			}
			results[i] = e.evaluate(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool {
		return lessID(results[i].ID, results[j].ID)
	})
	report.Cases = results
	report.FinishedAt = e.now()
	report.summarize()

	log.Info("evaluation finished",
		"scored", report.Summary.Scored,
		"failed", report.Summary.Failed,
		"skipped", report.Summary.Skipped,
		"overall_accuracy", report.Summary.OverallAccuracy)
	return report
}

// lessID orders IDs shorter-first, so "case-9999" precedes "case-10000".
func lessID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

func skipped(c *synthetic.Case) CaseResult {
	r := newCaseResult(c)
	r.Status = StatusSkipped
	return r
}

func newCaseResult(c *synthetic.Case) CaseResult {
	return CaseResult{
		ID:                 c.ID,
		Category:           c.Category,
		Seed:               c.Seed,
		GroundTruth:        c.GroundTruth,
		ExpectedErrorCount: c.ExpectedErrorCount,
	}
}

// evaluate scores one case. A call already issued runs detached from ctx's
// cancellation and is allowed to finish; once ctx is cancelled no new call
// is issued, including guarded retries.
func (e *Evaluator) evaluate(ctx context.Context, c *synthetic.Case) (res CaseResult) {
	res = newCaseResult(c)

	callCtx := service.WithStop(context.WithoutCancel(ctx), ctx.Done())
	callCtx, cancel := context.WithTimeout(callCtx, e.opts.CaseTimeout)
	defer cancel()
	callCtx, span := e.tracer.Start(callCtx, "evaluate_case", trace.WithAttributes(
		attribute.String("case.id", c.ID),
		attribute.String("case.category", c.Category),
		attribute.Int64("case.seed", c.Seed),
	))
	defer span.End()

	start := e.now()
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
		}
		res.DurationMS = e.now().Sub(start).Milliseconds()
		if res.Status == StatusFailed {
			span.SetStatus(codes.Error, res.Error)
			logging.Warn("evaluation case failed", "case_id", c.ID, "error", res.Error)
		}
	}()

	result := e.parser.Parse(c.RawLog)
	res.ParsedErrorCount = len(result.Errors)

	cls, err := e.classifier.Classify(callCtx, result)
	if err == nil {
		err = cls.Validate()
	}
	if err != nil {
		span.RecordError(err)
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("classify: %v", err)
		return res
	}
	res.Predicted = &cls

	if ctx.Err() != nil {
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("suggest: %v", service.ErrStopped)
		return res
	}
	sugs, err := e.suggester.Suggest(callCtx, result, cls)
	if err != nil {
		span.RecordError(err)
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("suggest: %v", err)
		return res
	}

	res.Status = StatusScored
	res.score(cls, sugs)
	span.SetAttributes(attribute.Bool("case.passed", res.Passed))
	return res
}

// score fills the per-axis matches and suggestion checks.
func (r *CaseResult) score(cls model.Classification, sugs []model.Suggestion) {
	r.Correct = AxisMatch{
		Severity:   cls.Severity == r.GroundTruth.Severity,
		Stage:      cls.Stage == r.GroundTruth.Stage,
		Complexity: cls.Complexity == r.GroundTruth.Complexity,
	}

	r.SuggestionCount = len(sugs)
	if n := len(sugs); n < model.MinSuggestions || n > model.MaxSuggestions {
		r.SuggestionIssues = append(r.SuggestionIssues,
			fmt.Sprintf("%d suggestions, want %d-%d", n, model.MinSuggestions, model.MaxSuggestions))
	}
	var total float64
	for i, s := range sugs {
		total += s.Confidence
		if s.RootCause == "" {
			r.SuggestionIssues = append(r.SuggestionIssues, fmt.Sprintf("suggestion %d has no root cause", i))
		}
		if s.Confidence < 0 || s.Confidence > 1 {
			r.SuggestionIssues = append(r.SuggestionIssues, fmt.Sprintf("suggestion %d confidence %v outside [0,1]", i, s.Confidence))
		}
	}
	if len(sugs) > 0 {
		r.AvgConfidence = total / float64(len(sugs))
	}
	r.SuggestionsValid = len(r.SuggestionIssues) == 0
	r.Passed = r.Correct.All() && r.SuggestionsValid
}
