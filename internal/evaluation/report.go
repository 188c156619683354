package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newhook/plclog/internal/model"
	"github.com/newhook/plclog/internal/signal"
	"github.com/newhook/plclog/internal/synthetic"
)

// Status is the outcome of one case.
type Status string

const (
	// StatusScored means both services answered and the answer was scored.
	StatusScored Status = "scored"
	// StatusFailed means a service call failed; the case counts as incorrect.
	StatusFailed Status = "failed"
	// StatusSkipped means the run was cancelled before the case started.
	StatusSkipped Status = "skipped"
)

// AxisMatch records which classification axes matched ground truth.
type AxisMatch struct {
	Severity   bool `json:"severity"`
	Stage      bool `json:"stage"`
	Complexity bool `json:"complexity"`
}

// All reports whether every axis matched.
func (m AxisMatch) All() bool {
	return m.Severity && m.Stage && m.Complexity
}

// CaseResult is the scored outcome of one synthetic case.
type CaseResult struct {
	ID                 string                `json:"id"`
	Category           string                `json:"category"`
	Seed               int64                 `json:"seed"`
	Status             Status                `json:"status"`
	Error              string                `json:"error,omitempty"`
	GroundTruth        synthetic.GroundTruth `json:"ground_truth"`
	Predicted          *model.Classification `json:"predicted,omitempty"`
	Correct            AxisMatch             `json:"correct"`
	ExpectedErrorCount int                   `json:"expected_error_count"`
	ParsedErrorCount   int                   `json:"parsed_error_count"`
	SuggestionCount    int                   `json:"suggestion_count"`
	AvgConfidence      float64               `json:"avg_confidence"`
	SuggestionsValid   bool                  `json:"suggestions_valid"`
	SuggestionIssues   []string              `json:"suggestion_issues,omitempty"`
	Passed             bool                  `json:"passed"`
	DurationMS         int64                 `json:"duration_ms"`
}

// Summary holds the aggregate metrics of a run. Accuracies are over
// evaluated (scored or failed) cases; averages over scored cases.
type Summary struct {
	Total              int     `json:"total"`
	Scored             int     `json:"scored"`
	Failed             int     `json:"failed"`
	Skipped            int     `json:"skipped"`
	Passed             int     `json:"passed"`
	SeverityAccuracy   float64 `json:"severity_accuracy"`
	StageAccuracy      float64 `json:"stage_accuracy"`
	ComplexityAccuracy float64 `json:"complexity_accuracy"`
	OverallAccuracy    float64 `json:"overall_accuracy"`
	PassRate           float64 `json:"pass_rate"`
	AvgSuggestionCount float64 `json:"avg_suggestion_count"`
	AvgConfidence      float64 `json:"avg_confidence"`
}

// CategorySummary breaks results down by synthetic category.
type CategorySummary struct {
	Total           int     `json:"total"`
	Passed          int     `json:"passed"`
	Failed          int     `json:"failed"`
	Skipped         int     `json:"skipped"`
	OverallAccuracy float64 `json:"overall_accuracy"`
}

// Report is the single artifact of an evaluation run.
type Report struct {
	RunID            string                      `json:"run_id"`
	GeneratorVersion int                         `json:"generator_version"`
	StartedAt        time.Time                   `json:"started_at"`
	FinishedAt       time.Time                   `json:"finished_at"`
	Summary          Summary                     `json:"summary"`
	Categories       map[string]*CategorySummary `json:"categories"`
	Cases            []CaseResult                `json:"cases"`
}

// Failures returns the failed cases in report order.
func (r *Report) Failures() []CaseResult {
	var out []CaseResult
	for _, c := range r.Cases {
		if c.Status == StatusFailed {
			out = append(out, c)
		}
	}
	return out
}

func (r *Report) summarize() {
	s := Summary{Total: len(r.Cases)}
	r.Categories = make(map[string]*CategorySummary)

	var sevOK, stageOK, cxOK, suggestions int
	var confidence float64
	catCorrect := make(map[string]int)
	for _, c := range r.Cases {
		cat, ok := r.Categories[c.Category]
		if !ok {
			cat = &CategorySummary{}
			r.Categories[c.Category] = cat
		}
		cat.Total++

		switch c.Status {
		case StatusSkipped:
			s.Skipped++
			cat.Skipped++
			continue
		case StatusFailed:
			s.Failed++
			cat.Failed++
			continue
		}

		s.Scored++
		if c.Passed {
			s.Passed++
			cat.Passed++
		}
		if c.Correct.Severity {
			sevOK++
			catCorrect[c.Category]++
		}
		if c.Correct.Stage {
			stageOK++
			catCorrect[c.Category]++
		}
		if c.Correct.Complexity {
			cxOK++
			catCorrect[c.Category]++
		}
		suggestions += c.SuggestionCount
		confidence += c.AvgConfidence
	}

	if evaluated := s.Scored + s.Failed; evaluated > 0 {
		n := float64(evaluated)
		s.SeverityAccuracy = float64(sevOK) / n
		s.StageAccuracy = float64(stageOK) / n
		s.ComplexityAccuracy = float64(cxOK) / n
		s.OverallAccuracy = float64(sevOK+stageOK+cxOK) / (3 * n)
		s.PassRate = float64(s.Passed) / n
	}
	if s.Scored > 0 {
		s.AvgSuggestionCount = float64(suggestions) / float64(s.Scored)
		s.AvgConfidence = confidence / float64(s.Scored)
	}
	for name, cat := range r.Categories {
		if evaluated := cat.Total - cat.Skipped; evaluated > 0 {
			cat.OverallAccuracy = float64(catCorrect[name]) / (3 * float64(evaluated))
		}
	}
	r.Summary = s
}

// WriteReport writes the report as indented JSON. The file is replaced
// atomically and the write is not interrupted by SIGINT/SIGTERM.
func WriteReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	return signal.Critical(func() error {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
		tmp, err := os.CreateTemp(dir, ".report-*.json")
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer os.Remove(tmp.Name())

		if _, err := tmp.Write(data); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write report: %w", err)
		}
		if err := tmp.Close(); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		if err := os.Rename(tmp.Name(), path); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		return nil
	})
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &r, nil
}
