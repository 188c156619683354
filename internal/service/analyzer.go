package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/newhook/plclog/internal/logging"
	"github.com/newhook/plclog/internal/logparser"
	"github.com/newhook/plclog/internal/model"
)

// Response is the live contract's answer for one log.
type Response struct {
	RequestID      string               `json:"request_id"`
	Classification model.Classification `json:"classification"`
	Suggestions    []model.Suggestion   `json:"suggestions"`
	ParsedErrors   []model.ParsedError  `json:"parsed_errors"`
}

// Analyzer runs parse, classify and suggest for a single log.
type Analyzer struct {
	parser     *logparser.Parser
	classifier Classifier
	suggester  Suggester
}

// NewAnalyzer returns an analyzer. A nil parser uses the default one.
func NewAnalyzer(parser *logparser.Parser, classifier Classifier, suggester Suggester) *Analyzer {
	if parser == nil {
		parser = logparser.NewParser()
	}
	return &Analyzer{parser: parser, classifier: classifier, suggester: suggester}
}

// Analyze parses raw and asks the services for a classification and fix
// suggestions. A log with no recognizable errors returns ErrNoErrors without
// calling either service.
func (a *Analyzer) Analyze(ctx context.Context, raw string) (*Response, error) {
	result := a.parser.Parse(raw)
	if len(result.Errors) == 0 {
		return nil, ErrNoErrors
	}

	requestID := uuid.NewString()
	log := logging.With("request_id", requestID)

	cls, err := a.classify(ctx, result)
	if err != nil {
		log.Warn("classification failed", "error", err)
		return nil, err
	}
	suggestions, err := a.suggester.Suggest(ctx, result, cls)
	if err != nil {
		log.Warn("suggestion failed", "error", err)
		return nil, fmt.Errorf("failed to suggest fixes: %w", err)
	}

	log.Info("analyzed build log",
		"errors", len(result.Errors),
		"severity", cls.Severity,
		"stage", cls.Stage,
		"suggestions", len(suggestions))
	return &Response{
		RequestID:      requestID,
		Classification: cls,
		Suggestions:    suggestions,
		ParsedErrors:   result.Errors,
	}, nil
}

func (a *Analyzer) classify(ctx context.Context, result *model.ParseResult) (model.Classification, error) {
	cls, err := a.classifier.Classify(ctx, result)
	if err != nil {
		return cls, fmt.Errorf("failed to classify: %w", err)
	}
	if err := cls.Validate(); err != nil {
		return cls, Hard("classify", err)
	}
	return cls, nil
}
