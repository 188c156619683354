// Package service defines the contracts for the external classification and
// suggestion services and the plumbing around them: error kinds, retries,
// rate limiting, caching, and the live request and streaming contracts.
package service

import (
	"context"

	"github.com/newhook/plclog/internal/model"
)

// Classifier labels a parsed log along the severity, stage and complexity
// axes.
type Classifier interface {
	Classify(ctx context.Context, result *model.ParseResult) (model.Classification, error)
}

// Suggester proposes fixes for a classified log.
type Suggester interface {
	Suggest(ctx context.Context, result *model.ParseResult, cls model.Classification) ([]model.Suggestion, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, result *model.ParseResult) (model.Classification, error)

func (f ClassifierFunc) Classify(ctx context.Context, result *model.ParseResult) (model.Classification, error) {
	return f(ctx, result)
}

// SuggesterFunc adapts a function to Suggester.
type SuggesterFunc func(ctx context.Context, result *model.ParseResult, cls model.Classification) ([]model.Suggestion, error)

func (f SuggesterFunc) Suggest(ctx context.Context, result *model.ParseResult, cls model.Classification) ([]model.Suggestion, error) {
	return f(ctx, result, cls)
}
