// Package remote talks to classification and suggestion services over
// JSON/HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/newhook/plclog/internal/model"
	"github.com/newhook/plclog/internal/service"
)

const (
	// DefaultTimeout for HTTP requests. Per-attempt deadlines from the caller
	// take precedence.
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 512
)

// Client calls <endpoint>/classify and <endpoint>/suggest.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the service rooted at endpoint.
func NewClient(endpoint, apiKey string) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("service endpoint not configured")
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

type classifyRequest struct {
	RawLog             string              `json:"raw_log"`
	Errors             []model.ParsedError `json:"errors"`
	HasCascadingErrors bool                `json:"has_cascading_errors"`
}

type suggestRequest struct {
	RawLog         string               `json:"raw_log"`
	Errors         []model.ParsedError  `json:"errors"`
	Classification model.Classification `json:"classification"`
}

type suggestResponse struct {
	Suggestions []model.Suggestion `json:"suggestions"`
}

// Classify implements service.Classifier.
func (c *Client) Classify(ctx context.Context, result *model.ParseResult) (model.Classification, error) {
	req := classifyRequest{
		RawLog:             result.RawLog,
		Errors:             result.Errors,
		HasCascadingErrors: result.HasCascadingErrors,
	}
	var cls model.Classification
	if err := c.post(ctx, "classify", req, &cls); err != nil {
		return model.Classification{}, err
	}
	if err := cls.Validate(); err != nil {
		return model.Classification{}, service.Hard("classify", fmt.Errorf("invalid classification: %w", err))
	}
	return cls, nil
}

// Suggest implements service.Suggester.
func (c *Client) Suggest(ctx context.Context, result *model.ParseResult, cls model.Classification) ([]model.Suggestion, error) {
	req := suggestRequest{
		RawLog:         result.RawLog,
		Errors:         result.Errors,
		Classification: cls,
	}
	var resp suggestResponse
	if err := c.post(ctx, "suggest", req, &resp); err != nil {
		return nil, err
	}
	if n := len(resp.Suggestions); n < model.MinSuggestions || n > model.MaxSuggestions {
		return nil, service.Hard("suggest", fmt.Errorf("got %d suggestions, want %d-%d", n, model.MinSuggestions, model.MaxSuggestions))
	}
	for i, s := range resp.Suggestions {
		if err := s.Validate(); err != nil {
			return nil, service.Hard("suggest", fmt.Errorf("suggestion %d: %w", i, err))
		}
		if s.ErrorIndex < 0 || s.ErrorIndex >= max(len(result.Errors), 1) {
			return nil, service.Hard("suggest", fmt.Errorf("suggestion %d targets error %d of %d", i, s.ErrorIndex, len(result.Errors)))
		}
	}
	return resp.Suggestions, nil
}

// post sends body to <endpoint>/<op> and decodes the JSON answer into out.
// Network failures, throttling and 5xx answers are transient; anything
// else is hard.
func (c *Client) post(ctx context.Context, op string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return service.Hard(op, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+op, bytes.NewReader(reqBody))
	if err != nil {
		return service.Hard(op, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return service.Transient(op, fmt.Errorf("failed to send HTTP request: %w", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return service.Transient(op, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		httpErr := fmt.Errorf("HTTP error %d: %s", resp.StatusCode, truncate(string(data), maxErrorBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return service.Transient(op, httpErr)
		}
		return service.Hard(op, httpErr)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return service.Hard(op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
