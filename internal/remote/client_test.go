package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/plclog/internal/model"
	"github.com/newhook/plclog/internal/service"
)

func testResult() *model.ParseResult {
	return &model.ParseResult{
		RawLog: "Error: PLC code generation failed !",
		Errors: []model.ParsedError{
			{ErrorType: "CodeGenerationFailure", Stage: model.StageCodeGeneration, Severity: model.SeverityBlocking},
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL+"/", "secret")
	require.NoError(t, err)
	return c
}

func TestNewClient_RequiresEndpoint(t *testing.T) {
	_, err := NewClient("", "")
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/classify", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req classifyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Errors, 1)

		_, _ = w.Write([]byte(`{"severity":"blocking","stage":"code_generation","complexity":"moderate","reasoning":"generator crash"}`))
	})

	cls, err := c.Classify(context.Background(), testResult())
	require.NoError(t, err)
	assert.Equal(t, model.StageCodeGeneration, cls.Stage)
	assert.Equal(t, model.ComplexityModerate, cls.Complexity)
}

func TestSuggest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/suggest", r.URL.Path)
		_, _ = w.Write([]byte(`{"suggestions":[{"title":"Fill POU","description":"d","root_cause":"empty body","confidence":0.8,"error_index":0}]}`))
	})

	sugs, err := c.Suggest(context.Background(), testResult(), model.Classification{})
	require.NoError(t, err)
	require.Len(t, sugs, 1)
	assert.Equal(t, "empty body", sugs[0].RootCause)
	assert.Nil(t, sugs[0].CodeBefore)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{name: "throttled", status: http.StatusTooManyRequests, body: "slow down", transient: true},
		{name: "server error", status: http.StatusBadGateway, body: "upstream", transient: true},
		{name: "bad request", status: http.StatusBadRequest, body: "nope", transient: false},
		{name: "unauthorized", status: http.StatusUnauthorized, body: "", transient: false},
		{name: "malformed json", status: http.StatusOK, body: "{not json", transient: false},
		{name: "schema violation", status: http.StatusOK, body: `{"severity":"fatal","stage":"unknown","complexity":"trivial"}`, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Classify(context.Background(), testResult())
			require.Error(t, err)
			assert.Equal(t, tt.transient, service.IsTransient(err))

			var se *service.Error
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "classify", se.Op)
		})
	}
}

func TestSuggest_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "none", body: `{"suggestions":[]}`},
		{name: "too many", body: `{"suggestions":[{"title":"a","confidence":0.1},{"title":"b","confidence":0.1},{"title":"c","confidence":0.1},{"title":"d","confidence":0.1}]}`},
		{name: "confidence out of range", body: `{"suggestions":[{"title":"a","confidence":1.5}]}`},
		{name: "bad error index", body: `{"suggestions":[{"title":"a","confidence":0.5,"error_index":4}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := c.Suggest(context.Background(), testResult(), model.Classification{})
			require.Error(t, err)
			assert.False(t, service.IsTransient(err))
		})
	}
}

func TestNetworkFailureIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(url, "")
	require.NoError(t, err)
	_, err = c.Classify(context.Background(), testResult())
	require.Error(t, err)
	assert.True(t, service.IsTransient(err))
}

func TestGuardedClientRetries(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"severity":"warning","stage":"xml_validation","complexity":"trivial","reasoning":"schema"}`))
	})

	guard := service.NewGuard(service.Policy{MaxAttempts: 3})
	cls, err := guard.Classifier(c).Classify(context.Background(), testResult())
	require.NoError(t, err)
	assert.Equal(t, model.SeverityWarning, cls.Severity)
	assert.Equal(t, 2, calls)
}
