package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newhook/plclog/internal/config"
	"github.com/newhook/plclog/internal/logparser"
	"github.com/newhook/plclog/internal/rules"
	"github.com/newhook/plclog/internal/service"
)

func TestNewServices_Rules(t *testing.T) {
	classifier, suggester, err := newServices(config.DefaultConfig())
	require.NoError(t, err)

	assert.IsType(t, &service.CachingClassifier{}, classifier)
	assert.IsType(t, &rules.Suggester{}, suggester)
}

func TestNewServices_NoCache(t *testing.T) {
	ttl := time.Duration(0)
	cfg := config.DefaultConfig()
	cfg.Service.CacheTTL = &ttl

	classifier, _, err := newServices(cfg)
	require.NoError(t, err)
	assert.IsType(t, &rules.Classifier{}, classifier)
}

func TestNewServices_Remote(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.Mode = config.ModeRemote

	_, _, err := newServices(cfg)
	assert.Error(t, err, "remote mode needs an endpoint")

	cfg.Service.Endpoint = "http://localhost:1"
	classifier, suggester, err := newServices(cfg)
	require.NoError(t, err)
	assert.NotNil(t, classifier)
	assert.NotNil(t, suggester)
}

func TestNewParser_UsesCascadeConfig(t *testing.T) {
	overlap := 0.9
	cfg := config.DefaultConfig()
	cfg.Cascade.TokenOverlap = &overlap

	p := newParser(cfg)
	assert.Equal(t, 0.9, p.Cascade.TokenOverlap)
	assert.Equal(t, logparser.DefaultCascadeOptions().SharedLine, p.Cascade.SharedLine)
}

func TestReadLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.log")
	require.NoError(t, os.WriteFile(path, []byte("Start build in /tmp\n"), 0644))

	raw, err := readLog(path)
	require.NoError(t, err)
	assert.Equal(t, "Start build in /tmp\n", raw)

	_, err = readLog(filepath.Join(t.TempDir(), "missing.log"))
	assert.Error(t, err)
}

func TestPrintResponse(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "internal", "logparser", "testdata", "constant_assignment.log"))
	require.NoError(t, err)

	analyzer := service.NewAnalyzer(nil, rules.NewClassifier(), rules.NewSuggester())
	resp, err := analyzer.Analyze(context.Background(), string(raw))
	require.NoError(t, err)

	var buf bytes.Buffer
	printResponse(&buf, resp)
	assert.Contains(t, buf.String(), "Classification")
	assert.Contains(t, buf.String(), "Suggested fixes")
	assert.Contains(t, buf.String(), resp.RequestID)

	buf.Reset()
	printParseResult(&buf, logparser.Parse(string(raw)))
	assert.Contains(t, buf.String(), "4 errors (cascading)")
	assert.Contains(t, buf.String(), "caused by [0]")
}
