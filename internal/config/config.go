// Package config loads plclog settings from a TOML file, a .env file and
// the environment.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/newhook/plclog/internal/logparser"
	"github.com/newhook/plclog/internal/service"
)

//go:embed templates/config.tmpl
var configTemplateText string

// FileName is the project-local config file looked up by Find.
const FileName = "plclog.toml"

// Service modes.
const (
	ModeRules  = "rules"
	ModeRemote = "remote"
)

// Environment overrides, applied after the file and .env are read.
const (
	EnvServiceEndpoint = "PLCLOG_SERVICE_ENDPOINT"
	EnvAPIKey          = "PLCLOG_API_KEY"
	EnvLogLevel        = "PLCLOG_LOG_LEVEL"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full plclog configuration.
type Config struct {
	Log        LogConfig        `toml:"log"`
	Service    ServiceConfig    `toml:"service"`
	Evaluation EvaluationConfig `toml:"evaluation"`
	Cascade    CascadeConfig    `toml:"cascade"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error". Defaults to "info".
	Level string `toml:"level"`
	// File is the log destination. "-" is stderr, empty disables logging.
	File string `toml:"file"`
}

// GetLevel returns the configured level or "info".
func (l *LogConfig) GetLevel() string {
	if l.Level == "" {
		return "info"
	}
	return l.Level
}

// ServiceConfig selects and tunes the classification and suggestion services.
type ServiceConfig struct {
	// Mode is "rules" or "remote". Defaults to "rules".
	Mode     string `toml:"mode"`
	Endpoint string `toml:"endpoint"`
	APIKey   string `toml:"api_key"`

	Timeout       *time.Duration `toml:"timeout"`
	MaxAttempts   *int           `toml:"max_attempts"`
	Backoff       *time.Duration `toml:"backoff"`
	RatePerSecond *float64       `toml:"rate_per_second"`
	Burst         *int           `toml:"burst"`

	// CacheTTL bounds how long classifications are cached. Zero disables
	// the cache. Defaults to 10 minutes.
	CacheTTL *time.Duration `toml:"cache_ttl"`
}

// GetMode returns the configured mode or "rules".
func (s *ServiceConfig) GetMode() string {
	if s.Mode == "" {
		return ModeRules
	}
	return s.Mode
}

// GetCacheTTL returns the classification cache TTL.
func (s *ServiceConfig) GetCacheTTL() time.Duration {
	if s.CacheTTL == nil || *s.CacheTTL < 0 {
		return 10 * time.Minute
	}
	return *s.CacheTTL
}

// Policy returns the retry and rate policy, starting from
// service.DefaultPolicy and applying whatever is set.
func (s *ServiceConfig) Policy() service.Policy {
	p := service.DefaultPolicy()
	if s.Timeout != nil && *s.Timeout > 0 {
		p.Timeout = *s.Timeout
	}
	if s.MaxAttempts != nil && *s.MaxAttempts > 0 {
		p.MaxAttempts = *s.MaxAttempts
	}
	if s.Backoff != nil && *s.Backoff >= 0 {
		p.Backoff = *s.Backoff
	}
	if s.RatePerSecond != nil && *s.RatePerSecond > 0 {
		p.RatePerSecond = *s.RatePerSecond
	}
	if s.Burst != nil && *s.Burst > 0 {
		p.Burst = *s.Burst
	}
	return p
}

// EvaluationConfig holds defaults for the evaluate command.
type EvaluationConfig struct {
	Cases       *int           `toml:"cases"`
	Seed        *int64         `toml:"seed"`
	Workers     *int           `toml:"workers"`
	CaseTimeout *time.Duration `toml:"case_timeout"`
	Output      string         `toml:"output"`
}

// GetCases returns the number of cases per run. Defaults to 50.
func (e *EvaluationConfig) GetCases() int {
	if e.Cases == nil || *e.Cases <= 0 {
		return 50
	}
	return *e.Cases
}

// GetSeed returns the base seed. Defaults to 1.
func (e *EvaluationConfig) GetSeed() int64 {
	if e.Seed == nil {
		return 1
	}
	return *e.Seed
}

// GetWorkers returns the evaluation concurrency. Defaults to 4.
func (e *EvaluationConfig) GetWorkers() int {
	if e.Workers == nil || *e.Workers <= 0 {
		return 4
	}
	return *e.Workers
}

// GetCaseTimeout returns the per-case bound. Defaults to 2 minutes.
func (e *EvaluationConfig) GetCaseTimeout() time.Duration {
	if e.CaseTimeout == nil || *e.CaseTimeout <= 0 {
		return 2 * time.Minute
	}
	return *e.CaseTimeout
}

// GetOutput returns the report path. Defaults to evaluation_report.json.
func (e *EvaluationConfig) GetOutput() string {
	if e.Output == "" {
		return "evaluation_report.json"
	}
	return e.Output
}

// CascadeConfig tunes cascade detection.
type CascadeConfig struct {
	TokenOverlap *float64 `toml:"token_overlap"`
}

// Options returns the cascade options with the configured threshold.
func (c *CascadeConfig) Options() logparser.CascadeOptions {
	opts := logparser.DefaultCascadeOptions()
	if c.TokenOverlap != nil {
		opts.TokenOverlap = *c.TokenOverlap
	}
	return opts
}

// DefaultConfig returns a config with every field at its default.
func DefaultConfig() *Config {
	return &Config{}
}

// Load reads path, loads .env from the working directory if present and
// applies environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvServiceEndpoint); v != "" {
		c.Service.Endpoint = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Service.APIKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Find returns the first config file that exists: ./plclog.toml, then
// ~/.config/plclog/config.toml. It returns "" when there is none.
func Find() string {
	candidates := []string{FileName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "plclog", "config.toml"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks field values that have no sensible fallback.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.GetLevel()) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
	}

	switch c.Service.GetMode() {
	case ModeRules:
	case ModeRemote:
		if c.Service.Endpoint == "" {
			return fmt.Errorf("%w: service.endpoint is required in remote mode", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: service.mode %q, want %q or %q", ErrInvalid, c.Service.Mode, ModeRules, ModeRemote)
	}

	if v := c.Cascade.TokenOverlap; v != nil && (*v <= 0 || *v > 1) {
		return fmt.Errorf("%w: cascade.token_overlap %v outside (0,1]", ErrInvalid, *v)
	}
	if v := c.Service.MaxAttempts; v != nil && *v < 0 {
		return fmt.Errorf("%w: service.max_attempts %d is negative", ErrInvalid, *v)
	}
	return nil
}

// SaveDocumentedConfig writes a commented config file to path.
func (c *Config) SaveDocumentedConfig(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, []byte(c.GenerateDocumentedConfig()), 0600)
}

type configTemplateData struct {
	LogLevel string
	LogFile  string
	Mode     string
	Endpoint string
}

// tomlString quotes s as a TOML basic string.
func tomlString(s string) string {
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}

var configTemplate = template.Must(template.New("config").Funcs(template.FuncMap{
	"tomlString": tomlString,
}).Parse(configTemplateText))

// GenerateDocumentedConfig renders the config with every option documented.
// The API key is never written.
func (c *Config) GenerateDocumentedConfig() string {
	data := configTemplateData{
		LogLevel: c.Log.GetLevel(),
		LogFile:  c.Log.File,
		Mode:     c.Service.GetMode(),
		Endpoint: c.Service.Endpoint,
	}

	var buf bytes.Buffer
	if err := configTemplate.Execute(&buf, data); err != nil {
		return fmt.Sprintf("[log]\nlevel = %q\n[service]\nmode = %q\n", data.LogLevel, data.Mode)
	}
	return buf.String()
}
