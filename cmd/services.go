package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/newhook/plclog/internal/config"
	"github.com/newhook/plclog/internal/logparser"
	"github.com/newhook/plclog/internal/remote"
	"github.com/newhook/plclog/internal/rules"
	"github.com/newhook/plclog/internal/service"
)

// newParser returns a parser using the configured cascade options.
func newParser(cfg *config.Config) *logparser.Parser {
	p := logparser.NewParser()
	p.Cascade = cfg.Cascade.Options()
	return p
}

// newServices builds the classifier and suggester selected by the config.
// Remote services are guarded by the retry policy; classification results
// are cached when a TTL is configured.
func newServices(cfg *config.Config) (service.Classifier, service.Suggester, error) {
	var (
		classifier service.Classifier
		suggester  service.Suggester
	)

	switch cfg.Service.GetMode() {
	case config.ModeRemote:
		client, err := remote.NewClient(cfg.Service.Endpoint, cfg.Service.APIKey)
		if err != nil {
			return nil, nil, err
		}
		guard := service.NewGuard(cfg.Service.Policy())
		classifier = guard.Classifier(client)
		suggester = guard.Suggester(client)
	case config.ModeRules:
		classifier = rules.NewClassifier()
		suggester = rules.NewSuggester()
	default:
		return nil, nil, fmt.Errorf("unknown service mode %q", cfg.Service.Mode)
	}

	if ttl := cfg.Service.GetCacheTTL(); ttl > 0 {
		classifier = service.NewCachingClassifier(classifier, ttl)
	}
	return classifier, suggester, nil
}

// readLog reads the named file, or stdin when name is empty or "-".
func readLog(name string) (string, error) {
	if name == "" || name == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(filepath.Clean(name))
	if err != nil {
		return "", fmt.Errorf("failed to read log: %w", err)
	}
	return string(data), nil
}

func argOrEmpty(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
