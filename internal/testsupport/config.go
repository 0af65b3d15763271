// Package testsupport provides helpers shared by package tests.
package testsupport

import (
	"path/filepath"
	"testing"

	"shuttle/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.LLM.APIKey = "test"
	cfg.Models = []config.Model{{Name: "primary", Model: "test/model-a"}}

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithModels replaces the translation candidate list on the test config.
func WithModels(models ...config.Model) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Models = models
	}
}

// WithWorkers overrides the pipeline pool size on the test config.
func WithWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.Workers = workers
	}
}
