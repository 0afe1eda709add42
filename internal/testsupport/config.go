package testsupport

import (
	"path/filepath"
	"testing"

	"placeforge/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.OutputDir = filepath.Join(base, "sprites")
	cfgVal.Paths.ModelsDir = filepath.Join(base, "models")
	cfgVal.Paths.RegistryPath = filepath.Join(base, "registry.json")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Places.APIKey = "test"
	cfgVal.Inference.APIKey = "test"
	cfgVal.ImageGen.APIKey = "test"
	cfgVal.ObjectStore.APIKey = "test"
	cfgVal.MeshGen.APIKey = "test"

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithRegistryPath overrides the registry document location on the test
// config.
func WithRegistryPath(path string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.RegistryPath = path
	}
}

// WithLogging overrides the log format and level on the test config.
func WithLogging(format, level string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Logging.Format = format
		b.cfg.Logging.Level = level
	}
}
