package testsupport

import (
	"path/filepath"
	"testing"

	"searchq/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"
	cfgVal.UI.ManagerURL = "http://127.0.0.1:7488/"

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithEngines replaces the configured search engines.
func WithEngines(engines ...config.Engine) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engines = append([]config.Engine(nil), engines...)
	}
}

// WithDedupWindow sets the watcher dedup window in seconds. Zero disables it.
func WithDedupWindow(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Watcher.DedupWindowSeconds = seconds
	}
}

// WithAPIToken sets the bearer token required by the management API.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithShortDataDir relocates the data directory under a short temp path so
// the unix socket stays within the platform path limit.
func WithShortDataDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.DataDir = ShortTempDir(b.t)
	}
}
