package testsupport

import (
	"path/filepath"
	"testing"

	"posterhelper/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with a unique temp data directory per
// test, a placeholder Plex server and zero scraper delays.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Plex.URL = "http://127.0.0.1:32400"
	cfgVal.Plex.Token = "test-token"
	cfgVal.Plex.RequestsPerSecond = 0
	cfgVal.Libraries.TV = []string{"TV Shows"}
	cfgVal.Libraries.Movies = []string{"Movies"}
	cfgVal.Scraper = config.Scraper{RequestTimeout: 5}
	cfgVal.Upload.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Logging.File = ""

	builder := &configBuilder{
		t:   t,
		cfg: &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithPlexURL points the test config at a fake Plex server.
func WithPlexURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Plex.URL = url
	}
}

// WithLibraries overrides the configured TV and movie libraries.
func WithLibraries(tv, movies []string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Libraries.TV = tv
		b.cfg.Libraries.Movies = movies
	}
}

// WithWorkers sets the batch worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.WorkerCount = n
	}
}
