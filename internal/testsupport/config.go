package testsupport

import (
	"path/filepath"
	"testing"

	"vintner/internal/batch"
	"vintner/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ExportDir = filepath.Join(base, "exports")
	cfg.API.BaseURL = "http://127.0.0.1:0"
	cfg.Drive.UserID = "test-user"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithBaseURL points the backend base URL at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(c *config.Config) {
		c.API.BaseURL = url
	}
}

// WithChunkSize overrides the publish chunk size on the test config.
func WithChunkSize(size int) ConfigOption {
	return func(c *config.Config) {
		c.Publish.ChunkSize = size
	}
}

// MustOpenStore opens a batch store against the test config's data dir and
// registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *batch.Store {
	t.Helper()

	store, err := batch.Open(cfg)
	if err != nil {
		t.Fatalf("open batch store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close batch store: %v", err)
		}
	})
	return store
}
