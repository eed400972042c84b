package testsupport

import (
	"path/filepath"
	"testing"

	"anisync/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Annict.Token = "annict-test-token"
	cfg.AniList.Token = "anilist-test-token"
	cfg.AniList.UserName = "tester"
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.RelationCache.Path = filepath.Join(base, "data", "relations.json")
	cfg.History.Path = filepath.Join(base, "data", "history.db")

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithDirection sets the sync direction on the test config.
func WithDirection(direction string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.Direction = direction
	}
}

// WithCommentSync enables comment propagation on the test config.
func WithCommentSync() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Sync.SyncComments = true
	}
}

// WithoutHistory disables the run-history store on the test config.
func WithoutHistory() ConfigOption {
	return func(cfg *config.Config) {
		cfg.History.Enabled = false
	}
}
