package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"anisync/internal/config"
)

func TestLoadDefaultConfigUsesEnvTokensAndExpandsPaths(t *testing.T) {
	t.Setenv("ANNICT_TOKEN", "annict-env")
	t.Setenv("ANILIST_TOKEN", "anilist-env")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "anisync")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Annict.Token != "annict-env" {
		t.Fatalf("expected Annict token from env, got %q", cfg.Annict.Token)
	}
	if cfg.AniList.Token != "anilist-env" {
		t.Fatalf("expected AniList token from env, got %q", cfg.AniList.Token)
	}
	if cfg.Annict.BaseURL != config.Default().Annict.BaseURL {
		t.Fatalf("unexpected Annict base url: %q", cfg.Annict.BaseURL)
	}
	if cfg.Sync.Direction != config.DirectionOneWay {
		t.Fatalf("expected one-way default, got %q", cfg.Sync.Direction)
	}
	if cfg.Sync.MatchThreshold != 0.75 {
		t.Fatalf("unexpected match threshold: %v", cfg.Sync.MatchThreshold)
	}
	if cfg.RelationCache.Path != filepath.Join(wantData, "relations.json") {
		t.Fatalf("unexpected relation cache path: %q", cfg.RelationCache.Path)
	}
	if !cfg.History.Enabled {
		t.Fatal("expected history enabled by default")
	}
	if cfg.History.Path != filepath.Join(wantData, "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.History.Path)
	}
	if cfg.Bidirectional() {
		t.Fatal("expected one-way default to report not bidirectional")
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "anisync.toml")

	type payload struct {
		Annict struct {
			Token   string `toml:"token"`
			BaseURL string `toml:"base_url"`
		} `toml:"annict"`
		AniList struct {
			Token string `toml:"token"`
		} `toml:"anilist"`
		Sync struct {
			Direction      string  `toml:"direction"`
			MatchThreshold float64 `toml:"match_threshold"`
			WorkerLimit    int     `toml:"worker_limit"`
		} `toml:"sync"`
	}
	custom := payload{}
	custom.Annict.Token = "abc123"
	custom.Annict.BaseURL = "https://example.com/annict/"
	custom.AniList.Token = "def456"
	custom.Sync.Direction = "Bidirectional"
	custom.Sync.MatchThreshold = 0.8
	custom.Sync.WorkerLimit = 2
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Annict.Token != "abc123" {
		t.Fatalf("expected Annict token from file, got %q", cfg.Annict.Token)
	}
	if cfg.Annict.BaseURL != "https://example.com/annict" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.Annict.BaseURL)
	}
	if cfg.Sync.Direction != config.DirectionBidirectional {
		t.Fatalf("expected lowercased direction, got %q", cfg.Sync.Direction)
	}
	if !cfg.Bidirectional() {
		t.Fatal("expected Bidirectional() true")
	}
	if cfg.Sync.MatchThreshold != 0.8 {
		t.Fatalf("expected threshold override, got %v", cfg.Sync.MatchThreshold)
	}
	if cfg.Sync.WorkerLimit != 2 {
		t.Fatalf("expected worker limit override, got %d", cfg.Sync.WorkerLimit)
	}
}

func TestFileTokenTakesPrecedenceOverEnv(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "anisync.toml")
	body := "[annict]\ntoken = \"file-annict\"\n[anilist]\ntoken = \"file-anilist\"\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("ANNICT_TOKEN", "env-annict")
	t.Setenv("ANILIST_TOKEN", "env-anilist")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Annict.Token != "file-annict" {
		t.Errorf("expected file token to win, got %q", cfg.Annict.Token)
	}
	if cfg.AniList.Token != "file-anilist" {
		t.Errorf("expected file token to win, got %q", cfg.AniList.Token)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[annict]") {
		t.Fatalf("sample config missing annict section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if cfg.Sync.Direction != config.DirectionOneWay {
		t.Fatalf("expected sample to default to one-way, got %q", cfg.Sync.Direction)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	withTokens := func() config.Config {
		cfg := config.Default()
		cfg.Annict.Token = "a"
		cfg.AniList.Token = "b"
		return cfg
	}

	cfg := config.Default()
	cfg.AniList.Token = "b"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing annict token")
	}

	cfg = withTokens()
	cfg.Sync.Direction = "two-way"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown direction")
	}

	cfg = withTokens()
	cfg.Sync.MatchThreshold = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for out-of-range threshold")
	}

	cfg = withTokens()
	cfg.Sync.WorkerLimit = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero worker limit")
	}
}
