package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeAnnict()
	c.normalizeAniList()
	c.normalizeSync()
	if err := c.normalizeStores(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeAnnict() {
	c.Annict.Token = strings.TrimSpace(c.Annict.Token)
	if c.Annict.Token == "" {
		if value, ok := os.LookupEnv("ANNICT_TOKEN"); ok {
			c.Annict.Token = strings.TrimSpace(value)
		}
	}
	c.Annict.BaseURL = strings.TrimRight(strings.TrimSpace(c.Annict.BaseURL), "/")
	if c.Annict.BaseURL == "" {
		c.Annict.BaseURL = defaultAnnictBaseURL
	}
	if c.Annict.PerPage <= 0 {
		c.Annict.PerPage = defaultPerPage
	}
	if c.Annict.RequestTimeout <= 0 {
		c.Annict.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeAniList() {
	c.AniList.Token = strings.TrimSpace(c.AniList.Token)
	if c.AniList.Token == "" {
		if value, ok := os.LookupEnv("ANILIST_TOKEN"); ok {
			c.AniList.Token = strings.TrimSpace(value)
		}
	}
	c.AniList.BaseURL = strings.TrimRight(strings.TrimSpace(c.AniList.BaseURL), "/")
	if c.AniList.BaseURL == "" {
		c.AniList.BaseURL = defaultAniListBaseURL
	}
	c.AniList.UserName = strings.TrimSpace(c.AniList.UserName)
	if c.AniList.RequestTimeout <= 0 {
		c.AniList.RequestTimeout = defaultRequestTimeout
	}
}

func (c *Config) normalizeSync() {
	c.Sync.Direction = strings.ToLower(strings.TrimSpace(c.Sync.Direction))
	if c.Sync.Direction == "" {
		c.Sync.Direction = DirectionOneWay
	}
	if c.Sync.MatchThreshold == 0 {
		c.Sync.MatchThreshold = defaultMatchThreshold
	}
	if c.Sync.WorkerLimit <= 0 {
		c.Sync.WorkerLimit = defaultWorkerLimit
	}
}

func (c *Config) normalizeStores() error {
	var err error
	if strings.TrimSpace(c.RelationCache.Path) == "" {
		c.RelationCache.Path = filepath.Join(c.Paths.DataDir, defaultRelationCacheFile)
	}
	if c.RelationCache.Path, err = expandPath(c.RelationCache.Path); err != nil {
		return fmt.Errorf("relation_cache.path: %w", err)
	}
	if strings.TrimSpace(c.History.Path) == "" {
		c.History.Path = filepath.Join(c.Paths.DataDir, defaultHistoryFile)
	}
	if c.History.Path, err = expandPath(c.History.Path); err != nil {
		return fmt.Errorf("history.path: %w", err)
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.File = strings.TrimSpace(c.Logging.File)
}
