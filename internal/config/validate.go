package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateAnnict(); err != nil {
		return err
	}
	if err := c.validateAniList(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAnnict() error {
	if c.Annict.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/anisync/config.toml"
		}
		return fmt.Errorf("annict.token is required. Set ANNICT_TOKEN env var or edit %s (create with 'anisync config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateAniList() error {
	if c.AniList.Token == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/anisync/config.toml"
		}
		return fmt.Errorf("anilist.token is required. Set ANILIST_TOKEN env var or edit %s (create with 'anisync config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateSync() error {
	switch c.Sync.Direction {
	case DirectionOneWay, DirectionBidirectional:
	default:
		return fmt.Errorf("sync.direction must be %q or %q", DirectionOneWay, DirectionBidirectional)
	}
	if c.Sync.MatchThreshold <= 0 || c.Sync.MatchThreshold > 1 {
		return errors.New("sync.match_threshold must be between 0 and 1")
	}
	if c.Sync.WorkerLimit < 1 {
		return errors.New("sync.worker_limit must be >= 1")
	}
	return nil
}
