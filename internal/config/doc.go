// Package config loads, normalizes, and validates anisync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// ANNICT_TOKEN and ANILIST_TOKEN. The Config type centralizes every knob the
// CLI needs: service credentials, matcher tuning, cache and history locations,
// and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical enum values, and clear validation errors.
package config
