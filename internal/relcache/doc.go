// Package relcache persists resolved cross-catalog identity pairs.
//
// Once the matcher has decided that Annict work X and AniList media Y are the
// same title, that decision is appended here so later runs resolve X with a
// single lookup instead of repeating fuzzy scoring and metadata checks.
//
// # Storage
//
// The cache is a JSON array in a single file (default:
// ~/.local/share/anisync/relations.json), human-readable and safe to edit by
// hand. The file is append-only in spirit: every write rewrites the full
// array but never reorders or drops existing rows. Duplicate or conflicting
// rows for the same id are tolerated; lookups return the oldest row, so the
// first recorded decision stays authoritative until a row is removed
// explicitly.
//
// CLI commands for inspection and management:
//
//	anisync relations list              # List all cached relations
//	anisync relations remove <number>   # Remove relation by number from list
//	anisync relations clear             # Remove all relations
package relcache
