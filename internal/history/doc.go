// Package history records finished reconciliation runs in a local SQLite
// database so the CLI can show what past syncs did. Recording is best
// effort: a disabled store degrades to a noop and never blocks a run.
package history
