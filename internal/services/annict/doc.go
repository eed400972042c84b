// Package annict talks to the Annict REST API: bulk library listing per
// watch status, single-work lookup for the catalog fallback path, and
// status writes for the apply step.
//
// Annict tracks no per-episode progress and no scores through this API, so
// watch entries report the episode total as progress for finished titles
// and zero otherwise, with scores always unset.
package annict
