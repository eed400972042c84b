// Package textutil provides title normalization and similarity scoring for
// cross-catalog matching.
//
// Titles arriving from the two catalogs differ in width (full-width vs ASCII
// romanizations), casing, and punctuation. Normalize folds those differences
// away; Profile builds a rune-bigram frequency vector over the normalized
// form; Similarity compares two profiles by cosine. Bigrams rather than word
// tokens keep short Japanese titles comparable, where word splitting is
// unreliable.
package textutil
