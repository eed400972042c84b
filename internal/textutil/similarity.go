package textutil

import "math"

// Profile represents a rune-bigram frequency vector over a normalized title.
type Profile struct {
	text    string
	bigrams map[string]float64
	norm    float64
}

// NewProfile creates a profile from the provided raw title.
// Returns nil if normalization leaves nothing to compare.
func NewProfile(text string) *Profile {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	runes := []rune(normalized)
	counts := make(map[string]float64, len(runes))
	if len(runes) == 1 {
		counts[string(runes)] = 1
	}
	for i := 0; i+1 < len(runes); i++ {
		counts[string(runes[i:i+2])]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &Profile{
		text:    normalized,
		bigrams: counts,
		norm:    math.Sqrt(norm),
	}
}

// Text returns the normalized form the profile was built from.
func (p *Profile) Text() string {
	if p == nil {
		return ""
	}
	return p.text
}

// Similarity computes the cosine similarity between two profiles in [0, 1].
// Identical normalized titles score exactly 1. Returns 0 if either profile is
// nil or empty.
func Similarity(a, b *Profile) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	if a.text == b.text {
		return 1
	}
	var dot float64
	for bigram, count := range a.bigrams {
		if other, ok := b.bigrams[bigram]; ok {
			dot += count * other
		}
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}
