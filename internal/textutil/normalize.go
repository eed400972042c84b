package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// Normalize folds a title into its comparison form: half-width, lowercase,
// symbol words unified, punctuation collapsed to single spaces.
func Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	folded := width.Fold.String(input)
	folded = strings.ToLower(folded)
	folded = strings.ReplaceAll(folded, "&", " and ")
	folded = strings.ReplaceAll(folded, "+", " and ")

	var builder strings.Builder
	builder.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			if pendingSpace && builder.Len() > 0 {
				builder.WriteByte(' ')
			}
			pendingSpace = false
			builder.WriteRune(r)
		default:
			pendingSpace = true
		}
	}
	return builder.String()
}
