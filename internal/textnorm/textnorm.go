// Package textnorm folds the typographic differences Heylo introduces between
// its two locales so that labels and titles compare as plain substrings.
package textnorm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var replacer = strings.NewReplacer(
	"\u2019", "'", // right single quotation mark
	"\u2018", "'",
	"\u02bc", "'",
	"\u00a0", " ", // no-break space, used before French punctuation
	"\u202f", " ",
)

// Normalize returns s in NFC with curly apostrophes and non-breaking spaces
// replaced by their ASCII forms and runs of whitespace collapsed.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = replacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Contains reports whether substr occurs in s after both are normalized.
func Contains(s, substr string) bool {
	return strings.Contains(Normalize(s), Normalize(substr))
}

// ContainsAny reports whether s contains at least one of tokens.
func ContainsAny(s string, tokens []string) bool {
	ns := Normalize(s)
	for _, tok := range tokens {
		if strings.Contains(ns, Normalize(tok)) {
			return true
		}
	}
	return false
}

// Variants expands a label into the spellings it may be rendered with.
// The first element is always the normalized label itself.
func Variants(label string) []string {
	base := Normalize(label)
	out := []string{base}
	if strings.Contains(base, "'") {
		out = append(out, strings.ReplaceAll(base, "'", "\u2019"))
	}
	return out
}
