// Package textnorm provides text folding utilities for attribute values.
// This is part of the platform layer and contains no business logic.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics decomposes s and drops combining marks ("Concretó" -> "Concreto").
// If the transform fails, it returns the input unchanged.
func StripDiacritics(s string) string {
	// transform.Chain is stateful, build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// Fold trims, strips diacritics and uppercases s.
func Fold(s string) string {
	return strings.ToUpper(StripDiacritics(strings.TrimSpace(s)))
}

// EqualFold reports whether a and b are equal after folding.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Key returns the lowercase, accent-free form of a column or field name.
func Key(s string) string {
	return strings.ToLower(StripDiacritics(strings.TrimSpace(s)))
}
