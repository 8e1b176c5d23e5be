// Package normalizer coerces raw cell values into the typed values the
// import targets expect: dates, amounts, transaction kinds and names.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks: "Descrição" -> "Descricao".
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeKey lower-cases s, removes accents and drops every rune that is
// not a letter or digit. "Valor de Aquisição" -> "valordeaquisicao".
func NormalizeKey(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return -1
	}, stripAccents(s))
}

// Fold lower-cases s and removes accents while keeping spacing and
// punctuation, for keyword matching.
func Fold(s string) string {
	return strings.ToLower(stripAccents(strings.TrimSpace(s)))
}

// CleanText trims s and collapses internal whitespace runs.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
