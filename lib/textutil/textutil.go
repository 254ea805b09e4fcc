// Package textutil normalizes scraped and user entered text for
// comparison. Czech names come with inconsistent diacritics and
// spacing depending on who typed them.
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

var diacriticsFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FoldDiacritics strips combining marks, "Novák" becomes "Novak". On a
// transform failure the input is returned unchanged.
func FoldDiacritics(s string) string {
	folded, _, err := transform.String(diacriticsFolder, s)
	if err != nil {
		return s
	}
	return folded
}

// NormalizeName lowercases, folds diacritics and drops all whitespace
// so that two renderings of the same person's name compare equal.
func NormalizeName(name string) string {
	name = strings.ToLower(FoldDiacritics(name))
	return whitespaceRegex.ReplaceAllString(name, "")
}
