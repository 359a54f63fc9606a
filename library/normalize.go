// Package library implements the prompt library core: the record store,
// the query engine, pagination and the view-state controller that ties them
// to persisted configuration.
package library

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer maps text to the form used for search and tag comparison.
type Normalizer func(string) string

// combiningDiacritics is the Combining Diacritical Marks block, U+0300..U+036F.
var combiningDiacritics = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x0300, Hi: 0x036f, Stride: 1}},
}

// Normalize lower-cases s, decomposes it and drops combining diacritical
// marks, so "AÇÃO" and "acao" compare equal.
func Normalize(s string) string {
	lower := strings.ToLower(s)
	// transform chains keep state, so one is built per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningDiacritics)))
	out, _, err := transform.String(t, lower)
	if err != nil {
		return lower
	}
	return out
}
