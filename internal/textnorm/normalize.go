// Package textnorm derives canonical comparison keys from display text and
// selects the best-formatted variant among textual near-duplicates.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// builtinSubstitutions are applied in order after transliteration and
// lowercasing. The table is known to be incomplete; additional cases come
// from configuration rather than code changes.
var builtinSubstitutions = []struct{ from, to string }{
	{"&", " and "},
	{" andthe ", " and the "}, // catch one common typo
	{"w/", "with"},
}

// postStripSubstitutions run after punctuation removal.
var postStripSubstitutions = []struct{ from, to string }{
	{" feat ", " featuring "},
}

var punctStripper = strings.NewReplacer(".", "", ",", "", "'", "")

// Normalizer turns arbitrary display text into a canonical comparison key.
type Normalizer struct {
	extra []struct{ from, to string }
}

// NewNormalizer builds a Normalizer with optional extra substitutions that
// run after the built-in table.
func NewNormalizer(extra map[string]string) *Normalizer {
	n := &Normalizer{}
	for from, to := range extra {
		n.extra = append(n.extra, struct{ from, to string }{from, to})
	}
	return n
}

// Normalize derives the canonical key for text. It never fails: if the
// pipeline would produce an empty key, the original text is returned so
// that blank keys cannot collide with each other.
func (n *Normalizer) Normalize(text string) string {
	out := transliterate(text)
	out = strings.ToLower(out)
	for _, sub := range builtinSubstitutions {
		out = strings.ReplaceAll(out, sub.from, sub.to)
	}
	out = punctStripper.Replace(out)
	for _, sub := range postStripSubstitutions {
		out = strings.ReplaceAll(out, sub.from, sub.to)
	}
	for _, sub := range n.extra {
		out = strings.ReplaceAll(out, sub.from, sub.to)
	}
	out = squeezeSpaces(out)
	if out == "" {
		return text
	}
	return out
}

// transliterate strips diacritic marks, leaving an ASCII-compatible base
// form wherever the input decomposes to one.
func transliterate(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// squeezeSpaces collapses runs of whitespace into single spaces and trims.
func squeezeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
