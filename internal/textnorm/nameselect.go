package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

// smallWords stay lowercase in a title unless they open the string.
var smallWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "as": {}, "at": {}, "but": {}, "by": {},
	"for": {}, "if": {}, "in": {}, "nor": {}, "of": {}, "on": {}, "or": {},
	"so": {}, "the": {}, "to": {}, "up": {}, "yet": {},
}

var ampersandPattern = regexp.MustCompile(`\s*&\s*`)

// SelectBest returns the best-formatted member of candidates. The caller is
// responsible for having established that the candidates are duplicates
// under Normalize. The second return is false only for empty input. Ties
// resolve to the first maximal candidate in input order, so repeated calls
// with the same input return the same element.
func SelectBest(candidates []string) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	// Rewrite "&" to "and" so punctuation-heavy variants are not penalized
	// for the ampersand itself when compared against spelled-out ones.
	normalized := make([]string, len(candidates))
	for i, c := range candidates {
		normalized[i] = ampersandPattern.ReplaceAllString(c, " and ")
	}

	bestIdx := 0
	var bestScore [4]int
	for i, cand := range normalized {
		rewrite := Titleize(cand)
		score := [4]int{
			punctuationScore(cand),
			boolScore(!strings.Contains(cand, "  ")),
			boolScore(smallWordCasingCorrect(cand)),
			boolScore(cand == rewrite),
		}
		if i == 0 || greater(score, bestScore) {
			bestIdx = i
			bestScore = score
		}
	}
	return candidates[bestIdx], true
}

// Titleize lowercases s and capitalizes each word except small words, which
// stay lowercase unless they open the string.
func Titleize(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		if _, small := smallWords[w]; i == 0 || !small {
			words[i] = capitalize(w)
		}
	}
	return strings.Join(words, " ")
}

func capitalize(w string) string {
	r := []rune(w)
	if len(r) == 0 {
		return w
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

// punctuationScore counts punctuation and diacritic characters, excluding
// ampersands and whitespace. Transliteration is lossy, so a name carrying
// more of these is assumed closer to the original.
func punctuationScore(s string) int {
	count := 0
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '&', unicode.IsSpace(r):
		default:
			count++
		}
	}
	return count
}

// smallWordCasingCorrect reports whether every small word in s is
// lowercase, except when it opens the string.
func smallWordCasingCorrect(s string) bool {
	for i, w := range strings.Fields(s) {
		if i == 0 {
			continue
		}
		if _, small := smallWords[strings.ToLower(w)]; small && w != strings.ToLower(w) {
			return false
		}
	}
	return true
}

func boolScore(b bool) int {
	if b {
		return 1
	}
	return 0
}

func greater(a, b [4]int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
