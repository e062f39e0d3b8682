package search

import (
	"strings"
	"unicode"

	"github.com/poiesic/minutes/core"
)

// Snippet window, in characters.
const (
	SnippetLead   = 60
	SnippetLength = 300
	SnippetSuffix = "..."
)

// MinQueryLength is the shortest accepted query after trimming.
const MinQueryLength = 2

// andSeparator is matched against the lower-cased query.
const andSeparator = " and "

// Decompose splits query into lower-cased subqueries on " and " and on
// commas. Separators are literal; there is no operator precedence or
// negation. A query with no usable fragment yields the whole trimmed query.
func Decompose(query string) []core.Subquery {
	lowered := lower(query)

	var out []core.Subquery
	for _, part := range strings.Split(lowered, andSeparator) {
		for _, fragment := range strings.Split(part, ",") {
			fragment = strings.TrimSpace(fragment)
			if fragment != "" {
				out = append(out, core.Subquery(fragment))
			}
		}
	}
	if len(out) == 0 {
		if whole := strings.TrimSpace(lowered); whole != "" {
			out = append(out, core.Subquery(whole))
		}
	}
	return out
}

// lower maps every rune to lower case one for one, so rune offsets in the
// result line up with rune offsets in s.
func lower(s string) string {
	return strings.Map(unicode.ToLower, s)
}

// extractSnippet returns the display window around the first
// case-insensitive occurrence of subquery in text. ok is false when text
// does not contain subquery.
//
// The window starts SnippetLead characters before the match and runs for at
// most SnippetLength characters, so a very long match may be cut. Newlines
// become spaces and SnippetSuffix is appended.
func extractSnippet(text string, subquery core.Subquery) (snippet string, ok bool) {
	runes := []rune(strings.TrimSpace(text))
	needle := []rune(string(subquery))
	pos := indexRunes(lowerRunes(runes), needle)
	if pos < 0 {
		return "", false
	}

	start := max(0, pos-SnippetLead)
	end := min(start+SnippetLength, len(runes))

	window := strings.ReplaceAll(string(runes[start:end]), "\n", " ")
	return window + SnippetSuffix, true
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

// indexRunes returns the rune offset of the first occurrence of needle in
// haystack, or -1.
func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
