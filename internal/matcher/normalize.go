package matcher

import (
	"strings"

	"golang.org/x/text/cases"
)

// stopWords are dropped from search text when they appear as whole words.
var stopWords = map[string]struct{}{
	"feat.":     {},
	"ft.":       {},
	"featuring": {},
	"with":      {},
	"vs.":       {},
	"vs":        {},
	"&":         {},
}

// artistSeparators are checked in priority order by [PrimaryArtist].
var artistSeparators = []string{",", ";", "&", " and ", " x "}

// fold returns the case-folded form of s used for all case-insensitive comparisons.
//
// A fresh Caser is created per call since a Caser must not be shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}

// Normalize prepares free text for catalog search.
//
// Parenthesized and bracketed segments are removed until none remain, stop-words are
// dropped case-insensitively, and whitespace is collapsed. Normalize is idempotent.
func Normalize(s string) string {
	s = stripBrackets(s)

	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, stop := stopWords[fold(w)]; stop {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// stripBrackets removes "(...)" and "[...]" segments, innermost first, until a fixed point.
// Unbalanced delimiters are left in place.
func stripBrackets(s string) string {
	for {
		next := removeInnermost(s, '(', ')')
		next = removeInnermost(next, '[', ']')
		if next == s {
			return s
		}
		s = next
	}
}

// removeInnermost deletes every open...close segment that contains neither delimiter.
func removeInnermost(s string, open, close byte) string {
	var b strings.Builder
	b.Grow(len(s))

	start := -1
	last := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case open:
			start = i
		case close:
			if start >= 0 {
				b.WriteString(s[last:start])
				b.WriteByte(' ')
				last = i + 1
				start = -1
			}
		}
	}
	b.WriteString(s[last:])
	return b.String()
}

// PrimaryArtist returns the first collaborator of an artist credit.
//
// Separators are tried in priority order (",", ";", "&", " and ", " x "); the first one
// present splits the credit. All separators match case-insensitively, so " X " and
// " AND " split like their lower-case forms.
func PrimaryArtist(artist string) string {
	for _, sep := range artistSeparators {
		if i := indexFold(artist, sep); i >= 0 {
			return strings.TrimSpace(artist[:i])
		}
	}
	return strings.TrimSpace(artist)
}

// indexFold is a case-insensitive strings.Index for an ASCII needle.
func indexFold(s, sep string) int {
	for i := 0; i+len(sep) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sep)], sep) {
			return i
		}
	}
	return -1
}
