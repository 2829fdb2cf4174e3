package matcher

import "strings"

// Similarity scores returned by [ArtistSimilarity], strongest rule first.
const (
	ExactSimilarity       = 1.0
	ContainmentSimilarity = 0.9
	PrimarySimilarity     = 0.85
	OverlapWeight         = 0.7
)

// ArtistSimilarity compares two artist (or album) names and returns a score in [0, 1].
//
// The first matching rule wins: case-insensitive equality, containment of one in the
// other, equal primary artists, then shared words over the larger word set scaled by
// [OverlapWeight]. Empty input scores 0.
func ArtistSimilarity(a, b string) float64 {
	a, b = fold(strings.TrimSpace(a)), fold(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}

	if a == b {
		return ExactSimilarity
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return ContainmentSimilarity
	}
	if pa := PrimaryArtist(a); pa != "" && pa == PrimaryArtist(b) {
		return PrimarySimilarity
	}
	return wordOverlap(a, b) * OverlapWeight
}

// wordOverlap is |A ∩ B| / max(|A|, |B|) over whitespace-separated word sets.
func wordOverlap(a, b string) float64 {
	setA, setB := wordSet(a), wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(setA), len(setB)))
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(s)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
