package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArtistSimilarity(t *testing.T) {
	tt := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "exact", a: "Queen", b: "Queen", want: 1.0},
		{name: "exact ignoring case", a: "Queen", b: "QUEEN", want: 1.0},
		{name: "containment", a: "Queen", b: "Queen + Adam Lambert", want: 0.9},
		{name: "containment reversed", a: "The Beatles Remastered", b: "the beatles", want: 0.9},
		{name: "primary artist", a: "Paul McCartney & Wings", b: "Paul McCartney, Linda McCartney", want: 0.85},
		{name: "word overlap", a: "The Rolling Stones", b: "Rolling Thunder Stones Band", want: 2.0 / 4.0 * 0.7},
		{name: "no overlap", a: "Metallica", b: "Slayer", want: 0},
		{name: "empty left", a: "", b: "Queen", want: 0},
		{name: "empty right", a: "Queen", b: "", want: 0},
		{name: "whitespace only", a: "  ", b: "  ", want: 0},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ArtistSimilarity(tc.a, tc.b), 1e-9)
			assert.InDelta(t, tc.want, ArtistSimilarity(tc.b, tc.a), 1e-9, "similarity should be symmetric")
		})
	}
}

func TestArtistSimilarityProperties(t *testing.T) {
	names := []string{"Queen", "Simon & Garfunkel", "AC/DC", "Beyoncé", "The Notorious B.I.G.", "a"}

	t.Run("exact match", func(t *testing.T) {
		for _, a := range names {
			assert.Equal(t, 1.0, ArtistSimilarity(a, a), a)
		}
	})

	t.Run("containment", func(t *testing.T) {
		for _, a := range names {
			assert.Equal(t, 0.9, ArtistSimilarity(a, a+" extra"), a)
		}
	})
}
