package models

import (
	"fmt"
	"strings"
)

// Match is an accepted source→destination track mapping.
type Match struct {
	record
	sourceKey    string
	sourceTitle  string
	sourceArtist string
	destID       string
	destTitle    string
	destArtist   string
	score        float64
	query        string
}

// NewMatch builds a Match for the source track keyed by key and the chosen destination track.
func NewMatch(key string, source, dest Track, score float64, query string) *Match {
	return &Match{
		record:       newRecord(0),
		sourceKey:    key,
		sourceTitle:  source.Title,
		sourceArtist: source.Artist,
		destID:       dest.ID,
		destTitle:    dest.Title,
		destArtist:   dest.Artist,
		score:        score,
		query:        query,
	}
}

func (m *Match) SourceKey() string { return m.sourceKey }
func (m *Match) SourceTitle() string { return m.sourceTitle }
func (m *Match) SourceArtist() string { return m.sourceArtist }
func (m *Match) DestID() string { return m.destID }
func (m *Match) DestTitle() string { return m.destTitle }
func (m *Match) DestArtist() string { return m.destArtist }
func (m *Match) Score() float64 { return m.score }
func (m *Match) Query() string { return m.query }

// SetDest replaces the destination side, e.g. after a better match is found.
func (m *Match) SetDest(dest Track, score float64, query string) {
	m.destID, m.destTitle, m.destArtist = dest.ID, dest.Title, dest.Artist
	m.score, m.query = score, query
}

// Dest returns the destination track as a DTO.
func (m *Match) Dest() Track {
	return Track{ID: m.destID, Title: m.destTitle, Artist: m.destArtist}
}

func (m *Match) Validate() error {
	if strings.TrimSpace(m.sourceKey) == "" {
		return fmt.Errorf("source key is required")
	}
	if m.destID == "" {
		return fmt.Errorf("destination id is required")
	}
	if m.score < 0 || m.score > 1 {
		return fmt.Errorf("score %.3f out of range", m.score)
	}
	return nil
}
