package matcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Scoring weights and thresholds.
const (
	ArtistWeight = 0.6
	AlbumWeight  = 0.2
	TitleBonus   = 0.1

	CloseDurationBonus   = 0.2 // duration within CloseDuration
	NearDurationBonus    = 0.1 // duration within NearDuration
	MissingDurationBonus = 0.1 // either side lacks a duration

	CloseDuration = 5 * time.Second
	NearDuration  = 15 * time.Second

	AcceptThreshold         = 0.5
	HighConfidenceThreshold = 0.8

	DefaultSearchLimit = 10
	DefaultPause       = 100 * time.Millisecond
)

var (
	// ErrNoMatch reports that no candidate was accepted for a record.
	ErrNoMatch = errors.New("no match")
	// ErrLowConfidence reports that candidates were found but the best scored below [AcceptThreshold].
	ErrLowConfidence = fmt.Errorf("%w: best candidate below acceptance threshold", ErrNoMatch)
)

// SourceRecord is a track from the source catalog to be located in the destination.
type SourceRecord struct {
	Title      string
	Artist     string // full credit, possibly listing several collaborators
	Album      string
	DurationMS int // zero when unknown
}

// Primary returns the normalized primary artist of the record.
//
// Bracketed credits are dropped before splitting so a separator inside them cannot cut
// the name; "&" is still seen as a separator since Normalize has not run yet.
func (r SourceRecord) Primary() string {
	return Normalize(PrimaryArtist(stripBrackets(r.Artist)))
}

// Queries returns the search queries generated for the record.
func (r SourceRecord) Queries() []string {
	return Queries(Normalize(r.Title), Normalize(r.Artist), r.Primary())
}

// CandidateTrack is a destination search hit.
type CandidateTrack struct {
	ID              string
	Title           string
	Artist          string
	Album           string
	DurationSeconds int // zero when unknown
}

// Searcher looks up tracks in the destination catalog.
//
// Any returned error is treated as an empty result for that query.
type Searcher interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]CandidateTrack, error)
}

// SearcherFunc adapts a function to [Searcher].
type SearcherFunc func(ctx context.Context, query string, limit int) ([]CandidateTrack, error)

func (f SearcherFunc) SearchTracks(ctx context.Context, query string, limit int) ([]CandidateTrack, error) {
	return f(ctx, query, limit)
}

// Confidence grades an accepted match.
type Confidence int

const (
	ConfidenceReview Confidence = iota // accepted but worth a manual look
	ConfidenceHigh
)

func (c Confidence) String() string {
	if c == ConfidenceHigh {
		return "high"
	}
	return "review"
}

// MatchResult is the accepted candidate for a record.
type MatchResult struct {
	Candidate CandidateTrack
	Score     float64
	Query     string
}

// Confidence grades the result against [HighConfidenceThreshold].
func (r MatchResult) Confidence() Confidence {
	if r.Score >= HighConfidenceThreshold {
		return ConfidenceHigh
	}
	return ConfidenceReview
}

// Attempt describes one issued query, for diagnostics.
type Attempt struct {
	Query      string
	Candidates int
	BestScore  float64 // running best after this query
	Err        error
}

// Options configures a [Matcher]. Zero values select the defaults, except Pause
// where zero disables the pause.
type Options struct {
	SearchLimit int
	Pause       time.Duration
	Workers     int
	Logger      *log.Logger
	Sleep       func(time.Duration)
}

// DefaultOptions returns the options used by the CLI when no config overrides them.
func DefaultOptions() Options {
	return Options{SearchLimit: DefaultSearchLimit, Pause: DefaultPause, Workers: 1}
}

// Matcher finds destination tracks for source records.
type Matcher struct {
	searcher Searcher
	limit    int
	pause    time.Duration
	workers  int
	logger   *log.Logger
	sleep    func(time.Duration)
}

// New creates a Matcher that searches with s.
func New(s Searcher, opts Options) *Matcher {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = DefaultSearchLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}

	return &Matcher{
		searcher: s,
		limit:    opts.SearchLimit,
		pause:    opts.Pause,
		workers:  opts.Workers,
		logger:   opts.Logger,
		sleep:    opts.Sleep,
	}
}

// Match searches for rec and returns the best candidate scoring at least [AcceptThreshold].
//
// Queries run most specific first and stop once a candidate reaches
// [HighConfidenceThreshold]. Failed searches are logged and skipped. When nothing is
// accepted the error wraps [ErrNoMatch].
func (m *Matcher) Match(ctx context.Context, rec SourceRecord) (*MatchResult, error) {
	res, _, err := m.run(ctx, rec)
	return res, err
}

// Explain is [Matcher.Match] that also reports every query issued.
func (m *Matcher) Explain(ctx context.Context, rec SourceRecord) (*MatchResult, []Attempt, error) {
	return m.run(ctx, rec)
}

func (m *Matcher) run(ctx context.Context, rec SourceRecord) (*MatchResult, []Attempt, error) {
	title := Normalize(rec.Title)
	queries := Queries(title, Normalize(rec.Artist), rec.Primary())
	if len(queries) == 0 {
		return nil, nil, fmt.Errorf("%w: empty title", ErrNoMatch)
	}

	sourceTitle := fold(title)
	attempts := make([]Attempt, 0, len(queries))

	var best *MatchResult
	for i, query := range queries {
		if i > 0 && m.pause > 0 {
			m.sleep(m.pause)
		}

		attempt := Attempt{Query: query}
		candidates, err := m.searcher.SearchTracks(ctx, query, m.limit)
		if err != nil {
			m.logger.Warn("search failed", "query", query, "error", err)
			attempt.Err = err
		}
		attempt.Candidates = len(candidates)

		for _, c := range candidates {
			score := scoreCandidate(rec, sourceTitle, c)
			if best == nil || score > best.Score {
				best = &MatchResult{Candidate: c, Score: score, Query: query}
			}
		}

		if best != nil {
			attempt.BestScore = best.Score
		}
		attempts = append(attempts, attempt)
		m.logger.Debug("query scored", "query", query, "candidates", len(candidates), "best", attempt.BestScore)

		if best != nil && best.Score >= HighConfidenceThreshold {
			break
		}
	}

	switch {
	case best == nil:
		return nil, attempts, fmt.Errorf("%w: no candidates for %q", ErrNoMatch, rec.Title)
	case best.Score < AcceptThreshold:
		return nil, attempts, fmt.Errorf("%w (%.2f)", ErrLowConfidence, best.Score)
	}
	return best, attempts, nil
}

// Score computes the confidence that c is the destination copy of rec.
func Score(rec SourceRecord, c CandidateTrack) float64 {
	return scoreCandidate(rec, fold(Normalize(rec.Title)), c)
}

// scoreCandidate sums the artist, album, duration and title components, capped at 1.
// sourceTitle is the folded, normalized source title.
func scoreCandidate(rec SourceRecord, sourceTitle string, c CandidateTrack) float64 {
	score := ArtistSimilarity(rec.Artist, c.Artist) * ArtistWeight

	if rec.Album != "" && c.Album != "" {
		score += ArtistSimilarity(rec.Album, c.Album) * AlbumWeight
	}

	score += durationComponent(rec.DurationMS, c.DurationSeconds)

	if candidateTitle := fold(Normalize(c.Title)); candidateTitle != "" && sourceTitle != "" {
		if strings.Contains(candidateTitle, sourceTitle) || strings.Contains(sourceTitle, candidateTitle) {
			score += TitleBonus
		}
	}

	// Round away float drift so sums such as 0.6+0.1+0.1 compare equal to 0.8.
	return min(math.Round(score*1e6)/1e6, 1.0)
}

func durationComponent(sourceMS, candidateSeconds int) float64 {
	if sourceMS <= 0 || candidateSeconds <= 0 {
		return MissingDurationBonus
	}

	diff := time.Duration(sourceMS)*time.Millisecond - time.Duration(candidateSeconds)*time.Second
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff < CloseDuration:
		return CloseDurationBonus
	case diff < NearDuration:
		return NearDurationBonus
	default:
		return 0
	}
}
