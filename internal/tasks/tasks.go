package tasks

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tdx/internal/matcher"
	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/services"
	"github.com/desertthunder/tdx/internal/shared"
)

// DefaultBatchSize is the number of track ids sent per playlist insert.
const DefaultBatchSize = 50

// MatchCache stores accepted matches across imports.
//
// Lookup returns nil when the track has not been matched before.
type MatchCache interface {
	Lookup(source models.Track) (*models.Match, error)
	Store(source, dest models.Track, score float64, query string) error
}

// RunStore records import history.
type RunStore interface {
	Create(run *models.ImportRun) error
	Update(run *models.ImportRun) error
}

// Options configures an [Engine].
type Options struct {
	ExportsDir string
	BatchSize  int
	Workers    int // playlist fetch workers during export
	RateLimit  float64
	Matcher    matcher.Options
	Cache      MatchCache // optional
	Runs       RunStore   // optional
	Logger     *log.Logger
}

// Engine exports the Spotify library to CSV and imports CSV files into TIDAL.
//
// Either service may be nil when only the other direction is used.
type Engine struct {
	source     services.Source
	dest       services.Destination
	matcher    *matcher.Matcher
	cache      MatchCache
	runs       RunStore
	logger     *log.Logger
	exportsDir string
	batchSize  int
	workers    int
	rateLimit  float64
	now        func() time.Time
}

// NewEngine creates a new Engine with the provided services.
func NewEngine(source services.Source, dest services.Destination, opts Options) *Engine {
	if opts.ExportsDir == "" {
		opts.ExportsDir = "exports"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Matcher.Logger == nil {
		opts.Matcher.Logger = opts.Logger
	}

	e := &Engine{
		source:     source,
		dest:       dest,
		cache:      opts.Cache,
		runs:       opts.Runs,
		logger:     opts.Logger,
		exportsDir: opts.ExportsDir,
		batchSize:  opts.BatchSize,
		workers:    opts.Workers,
		rateLimit:  opts.RateLimit,
		now:        time.Now,
	}
	if dest != nil {
		e.matcher = matcher.New(DestinationSearcher(dest), opts.Matcher)
	}
	return e
}

// ExportsDir returns the directory exports are written to and imports are locked in.
func (e *Engine) ExportsDir() string { return e.exportsDir }

// Workers returns the configured playlist fetch pool size; zero means [DefaultFetchWorkers].
func (e *Engine) Workers() int { return e.workers }

// DestinationSearcher adapts a destination's track search to the matcher.
func DestinationSearcher(dest services.Destination) matcher.Searcher {
	return matcher.SearcherFunc(func(ctx context.Context, query string, limit int) ([]matcher.CandidateTrack, error) {
		tracks, err := dest.SearchTracks(ctx, query, limit)
		if err != nil {
			return nil, err
		}

		candidates := make([]matcher.CandidateTrack, 0, len(tracks))
		for _, t := range tracks {
			candidates = append(candidates, matcher.CandidateTrack{
				ID:              t.ID,
				Title:           t.Title,
				Artist:          t.Artist,
				Album:           t.Album,
				DurationSeconds: t.DurationMS / 1000,
			})
		}
		return candidates, nil
	})
}

// SourceRecord converts an exported track into matcher input.
func SourceRecord(t models.Track) matcher.SourceRecord {
	return matcher.SourceRecord{
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		DurationMS: t.DurationMS,
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// ConnectionStatus is the outcome of checking one service.
type ConnectionStatus struct {
	Service string
	User    *models.User
	Err     error
}

// OK reports whether the service answered as an authenticated user.
func (s ConnectionStatus) OK() bool { return s.Err == nil }

// CheckConnections asks each configured service for the current user.
func (e *Engine) CheckConnections(ctx context.Context, progress chan<- ProgressUpdate) []ConnectionStatus {
	var checks []services.Service
	if e.source != nil {
		checks = append(checks, e.source)
	}
	if e.dest != nil {
		checks = append(checks, e.dest)
	}

	statuses := make([]ConnectionStatus, 0, len(checks))
	for i, svc := range checks {
		e.sendProgress(progress, checkConnectionUpdate(i+1, len(checks), svc.Name()))

		user, err := svc.CurrentUser(ctx)
		if err != nil {
			e.logger.Warn("connection check failed", "service", svc.Name(), "error", err)
		}
		statuses = append(statuses, ConnectionStatus{Service: svc.Name(), User: user, Err: err})
	}
	return statuses
}

// Explain matches a single track and reports every query issued.
func (e *Engine) Explain(ctx context.Context, track models.Track) (*matcher.MatchResult, []matcher.Attempt, error) {
	if e.matcher == nil {
		return nil, nil, fmt.Errorf("%w: TIDAL service not initialized", shared.ErrServiceUnavailable)
	}
	return e.matcher.Explain(ctx, SourceRecord(track))
}
