package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/matcher"
	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/services"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
)

const (
	// LockFile is created in the exports directory while an import runs.
	LockFile = ".tdx.lock"
	// PrefixFailures names the failed-items report.
	PrefixFailures = "tidal_import_failed"
)

// Playlist labels used in the failures report for rows that were not playlist members.
const (
	FavoritesLabel = "Favorites"
	ArtistsLabel   = "Artists"
	AlbumsLabel    = "Albums"
)

// ImportOptions tunes a single import.
type ImportOptions struct {
	DryRun   bool // match only; nothing is written to TIDAL
	UseCache bool // consult and fill the match cache
}

// PlaylistOutcome describes the destination playlist used for one playlist group.
type PlaylistOutcome struct {
	Name    string
	ID      string
	Created bool
	Rows    int
	Added   int
	Err     error
}

// ImportResult summarizes an import.
type ImportResult struct {
	File             string
	Kind             formatter.Kind
	DryRun           bool
	Total            int
	Imported         int
	Failed           int
	HighConfidence   int
	ReviewConfidence int
	CacheHits        int
	Favorited        int
	Playlists        []PlaylistOutcome
	Failures         []models.Failure
	FailuresFile     string
}

// SuccessRate is imported / (imported + failed) as a percentage.
func (r *ImportResult) SuccessRate() float64 {
	if r.Imported+r.Failed == 0 {
		return 0
	}
	return float64(r.Imported) / float64(r.Imported+r.Failed) * 100
}

// PlaylistsCreated counts playlists created (or, in a dry run, that would be created).
func (r *ImportResult) PlaylistsCreated() int {
	n := 0
	for _, p := range r.Playlists {
		if p.Err == nil && p.Created {
			n++
		}
	}
	return n
}

// PlaylistsReused counts existing playlists that received tracks.
func (r *ImportResult) PlaylistsReused() int {
	n := 0
	for _, p := range r.Playlists {
		if p.Err == nil && !p.Created {
			n++
		}
	}
	return n
}

// Summary returns label/value pairs for display.
func (r *ImportResult) Summary() [][2]string {
	pairs := [][2]string{
		{"File", filepath.Base(r.File)},
		{"Kind", r.Kind.String()},
		{"Imported", humanize.Comma(int64(r.Imported))},
		{"Failed", humanize.Comma(int64(r.Failed))},
		{"Success rate", fmt.Sprintf("%.1f%%", r.SuccessRate())},
	}
	if r.Kind == formatter.KindTracks {
		pairs = append(pairs,
			[2]string{"High confidence", humanize.Comma(int64(r.HighConfidence))},
			[2]string{"Needs review", humanize.Comma(int64(r.ReviewConfidence))},
			[2]string{"Cache hits", humanize.Comma(int64(r.CacheHits))},
			[2]string{"Playlists created", humanize.Comma(int64(r.PlaylistsCreated()))},
			[2]string{"Playlists reused", humanize.Comma(int64(r.PlaylistsReused()))},
		)
	}
	pairs = append(pairs, [2]string{"Favorited", humanize.Comma(int64(r.Favorited))})
	if r.FailuresFile != "" {
		pairs = append(pairs, [2]string{"Failures file", r.FailuresFile})
	}
	if r.DryRun {
		pairs = append(pairs, [2]string{"Mode", "dry run"})
	}
	return pairs
}

func (r *ImportResult) fail(track, artist, playlist, reason string) {
	r.Failed++
	r.Failures = append(r.Failures, models.Failure{Track: track, Artist: artist, Playlist: playlist, Reason: reason})
}

func (r *ImportResult) imported(score float64, scored bool) {
	r.Imported++
	if !scored {
		return
	}
	if score >= matcher.HighConfidenceThreshold {
		r.HighConfidence++
	} else {
		r.ReviewConfidence++
	}
}

// failureReason describes why a track was not imported.
func failureReason(err error) string {
	switch {
	case errors.Is(err, matcher.ErrLowConfidence):
		return "low confidence match"
	case errors.Is(err, matcher.ErrNoMatch),
		errors.Is(err, shared.ErrArtistNotFound),
		errors.Is(err, shared.ErrAlbumNotFound):
		return "not found on TIDAL"
	default:
		return err.Error()
	}
}

// Import reads one CSV export and recreates it in TIDAL.
//
// Tracks are grouped into playlists or favorited, artists and albums are favorited.
// Items that cannot be imported are written to a failures CSV next to the exports.
// Only one import may run per exports directory at a time.
func (e *Engine) Import(ctx context.Context, progress chan<- ProgressUpdate, path string, opts ImportOptions) (*ImportResult, error) {
	if e.dest == nil {
		return nil, fmt.Errorf("%w: TIDAL service not initialized", shared.ErrServiceUnavailable)
	}

	kind, err := formatter.SniffFile(path)
	if err != nil {
		return nil, err
	}
	if !kind.Importable() {
		return nil, fmt.Errorf("%w: %s files cannot be imported", shared.ErrUnknownFileKind, kind)
	}

	unlock, err := e.lock()
	if err != nil {
		return nil, err
	}
	defer unlock()

	run := e.startRun(path, kind, opts.DryRun)
	result := &ImportResult{File: path, Kind: kind, DryRun: opts.DryRun}

	switch kind {
	case formatter.KindTracks:
		err = e.importTracks(ctx, progress, result, opts)
	case formatter.KindArtists:
		err = e.importArtists(ctx, progress, result, opts)
	case formatter.KindAlbums:
		err = e.importAlbums(ctx, progress, result, opts)
	}

	if len(result.Failures) > 0 {
		if reportErr := e.writeFailures(progress, result); reportErr != nil {
			err = errors.Join(err, reportErr)
		}
	}

	e.finishRun(run, result, err)
	e.logger.Info("import finished",
		"file", path, "imported", result.Imported, "failed", result.Failed, "dry_run", opts.DryRun)
	return result, err
}

// lock takes the exports directory lock, failing fast when another import holds it.
func (e *Engine) lock() (func(), error) {
	if err := os.MkdirAll(e.exportsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create exports directory: %w", err)
	}

	fl := flock.New(filepath.Join(e.exportsDir, LockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire import lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held on %s)", shared.ErrImportInProgress, fl.Path())
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			e.logger.Warn("failed to release import lock", "error", err)
		}
	}, nil
}

func (e *Engine) startRun(path string, kind formatter.Kind, dryRun bool) *models.ImportRun {
	if e.runs == nil || dryRun {
		return nil
	}

	run := models.NewImportRun(path, kind.String())
	run.Start()
	if err := e.runs.Create(run); err != nil {
		e.logger.Warn("failed to record import run", "error", err)
		return nil
	}
	return run
}

func (e *Engine) finishRun(run *models.ImportRun, result *ImportResult, err error) {
	if run == nil {
		return
	}

	run.SetCounts(result.Total, result.Imported, result.Failed)
	run.SetFailuresFile(result.FailuresFile)
	run.Finish(err)
	if err := e.runs.Update(run); err != nil {
		e.logger.Warn("failed to update import run", "id", run.ID(), "error", err)
	}
}

func (e *Engine) writeFailures(progress chan<- ProgressUpdate, result *ImportResult) error {
	name := formatter.TimestampedName(PrefixFailures, e.now())
	path, err := formatter.CreateFile(e.exportsDir, name, func(w io.Writer) error {
		return formatter.WriteFailures(w, result.Failures)
	})
	if err != nil {
		return fmt.Errorf("failed to write failures report: %w", err)
	}

	result.FailuresFile = path
	e.sendProgress(progress, reportUpdate(path, len(result.Failures)))
	return nil
}

// playlistGroup is the rows of one source playlist, in file order.
type playlistGroup struct {
	name     string
	rows     []int
	playlist *models.Playlist
	outcome  int // index into ImportResult.Playlists
}

// groupByPlaylist splits rows into playlist groups (first-appearance order) and
// favorites (rows without a playlist or labeled "Liked Songs").
func groupByPlaylist(tracks []models.Track) ([]*playlistGroup, []int) {
	var (
		groups    []*playlistGroup
		favorites []int
	)
	byName := make(map[string]*playlistGroup)

	for i, t := range tracks {
		name := strings.TrimSpace(t.Playlist)
		if name == "" || strings.EqualFold(name, models.LikedSongs) {
			favorites = append(favorites, i)
			continue
		}

		g, ok := byName[name]
		if !ok {
			g = &playlistGroup{name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, i)
	}
	return groups, favorites
}

// rowMatch is the match decision for one CSV row.
type rowMatch struct {
	destID string
	score  float64
	err    error
}

func (e *Engine) importTracks(ctx context.Context, progress chan<- ProgressUpdate, result *ImportResult, opts ImportOptions) error {
	tracks, err := formatter.ReadFile(result.File, formatter.ReadTracks)
	if err != nil {
		return err
	}
	result.Total = len(tracks)
	e.sendProgress(progress, readImportUpdate(result.File, "tracks", len(tracks)))

	groups, favorites := groupByPlaylist(tracks)
	e.resolvePlaylists(ctx, progress, groups, result, opts.DryRun)

	rows := slices.Clone(favorites)
	for _, g := range groups {
		if g.playlist == nil {
			reason := fmt.Sprintf("playlist unavailable: %v", result.Playlists[g.outcome].Err)
			for _, i := range g.rows {
				result.fail(tracks[i].Title, tracks[i].Artist, g.name, reason)
			}
			continue
		}
		rows = append(rows, g.rows...)
	}
	slices.Sort(rows)

	matches := e.matchRows(ctx, progress, tracks, rows, result, opts)

	for _, g := range groups {
		if g.playlist != nil {
			e.addToPlaylist(ctx, progress, g, tracks, matches, result, opts.DryRun)
		}
	}
	e.favoriteTracks(ctx, progress, favorites, tracks, matches, result, opts.DryRun)

	return ctx.Err()
}

// resolvePlaylists finds each group's destination playlist by exact name, creating the
// missing ones. In a dry run nothing is created.
func (e *Engine) resolvePlaylists(ctx context.Context, progress chan<- ProgressUpdate, groups []*playlistGroup, result *ImportResult, dryRun bool) {
	if len(groups) == 0 {
		return
	}

	existing, listErr := e.dest.Playlists(ctx)
	if listErr != nil {
		listErr = fmt.Errorf("failed to list TIDAL playlists: %w", listErr)
		e.logger.Error("playlist lookup failed", "error", listErr)
	}

	for step, g := range groups {
		g.outcome = len(result.Playlists)
		outcome := PlaylistOutcome{Name: g.name, Rows: len(g.rows)}

		switch idx := slices.IndexFunc(existing, func(p models.Playlist) bool { return p.Name == g.name }); {
		case listErr != nil:
			outcome.Err = listErr
		case idx >= 0:
			g.playlist = &existing[idx]
		case dryRun:
			g.playlist = &models.Playlist{Name: g.name}
			outcome.Created = true
		default:
			pl, err := e.dest.CreatePlaylist(ctx, g.name, services.DefaultPlaylistDescription)
			if err != nil {
				outcome.Err = fmt.Errorf("failed to create playlist: %w", err)
				e.logger.Error("playlist creation failed", "playlist", g.name, "error", err)
				break
			}
			g.playlist = pl
			outcome.Created = true
		}

		if g.playlist != nil {
			outcome.ID = g.playlist.ID
			e.sendProgress(progress, playlistResolvedUpdate(step+1, len(groups), g.playlist, outcome.Created))
		}
		result.Playlists = append(result.Playlists, outcome)
	}
}

// matchRows resolves the given rows through the cache and the matcher pool.
func (e *Engine) matchRows(ctx context.Context, progress chan<- ProgressUpdate, tracks []models.Track, rows []int, result *ImportResult, opts ImportOptions) []rowMatch {
	matches := make([]rowMatch, len(tracks))
	useCache := opts.UseCache && e.cache != nil

	pending := make([]int, 0, len(rows))
	for _, i := range rows {
		if useCache {
			cached, err := e.cache.Lookup(tracks[i])
			if err != nil {
				e.logger.Warn("match cache lookup failed", "track", tracks[i].Title, "error", err)
			} else if cached != nil {
				matches[i] = rowMatch{destID: cached.DestID(), score: cached.Score()}
				result.CacheHits++
				continue
			}
		}
		pending = append(pending, i)
	}

	records := make([]matcher.SourceRecord, len(pending))
	for k, i := range pending {
		records[k] = SourceRecord(tracks[i])
	}

	outcomes := e.matcher.MatchAll(ctx, records, func(done, total int) {
		e.sendProgress(progress, matchProgressUpdate(done, total))
	})

	for k, o := range outcomes {
		i := pending[k]
		if !o.Accepted() {
			matches[i] = rowMatch{err: o.Err}
			e.logger.Debug("no match", "track", tracks[i].Title, "artist", tracks[i].Artist, "error", o.Err)
			continue
		}

		c := o.Result.Candidate
		matches[i] = rowMatch{destID: c.ID, score: o.Result.Score}
		e.logger.Debug("matched", "track", tracks[i].Title, "tidal_id", c.ID,
			"score", o.Result.Score, "confidence", o.Result.Confidence())

		if useCache {
			dest := models.Track{ID: c.ID, Title: c.Title, Artist: c.Artist, Album: c.Album}
			if err := e.cache.Store(tracks[i], dest, o.Result.Score, o.Result.Query); err != nil {
				e.logger.Warn("match cache store failed", "track", tracks[i].Title, "error", err)
			}
		}
	}
	return matches
}

// addToPlaylist inserts a group's accepted tracks in batches. A failed batch turns its
// rows into failures.
func (e *Engine) addToPlaylist(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	g *playlistGroup,
	tracks []models.Track,
	matches []rowMatch,
	result *ImportResult,
	dryRun bool,
) {
	outcome := &result.Playlists[g.outcome]

	accepted := make([]int, 0, len(g.rows))
	for _, i := range g.rows {
		if err := matches[i].err; err != nil {
			result.fail(tracks[i].Title, tracks[i].Artist, g.name, failureReason(err))
			continue
		}
		accepted = append(accepted, i)
	}

	batches := (len(accepted) + e.batchSize - 1) / e.batchSize
	step := 0
	for chunk := range slices.Chunk(accepted, e.batchSize) {
		step++

		ids := make([]string, len(chunk))
		for k, i := range chunk {
			ids[k] = matches[i].destID
		}

		if !dryRun {
			if err := e.dest.AddTracks(ctx, g.playlist.ID, ids); err != nil {
				e.logger.Error("batch insert failed", "playlist", g.name, "size", len(ids), "error", err)
				reason := fmt.Sprintf("failed to add to playlist: %v", err)
				for _, i := range chunk {
					result.fail(tracks[i].Title, tracks[i].Artist, g.name, reason)
				}
				continue
			}
		}

		for _, i := range chunk {
			result.imported(matches[i].score, true)
		}
		outcome.Added += len(chunk)
		e.sendProgress(progress, addBatchUpdate(step, batches, g.name, len(chunk)))
	}
}

func (e *Engine) favoriteTracks(
	ctx context.Context,
	progress chan<- ProgressUpdate,
	rows []int,
	tracks []models.Track,
	matches []rowMatch,
	result *ImportResult,
	dryRun bool,
) {
	for step, i := range rows {
		t := tracks[i]
		if err := matches[i].err; err != nil {
			result.fail(t.Title, t.Artist, FavoritesLabel, failureReason(err))
			continue
		}

		e.sendProgress(progress, favoriteUpdate(step+1, len(rows), t.Title))
		if !dryRun {
			if err := e.dest.FavoriteTrack(ctx, matches[i].destID); err != nil {
				result.fail(t.Title, t.Artist, FavoritesLabel, fmt.Sprintf("failed to favorite: %v", err))
				continue
			}
		}
		result.imported(matches[i].score, true)
		result.Favorited++
	}
}

func (e *Engine) importArtists(ctx context.Context, progress chan<- ProgressUpdate, result *ImportResult, opts ImportOptions) error {
	artists, err := formatter.ReadFile(result.File, formatter.ReadArtists)
	if err != nil {
		return err
	}
	result.Total = len(artists)
	e.sendProgress(progress, readImportUpdate(result.File, "artists", len(artists)))

	for step, a := range artists {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.sendProgress(progress, favoriteUpdate(step+1, len(artists), a.Name))

		if a.Name == "" {
			result.fail("", a.Name, ArtistsLabel, "missing artist name")
			continue
		}

		hits, err := e.dest.SearchArtists(ctx, a.Name, 1)
		if err != nil {
			result.fail("", a.Name, ArtistsLabel, fmt.Sprintf("search failed: %v", err))
			continue
		}
		if len(hits) == 0 {
			err := fmt.Errorf("%w: %q", shared.ErrArtistNotFound, a.Name)
			e.logger.Debug("artist not found", "error", err)
			result.fail("", a.Name, ArtistsLabel, failureReason(err))
			continue
		}

		if !opts.DryRun {
			if err := e.dest.FavoriteArtist(ctx, hits[0].ID); err != nil {
				result.fail("", a.Name, ArtistsLabel, fmt.Sprintf("failed to favorite: %v", err))
				continue
			}
		}
		e.logger.Debug("favorited artist", "artist", a.Name, "tidal_id", hits[0].ID)
		result.imported(0, false)
		result.Favorited++
	}
	return nil
}

func (e *Engine) importAlbums(ctx context.Context, progress chan<- ProgressUpdate, result *ImportResult, opts ImportOptions) error {
	albums, err := formatter.ReadFile(result.File, formatter.ReadAlbums)
	if err != nil {
		return err
	}
	result.Total = len(albums)
	e.sendProgress(progress, readImportUpdate(result.File, "albums", len(albums)))

	for step, a := range albums {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.sendProgress(progress, favoriteUpdate(step+1, len(albums), a.Name))

		query := strings.TrimSpace(a.Name + " " + a.Artist)
		if a.Name == "" {
			result.fail(a.Name, a.Artist, AlbumsLabel, "missing album name")
			continue
		}

		hits, err := e.dest.SearchAlbums(ctx, query, 1)
		if err != nil {
			result.fail(a.Name, a.Artist, AlbumsLabel, fmt.Sprintf("search failed: %v", err))
			continue
		}
		if len(hits) == 0 {
			err := fmt.Errorf("%w: %q", shared.ErrAlbumNotFound, query)
			e.logger.Debug("album not found", "error", err)
			result.fail(a.Name, a.Artist, AlbumsLabel, failureReason(err))
			continue
		}

		if !opts.DryRun {
			if err := e.dest.FavoriteAlbum(ctx, hits[0].ID); err != nil {
				result.fail(a.Name, a.Artist, AlbumsLabel, fmt.Sprintf("failed to favorite: %v", err))
				continue
			}
		}
		e.logger.Debug("favorited album", "album", a.Name, "tidal_id", hits[0].ID)
		result.imported(0, false)
		result.Favorited++
	}
	return nil
}
