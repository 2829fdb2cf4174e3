package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
)

// Export file name prefixes.
const (
	PrefixTracks         = "spotify_tracks"
	PrefixPlaylistTracks = "spotify_playlists_tracks"
	PrefixPlaylistInfo   = "spotify_playlists_info"
	PrefixComplete       = "spotify_export_complete"
	PrefixAlbums         = "spotify_albums"
	PrefixArtists        = "spotify_artists"
)

// ExportKind selects what [Engine.Export] fetches.
type ExportKind int

const (
	ExportTracks ExportKind = iota
	ExportPlaylists
	ExportAlbums
	ExportArtists
	ExportAll
)

func (k ExportKind) String() string {
	switch k {
	case ExportTracks:
		return "tracks"
	case ExportPlaylists:
		return "playlists"
	case ExportAlbums:
		return "albums"
	case ExportArtists:
		return "artists"
	case ExportAll:
		return "all"
	default:
		return "unknown"
	}
}

// ParseExportKind parses a command-line export selector.
func ParseExportKind(s string) (ExportKind, error) {
	for _, k := range []ExportKind{ExportTracks, ExportPlaylists, ExportAlbums, ExportArtists, ExportAll} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown export kind %q", shared.ErrInvalidArgument, s)
}

// ExportFile is one CSV written by an export.
type ExportFile struct {
	Kind formatter.Kind
	Path string
	Rows int
}

// ExportResult summarizes an export. Sections that failed are listed in Errors while
// the others are still written.
type ExportResult struct {
	Kind      ExportKind
	Files     []ExportFile
	Tracks    int
	Playlists int
	Albums    int
	Artists   int
	Errors    []error
}

// Export fetches the selected part of the Spotify library and writes it to timestamped
// CSV files in the exports directory. Empty sections produce no file.
func (e *Engine) Export(ctx context.Context, progress chan<- ProgressUpdate, kind ExportKind) (*ExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	stamp := e.now()
	result := &ExportResult{Kind: kind}

	var err error
	switch kind {
	case ExportTracks:
		err = e.exportSavedTracks(ctx, progress, result, formatter.TimestampedName(PrefixTracks, stamp))
	case ExportPlaylists:
		err = e.exportPlaylists(ctx, progress, result,
			formatter.TimestampedName(PrefixPlaylistTracks, stamp),
			formatter.TimestampedName(PrefixPlaylistInfo, stamp))
	case ExportAlbums:
		err = e.exportAlbums(ctx, progress, result, formatter.TimestampedName(PrefixAlbums, stamp))
	case ExportArtists:
		err = e.exportArtists(ctx, progress, result, formatter.TimestampedName(PrefixArtists, stamp))
	case ExportAll:
		err = e.exportAll(ctx, progress, result, stamp)
	default:
		err = fmt.Errorf("%w: unknown export kind %d", shared.ErrInvalidArgument, kind)
	}
	return result, err
}

func (e *Engine) savedTracks(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Track, error) {
	e.sendProgress(progress, fetchUpdate(FetchTracks, "saved tracks"))
	tracks, err := e.source.SavedTracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch saved tracks: %w", err)
	}
	for i := range tracks {
		tracks[i].Playlist = models.LikedSongs
	}
	e.sendProgress(progress, fetchedUpdate(FetchTracks, "saved tracks", len(tracks)))
	return tracks, nil
}

// playlistTracks fetches playlist metadata and the tracks of every playlist.
// Playlists that fail to load are reported in result.Errors.
func (e *Engine) playlistTracks(ctx context.Context, progress chan<- ProgressUpdate, result *ExportResult) ([]models.Playlist, []models.Track, error) {
	e.sendProgress(progress, fetchUpdate(FetchPlaylists, "playlists"))
	playlists, err := e.source.Playlists(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch playlists: %w", err)
	}
	e.sendProgress(progress, fetchedUpdate(FetchPlaylists, "playlists", len(playlists)))

	var tracks []models.Track
	for _, res := range e.fetchPlaylistTracks(ctx, progress, playlists) {
		if res.Err != nil {
			result.Errors = append(result.Errors, res.Err)
			continue
		}
		tracks = append(tracks, res.Tracks...)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	result.Playlists = len(playlists)
	return playlists, tracks, nil
}

func (e *Engine) exportSavedTracks(ctx context.Context, progress chan<- ProgressUpdate, result *ExportResult, name string) error {
	tracks, err := e.savedTracks(ctx, progress)
	if err != nil {
		return err
	}
	result.Tracks = len(tracks)
	return e.writeExport(progress, result, formatter.KindTracks, name, len(tracks), func(w io.Writer) error {
		return formatter.WriteTracks(w, tracks)
	})
}

func (e *Engine) exportPlaylists(ctx context.Context, progress chan<- ProgressUpdate, result *ExportResult, tracksName, infoName string) error {
	playlists, tracks, err := e.playlistTracks(ctx, progress, result)
	if err != nil {
		return err
	}
	result.Tracks = len(tracks)

	if err := e.writeExport(progress, result, formatter.KindTracks, tracksName, len(tracks), func(w io.Writer) error {
		return formatter.WriteTracks(w, tracks)
	}); err != nil {
		return err
	}
	return e.writeExport(progress, result, formatter.KindPlaylists, infoName, len(playlists), func(w io.Writer) error {
		return formatter.WritePlaylists(w, playlists)
	})
}

func (e *Engine) exportAlbums(ctx context.Context, progress chan<- ProgressUpdate, result *ExportResult, name string) error {
	e.sendProgress(progress, fetchUpdate(FetchAlbums, "saved albums"))
	albums, err := e.source.SavedAlbums(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch saved albums: %w", err)
	}
	e.sendProgress(progress, fetchedUpdate(FetchAlbums, "saved albums", len(albums)))

	result.Albums = len(albums)
	return e.writeExport(progress, result, formatter.KindAlbums, name, len(albums), func(w io.Writer) error {
		return formatter.WriteAlbums(w, albums)
	})
}

func (e *Engine) exportArtists(ctx context.Context, progress chan<- ProgressUpdate, result *ExportResult, name string) error {
	e.sendProgress(progress, fetchUpdate(FetchArtists, "followed artists"))
	artists, err := e.source.FollowedArtists(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch followed artists: %w", err)
	}
	e.sendProgress(progress, fetchedUpdate(FetchArtists, "followed artists", len(artists)))

	result.Artists = len(artists)
	return e.writeExport(progress, result, formatter.KindArtists, name, len(artists), func(w io.Writer) error {
		return formatter.WriteArtists(w, artists)
	})
}

// exportAll writes saved and playlist tracks into one combined file, plus the artists and
// albums files. A failing section is recorded and the rest still exported; an error is
// returned only when every section failed.
func (e *Engine) exportAll(ctx context.Context, progress chan<- ProgressUpdate, result *ExportResult, stamp time.Time) error {
	var (
		tracks   []models.Track
		failures []error
	)

	if saved, err := e.savedTracks(ctx, progress); err != nil {
		failures = append(failures, err)
	} else {
		tracks = append(tracks, saved...)
	}

	if _, listed, err := e.playlistTracks(ctx, progress, result); err != nil {
		failures = append(failures, err)
	} else {
		tracks = append(tracks, listed...)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	result.Tracks = len(tracks)
	if err := e.writeExport(progress, result, formatter.KindTracks, formatter.TimestampedName(PrefixComplete, stamp), len(tracks), func(w io.Writer) error {
		return formatter.WriteTracks(w, tracks)
	}); err != nil {
		return err
	}

	if err := e.exportArtists(ctx, progress, result, formatter.TimestampedName(PrefixArtists, stamp)); err != nil {
		failures = append(failures, err)
	}
	if err := e.exportAlbums(ctx, progress, result, formatter.TimestampedName(PrefixAlbums, stamp)); err != nil {
		failures = append(failures, err)
	}

	result.Errors = append(result.Errors, failures...)
	if len(failures) == 4 {
		return errors.Join(failures...)
	}
	return nil
}

func (e *Engine) writeExport(progress chan<- ProgressUpdate, result *ExportResult, kind formatter.Kind, name string, rows int, write func(io.Writer) error) error {
	if rows == 0 {
		e.logger.Info("nothing to export", "kind", kind)
		return nil
	}

	path, err := formatter.CreateFile(e.exportsDir, name, write)
	if err != nil {
		return fmt.Errorf("failed to write %s export: %w", kind, err)
	}

	result.Files = append(result.Files, ExportFile{Kind: kind, Path: path, Rows: rows})
	e.logger.Info("export written", "kind", kind, "path", path, "rows", rows)
	e.sendProgress(progress, wroteFileUpdate(path, rows))
	return nil
}
