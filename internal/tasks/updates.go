package tasks

import (
	"fmt"

	"github.com/desertthunder/tdx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	CheckConnection Phase = iota
	FetchTracks
	FetchPlaylists
	FetchPlaylistTracks
	FetchAlbums
	FetchArtists
	WriteExport
	ReadImport
	ResolvePlaylists
	MatchTracks
	AddTracks
	FavoriteItems
	WriteReport
)

func (p Phase) String() string {
	switch p {
	case CheckConnection:
		return "check_connection"
	case FetchTracks:
		return "fetch_tracks"
	case FetchPlaylists:
		return "fetch_playlists"
	case FetchPlaylistTracks:
		return "fetch_playlist_tracks"
	case FetchAlbums:
		return "fetch_albums"
	case FetchArtists:
		return "fetch_artists"
	case WriteExport:
		return "write_export"
	case ReadImport:
		return "read_import"
	case ResolvePlaylists:
		return "resolve_playlists"
	case MatchTracks:
		return "match_tracks"
	case AddTracks:
		return "add_tracks"
	case FavoriteItems:
		return "favorite_items"
	case WriteReport:
		return "write_report"
	default:
		return ""
	}
}

func checkConnectionUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CheckConnection,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Checking %s connection...", name),
	}
}

func fetchUpdate(phase Phase, what string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Fetching %s from Spotify...", what),
	}
}

func fetchedUpdate(phase Phase, what string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d %s", count, what),
	}
}

func playlistTracksUpdate(step, total int, pl models.Playlist, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylistTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s (%d tracks)", step, total, pl.Name, count),
		Data:    pl,
	}
}

func playlistFailedUpdate(step, total int, pl models.Playlist, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylistTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, pl.Name, err),
		Data:    pl,
	}
}

func wroteFileUpdate(path string, rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteExport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Wrote %d rows to %s", rows, path),
		Data:    path,
	}
}

func readImportUpdate(path string, kind string, rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadImport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Read %d %s from %s", rows, kind, path),
	}
}

func playlistResolvedUpdate(step, total int, pl *models.Playlist, created bool) ProgressUpdate {
	verb := "Using existing"
	if created {
		verb = "Created"
	}
	return ProgressUpdate{
		Phase:   ResolvePlaylists,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s TIDAL playlist: %s", verb, pl.Name),
		Data:    pl,
	}
}

func matchProgressUpdate(done, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MatchTracks,
		Step:    done,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Matching tracks on TIDAL...", done, total),
	}
}

func addBatchUpdate(step, total int, playlist string, size int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Added batch of %d tracks to '%s'", size, playlist),
	}
}

func favoriteUpdate(step, total int, what string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FavoriteItems,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Favoriting %s...", step, total, what),
	}
}

func reportUpdate(path string, failures int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteReport,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Saved %d failed items to %s", failures, path),
		Data:    path,
	}
}
