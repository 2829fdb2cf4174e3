// package formatter reads and writes the CSV files exchanged between export and import,
// and renders tables for the CLI.
package formatter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
)

// Kind identifies the layout of a CSV file.
type Kind int

const (
	KindUnknown Kind = iota
	KindTracks
	KindAlbums
	KindArtists
	KindPlaylists
	KindFailures
)

func (k Kind) String() string {
	switch k {
	case KindTracks:
		return "tracks"
	case KindAlbums:
		return "albums"
	case KindArtists:
		return "artists"
	case KindPlaylists:
		return "playlists"
	case KindFailures:
		return "failures"
	default:
		return "unknown"
	}
}

// Importable reports whether files of this kind can be imported into TIDAL.
func (k Kind) Importable() bool {
	return k == KindTracks || k == KindAlbums || k == KindArtists
}

// Column layouts, in file order.
var (
	TrackColumns    = []string{"name", "artist", "album", "playlist", "spotify_id", "spotify_url", "duration_ms", "popularity", "added_at", "playlist_id"}
	AlbumColumns    = []string{"album_id", "album_name", "album_url", "artist_name"}
	ArtistColumns   = []string{"artist_id", "artist_name", "artist_url"}
	PlaylistColumns = []string{"name", "id", "owner", "tracks_total", "public", "spotify_url"}
	FailureColumns  = []string{"track", "artist", "playlist"}
)

// TimestampFormat is the layout of the timestamp embedded in export file names.
const TimestampFormat = "20060102_150405"

// DetectKind classifies a header row.
//
// Detection looks at column names only, so files with extra or reordered columns are still recognized.
func DetectKind(header []string) Kind {
	cols := make(map[string]bool, len(header))
	for _, h := range header {
		cols[columnName(h)] = true
	}

	switch {
	case cols["name"] && cols["artist"]:
		return KindTracks
	case cols["artist_name"] && cols["artist_id"]:
		return KindArtists
	case cols["album_name"] && cols["album_id"]:
		return KindAlbums
	case cols["name"] && cols["tracks_total"]:
		return KindPlaylists
	case cols["track"] && cols["artist"] && cols["playlist"]:
		return KindFailures
	default:
		return KindUnknown
	}
}

// columnName normalizes a header cell, dropping a UTF-8 byte order mark.
func columnName(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}

// SniffFile reads the header of the CSV file at path and classifies it.
func SniffFile(path string) (Kind, error) {
	f, err := os.Open(path)
	if err != nil {
		return KindUnknown, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	header, err := newReader(f).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return KindUnknown, fmt.Errorf("%w: %s is empty", shared.ErrUnknownFileKind, filepath.Base(path))
		}
		return KindUnknown, fmt.Errorf("failed to read header: %w", err)
	}

	kind := DetectKind(header)
	if kind == KindUnknown {
		return kind, fmt.Errorf("%w: %s", shared.ErrUnknownFileKind, filepath.Base(path))
	}
	return kind, nil
}

// TimestampedName returns "<prefix>_YYYYMMDD_HHMMSS.csv".
func TimestampedName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s.csv", prefix, t.Format(TimestampFormat))
}

// CreateFile writes a CSV file at dir/name, creating dir when needed.
func CreateFile(dir, name string, write func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

func writeAll(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

// WriteTracks writes tracks in the tracks layout.
func WriteTracks(w io.Writer, tracks []models.Track) error {
	rows := make([][]string, 0, len(tracks))
	for _, t := range tracks {
		rows = append(rows, []string{
			t.Title,
			t.Artist,
			t.Album,
			t.Playlist,
			t.ID,
			t.URL,
			strconv.Itoa(t.DurationMS),
			strconv.Itoa(t.Popularity),
			t.AddedAt,
			t.PlaylistID,
		})
	}
	return writeAll(w, TrackColumns, rows)
}

func WriteAlbums(w io.Writer, albums []models.Album) error {
	rows := make([][]string, 0, len(albums))
	for _, a := range albums {
		rows = append(rows, []string{a.ID, a.Name, a.URL, a.Artist})
	}
	return writeAll(w, AlbumColumns, rows)
}

func WriteArtists(w io.Writer, artists []models.Artist) error {
	rows := make([][]string, 0, len(artists))
	for _, a := range artists {
		rows = append(rows, []string{a.ID, a.Name, a.URL})
	}
	return writeAll(w, ArtistColumns, rows)
}

// WritePlaylists writes playlist metadata. Public is written as "True"/"False".
func WritePlaylists(w io.Writer, playlists []models.Playlist) error {
	rows := make([][]string, 0, len(playlists))
	for _, p := range playlists {
		public := "False"
		if p.Public {
			public = "True"
		}
		rows = append(rows, []string{p.Name, p.ID, p.Owner, strconv.Itoa(p.TrackCount), public, p.URL})
	}
	return writeAll(w, PlaylistColumns, rows)
}

// WriteFailures writes the failed-import report.
func WriteFailures(w io.Writer, failures []models.Failure) error {
	rows := make([][]string, 0, len(failures))
	for _, f := range failures {
		rows = append(rows, []string{f.Track, f.Artist, f.Playlist})
	}
	return writeAll(w, FailureColumns, rows)
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader
}

// rowFunc receives one record with a lookup by column name.
type rowFunc func(get func(column string) string) error

// readRows maps each record's fields by header name. Missing columns read as "".
func readRows(r io.Reader, want Kind, fn rowFunc) error {
	reader := newReader(r)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty file", shared.ErrUnknownFileKind)
		}
		return fmt.Errorf("failed to read CSV header: %w", err)
	}

	if kind := DetectKind(header); kind != want {
		return fmt.Errorf("%w: expected %s, found %s", shared.ErrUnknownFileKind, want, kind)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[columnName(h)] = i
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		get := func(column string) string {
			if i, ok := index[column]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		if err := fn(get); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
}

// parseNumber accepts integer or float text, as written by spreadsheet tools.
func parseNumber(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", shared.ErrInvalidInput, s)
	}
	return int(math.Round(f)), nil
}

// ReadTracks parses a tracks CSV.
func ReadTracks(r io.Reader) ([]models.Track, error) {
	var tracks []models.Track
	err := readRows(r, KindTracks, func(get func(string) string) error {
		duration, err := parseNumber(get("duration_ms"))
		if err != nil {
			return fmt.Errorf("duration_ms: %w", err)
		}
		popularity, err := parseNumber(get("popularity"))
		if err != nil {
			return fmt.Errorf("popularity: %w", err)
		}

		tracks = append(tracks, models.Track{
			ID:         get("spotify_id"),
			Title:      get("name"),
			Artist:     get("artist"),
			Album:      get("album"),
			DurationMS: duration,
			URL:        get("spotify_url"),
			Popularity: popularity,
			AddedAt:    get("added_at"),
			Playlist:   get("playlist"),
			PlaylistID: get("playlist_id"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

func ReadAlbums(r io.Reader) ([]models.Album, error) {
	var albums []models.Album
	err := readRows(r, KindAlbums, func(get func(string) string) error {
		albums = append(albums, models.Album{
			ID:     get("album_id"),
			Name:   get("album_name"),
			Artist: get("artist_name"),
			URL:    get("album_url"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return albums, nil
}

func ReadArtists(r io.Reader) ([]models.Artist, error) {
	var artists []models.Artist
	err := readRows(r, KindArtists, func(get func(string) string) error {
		artists = append(artists, models.Artist{
			ID:   get("artist_id"),
			Name: get("artist_name"),
			URL:  get("artist_url"),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artists, nil
}

// ReadFile opens path and decodes it with read.
func ReadFile[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return read(f)
}
