// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/desertthunder/tdx/internal/models"
)

// MockSource is a test double for [services.Source]
type MockSource struct {
	User           *models.User
	Tracks         []models.Track
	Albums         []models.Album
	Artists        []models.Artist
	PlaylistList   []models.Playlist
	PlaylistItems  map[string][]models.Track
	Err            error            // returned by every call when set
	PlaylistErrors map[string]error // per-playlist PlaylistTracks errors
}

func (m *MockSource) Name() string { return "mock-source" }

func (m *MockSource) CurrentUser(ctx context.Context) (*models.User, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.User == nil {
		return &models.User{ID: "source-user", DisplayName: "Source User"}, nil
	}
	return m.User, nil
}

func (m *MockSource) SavedTracks(ctx context.Context) ([]models.Track, error) {
	return m.Tracks, m.Err
}

func (m *MockSource) SavedAlbums(ctx context.Context) ([]models.Album, error) {
	return m.Albums, m.Err
}

func (m *MockSource) FollowedArtists(ctx context.Context) ([]models.Artist, error) {
	return m.Artists, m.Err
}

func (m *MockSource) Playlists(ctx context.Context) ([]models.Playlist, error) {
	return m.PlaylistList, m.Err
}

func (m *MockSource) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if err := m.PlaylistErrors[playlistID]; err != nil {
		return nil, err
	}
	return m.PlaylistItems[playlistID], nil
}

// MockDestination is a test double for [services.Destination].
//
// Search results are served per query; every write is recorded. Safe for concurrent use.
type MockDestination struct {
	mu sync.Mutex

	TrackResults  map[string][]models.Track
	ArtistResults map[string][]models.Artist
	AlbumResults  map[string][]models.Album
	Existing      []models.Playlist

	SearchErr   error
	CreateErr   error
	AddErr      error // returned by AddTracks
	FavoriteErr error
	UserErr     error

	Searches         []string
	Created          []string
	Added            map[string][][]string // playlist id -> batches
	FavoritedTracks  []string
	FavoritedArtists []string
	FavoritedAlbums  []string
}

func NewMockDestination() *MockDestination {
	return &MockDestination{
		TrackResults:  map[string][]models.Track{},
		ArtistResults: map[string][]models.Artist{},
		AlbumResults:  map[string][]models.Album{},
		Added:         map[string][][]string{},
	}
}

func (m *MockDestination) Name() string { return "mock-destination" }

func (m *MockDestination) CurrentUser(ctx context.Context) (*models.User, error) {
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	return &models.User{ID: "42", DisplayName: "42", Country: "US"}, nil
}

func (m *MockDestination) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches = append(m.Searches, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.TrackResults[query], nil
}

func (m *MockDestination) SearchArtists(ctx context.Context, query string, limit int) ([]models.Artist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches = append(m.Searches, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.ArtistResults[query], nil
}

func (m *MockDestination) SearchAlbums(ctx context.Context, query string, limit int) ([]models.Album, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Searches = append(m.Searches, query)
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	return m.AlbumResults[query], nil
}

func (m *MockDestination) Playlists(ctx context.Context) ([]models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Playlist(nil), m.Existing...), nil
}

func (m *MockDestination) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	m.Created = append(m.Created, name)
	p := models.Playlist{ID: fmt.Sprintf("created-%d", len(m.Created)), Name: name, Description: description}
	m.Existing = append(m.Existing, p)
	return &p, nil
}

func (m *MockDestination) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AddErr != nil {
		return m.AddErr
	}
	m.Added[playlistID] = append(m.Added[playlistID], append([]string(nil), trackIDs...))
	return nil
}

func (m *MockDestination) FavoriteTrack(ctx context.Context, trackID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FavoriteErr != nil {
		return m.FavoriteErr
	}
	m.FavoritedTracks = append(m.FavoritedTracks, trackID)
	return nil
}

func (m *MockDestination) FavoriteArtist(ctx context.Context, artistID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FavoriteErr != nil {
		return m.FavoriteErr
	}
	m.FavoritedArtists = append(m.FavoritedArtists, artistID)
	return nil
}

func (m *MockDestination) FavoriteAlbum(ctx context.Context, albumID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FavoriteErr != nil {
		return m.FavoriteErr
	}
	m.FavoritedAlbums = append(m.FavoritedAlbums, albumID)
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// WriteFile writes content to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
