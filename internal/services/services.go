package services

import (
	"context"

	"github.com/desertthunder/tdx/internal/models"
	"golang.org/x/oauth2"
)

// Service is the behavior shared by every music provider client.
type Service interface {
	// Name returns the display name of the provider (e.g., "Spotify", "TIDAL").
	Name() string

	// CurrentUser returns the account the client is authenticated as.
	// Used as a cheap connection check.
	CurrentUser(ctx context.Context) (*models.User, error)
}

// Source is a provider the library is exported from.
type Source interface {
	Service

	// SavedTracks retrieves every track in the user's library.
	SavedTracks(ctx context.Context) ([]models.Track, error)

	// SavedAlbums retrieves every album in the user's library.
	SavedAlbums(ctx context.Context) ([]models.Album, error)

	// FollowedArtists retrieves every artist the user follows.
	FollowedArtists(ctx context.Context) ([]models.Artist, error)

	// Playlists retrieves the metadata of all the user's playlists.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// PlaylistTracks retrieves the tracks of one playlist.
	PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error)
}

// Destination is a provider the library is imported into.
type Destination interface {
	Service

	// SearchTracks returns up to limit catalog tracks for a free-text query.
	SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error)
	SearchArtists(ctx context.Context, query string, limit int) ([]models.Artist, error)
	SearchAlbums(ctx context.Context, query string, limit int) ([]models.Album, error)

	// Playlists retrieves the user's playlists.
	Playlists(ctx context.Context) ([]models.Playlist, error)

	// CreatePlaylist creates an empty playlist and returns it.
	CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error)

	// AddTracks appends trackIDs to a playlist in a single request.
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error

	FavoriteTrack(ctx context.Context, trackID string) error
	FavoriteArtist(ctx context.Context, artistID string) error
	FavoriteAlbum(ctx context.Context, albumID string) error
}

// OAuthService is implemented by providers using the browser authorization-code flow.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// DeviceAuthService is implemented by providers using the device-authorization flow.
type DeviceAuthService interface {
	// DeviceAuth requests a user code and verification URL.
	DeviceAuth(ctx context.Context) (*oauth2.DeviceAuthResponse, error)

	// DeviceAccessToken polls until the user approves the device or ctx ends.
	DeviceAccessToken(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error)

	OAuthenticate(ctx context.Context, token *oauth2.Token) error
}

// TokenNotifier is implemented by clients that can report refreshed tokens for persistence.
type TokenNotifier interface {
	SetTokenRefreshCallback(fn func(*oauth2.Token))
}

// refreshableTokenSource wraps a token source and reports every new access token.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	if token.AccessToken != s.last {
		s.last = token.AccessToken
		if s.callback != nil {
			s.callback(token)
		}
	}
	return token, nil
}
