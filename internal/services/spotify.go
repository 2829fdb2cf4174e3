// Spotify Web API implementation of [Source], built on [spotify.Client].
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	spotifyPageSize         = 50
	spotifyPlaylistPageSize = 100
)

var spotifyScopes = []string{
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
	spotifyauth.ScopeUserFollowRead,
}

// SpotifyService implements [Source] over the Spotify Web API.
// Uses [oauth2] for authentication; the client refreshes expired tokens on its own.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseURL        string
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	clientSecret := credentials["client_secret"]
	if clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret in credentials", shared.ErrMissingCredentials)
	}

	redirectURI := credentials["redirect_uri"]
	if redirectURI == "" {
		redirectURI = shared.DefaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}, nil
}

// SetBaseURL points the client at another API root (used with test servers).
func (s *SpotifyService) SetBaseURL(u string) {
	s.baseURL = strings.TrimSuffix(u, "/")
}

// SetTokenRefreshCallback registers fn to receive every token the client obtains,
// so refreshed tokens can be persisted.
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// OAuthenticate installs token and builds an auto-refreshing HTTP client around it.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: no Spotify token, run `tdx spotify auth`", shared.ErrNotAuthenticated)
	}

	s.token = token
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(ctx, token),
		callback: s.onTokenRefresh,
		last:     token.AccessToken,
	}
	s.httpClient = oauth2.NewClient(ctx, source)
	return nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the OAuth2 configuration used for the code exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// api returns a Web API client bound to the authenticated HTTP client.
func (s *SpotifyService) api() (*spotify.Client, error) {
	if s.token == nil {
		return nil, fmt.Errorf("%w: call OAuthenticate first", shared.ErrNotAuthenticated)
	}
	return spotify.New(s.httpClient, spotify.WithBaseURL(s.baseURL+"/")), nil
}

// spotifyError maps a client error onto the shared sentinels.
func spotifyError(err error) error {
	status := 0
	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		status = apiErrPtr.Status
	}

	var refreshErr *oauth2.RetrieveError
	switch {
	case status == http.StatusUnauthorized, errors.As(err, &refreshErr):
		return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %v", shared.ErrPlaylistNotFound, err)
	default:
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
}

// walkPages visits the page fetched with err, then asks next to load the following page
// into it until the listing ends or a page comes back empty.
func walkPages(err error, visit func() int, next func() error) error {
	for err == nil {
		if visit() == 0 {
			return nil
		}
		err = next()
	}
	if errors.Is(err, spotify.ErrNoMorePages) {
		return nil
	}
	return spotifyError(err)
}

// CurrentUser retrieves the current authenticated user's profile.
func (s *SpotifyService) CurrentUser(ctx context.Context) (*models.User, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return nil, spotifyError(err)
	}
	return &models.User{ID: string(user.ID), DisplayName: user.DisplayName, Country: user.Country}, nil
}

// SavedTracks retrieves the user's saved tracks, labelled with the "Liked Songs" playlist.
func (s *SpotifyService) SavedTracks(ctx context.Context) ([]models.Track, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	page, err := client.CurrentUsersTracks(ctx, spotify.Limit(spotifyPageSize))
	err = walkPages(err, func() int {
		for _, item := range page.Tracks {
			if t, ok := convertTrack(&item.FullTrack, item.AddedAt); ok {
				t.Playlist = models.LikedSongs
				tracks = append(tracks, t)
			}
		}
		return len(page.Tracks)
	}, func() error { return client.NextPage(ctx, page) })
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

// SavedAlbums retrieves the user's saved albums.
func (s *SpotifyService) SavedAlbums(ctx context.Context) ([]models.Album, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var albums []models.Album
	page, err := client.CurrentUsersAlbums(ctx, spotify.Limit(spotifyPageSize))
	err = walkPages(err, func() int {
		for _, item := range page.Albums {
			albums = append(albums, models.Album{
				ID:     string(item.ID),
				Name:   item.Name,
				Artist: joinArtists(item.Artists),
				URL:    item.ExternalURLs["spotify"],
			})
		}
		return len(page.Albums)
	}, func() error { return client.NextPage(ctx, page) })
	if err != nil {
		return nil, err
	}
	return albums, nil
}

// FollowedArtists retrieves followed artists using cursor pagination.
//
// The follow listing wraps every page in an "artists" object, so pages are requested
// with the after cursor rather than through the next link.
func (s *SpotifyService) FollowedArtists(ctx context.Context) ([]models.Artist, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var artists []models.Artist
	opts := []spotify.RequestOption{spotify.Limit(spotifyPageSize)}
	for {
		page, err := client.CurrentUsersFollowedArtists(ctx, opts...)
		if err != nil {
			return nil, spotifyError(err)
		}

		for _, a := range page.Artists {
			artists = append(artists, models.Artist{ID: string(a.ID), Name: a.Name, URL: a.ExternalURLs["spotify"]})
		}

		if page.Next == "" || len(page.Artists) == 0 {
			break
		}
		after := page.Cursor.After
		if after == "" {
			after = string(page.Artists[len(page.Artists)-1].ID)
		}
		opts = []spotify.RequestOption{spotify.Limit(spotifyPageSize), spotify.After(after)}
	}
	return artists, nil
}

// Playlists retrieves the metadata of all the user's playlists.
func (s *SpotifyService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var playlists []models.Playlist
	page, err := client.CurrentUsersPlaylists(ctx, spotify.Limit(spotifyPageSize))
	err = walkPages(err, func() int {
		for _, sp := range page.Playlists {
			if sp.ID == "" {
				continue
			}
			playlists = append(playlists, models.Playlist{
				ID:          string(sp.ID),
				Name:        sp.Name,
				Description: sp.Description,
				Owner:       sp.Owner.DisplayName,
				TrackCount:  int(sp.Tracks.Total),
				Public:      sp.IsPublic,
				URL:         sp.ExternalURLs["spotify"],
			})
		}
		return len(page.Playlists)
	}, func() error { return client.NextPage(ctx, page) })
	if err != nil {
		return nil, err
	}
	return playlists, nil
}

// PlaylistTracks retrieves the tracks of a playlist. Episodes, local files and
// removed entries are skipped.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, playlistID string) ([]models.Track, error) {
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}

	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var tracks []models.Track
	page, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(spotifyPlaylistPageSize))
	err = walkPages(err, func() int {
		for _, item := range page.Items {
			if item.IsLocal {
				continue
			}
			if t, ok := convertTrack(item.Track.Track, item.AddedAt); ok {
				t.PlaylistID = playlistID
				tracks = append(tracks, t)
			}
		}
		return len(page.Items)
	}, func() error { return client.NextPage(ctx, page) })
	if err != nil {
		return nil, err
	}
	return tracks, nil
}

// convertTrack maps a catalog track; removed entries and local files carry no id.
func convertTrack(t *spotify.FullTrack, addedAt string) (models.Track, bool) {
	if t == nil || t.ID == "" {
		return models.Track{}, false
	}

	return models.Track{
		ID:         string(t.ID),
		Title:      t.Name,
		Artist:     joinArtists(t.Artists),
		Album:      t.Album.Name,
		DurationMS: int(t.Duration),
		ISRC:       t.ExternalIDs["isrc"],
		URL:        t.ExternalURLs["spotify"],
		Popularity: int(t.Popularity),
		AddedAt:    addedAt,
	}, true
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
