// TIDAL API implementation of [Destination]
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	tidalDeviceAuthURL = "https://auth.tidal.com/v1/oauth2/device_authorization"
	tidalTokenURL      = "https://auth.tidal.com/v1/oauth2/token"
	tidalBaseURL       = "https://api.tidal.com/v1"

	tidalPageSize        = 50
	defaultTidalRate     = 5.0
	defaultTidalCountry  = "US"
	tidalDuplicatePolicy = "FAIL"

	// DefaultPlaylistDescription is used when a playlist is created without one.
	DefaultPlaylistDescription = "Imported from Spotify"
)

var tidalScopes = []string{"r_usr", "w_usr", "w_sub"}

var (
	// errStaleETag reports a 412 from a conditional playlist write.
	errStaleETag     = errors.New("playlist changed while adding tracks")
	errTidalNotFound = errors.New("tidal resource not found")
)

type tidalArtist struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	URL  string      `json:"url"`
}

type tidalAlbumRef struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
}

// TidalTrack represents a TIDAL catalog track. Duration is in seconds.
type TidalTrack struct {
	ID       json.Number   `json:"id"`
	Title    string        `json:"title"`
	Duration int           `json:"duration"`
	ISRC     string        `json:"isrc"`
	URL      string        `json:"url"`
	Artists  []tidalArtist `json:"artists"`
	Album    tidalAlbumRef `json:"album"`
}

// TidalAlbum represents a TIDAL catalog album.
type TidalAlbum struct {
	ID      json.Number   `json:"id"`
	Title   string        `json:"title"`
	URL     string        `json:"url"`
	Artists []tidalArtist `json:"artists"`
}

// TidalPlaylist represents a user playlist. Playlists are keyed by UUID.
type TidalPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	NumberOfTracks int    `json:"numberOfTracks"`
	PublicPlaylist bool   `json:"publicPlaylist"`
	URL            string `json:"url"`
	Creator        struct {
		ID json.Number `json:"id"`
	} `json:"creator"`
}

type tidalSession struct {
	SessionID   string      `json:"sessionId"`
	UserID      json.Number `json:"userId"`
	CountryCode string      `json:"countryCode"`
}

type tidalItems[T any] struct {
	Limit              int `json:"limit"`
	Offset             int `json:"offset"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
	Items              []T `json:"items"`
}

type tidalSearchResult struct {
	Tracks  tidalItems[TidalTrack]  `json:"tracks"`
	Artists tidalItems[tidalArtist] `json:"artists"`
	Albums  tidalItems[TidalAlbum]  `json:"albums"`
}

// TidalService implements [Destination] over the TIDAL v1 API.
//
// Every request waits on a shared [rate.Limiter], so concurrent matcher workers
// stay under the configured request rate.
type TidalService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseURL        string
	limiter        *rate.Limiter
	onTokenRefresh func(*oauth2.Token)

	mu          sync.Mutex
	userID      string
	countryCode string
}

// NewTidalService creates a TIDAL client. requestsPerSecond <= 0 selects the default rate.
func NewTidalService(credentials map[string]string, requestsPerSecond float64) (*TidalService, error) {
	clientID := credentials["client_id"]
	if clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id in credentials", shared.ErrMissingCredentials)
	}

	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultTidalRate
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: credentials["client_secret"],
		Scopes:       tidalScopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: tidalDeviceAuthURL,
			TokenURL:      tidalTokenURL,
			AuthStyle:     oauth2.AuthStyleInParams,
		},
	}

	return &TidalService{
		config:      config,
		httpClient:  http.DefaultClient,
		baseURL:     tidalBaseURL,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		countryCode: credentials["country_code"],
	}, nil
}

func (t *TidalService) Name() string {
	return "TIDAL"
}

// SetBaseURL points the client at another API root (used with test servers).
func (t *TidalService) SetBaseURL(u string) {
	t.baseURL = strings.TrimSuffix(u, "/")
}

// SetTokenRefreshCallback registers fn to receive refreshed tokens.
func (t *TidalService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	t.onTokenRefresh = fn
}

// DeviceAuth starts the device-authorization flow.
func (t *TidalService) DeviceAuth(ctx context.Context) (*oauth2.DeviceAuthResponse, error) {
	da, err := t.config.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return da, nil
}

// DeviceAccessToken polls the token endpoint until the user approves the device.
func (t *TidalService) DeviceAccessToken(ctx context.Context, da *oauth2.DeviceAuthResponse) (*oauth2.Token, error) {
	token, err := t.config.DeviceAccessToken(ctx, da)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: device code expired", shared.ErrTimeout)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}
	return token, nil
}

// OAuthenticate installs token and builds an auto-refreshing HTTP client around it.
func (t *TidalService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: no TIDAL token, run `tdx tidal auth`", shared.ErrNotAuthenticated)
	}

	t.token = token
	source := &refreshableTokenSource{
		source:   t.config.TokenSource(ctx, token),
		callback: t.onTokenRefresh,
		last:     token.AccessToken,
	}
	t.httpClient = oauth2.NewClient(ctx, source)

	t.mu.Lock()
	t.userID = ""
	t.mu.Unlock()
	return nil
}

// session resolves the user id and country code once per token.
func (t *TidalService) session(ctx context.Context) (userID, country string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.userID != "" {
		return t.userID, t.countryCode, nil
	}

	var s tidalSession
	if _, err := t.send(ctx, http.MethodGet, "/sessions", nil, nil, nil, &s); err != nil {
		return "", "", err
	}
	if s.UserID.String() == "" {
		return "", "", fmt.Errorf("%w: session has no user id", shared.ErrNotAuthenticated)
	}

	t.userID = s.UserID.String()
	if t.countryCode == "" {
		t.countryCode = s.CountryCode
	}
	if t.countryCode == "" {
		t.countryCode = defaultTidalCountry
	}
	return t.userID, t.countryCode, nil
}

// doRequest sends a request with the session country code attached.
func (t *TidalService) doRequest(ctx context.Context, method, endpoint string, query, form url.Values, header http.Header, result any) (http.Header, error) {
	_, country, err := t.session(ctx)
	if err != nil {
		return nil, err
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("countryCode", country)
	return t.send(ctx, method, endpoint, query, form, header, result)
}

// send performs one rate-limited, authenticated request.
func (t *TidalService) send(ctx context.Context, method, endpoint string, query, form url.Values, header http.Header, result any) (http.Header, error) {
	if t.token == nil {
		return nil, fmt.Errorf("%w: call OAuthenticate first", shared.ErrNotAuthenticated)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	apiURL := t.baseURL + endpoint
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("%w: tidal returned 401", shared.ErrTokenExpired)
	case resp.StatusCode == http.StatusPreconditionFailed:
		return nil, errStaleETag
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %w", shared.ErrAPIRequest, errTidalNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var errResp struct {
			UserMessage string `json:"userMessage"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.UserMessage != "" {
			return nil, fmt.Errorf("%w: tidal status %d: %s", shared.ErrAPIRequest, resp.StatusCode, errResp.UserMessage)
		}
		return nil, fmt.Errorf("%w: tidal status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.Header, nil
}

// CurrentUser resolves the session behind the token.
func (t *TidalService) CurrentUser(ctx context.Context) (*models.User, error) {
	userID, country, err := t.session(ctx)
	if err != nil {
		return nil, err
	}
	return &models.User{ID: userID, DisplayName: userID, Country: country}, nil
}

func (t *TidalService) search(ctx context.Context, query, kind string, limit int) (*tidalSearchResult, error) {
	if limit <= 0 {
		limit = tidalPageSize
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("types", kind)
	q.Set("limit", fmt.Sprint(limit))

	var result tidalSearchResult
	if _, err := t.doRequest(ctx, http.MethodGet, "/search", q, nil, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SearchTracks returns catalog tracks for query. DurationMS is derived from whole seconds.
func (t *TidalService) SearchTracks(ctx context.Context, query string, limit int) ([]models.Track, error) {
	result, err := t.search(ctx, query, "TRACKS", limit)
	if err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(result.Tracks.Items))
	for _, tt := range result.Tracks.Items {
		tracks = append(tracks, models.Track{
			ID:         tt.ID.String(),
			Title:      tt.Title,
			Artist:     joinTidalArtists(tt.Artists),
			Album:      tt.Album.Title,
			DurationMS: tt.Duration * 1000,
			ISRC:       tt.ISRC,
			URL:        tt.URL,
		})
	}
	return tracks, nil
}

func (t *TidalService) SearchArtists(ctx context.Context, query string, limit int) ([]models.Artist, error) {
	result, err := t.search(ctx, query, "ARTISTS", limit)
	if err != nil {
		return nil, err
	}

	artists := make([]models.Artist, 0, len(result.Artists.Items))
	for _, a := range result.Artists.Items {
		artists = append(artists, models.Artist{ID: a.ID.String(), Name: a.Name, URL: a.URL})
	}
	return artists, nil
}

func (t *TidalService) SearchAlbums(ctx context.Context, query string, limit int) ([]models.Album, error) {
	result, err := t.search(ctx, query, "ALBUMS", limit)
	if err != nil {
		return nil, err
	}

	albums := make([]models.Album, 0, len(result.Albums.Items))
	for _, a := range result.Albums.Items {
		albums = append(albums, models.Album{
			ID:     a.ID.String(),
			Name:   a.Title,
			Artist: joinTidalArtists(a.Artists),
			URL:    a.URL,
		})
	}
	return albums, nil
}

// Playlists retrieves all playlists owned by the session user.
func (t *TidalService) Playlists(ctx context.Context) ([]models.Playlist, error) {
	userID, _, err := t.session(ctx)
	if err != nil {
		return nil, err
	}

	var playlists []models.Playlist
	for offset := 0; ; offset += tidalPageSize {
		q := url.Values{}
		q.Set("limit", fmt.Sprint(tidalPageSize))
		q.Set("offset", fmt.Sprint(offset))

		var page tidalItems[TidalPlaylist]
		if _, err := t.doRequest(ctx, http.MethodGet, "/users/"+userID+"/playlists", q, nil, nil, &page); err != nil {
			return nil, err
		}
		for _, p := range page.Items {
			playlists = append(playlists, convertTidalPlaylist(p))
		}

		if len(page.Items) < tidalPageSize || offset+len(page.Items) >= page.TotalNumberOfItems {
			break
		}
	}
	return playlists, nil
}

// CreatePlaylist creates an empty playlist for the session user.
func (t *TidalService) CreatePlaylist(ctx context.Context, name, description string) (*models.Playlist, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: playlist name is required", shared.ErrMissingArgument)
	}
	if description == "" {
		description = DefaultPlaylistDescription
	}

	userID, _, err := t.session(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("title", name)
	form.Set("description", description)

	var created TidalPlaylist
	if _, err := t.doRequest(ctx, http.MethodPost, "/users/"+userID+"/playlists", nil, form, nil, &created); err != nil {
		return nil, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	p := convertTidalPlaylist(created)
	return &p, nil
}

// playlistETag fetches the current ETag guarding writes to a playlist.
func (t *TidalService) playlistETag(ctx context.Context, playlistID string) (string, error) {
	header, err := t.doRequest(ctx, http.MethodGet, "/playlists/"+url.PathEscape(playlistID), nil, nil, nil, nil)
	if err != nil {
		if errors.Is(err, errTidalNotFound) {
			return "", fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, playlistID)
		}
		return "", err
	}
	return header.Get("ETag"), nil
}

// AddTracks appends trackIDs to a playlist. The write is conditional on the
// playlist ETag and is retried once if the playlist changed in between.
func (t *TidalService) AddTracks(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	form := url.Values{}
	form.Set("trackIds", strings.Join(trackIDs, ","))
	form.Set("onDupes", tidalDuplicatePolicy)

	var err error
	for range 2 {
		var etag string
		if etag, err = t.playlistETag(ctx, playlistID); err != nil {
			return err
		}

		header := http.Header{}
		if etag != "" {
			header.Set("If-None-Match", etag)
		}

		_, err = t.doRequest(ctx, http.MethodPost, "/playlists/"+url.PathEscape(playlistID)+"/items", nil, form, header, nil)
		if !errors.Is(err, errStaleETag) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("failed to add %d tracks to playlist %s: %w", len(trackIDs), playlistID, err)
	}
	return nil
}

func (t *TidalService) favorite(ctx context.Context, kind, field, id string) error {
	if id == "" {
		return fmt.Errorf("%w: %s id is required", shared.ErrMissingArgument, kind)
	}

	userID, _, err := t.session(ctx)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set(field, id)
	if _, err := t.doRequest(ctx, http.MethodPost, "/users/"+userID+"/favorites/"+kind, nil, form, nil, nil); err != nil {
		return fmt.Errorf("failed to favorite %s %s: %w", strings.TrimSuffix(kind, "s"), id, err)
	}
	return nil
}

func (t *TidalService) FavoriteTrack(ctx context.Context, trackID string) error {
	return t.favorite(ctx, "tracks", "trackIds", trackID)
}

func (t *TidalService) FavoriteArtist(ctx context.Context, artistID string) error {
	return t.favorite(ctx, "artists", "artistIds", artistID)
}

func (t *TidalService) FavoriteAlbum(ctx context.Context, albumID string) error {
	return t.favorite(ctx, "albums", "albumIds", albumID)
}

func convertTidalPlaylist(p TidalPlaylist) models.Playlist {
	return models.Playlist{
		ID:          p.UUID,
		Name:        p.Title,
		Description: p.Description,
		Owner:       p.Creator.ID.String(),
		TrackCount:  p.NumberOfTracks,
		Public:      p.PublicPlaylist,
		URL:         p.URL,
	}
}

func joinTidalArtists(artists []tidalArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}
