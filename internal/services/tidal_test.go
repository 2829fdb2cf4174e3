package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/tdx/internal/shared"
	"golang.org/x/oauth2"
)

// tidalFake records requests made against a fake TIDAL API.
type tidalFake struct {
	mu       sync.Mutex
	requests []*http.Request
	forms    map[string]string
	mux      *http.ServeMux
}

func newTidalFake(t *testing.T) *tidalFake {
	t.Helper()
	f := &tidalFake{mux: http.NewServeMux(), forms: map[string]string{}}
	f.mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"sessionId": "s-1", "userId": 42, "countryCode": "SE"})
	})
	return f
}

func (f *tidalFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.mu.Lock()
	f.requests = append(f.requests, r)
	for k := range r.PostForm {
		f.forms[r.URL.Path+" "+k] = r.PostForm.Get(k)
	}
	f.mu.Unlock()
	f.mux.ServeHTTP(w, r)
}

func (f *tidalFake) count(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.Method == method && r.URL.Path == path {
			n++
		}
	}
	return n
}

func newTestTidal(t *testing.T, f *tidalFake, country string) *TidalService {
	t.Helper()

	server := httptest.NewServer(f)
	t.Cleanup(server.Close)

	srv, err := NewTidalService(map[string]string{"client_id": "tidal-client", "country_code": country}, 1000)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.SetBaseURL(server.URL)
	if err := srv.OAuthenticate(context.Background(), &oauth2.Token{AccessToken: "tidal_token"}); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	return srv
}

func TestTidalService(t *testing.T) {
	t.Run("NewTidalService", func(t *testing.T) {
		srv, err := NewTidalService(map[string]string{"client_id": "abc"}, 0)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if srv.Name() != "TIDAL" {
			t.Errorf("expected name TIDAL, got %s", srv.Name())
		}
		if srv.limiter.Limit() != defaultTidalRate {
			t.Errorf("expected default rate %v, got %v", defaultTidalRate, srv.limiter.Limit())
		}
		if srv.config.Endpoint.DeviceAuthURL != tidalDeviceAuthURL {
			t.Errorf("unexpected device auth URL %s", srv.config.Endpoint.DeviceAuthURL)
		}

		if _, err := NewTidalService(map[string]string{}, 1); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("Destination interface", func(t *testing.T) {
		var _ Destination = (*TidalService)(nil)
		var _ DeviceAuthService = (*TidalService)(nil)
		var _ TokenNotifier = (*TidalService)(nil)
	})

	t.Run("requests before authentication fail", func(t *testing.T) {
		srv, _ := NewTidalService(map[string]string{"client_id": "abc"}, 1000)
		if _, err := srv.SearchTracks(context.Background(), "q", 10); !errors.Is(err, shared.ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}

func TestTidalSession(t *testing.T) {
	ctx := context.Background()

	t.Run("country from session when unset", func(t *testing.T) {
		f := newTidalFake(t)
		srv := newTestTidal(t, f, "")

		user, err := srv.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.ID != "42" || user.Country != "SE" {
			t.Errorf("unexpected user %+v", user)
		}

		srv.CurrentUser(ctx)
		if n := f.count(http.MethodGet, "/sessions"); n != 1 {
			t.Errorf("expected session to be cached, got %d requests", n)
		}
	})

	t.Run("configured country wins", func(t *testing.T) {
		srv := newTestTidal(t, newTidalFake(t), "US")
		user, err := srv.CurrentUser(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if user.Country != "US" {
			t.Errorf("expected US, got %s", user.Country)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		f := &tidalFake{mux: http.NewServeMux(), forms: map[string]string{}}
		f.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		srv := newTestTidal(t, f, "US")
		if _, err := srv.CurrentUser(ctx); !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})
}

func TestTidalSearch(t *testing.T) {
	ctx := context.Background()
	f := newTidalFake(t)
	f.mux.HandleFunc("GET /search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("countryCode") != "SE" {
			t.Errorf("expected countryCode SE, got %s", q.Get("countryCode"))
		}

		switch q.Get("types") {
		case "TRACKS":
			if q.Get("query") != `"Bohemian Rhapsody" "Queen"` || q.Get("limit") != "10" {
				t.Errorf("unexpected query %s", r.URL.RawQuery)
			}
			writeJSON(t, w, map[string]any{"tracks": map[string]any{"items": []map[string]any{{
				"id":       77,
				"title":    "Bohemian Rhapsody",
				"duration": 354,
				"isrc":     "GBUM71029604",
				"artists":  []map[string]any{{"id": 1, "name": "Queen"}},
				"album":    map[string]any{"id": 5, "title": "A Night at the Opera"},
			}}}})
		case "ARTISTS":
			writeJSON(t, w, map[string]any{"artists": map[string]any{"items": []map[string]any{{"id": 1, "name": "Queen"}}}})
		case "ALBUMS":
			writeJSON(t, w, map[string]any{"albums": map[string]any{"items": []map[string]any{{
				"id": 5, "title": "A Night at the Opera", "artists": []map[string]any{{"name": "Queen"}},
			}}}})
		default:
			t.Errorf("unexpected types %s", q.Get("types"))
		}
	})
	srv := newTestTidal(t, f, "")

	t.Run("tracks", func(t *testing.T) {
		tracks, err := srv.SearchTracks(ctx, `"Bohemian Rhapsody" "Queen"`, 10)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 1 {
			t.Fatalf("expected 1 track, got %d", len(tracks))
		}
		got := tracks[0]
		if got.ID != "77" || got.Artist != "Queen" || got.Album != "A Night at the Opera" || got.DurationMS != 354000 {
			t.Errorf("unexpected track %+v", got)
		}
	})

	t.Run("artists", func(t *testing.T) {
		artists, err := srv.SearchArtists(ctx, "Queen", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(artists) != 1 || artists[0].ID != "1" {
			t.Errorf("unexpected artists %+v", artists)
		}
	})

	t.Run("albums", func(t *testing.T) {
		albums, err := srv.SearchAlbums(ctx, "A Night at the Opera Queen", 1)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(albums) != 1 || albums[0].Name != "A Night at the Opera" || albums[0].Artist != "Queen" {
			t.Errorf("unexpected albums %+v", albums)
		}
	})
}

func TestTidalPlaylists(t *testing.T) {
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		f := newTidalFake(t)
		f.mux.HandleFunc("GET /users/42/playlists", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{
				"limit": 50, "offset": 0, "totalNumberOfItems": 1,
				"items": []map[string]any{{"uuid": "uuid-1", "title": "Road Trip", "numberOfTracks": 3}},
			})
		})
		srv := newTestTidal(t, f, "US")

		playlists, err := srv.Playlists(ctx)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(playlists) != 1 || playlists[0].ID != "uuid-1" || playlists[0].TrackCount != 3 {
			t.Errorf("unexpected playlists %+v", playlists)
		}
	})

	t.Run("create uses default description", func(t *testing.T) {
		f := newTidalFake(t)
		f.mux.HandleFunc("POST /users/42/playlists", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(t, w, map[string]any{"uuid": "new-uuid", "title": r.PostForm.Get("title"), "description": r.PostForm.Get("description")})
		})
		srv := newTestTidal(t, f, "US")

		p, err := srv.CreatePlaylist(ctx, "Road Trip", "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.ID != "new-uuid" || p.Name != "Road Trip" || p.Description != DefaultPlaylistDescription {
			t.Errorf("unexpected playlist %+v", p)
		}

		if _, err := srv.CreatePlaylist(ctx, "  ", ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("add tracks sends the playlist etag", func(t *testing.T) {
		f := newTidalFake(t)
		f.mux.HandleFunc("GET /playlists/uuid-1", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("ETag", `"etag-1"`)
			writeJSON(t, w, map[string]any{"uuid": "uuid-1"})
		})
		f.mux.HandleFunc("POST /playlists/uuid-1/items", func(w http.ResponseWriter, r *http.Request) {
			if got := r.Header.Get("If-None-Match"); got != `"etag-1"` {
				t.Errorf("expected etag header, got %q", got)
			}
			w.WriteHeader(http.StatusOK)
		})
		srv := newTestTidal(t, f, "US")

		if err := srv.AddTracks(ctx, "uuid-1", []string{"1", "2", "3"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := f.forms["/playlists/uuid-1/items trackIds"]; got != "1,2,3" {
			t.Errorf("expected trackIds 1,2,3, got %q", got)
		}
		if got := f.forms["/playlists/uuid-1/items onDupes"]; got != "FAIL" {
			t.Errorf("expected onDupes FAIL, got %q", got)
		}
	})

	t.Run("add tracks retries once on stale etag", func(t *testing.T) {
		f := newTidalFake(t)
		f.mux.HandleFunc("GET /playlists/uuid-1", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("ETag", `"etag"`)
		})
		posts := 0
		f.mux.HandleFunc("POST /playlists/uuid-1/items", func(w http.ResponseWriter, r *http.Request) {
			posts++
			if posts == 1 {
				w.WriteHeader(http.StatusPreconditionFailed)
				return
			}
			w.WriteHeader(http.StatusOK)
		})
		srv := newTestTidal(t, f, "US")

		if err := srv.AddTracks(ctx, "uuid-1", []string{"1"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if n := f.count(http.MethodGet, "/playlists/uuid-1"); n != 2 {
			t.Errorf("expected etag to be fetched twice, got %d", n)
		}
	})

	t.Run("add tracks to a missing playlist", func(t *testing.T) {
		srv := newTestTidal(t, newTidalFake(t), "US")
		if err := srv.AddTracks(ctx, "missing", []string{"1"}); !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("add no tracks is a no-op", func(t *testing.T) {
		f := newTidalFake(t)
		srv := newTestTidal(t, f, "US")
		if err := srv.AddTracks(ctx, "uuid-1", nil); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(f.requests) != 0 {
			t.Errorf("expected no requests, got %d", len(f.requests))
		}
	})
}

func TestTidalFavorites(t *testing.T) {
	ctx := context.Background()
	f := newTidalFake(t)
	for _, kind := range []string{"tracks", "artists", "albums"} {
		f.mux.HandleFunc("POST /users/42/favorites/"+kind, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	}
	srv := newTestTidal(t, f, "US")

	tests := []struct {
		name  string
		call  func() error
		field string
		want  string
	}{
		{name: "track", call: func() error { return srv.FavoriteTrack(ctx, "7") }, field: "/users/42/favorites/tracks trackIds", want: "7"},
		{name: "artist", call: func() error { return srv.FavoriteArtist(ctx, "8") }, field: "/users/42/favorites/artists artistIds", want: "8"},
		{name: "album", call: func() error { return srv.FavoriteAlbum(ctx, "9") }, field: "/users/42/favorites/albums albumIds", want: "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := f.forms[tt.field]; got != tt.want {
				t.Errorf("expected %s=%s, got %q", tt.field, tt.want, got)
			}
		})
	}

	t.Run("empty id", func(t *testing.T) {
		if err := srv.FavoriteTrack(ctx, ""); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestTidalDeviceFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /device", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("client_id") != "tidal-client" {
			t.Errorf("expected client_id, got %q", r.PostForm.Get("client_id"))
		}
		writeJSON(t, w, map[string]any{
			"device_code":      "dev-code",
			"user_code":        "ABCD-EFGH",
			"verification_uri": "link.tidal.com",
			"expires_in":       300,
			"interval":         1,
		})
	})
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("device_code") != "dev-code" {
			t.Errorf("expected device_code, got %q", r.PostForm.Get("device_code"))
		}
		writeJSON(t, w, map[string]any{
			"access_token":  "new-access",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	srv, err := NewTidalService(map[string]string{"client_id": "tidal-client"}, 1000)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	srv.config.Endpoint.DeviceAuthURL = server.URL + "/device"
	srv.config.Endpoint.TokenURL = server.URL + "/token"

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	da, err := srv.DeviceAuth(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if da.UserCode != "ABCD-EFGH" || da.VerificationURI != "link.tidal.com" {
		t.Errorf("unexpected device auth response %+v", da)
	}

	token, err := srv.DeviceAccessToken(ctx, da)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token.AccessToken != "new-access" || token.RefreshToken != "new-refresh" {
		t.Errorf("unexpected token %+v", token)
	}
}
