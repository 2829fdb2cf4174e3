package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

type fakeExchanger struct {
	token *oauth2.Token
	err   error
	codes []string
}

func (f *fakeExchanger) Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	f.codes = append(f.codes, code)
	return f.token, f.err
}

func newHandler(ex Exchanger) *OAuthHandler {
	h := NewOAuthHandler(&oauth2.Config{RedirectURL: "http://127.0.0.1:3000/cb"}, "state-1", "Spotify")
	h.exchanger = ex
	return h
}

func TestOAuthHandler(t *testing.T) {
	t.Run("routes follow the redirect URL", func(t *testing.T) {
		h := newHandler(&fakeExchanger{})
		if got := h.Routes(); len(got) != 1 || got[0] != "/cb" {
			t.Errorf("expected [/cb], got %v", got)
		}
	})

	t.Run("exchanges the code", func(t *testing.T) {
		ex := &fakeExchanger{token: &oauth2.Token{AccessToken: "abc"}}
		h := newHandler(ex)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=state-1&code=xyz", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Spotify authorization complete") {
			t.Errorf("unexpected body %q", rec.Body.String())
		}

		res := <-h.Result()
		if res.Error() != nil {
			t.Fatalf("unexpected error %v", res.Error())
		}
		if res.Token.AccessToken != "abc" {
			t.Errorf("expected token abc, got %s", res.Token.AccessToken)
		}
		if len(ex.codes) != 1 || ex.codes[0] != "xyz" {
			t.Errorf("expected code xyz, got %v", ex.codes)
		}
	})

	t.Run("rejects state mismatch", func(t *testing.T) {
		h := newHandler(&fakeExchanger{})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=wrong&code=xyz", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if res := <-h.Result(); res.Error() == nil {
			t.Error("expected state error")
		}
	})

	t.Run("reports denied authorization", func(t *testing.T) {
		h := newHandler(&fakeExchanger{})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=state-1&error=access_denied", nil))

		res := <-h.Result()
		if res.Error() == nil || !strings.Contains(res.Error().Error(), "access_denied") {
			t.Errorf("expected access_denied error, got %v", res.Error())
		}
	})

	t.Run("reports exchange failure", func(t *testing.T) {
		h := newHandler(&fakeExchanger{err: errors.New("bad code")})

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=state-1&code=xyz", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
		if res := <-h.Result(); res.Error() == nil {
			t.Error("expected exchange error")
		}
	})

	t.Run("processes one callback", func(t *testing.T) {
		h := newHandler(&fakeExchanger{token: &oauth2.Token{AccessToken: "abc"}})

		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cb?state=state-1&code=1", nil))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cb?state=state-1&code=2", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected second callback to be rejected, got %d", rec.Code)
		}
	})
}

func TestCallbackURL(t *testing.T) {
	tests := []struct {
		url, path, addr string
	}{
		{"http://127.0.0.1:3000/callback", "/callback", "127.0.0.1:3000"},
		{"http://localhost:8888/auth/spotify", "/auth/spotify", "localhost:8888"},
		{"http://127.0.0.1:3000", DefaultCallbackPath, "127.0.0.1:3000"},
		{"", DefaultCallbackPath, "fallback:1"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := CallbackPath(tt.url); got != tt.path {
				t.Errorf("CallbackPath = %q, want %q", got, tt.path)
			}
			if got := CallbackAddr(tt.url, "fallback:1"); got != tt.addr {
				t.Errorf("CallbackAddr = %q, want %q", got, tt.addr)
			}
		})
	}
}

func TestRouter(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewBasicRouter()
	router.Use(mw("outer"), mw("inner"))
	router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "pong")
	}))

	t.Run("applies middleware in order", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		if rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %q", rec.Body.String())
		}
		if strings.Join(order, ",") != "outer,inner" {
			t.Errorf("unexpected middleware order %v", order)
		}
	})

	t.Run("rejects other methods", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestListen(t *testing.T) {
	router := NewBasicRouter()
	router.Use(Logging(log.New(io.Discard)))
	router.Handle(http.MethodGet, "/ok", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	srv, err := Listen("127.0.0.1:0", router, log.New(io.Discard))
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/ok")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}
