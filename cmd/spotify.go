package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/server"
	"github.com/desertthunder/tdx/internal/services"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const authTimeout = 2 * time.Minute

// spotifyOAuth returns the connected Spotify client, or a fresh one built from the config.
func (r *Runner) spotifyOAuth() (services.OAuthService, error) {
	if svc, ok := r.spotify.(services.OAuthService); ok {
		return svc, nil
	}

	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: Spotify client_id and client_secret must be set in config.toml or SPOTIFY_CLIENT_ID/SPOTIFY_CLIENT_SECRET", shared.ErrMissingCredentials)
	}

	svc, err := services.NewSpotifyService(creds.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	return svc, nil
}

// SpotifyAuth performs the OAuth2 authorization code flow for Spotify.
//
// Starts a local HTTP server on the redirect URI, opens the browser for user authorization,
// and exchanges the code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	srv, err := r.spotifyOAuth()
	if err != nil {
		return err
	}

	token, err := r.doOAuth(ctx, srv, "authorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}
	if err := srv.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	}
	r.writePlain("You can now use: %s spotify playlists\n", shared.AppName)
	return nil
}

// SpotifyReauth runs the OAuth2 flow again and re-authenticates the connected client.
func (r *Runner) SpotifyReauth(ctx context.Context, srv services.OAuthService) error {
	token, err := r.doOAuth(ctx, srv, "reauthorization")
	if err != nil {
		return err
	}

	if err := r.saveTokens(token); err != nil {
		return err
	}
	if err := srv.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlainln("✓ Reauthorization successful")
	return nil
}

// SpotifyPlaylists lists Spotify playlists with optional limit.
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")

	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized", shared.ErrServiceUnavailable)
	}

	r.logger.Debugf("listing spotify playlists with limit %v", limit)

	var playlists []models.Playlist
	err := r.withSpotifyReauth(ctx, func() error {
		var err error
		playlists, err = r.spotify.Playlists(ctx)
		return err
	})
	if err != nil {
		return err
	}

	if limit > 0 && limit < len(playlists) {
		playlists = playlists[:limit]
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, cmd.Bool("pretty"))
	}

	r.writePlain("Found %d playlists:\n\n", len(playlists))
	return r.writeTable(formatter.RenderPlaylists(playlists))
}

// withSpotifyReauth runs fn, and when it fails with an expired token runs the OAuth
// flow once and retries.
func (r *Runner) withSpotifyReauth(ctx context.Context, fn func() error) error {
	err := fn()
	if reauthed, authErr := r.handleSpotifyAuthError(ctx, err); reauthed {
		if authErr != nil {
			return authErr
		}
		err = fn()
	}
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}
	return nil
}

// doOAuth executes the OAuth2 authorization flow with a local HTTP server
func (r *Runner) doOAuth(ctx context.Context, oauthSrv services.OAuthService, prefix string) (*oauth2.Token, error) {
	state, err := shared.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state token: %w", err)
	}

	config := oauthSrv.GetOAuthConfig()
	oauthHandler := server.NewOAuthHandler(config, state, "Spotify")
	router := server.NewBasicRouter()
	router.Use(server.Logging(r.logger))
	router.Handler(oauthHandler)

	fallback := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	srv, err := server.Listen(server.CallbackAddr(config.RedirectURL, fallback), router, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start callback server: %w", err)
	}
	defer srv.Shutdown(context.Background())

	r.logger.Infof("started OAuth server for %s at %v", prefix, srv.Addr())

	authURL := oauthSrv.GetAuthURL(state)
	r.writePlain("→ Opening browser for Spotify %s...\n", prefix)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	timeout := time.NewTimer(authTimeout)
	defer timeout.Stop()

	var result server.OAuthResult
	select {
	case result = <-oauthHandler.Result():
	case err := <-srv.Errors():
		return nil, fmt.Errorf("server error: %w", err)
	case <-timeout.C:
		return nil, fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if result.Error() != nil {
		return nil, fmt.Errorf("authorization failed: %w", result.Error())
	}
	if result.Token == nil {
		return nil, fmt.Errorf("%w: no token received", shared.ErrAuthFailed)
	}
	return result.Token, nil
}

// handleSpotifyAuthError checks if an error is a token expiration error and triggers reauthorization if needed.
func (r *Runner) handleSpotifyAuthError(ctx context.Context, err error) (bool, error) {
	if err == nil || !errors.Is(err, shared.ErrTokenExpired) {
		return false, nil
	}

	spotifyService, ok := r.spotify.(services.OAuthService)
	if !ok {
		return false, nil
	}

	r.writePlainln("⚠ Authentication token expired. Starting reauthorization...\n")
	if err := r.SpotifyReauth(ctx, spotifyService); err != nil {
		return true, fmt.Errorf("reauthorization failed: %w", err)
	}

	r.writePlainln("✓ Successfully reauthenticated. Retrying operation...\n")
	return true, nil
}
