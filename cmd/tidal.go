package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/services"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) tidalDeviceAuth() (services.DeviceAuthService, error) {
	if svc, ok := r.tidal.(services.DeviceAuthService); ok {
		return svc, nil
	}

	creds := r.config.Credentials.Tidal
	if creds.ClientID == "" {
		return nil, fmt.Errorf("%w: TIDAL client_id must be set in config.toml or TIDAL_CLIENT_ID", shared.ErrMissingCredentials)
	}

	svc, err := services.NewTidalService(creds.Map(), r.config.Transfer.RequestsPerSecond)
	if err != nil {
		return nil, fmt.Errorf("failed to create TIDAL service: %w", err)
	}
	return svc, nil
}

// TidalAuth runs the OAuth2 device flow: it prints a verification link and code, then
// polls until the user approves the device or the code expires.
func (r *Runner) TidalAuth(ctx context.Context, cmd *cli.Command) error {
	srv, err := r.tidalDeviceAuth()
	if err != nil {
		return err
	}

	da, err := srv.DeviceAuth(ctx)
	if err != nil {
		return err
	}

	link := da.VerificationURIComplete
	if link == "" {
		link = da.VerificationURI
	}
	if !strings.HasPrefix(link, "http") {
		link = "https://" + link
	}

	r.writePlain("→ Visit %s and confirm the code %s\n", link, da.UserCode)
	if err := shared.OpenBrowser(link); err != nil {
		r.logger.Debug("failed to open browser automatically", "error", err)
	}
	r.writePlain("→ Waiting for approval...\n")

	token, err := srv.DeviceAccessToken(ctx, da)
	if err != nil {
		return err
	}

	if err := r.saveTidalTokens(token); err != nil {
		return err
	}
	if err := srv.OAuthenticate(ctx, token); err != nil {
		return fmt.Errorf("failed to authenticate with new tokens: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	if r.configPath != "" {
		r.writePlain("✓ Tokens saved to %s\n\n", r.configPath)
	}
	r.writePlain("You can now use: %s tidal search \"artist title\"\n", shared.AppName)
	return nil
}

// TidalSearch prints the TIDAL catalog hits for a free-text query.
func (r *Runner) TidalSearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}
	if r.tidal == nil {
		return fmt.Errorf("%w: TIDAL service not initialized", shared.ErrServiceUnavailable)
	}

	tracks, err := r.tidal.SearchTracks(ctx, query, cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}

	if len(tracks) == 0 {
		return r.writePlain("No tracks found for %q\n", query)
	}
	return r.writeTable(formatter.RenderTracks(tracks))
}
