package shared

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads KEY=value pairs from the given dotenv files into the process environment.
//
// Missing files are skipped and variables already present in the environment win.
func LoadEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides credentials with values from the environment.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}

	override(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	override(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	override(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI")
	override(&c.Credentials.Tidal.ClientID, "TIDAL_CLIENT_ID")
	override(&c.Credentials.Tidal.ClientSecret, "TIDAL_CLIENT_SECRET")
	override(&c.Credentials.Tidal.CountryCode, "TIDAL_COUNTRY_CODE")
}
