package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnv(t *testing.T) {
	t.Run("missing file is skipped", func(t *testing.T) {
		if err := LoadEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
			t.Errorf("LoadEnv() error = %v, want nil", err)
		}
	})

	t.Run("values override config credentials", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		content := "TDX_TEST_ONLY=1\nSPOTIFY_CLIENT_ID=from_env\nTIDAL_CLIENT_ID=tidal_env\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write env file: %v", err)
		}

		t.Setenv("SPOTIFY_CLIENT_ID", "")
		t.Setenv("TIDAL_CLIENT_ID", "")
		os.Unsetenv("SPOTIFY_CLIENT_ID")
		os.Unsetenv("TIDAL_CLIENT_ID")
		t.Cleanup(func() { os.Unsetenv("TDX_TEST_ONLY") })

		if err := LoadEnv(path); err != nil {
			t.Fatalf("LoadEnv() error = %v", err)
		}

		config := DefaultConfig()
		config.ApplyEnv()

		if config.Credentials.Spotify.ClientID != "from_env" {
			t.Errorf("Spotify.ClientID = %s, want from_env", config.Credentials.Spotify.ClientID)
		}
		if config.Credentials.Tidal.ClientID != "tidal_env" {
			t.Errorf("Tidal.ClientID = %s, want tidal_env", config.Credentials.Tidal.ClientID)
		}
		if config.Credentials.Spotify.ClientSecret != "your_spotify_client_secret" {
			t.Errorf("unset variables should keep file values, got %s", config.Credentials.Spotify.ClientSecret)
		}
	})
}
