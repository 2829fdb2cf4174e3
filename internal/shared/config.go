package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// DefaultRedirectURI is the Spotify callback served by the local OAuth server.
const DefaultRedirectURI = "http://127.0.0.1:3000/callback"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Transfer    TransferConfig    `toml:"transfer"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Tidal   TidalConfig   `toml:"tidal"`
}

// TokenConfig holds a persisted OAuth2 token.
//
// TokenExpiry is stored as RFC 3339 text so that an empty value round trips.
type TokenConfig struct {
	AccessToken  string `toml:"access_token"`
	RefreshToken string `toml:"refresh_token"`
	TokenExpiry  string `toml:"token_expiry"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	TokenConfig
}

// TidalConfig contains TIDAL API credentials.
type TidalConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CountryCode  string `toml:"country_code"`
	TokenConfig
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// TransferConfig tunes exports, imports and the matcher.
type TransferConfig struct {
	ExportsDir        string  `toml:"exports_dir"`
	BatchSize         int     `toml:"batch_size"`
	Workers           int     `toml:"workers"`
	SearchLimit       int     `toml:"search_limit"`
	QueryPauseMS      int     `toml:"query_pause_ms"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	UseCache          bool    `toml:"use_cache"`
}

// QueryPause returns the pause applied between search queries of one record.
func (t TransferConfig) QueryPause() time.Duration {
	return time.Duration(t.QueryPauseMS) * time.Millisecond
}

// Token converts the stored credentials into an [oauth2.Token].
//
// A nil token is returned when no access token has been saved yet.
func (c TokenConfig) Token() *oauth2.Token {
	if c.AccessToken == "" {
		return nil
	}

	token := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}
	if c.TokenExpiry != "" {
		if expiry, err := time.Parse(time.RFC3339, c.TokenExpiry); err == nil {
			token.Expiry = expiry
		}
	}
	return token
}

// Update stores token values, keeping the existing refresh token when the provider omits one.
func (c *TokenConfig) Update(token *oauth2.Token) error {
	if token == nil {
		return fmt.Errorf("%w: token cannot be nil", ErrInvalidInput)
	}

	c.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.RefreshToken = token.RefreshToken
	}
	if token.Expiry.IsZero() {
		c.TokenExpiry = ""
	} else {
		c.TokenExpiry = token.Expiry.UTC().Format(time.RFC3339)
	}
	return nil
}

// Map flattens the Spotify credentials for service constructors.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Map flattens the TIDAL credentials for service constructors.
func (t TidalConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     t.ClientID,
		"client_secret": t.ClientSecret,
		"country_code":  t.CountryCode,
	}
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// A missing file is reported as [ErrMissingConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.fillDefaults(DefaultConfig())
	return &config, nil
}

// fillDefaults copies non-credential settings from d where c leaves them unset.
func (c *Config) fillDefaults(d *Config) {
	if c.Database.Path == "" {
		c.Database = d.Database
	}
	if c.Server.Host == "" {
		c.Server.Host = d.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = d.Server.Port
	}
	if c.Credentials.Tidal.CountryCode == "" {
		c.Credentials.Tidal.CountryCode = d.Credentials.Tidal.CountryCode
	}

	t := &c.Transfer
	if t.ExportsDir == "" {
		t.ExportsDir = d.Transfer.ExportsDir
	}
	if t.BatchSize <= 0 {
		t.BatchSize = d.Transfer.BatchSize
	}
	if t.Workers <= 0 {
		t.Workers = d.Transfer.Workers
	}
	if t.SearchLimit <= 0 {
		t.SearchLimit = d.Transfer.SearchLimit
	}
	if t.QueryPauseMS < 0 {
		t.QueryPauseMS = d.Transfer.QueryPauseMS
	}
	if t.RequestsPerSecond <= 0 {
		t.RequestsPerSecond = d.Transfer.RequestsPerSecond
	}
}

// SaveConfig writes the configuration back to disk, replacing the file.
func SaveConfig(path string, config *Config) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidConfig)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, os.ErrExist)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
