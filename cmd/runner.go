package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tdx/internal/matcher"
	"github.com/desertthunder/tdx/internal/repositories"
	"github.com/desertthunder/tdx/internal/services"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/desertthunder/tdx/internal/tasks"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	spotify     services.Source
	tidal       services.Destination
	db          *sql.DB
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	interactive bool

	// mu guards config writes from token refresh callbacks.
	mu sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    services.Source
	Tidal      services.Destination
	DB         *sql.DB
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		spotify:     opts.Spotify,
		tidal:       opts.Tidal,
		db:          opts.DB,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		interactive: isTerminal(opts.Output),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// SetLogger replaces the logger used by the runner and everything it builds afterwards.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// Before loads configuration and connects the services before any command runs.
//
// Missing credentials or tokens are not fatal here: commands that need a service
// report it as unavailable.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	if path := cmd.String("config"); path != "" {
		r.configPath = path
	}
	r.loadConfig()

	if r.spotify == nil {
		if svc := r.connectSpotify(ctx); svc != nil {
			r.spotify = svc
		}
	}
	if r.tidal == nil {
		if svc := r.connectTidal(ctx); svc != nil {
			r.tidal = svc
		}
	}
	return ctx, nil
}

// After releases the database.
func (r *Runner) After(ctx context.Context, cmd *cli.Command) error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

func (r *Runner) loadConfig() {
	if r.configPath != "" {
		config, err := shared.LoadConfig(r.configPath)
		switch {
		case errors.Is(err, shared.ErrMissingConfig):
			r.logger.Debug("config file not found, using defaults", "path", r.configPath)
		case err != nil:
			r.logger.Warn("failed to load config, using defaults", "path", r.configPath, "error", err)
		default:
			r.config = config
		}
	}
	r.config.ApplyEnv()
}

// connectSpotify builds the Spotify client. It returns nil when no credentials are configured.
func (r *Runner) connectSpotify(ctx context.Context) *services.SpotifyService {
	creds := r.config.Credentials.Spotify
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil
	}

	svc, err := services.NewSpotifyService(creds.Map())
	if err != nil {
		r.logger.Warn("failed to create Spotify service", "error", err)
		return nil
	}

	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveTokens(token); err != nil {
			r.logger.Warn("failed to persist refreshed Spotify token", "error", err)
		}
	})
	if token := creds.Token(); token != nil {
		if err := svc.OAuthenticate(ctx, token); err != nil {
			r.logger.Warn("failed to authenticate Spotify", "error", err)
		}
	}
	return svc
}

// connectTidal builds the TIDAL client. It returns nil when no client id is configured.
func (r *Runner) connectTidal(ctx context.Context) *services.TidalService {
	creds := r.config.Credentials.Tidal
	if creds.ClientID == "" {
		return nil
	}

	svc, err := services.NewTidalService(creds.Map(), r.config.Transfer.RequestsPerSecond)
	if err != nil {
		r.logger.Warn("failed to create TIDAL service", "error", err)
		return nil
	}

	svc.SetTokenRefreshCallback(func(token *oauth2.Token) {
		if err := r.saveTidalTokens(token); err != nil {
			r.logger.Warn("failed to persist refreshed TIDAL token", "error", err)
		}
	})
	if token := creds.Token(); token != nil {
		if err := svc.OAuthenticate(ctx, token); err != nil {
			r.logger.Warn("failed to authenticate TIDAL", "error", err)
		}
	}
	return svc
}

// saveTokens stores a Spotify token in the config and writes it to disk when a config path is set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	return r.saveToken("spotify", func(c *shared.Config) *shared.TokenConfig {
		return &c.Credentials.Spotify.TokenConfig
	}, token)
}

// saveTidalTokens is [Runner.saveTokens] for TIDAL.
func (r *Runner) saveTidalTokens(token *oauth2.Token) error {
	return r.saveToken("tidal", func(c *shared.Config) *shared.TokenConfig {
		return &c.Credentials.Tidal.TokenConfig
	}, token)
}

func (r *Runner) saveToken(service string, field func(*shared.Config) *shared.TokenConfig, token *oauth2.Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config == nil {
		return errors.New("config is nil")
	}

	if err := field(r.config).Update(token); err != nil {
		return fmt.Errorf("failed to update %s configuration: %w", service, err)
	}

	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	r.logger.Debug("token saved", "service", service, "path", r.configPath)
	return nil
}

// database opens the configured database on first use. Failures are logged and yield nil.
func (r *Runner) database() *sql.DB {
	if r.db != nil {
		return r.db
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		r.logger.Warn("database unavailable, match cache and history disabled", "path", r.config.Database.Path, "error", err)
		return nil
	}
	r.db = db
	return db
}

// requireDatabase is [Runner.database] for commands that cannot work without it.
func (r *Runner) requireDatabase() (*sql.DB, error) {
	if db := r.database(); db != nil {
		return db, nil
	}
	return nil, fmt.Errorf("%w: database %s could not be opened, run `tdx setup database`", shared.ErrServiceUnavailable, r.config.Database.Path)
}

// engineOpts overrides transfer settings for one command.
type engineOpts struct {
	workers   int
	batchSize int
	noDB      bool
}

func (r *Runner) newEngine(o engineOpts) *tasks.Engine {
	t := r.config.Transfer

	mopts := matcher.Options{
		SearchLimit: t.SearchLimit,
		Pause:       t.QueryPause(),
		Workers:     t.Workers,
		Logger:      shared.WithLogger(r.logger, "component", "matcher"),
	}
	if o.workers > 0 {
		mopts.Workers = o.workers
	}

	opts := tasks.Options{
		ExportsDir: t.ExportsDir,
		BatchSize:  t.BatchSize,
		Workers:    mopts.Workers,
		RateLimit:  t.RequestsPerSecond,
		Matcher:    mopts,
		Logger:     shared.WithLogger(r.logger, "component", "tasks"),
	}
	if o.batchSize > 0 {
		opts.BatchSize = o.batchSize
	}

	if !o.noDB {
		if db := r.database(); db != nil {
			opts.Cache = repositories.NewMatchCacheAdapter(repositories.NewMatchRepository(db))
			opts.Runs = repositories.NewImportRunRepository(db)
		}
	}

	return tasks.NewEngine(r.spotify, r.tidal, opts)
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, tidalCommand, exportCommand, importCommand, matchCommand,
		filesCommand, historyCommand, cacheCommand, testCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writeTable(rendered string) error {
	return r.writePlain("%s\n", rendered)
}
