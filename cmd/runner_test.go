package main

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/tdx/internal/shared"
	tu "github.com/desertthunder/tdx/internal/testing"
	"golang.org/x/oauth2"
)

func TestNewRunner(t *testing.T) {
	t.Run("keeps provided dependencies", func(t *testing.T) {
		config := shared.DefaultConfig()
		logger := shared.NewLogger(nil)
		output := &bytes.Buffer{}
		httpClient := &http.Client{}
		spotify := &tu.MockSource{}
		tidal := tu.NewMockDestination()

		runner := NewRunner(RunnerOpts{
			Config:     config,
			ConfigPath: "/test/path/config.toml",
			Logger:     logger,
			Output:     output,
			HTTPClient: httpClient,
			Spotify:    spotify,
			Tidal:      tidal,
		})

		switch {
		case runner.config != config:
			t.Error("expected config to be set")
		case runner.configPath != "/test/path/config.toml":
			t.Errorf("expected configPath to be set, got %s", runner.configPath)
		case runner.logger != logger:
			t.Error("expected logger to be set")
		case runner.output != output:
			t.Error("expected output to be set")
		case runner.httpClient != httpClient:
			t.Error("expected httpClient to be set")
		case runner.spotify != spotify:
			t.Error("expected spotify to be set")
		case runner.tidal != tidal:
			t.Error("expected tidal to be set")
		case runner.interactive:
			t.Error("expected a buffer not to be treated as a terminal")
		}
	})

	t.Run("fills defaults", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})

		if runner.config == nil {
			t.Error("expected default config")
		}
		if runner.logger == nil {
			t.Error("expected default logger")
		}
		if runner.output != os.Stdout {
			t.Error("expected output to default to os.Stdout")
		}
		if runner.httpClient != http.DefaultClient {
			t.Error("expected httpClient to default to http.DefaultClient")
		}
		if runner.configPath != "" || runner.spotify != nil || runner.tidal != nil {
			t.Error("expected no config path or services")
		}
	})
}

func TestRunnerOutput(t *testing.T) {
	limited := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})

	tests := []struct {
		name    string
		output  io.Writer
		write   func(r *Runner) error
		want    string
		wantErr string
	}{
		{
			name:   "pretty JSON",
			output: &bytes.Buffer{},
			write:  func(r *Runner) error { return r.writeJSON(map[string]string{"key": "value"}, true) },
			want:   "{\n  \"key\": \"value\"\n}\n",
		},
		{
			name:   "compact JSON",
			output: &bytes.Buffer{},
			write:  func(r *Runner) error { return r.writeJSON(map[string]string{"key": "value"}, false) },
			want:   `{"key":"value"}` + "\n",
		},
		{
			name:    "JSON marshal failure",
			output:  &bytes.Buffer{},
			write:   func(r *Runner) error { return r.writeJSON(make(chan int), false) },
			wantErr: "failed to marshal JSON",
		},
		{
			name:    "JSON write failure",
			output:  &tu.FWriter{},
			write:   func(r *Runner) error { return r.writeJSON([]int{1}, false) },
			wantErr: "failed to write output",
		},
		{
			name:    "JSON newline failure",
			output:  &limited,
			write:   func(r *Runner) error { return r.writeJSON([]int{1}, false) },
			wantErr: "failed to write newline",
		},
		{
			name:   "plain text",
			output: &bytes.Buffer{},
			write:  func(r *Runner) error { return r.writePlain("hello %s", "world") },
			want:   "hello world",
		},
		{
			name:    "plain write failure",
			output:  &tu.FWriter{},
			write:   func(r *Runner) error { return r.writePlain("test") },
			wantErr: "failed to write output",
		},
		{
			name:   "plain line",
			output: &bytes.Buffer{},
			write:  func(r *Runner) error { return r.writePlainln("done %d", 3) },
			want:   "\ndone 3\n",
		},
		{
			name:   "table",
			output: &bytes.Buffer{},
			write:  func(r *Runner) error { return r.writeTable("| a |") },
			want:   "| a |\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: tt.output})
			err := tt.write(runner)

			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got := tt.output.(*bytes.Buffer).String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRegister(t *testing.T) {
	commands := NewRunner(RunnerOpts{}).register()

	names := map[string]bool{}
	for i, cmd := range commands {
		if cmd == nil {
			t.Fatalf("command at index %d is nil", i)
		}
		names[cmd.Name] = true
	}

	for _, name := range []string{"setup", "spotify", "tidal", "export", "import", "match", "files", "history", "cache", "test", "tui"} {
		if !names[name] {
			t.Errorf("expected %q command to be registered", name)
		}
	}
}

func TestSaveTokens(t *testing.T) {
	token := &oauth2.Token{AccessToken: "access", RefreshToken: "refresh"}

	tests := []struct {
		name    string
		save    func(r *Runner, tok *oauth2.Token) error
		stored  func(c *shared.Config) shared.TokenConfig
		other   func(c *shared.Config) shared.TokenConfig
		service string
	}{
		{
			name:    "spotify",
			save:    (*Runner).saveTokens,
			stored:  func(c *shared.Config) shared.TokenConfig { return c.Credentials.Spotify.TokenConfig },
			other:   func(c *shared.Config) shared.TokenConfig { return c.Credentials.Tidal.TokenConfig },
			service: "spotify",
		},
		{
			name:    "tidal",
			save:    (*Runner).saveTidalTokens,
			stored:  func(c *shared.Config) shared.TokenConfig { return c.Credentials.Tidal.TokenConfig },
			other:   func(c *shared.Config) shared.TokenConfig { return c.Credentials.Spotify.TokenConfig },
			service: "tidal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Run("writes the config file", func(t *testing.T) {
				configPath := filepath.Join(t.TempDir(), "config.toml")
				runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig(), ConfigPath: configPath})

				if err := tt.save(runner, token); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				loaded, err := shared.LoadConfig(configPath)
				if err != nil {
					t.Fatalf("failed to reload config: %v", err)
				}
				if got := tt.stored(loaded); got.AccessToken != "access" || got.RefreshToken != "refresh" {
					t.Errorf("expected tokens to be saved, got %+v", got)
				}
				if got := tt.other(loaded); got.AccessToken != "" {
					t.Errorf("expected the other service to be untouched, got %+v", got)
				}
			})

			t.Run("updates memory only without a config path", func(t *testing.T) {
				config := shared.DefaultConfig()
				runner := NewRunner(RunnerOpts{Config: config})

				if err := tt.save(runner, token); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				if tt.stored(config).AccessToken != "access" {
					t.Error("expected config to be updated in memory")
				}
			})

			t.Run("nil config", func(t *testing.T) {
				runner := NewRunner(RunnerOpts{ConfigPath: "/tmp/test.toml"})
				runner.config = nil

				err := tt.save(runner, token)
				if err == nil || !strings.Contains(err.Error(), "config is nil") {
					t.Errorf("expected nil config error, got %v", err)
				}
			})

			t.Run("nil token", func(t *testing.T) {
				runner := NewRunner(RunnerOpts{Config: shared.DefaultConfig()})

				err := tt.save(runner, nil)
				if err == nil {
					t.Fatal("expected error for nil token")
				}
				if !strings.Contains(err.Error(), "failed to update "+tt.service+" configuration") {
					t.Errorf("expected update error, got %v", err)
				}
				if !strings.Contains(err.Error(), "token cannot be nil") {
					t.Errorf("expected nil token error in chain, got %v", err)
				}
			})

			t.Run("unwritable config path", func(t *testing.T) {
				runner := NewRunner(RunnerOpts{
					Config:     shared.DefaultConfig(),
					ConfigPath: filepath.Join(t.TempDir(), "missing", "config.toml"),
				})

				err := tt.save(runner, token)
				if err == nil || !strings.Contains(err.Error(), "failed to save config") {
					t.Errorf("expected save config error, got %v", err)
				}
			})
		})
	}
}

func TestNewEngineWorkers(t *testing.T) {
	tests := []struct {
		name     string
		config   int
		override int
		want     int
	}{
		{name: "config value", config: 6, want: 6},
		{name: "flag overrides config", config: 6, override: 3, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Transfer.Workers = tt.config
			runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})

			engine := runner.newEngine(engineOpts{workers: tt.override, noDB: true})
			if got := engine.Workers(); got != tt.want {
				t.Errorf("expected %d fetch workers, got %d", tt.want, got)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file keeps defaults", func(t *testing.T) {
		config := shared.DefaultConfig()
		runner := NewRunner(RunnerOpts{
			Config:     config,
			ConfigPath: filepath.Join(t.TempDir(), "absent.toml"),
			Logger:     shared.NewLogger(io.Discard),
		})

		runner.loadConfig()
		if runner.config != config {
			t.Error("expected the default config to be kept")
		}
	})

	t.Run("reads an existing file", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		saved := shared.DefaultConfig()
		saved.Transfer.BatchSize = 7
		if err := shared.SaveConfig(configPath, saved); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		runner := NewRunner(RunnerOpts{ConfigPath: configPath, Logger: shared.NewLogger(io.Discard)})
		runner.loadConfig()
		if runner.config.Transfer.BatchSize != 7 {
			t.Errorf("expected batch size 7 from file, got %d", runner.config.Transfer.BatchSize)
		}
	})
}
