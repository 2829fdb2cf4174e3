// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/tdx/internal/matcher"
	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if needed, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify library operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "playlists",
				Usage: "List Spotify playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to show",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
		},
	}
}

// tidalCommand handles TIDAL operations
func tidalCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tidal",
		Usage: "TIDAL catalog operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with TIDAL using the device flow",
				Action: r.TidalAuth,
			},
			{
				Name:  "search",
				Usage: "Search the TIDAL catalog for tracks",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of results",
						Value: matcher.DefaultSearchLimit,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.TidalSearch,
			},
		},
	}
}

// exportCommand writes Spotify library sections to CSV.
func exportCommand(r *Runner) *cli.Command {
	sub := func(name, usage string) *cli.Command {
		return &cli.Command{
			Name:   name,
			Usage:  usage,
			Action: r.Export,
		}
	}

	return &cli.Command{
		Name:  "export",
		Usage: "Export your Spotify library to CSV",
		Commands: []*cli.Command{
			sub("tracks", "Export liked songs"),
			sub("playlists", "Export playlists and their tracks"),
			sub("albums", "Export saved albums"),
			sub("artists", "Export followed artists"),
			sub("all", "Export every section of the library"),
		},
	}
}

// importCommand transfers a CSV export into TIDAL.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import a CSV export into TIDAL",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "file"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pick",
				Usage: "Import the newest importable CSV in the exports directory",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Match tracks without writing anything to TIDAL",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Neither consult nor fill the match cache",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Concurrent matcher workers (overrides transfer.workers)",
			},
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Tracks per playlist add request (overrides transfer.batch_size)",
			},
		},
		Action: r.Import,
	}
}

// matchCommand explains how a single track would be matched.
func matchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "match",
		Usage: "Show the queries and scores used to match one track",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "title",
				Usage:    "Track title",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "artist",
				Usage:    "Track artist(s), comma separated",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "album",
				Usage: "Album name",
			},
			&cli.IntFlag{
				Name:  "duration-ms",
				Usage: "Track duration in milliseconds",
			},
		},
		Action: r.Match,
	}
}

func filesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "files",
		Usage:  "List CSV files in the exports directory",
		Action: r.Files,
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded imports",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show runs with this status (running, completed, failed)",
			},
		},
		Action: r.History,
	}
}

// cacheCommand manages the persistent match cache.
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the match cache",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List cached matches",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of matches to show",
						Value: 50,
					},
					&cli.FloatFlag{
						Name:  "min-score",
						Usage: "Only show matches scoring at least this much",
					},
				},
				Action: r.CacheList,
			},
			{
				Name:   "clear",
				Usage:  "Delete every cached match",
				Action: r.CacheClear,
			},
		},
	}
}

func testCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "test",
		Usage:  "Check the Spotify and TIDAL connections",
		Action: r.Test,
	}
}

// tuiCommand returns the top-level TUI command for the interactive menu.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive menu",
		Action:  r.TUI,
	}
}
