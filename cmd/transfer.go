package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/matcher"
	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/desertthunder/tdx/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Export writes the library section named by the subcommand to CSV.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	kind, err := tasks.ParseExportKind(cmd.Name)
	if err != nil {
		return err
	}
	if r.spotify == nil {
		return fmt.Errorf("%w: Spotify service not initialized, run `%s spotify auth`", shared.ErrServiceUnavailable, shared.AppName)
	}

	engine := r.newEngine(engineOpts{noDB: true})
	r.logger.Debug("exporting", "kind", kind, "workers", engine.Workers())

	var result *tasks.ExportResult
	err = r.withSpotifyReauth(ctx, func() error {
		progress, stop := r.startProgress("exporting " + kind.String())
		defer stop()

		var err error
		result, err = engine.Export(ctx, progress, kind)
		return err
	})
	if err != nil {
		return err
	}

	return r.printExport(result)
}

func (r *Runner) printExport(result *tasks.ExportResult) error {
	if len(result.Files) == 0 {
		r.writePlain("Nothing to export for %s\n", result.Kind)
	} else {
		rows := make([][]string, 0, len(result.Files))
		for _, f := range result.Files {
			rows = append(rows, []string{f.Kind.String(), f.Path, humanize.Comma(int64(f.Rows))})
		}
		r.writePlain("✓ Export complete\n\n")
		r.writeTable(formatter.RenderTable(
			[]string{"Kind", "File", "Rows"},
			rows,
			[]formatter.Alignment{formatter.AlignLeft, formatter.AlignLeft, formatter.AlignRight},
		))
	}

	for _, err := range result.Errors {
		r.writePlain("⚠ %v\n", err)
	}
	return nil
}

// Import transfers a CSV export into TIDAL.
//
// The file comes from the positional argument, or with --pick from the newest importable
// export.
func (r *Runner) Import(ctx context.Context, cmd *cli.Command) error {
	engine := r.newEngine(engineOpts{
		workers:   cmd.Int("workers"),
		batchSize: cmd.Int("batch-size"),
	})

	path, err := r.importPath(cmd.StringArg("file"), cmd.Bool("pick"), engine.ExportsDir())
	if err != nil {
		return err
	}

	opts := tasks.ImportOptions{
		DryRun:   cmd.Bool("dry-run"),
		UseCache: r.config.Transfer.UseCache && !cmd.Bool("no-cache"),
	}
	r.logger.Info("importing", "file", path, "dry_run", opts.DryRun, "cache", opts.UseCache)

	progress, stop := r.startProgress("importing " + filepath.Base(path))
	result, err := engine.Import(ctx, progress, path, opts)
	stop()

	if result != nil {
		r.printImport(result)
	}
	return err
}

func (r *Runner) importPath(arg string, pick bool, dir string) (string, error) {
	switch {
	case arg != "" && pick:
		return "", fmt.Errorf("%w: pass a file or --pick, not both", shared.ErrInvalidArgument)
	case arg != "":
		return arg, nil
	case pick:
		f, err := formatter.LatestImportable(dir)
		if err != nil {
			return "", err
		}
		r.writePlain("→ Picked %s\n", f.Name)
		return f.Path, nil
	default:
		return "", fmt.Errorf("%w: CSV file to import (or --pick)", shared.ErrMissingArgument)
	}
}

func (r *Runner) printImport(result *tasks.ImportResult) {
	if result.DryRun {
		r.writePlain("✓ Dry run complete\n\n")
	} else {
		r.writePlain("✓ Import complete\n\n")
	}
	r.writeTable(formatter.RenderKeyValues(result.Summary()))

	if len(result.Playlists) > 0 {
		rows := make([][]string, 0, len(result.Playlists))
		for _, p := range result.Playlists {
			status := "reused"
			switch {
			case p.Err != nil:
				status = p.Err.Error()
			case p.Created:
				status = "created"
			}
			rows = append(rows, []string{p.Name, status, strconv.Itoa(p.Rows), strconv.Itoa(p.Added)})
		}
		r.writePlain("\n")
		r.writeTable(formatter.RenderTable(
			[]string{"Playlist", "Status", "Rows", "Added"},
			rows,
			[]formatter.Alignment{formatter.AlignLeft, formatter.AlignLeft, formatter.AlignRight, formatter.AlignRight},
		))
	}

	if result.FailuresFile != "" {
		r.writePlainln("⚠ %d items need manual review: %s", result.Failed, result.FailuresFile)
	}
}

// Match explains how one track would be matched against TIDAL.
func (r *Runner) Match(ctx context.Context, cmd *cli.Command) error {
	track := models.Track{
		Title:      strings.TrimSpace(cmd.String("title")),
		Artist:     strings.TrimSpace(cmd.String("artist")),
		Album:      cmd.String("album"),
		DurationMS: cmd.Int("duration-ms"),
	}
	if track.Title == "" || track.Artist == "" {
		return fmt.Errorf("%w: --title and --artist are required", shared.ErrMissingArgument)
	}

	engine := r.newEngine(engineOpts{noDB: true})
	match, attempts, err := engine.Explain(ctx, track)
	if len(attempts) > 0 {
		r.writeTable(formatter.RenderAttempts(attempts))
		r.writePlain("\n")
	}

	if errors.Is(err, matcher.ErrNoMatch) {
		return r.writePlain("✗ %v\n", err)
	}
	if err != nil {
		return err
	}

	return r.writeTable(formatter.RenderKeyValues([][2]string{
		{"TIDAL ID", match.Candidate.ID},
		{"Title", match.Candidate.Title},
		{"Artist", match.Candidate.Artist},
		{"Album", match.Candidate.Album},
		{"Score", fmt.Sprintf("%.2f", match.Score)},
		{"Confidence", match.Confidence().String()},
		{"Query", match.Query},
	}))
}
