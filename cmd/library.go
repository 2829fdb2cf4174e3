package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/repositories"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

// Files lists the CSV files in the exports directory, newest first.
func (r *Runner) Files(ctx context.Context, cmd *cli.Command) error {
	dir := r.config.Transfer.ExportsDir
	files, err := formatter.ListCSVFiles(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return r.writePlain("No CSV files in %s\n", dir)
	}
	return r.writeTable(formatter.RenderFiles(files, time.Now()))
}

// History lists recorded import runs.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := r.requireDatabase()
	if err != nil {
		return err
	}

	runs, err := repositories.NewImportRunRepository(db).List(map[string]any{
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		return r.writePlain("No imports recorded yet\n")
	}
	return r.writeTable(formatter.RenderImportRuns(runs, time.Now()))
}

// CacheList prints cached Spotify to TIDAL matches.
func (r *Runner) CacheList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.requireDatabase()
	if err != nil {
		return err
	}

	repo := repositories.NewMatchRepository(db)
	criteria := map[string]any{"limit": cmd.Int("limit")}
	if cmd.IsSet("min-score") {
		criteria["min_score"] = cmd.Float("min-score")
	}

	matches, err := repo.List(criteria)
	if err != nil {
		return err
	}
	total, err := repo.Count()
	if err != nil {
		return err
	}

	if len(matches) == 0 {
		return r.writePlain("Match cache is empty\n")
	}
	r.writeTable(formatter.RenderMatches(matches, time.Now()))
	return r.writePlain("Showing %d of %s cached matches\n", len(matches), humanize.Comma(int64(total)))
}

// CacheClear deletes every cached match.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, err := r.requireDatabase()
	if err != nil {
		return err
	}

	n, err := repositories.NewMatchRepository(db).Clear()
	if err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s cached matches\n", humanize.Comma(n))
}

// Test checks both connections and reports the signed-in users.
func (r *Runner) Test(ctx context.Context, cmd *cli.Command) error {
	engine := r.newEngine(engineOpts{noDB: true})

	progress, stop := r.startProgress("checking connections")
	statuses := engine.CheckConnections(ctx, progress)
	stop()

	if len(statuses) == 0 {
		return fmt.Errorf("%w: configure Spotify and TIDAL in %s or the environment", shared.ErrMissingCredentials, r.configPath)
	}

	failed := 0
	rows := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		status := "✓ connected"
		user := "-"
		if s.OK() {
			if s.User != nil {
				user = s.User.DisplayName
			}
		} else {
			failed++
			status = "✗ " + s.Err.Error()
		}
		rows = append(rows, []string{s.Service, user, status})
	}

	r.writeTable(formatter.RenderTable(
		[]string{"Service", "User", "Status"},
		rows,
		[]formatter.Alignment{formatter.AlignLeft, formatter.AlignLeft, formatter.AlignLeft},
	))

	if failed > 0 {
		return fmt.Errorf("%w: %d of %d connections failed", shared.ErrServiceUnavailable, failed, len(statuses))
	}
	return nil
}
