package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/desertthunder/tdx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive menu.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.spotify == nil && r.tidal == nil {
		return fmt.Errorf("%w: neither Spotify nor TIDAL is configured", shared.ErrServiceUnavailable)
	}

	// Logs go to a file so they do not interfere with rendering
	path, err := shared.StateFile("tui.log")
	if err != nil {
		return fmt.Errorf("failed to resolve log file: %w", err)
	}
	fileLogger, err := shared.NewFileLogger(path)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.newEngine(engineOpts{}), r.config.Transfer.UseCache)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
