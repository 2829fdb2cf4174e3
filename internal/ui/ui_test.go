package ui

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/models"
	"github.com/desertthunder/tdx/internal/shared"
	"github.com/desertthunder/tdx/internal/tasks"
	th "github.com/desertthunder/tdx/internal/testing"
)

type fakeEngine struct {
	dir string

	mu          sync.Mutex
	exportKinds []tasks.ExportKind
	imports     []string
	importOpts  []tasks.ImportOptions
	importErr   error
}

func (f *fakeEngine) ExportsDir() string { return f.dir }

func (f *fakeEngine) CheckConnections(ctx context.Context, progress chan<- tasks.ProgressUpdate) []tasks.ConnectionStatus {
	progress <- tasks.ProgressUpdate{Phase: tasks.CheckConnection, Message: "checking Spotify"}
	return []tasks.ConnectionStatus{
		{Service: "Spotify", User: &models.User{ID: "u1", DisplayName: "Ada"}},
		{Service: "TIDAL", Err: shared.ErrTokenExpired},
	}
}

func (f *fakeEngine) Export(ctx context.Context, progress chan<- tasks.ProgressUpdate, kind tasks.ExportKind) (*tasks.ExportResult, error) {
	f.mu.Lock()
	f.exportKinds = append(f.exportKinds, kind)
	f.mu.Unlock()

	progress <- tasks.ProgressUpdate{Phase: tasks.FetchTracks, Step: 1, Total: 2, Message: "fetching saved tracks"}
	return &tasks.ExportResult{
		Kind:  kind,
		Files: []tasks.ExportFile{{Kind: formatter.KindTracks, Path: filepath.Join(f.dir, "spotify_tracks_20240101_000000.csv"), Rows: 1234}},
	}, nil
}

func (f *fakeEngine) Import(ctx context.Context, progress chan<- tasks.ProgressUpdate, path string, opts tasks.ImportOptions) (*tasks.ImportResult, error) {
	f.mu.Lock()
	f.imports = append(f.imports, path)
	f.importOpts = append(f.importOpts, opts)
	f.mu.Unlock()

	return &tasks.ImportResult{File: path, Kind: formatter.KindTracks, DryRun: opts.DryRun, Total: 3, Imported: 2, Failed: 1}, f.importErr
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

// drain feeds progress messages back into the model until the operation completes.
func drain(t *testing.T, m *Model) {
	t.Helper()
	for range 100 {
		cmd := m.waitForProgress()
		if cmd == nil {
			return
		}
		m.Update(cmd())
		if m.view != RunningView {
			return
		}
	}
	t.Fatal("operation did not complete")
}

func selectMenu(t *testing.T, m *Model, title string) tea.Cmd {
	t.Helper()
	for i, item := range m.menu.Items() {
		if item.(menuItem).title == title {
			m.menu.Select(i)
			_, cmd := m.Update(keyPress("enter"))
			return cmd
		}
	}
	t.Fatalf("menu item %q not found", title)
	return nil
}

func TestMenu(t *testing.T) {
	t.Run("lists every action", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{dir: t.TempDir()}, true)
		if got := len(m.menu.Items()); got != 8 {
			t.Errorf("expected 8 menu items, got %d", got)
		}
		if !strings.Contains(m.View(), "match cache: on") {
			t.Errorf("expected cache status in menu view")
		}
	})

	t.Run("toggles cache", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{dir: t.TempDir()}, true)
		m.Update(keyPress("c"))
		if m.useCache {
			t.Error("expected cache to be disabled")
		}
	})

	t.Run("test connections", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{dir: t.TempDir()}, false)

		if cmd := selectMenu(t, m, "Test connections"); cmd == nil {
			t.Fatal("expected a command")
		}
		if m.view != RunningView {
			t.Fatalf("expected running view, got %v", m.view)
		}

		drain(t, m)
		if m.view != ResultView {
			t.Fatalf("expected result view, got %v", m.view)
		}

		view := m.View()
		if !strings.Contains(view, "signed in as Ada") {
			t.Errorf("expected Spotify user in view, got %q", view)
		}
		if !strings.Contains(view, "token expired") {
			t.Errorf("expected TIDAL error in view, got %q", view)
		}

		m.Update(keyPress("enter"))
		if m.view != MenuView {
			t.Errorf("expected menu view after enter, got %v", m.view)
		}
	})

	t.Run("export", func(t *testing.T) {
		engine := &fakeEngine{dir: t.TempDir()}
		m := NewModel(context.Background(), engine, false)

		selectMenu(t, m, "Export albums")
		drain(t, m)

		if len(engine.exportKinds) != 1 || engine.exportKinds[0] != tasks.ExportAlbums {
			t.Errorf("expected one albums export, got %v", engine.exportKinds)
		}
		if len(m.log) != 1 || m.log[0] != "fetching saved tracks" {
			t.Errorf("expected progress log, got %v", m.log)
		}

		view := m.View()
		if !strings.Contains(view, "spotify_tracks_20240101_000000.csv") || !strings.Contains(view, "1,234") {
			t.Errorf("expected written file in view, got %q", view)
		}
	})

	t.Run("quit", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{dir: t.TempDir()}, false)
		if _, cmd := m.Update(keyPress("q")); cmd == nil {
			t.Error("expected quit command")
		}
	})
}

func TestImportFlow(t *testing.T) {
	setup := func(t *testing.T) (*Model, *fakeEngine) {
		t.Helper()
		dir := t.TempDir()
		th.WriteFile(t, dir, "spotify_playlists_info_20240101_000000.csv", "name,id,owner,tracks_total,public,spotify_url\n")
		th.WriteFile(t, dir, "spotify_tracks_20240101_000000.csv", strings.Join(formatter.TrackColumns, ",")+"\n")

		engine := &fakeEngine{dir: dir}
		m := NewModel(context.Background(), engine, true)

		cmd := selectMenu(t, m, "Import from CSV")
		if cmd == nil {
			t.Fatal("expected file listing command")
		}
		m.Update(cmd())
		return m, engine
	}

	t.Run("lists importable files only", func(t *testing.T) {
		m, _ := setup(t)

		if m.view != FilePickerView {
			t.Fatalf("expected file picker, got %v", m.view)
		}
		items := m.files.Items()
		if len(items) != 1 || items[0].(fileItem).file.Kind != formatter.KindTracks {
			t.Errorf("expected only the tracks file, got %v", items)
		}

		m.Update(keyPress("esc"))
		if m.view != MenuView {
			t.Errorf("expected menu after esc, got %v", m.view)
		}
	})

	t.Run("imports the selected file", func(t *testing.T) {
		m, engine := setup(t)

		m.Update(keyPress("enter"))
		drain(t, m)

		if len(engine.imports) != 1 || filepath.Base(engine.imports[0]) != "spotify_tracks_20240101_000000.csv" {
			t.Fatalf("unexpected imports %v", engine.imports)
		}
		if opts := engine.importOpts[0]; opts.DryRun || !opts.UseCache {
			t.Errorf("unexpected options %+v", opts)
		}
		if view := m.View(); !strings.Contains(view, "1 items need manual review") {
			t.Errorf("expected review warning, got %q", view)
		}
	})

	t.Run("dry run", func(t *testing.T) {
		m, engine := setup(t)

		m.Update(keyPress("d"))
		drain(t, m)

		if !engine.importOpts[0].DryRun {
			t.Error("expected dry run")
		}
		if view := m.View(); !strings.Contains(view, "Dry run complete") {
			t.Errorf("expected dry run headline, got %q", view)
		}
	})

	t.Run("shows import errors", func(t *testing.T) {
		m, engine := setup(t)
		engine.importErr = shared.ErrImportInProgress

		m.Update(keyPress("enter"))
		drain(t, m)

		if !errors.Is(m.err, shared.ErrImportInProgress) {
			t.Errorf("expected import error, got %v", m.err)
		}
	})

	t.Run("empty exports directory", func(t *testing.T) {
		m := NewModel(context.Background(), &fakeEngine{dir: filepath.Join(t.TempDir(), "missing")}, false)
		m.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

		cmd := selectMenu(t, m, "Import from CSV")
		m.Update(cmd())

		if m.view != ResultView || m.err == nil {
			t.Errorf("expected error result, got view %v err %v", m.view, m.err)
		}
	})
}
