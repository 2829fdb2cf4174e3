package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/tasks"
	"github.com/dustin/go-humanize"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	MenuView ViewState = iota
	FilePickerView
	RunningView
	ResultView
)

// maxLogLines is the number of recent progress messages kept on screen.
const maxLogLines = 6

// Engine is the subset of [tasks.Engine] the menu drives.
type Engine interface {
	CheckConnections(ctx context.Context, progress chan<- tasks.ProgressUpdate) []tasks.ConnectionStatus
	Export(ctx context.Context, progress chan<- tasks.ProgressUpdate, kind tasks.ExportKind) (*tasks.ExportResult, error)
	Import(ctx context.Context, progress chan<- tasks.ProgressUpdate, path string, opts tasks.ImportOptions) (*tasks.ImportResult, error)
	ExportsDir() string
}

// operation is a running engine call. done receives the completion message before
// progress is closed.
type operation struct {
	title    string
	progress chan tasks.ProgressUpdate
	done     chan Msg
	cancel   context.CancelFunc
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	engine   Engine
	view     ViewState
	width    int
	height   int
	menu     list.Model
	files    list.Model
	spinner  spinner.Model
	help     help.Model
	keys     keyMap
	useCache bool
	now      func() time.Time

	op       *operation
	progress tasks.ProgressUpdate
	log      []string
	outcome  Msg
	err      error
}

// NewModel creates the menu model. useCache is the initial match cache setting for imports.
func NewModel(ctx context.Context, engine Engine, useCache bool) *Model {
	menu := list.New(menuItems(), list.NewDefaultDelegate(), 80, 20)
	menu.Title = "tdx · Spotify → TIDAL"
	menu.SetFilteringEnabled(false)
	menu.SetShowHelp(false)

	files := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	files.Title = "Import from CSV"
	files.SetFilteringEnabled(false)
	files.SetShowHelp(false)

	return &Model{
		ctx:      ctx,
		engine:   engine,
		view:     MenuView,
		menu:     menu,
		files:    files,
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.accent)),
		help:     help.New(),
		keys:     newKeyMap(),
		useCache: useCache,
		now:      time.Now,
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.menu.SetSize(msg.Width-4, msg.Height-6)
		m.files.SetSize(msg.Width-4, msg.Height-6)
		return m, nil

	case spinner.TickMsg:
		if m.view != RunningView {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch m.view {
		case MenuView:
			return m.handleMenuKeys(msg)
		case FilePickerView:
			return m.handleFileKeys(msg)
		case RunningView:
			return m.handleRunningKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = update
		if update.Message != "" {
			m.log = append(m.log, update.Message)
			if len(m.log) > maxLogLines {
				m.log = m.log[len(m.log)-maxLogLines:]
			}
		}
		return m, m.waitForProgress()

	case MsgFilesListed:
		data := msg.data.(filesListed)
		if data.err != nil {
			m.finish(msg, data.err)
			return m, nil
		}
		items := importableItems(data.files, m.now())
		if len(items) == 0 {
			m.finish(msg, fmt.Errorf("no importable CSV files in %s, run an export first", m.engine.ExportsDir()))
			return m, nil
		}
		m.files.SetItems(items)
		m.files.Select(0)
		m.view = FilePickerView
		return m, nil

	case MsgConnectionsChecked:
		m.finish(msg, nil)
	case MsgExportComplete:
		m.finish(msg, msg.data.(exportDone).err)
	case MsgImportComplete:
		m.finish(msg, msg.data.(importDone).err)
	}
	return m, nil
}

func (m *Model) finish(outcome Msg, err error) {
	if m.op != nil {
		m.op.cancel()
		m.op = nil
	}
	m.outcome = outcome
	m.err = err
	m.view = ResultView
}

func (m *Model) handleMenuKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.cache):
		m.useCache = !m.useCache
		return m, nil
	case key.Matches(msg, m.keys.enter):
		item, ok := m.menu.SelectedItem().(menuItem)
		if !ok {
			return m, nil
		}
		return m, m.selectMenu(item)
	}

	var cmd tea.Cmd
	m.menu, cmd = m.menu.Update(msg)
	return m, cmd
}

func (m *Model) selectMenu(item menuItem) tea.Cmd {
	switch item.action {
	case actionTest:
		return m.start(item.title, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) Msg {
			return connectionsCheckedMsg(m.engine.CheckConnections(ctx, progress))
		})
	case actionExport:
		kind := item.kind
		return m.start(item.title, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) Msg {
			return exportCompleteMsg(m.engine.Export(ctx, progress, kind))
		})
	case actionImport:
		dir := m.engine.ExportsDir()
		return func() tea.Msg {
			return filesListedMsg(formatter.ListCSVFiles(dir))
		}
	default:
		return tea.Quit
	}
}

func (m *Model) handleFileKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		m.view = MenuView
		return m, nil
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter), key.Matches(msg, m.keys.dryRun):
		item, ok := m.files.SelectedItem().(fileItem)
		if !ok {
			return m, nil
		}
		opts := tasks.ImportOptions{DryRun: key.Matches(msg, m.keys.dryRun), UseCache: m.useCache}
		title := "Importing " + item.file.Name
		if opts.DryRun {
			title = "Dry run of " + item.file.Name
		}
		path := item.file.Path
		return m, m.start(title, func(ctx context.Context, progress chan<- tasks.ProgressUpdate) Msg {
			return importCompleteMsg(m.engine.Import(ctx, progress, path, opts))
		})
	}

	var cmd tea.Cmd
	m.files, cmd = m.files.Update(msg)
	return m, cmd
}

func (m *Model) handleRunningKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.cancel) && m.op != nil {
		m.op.cancel()
		m.log = append(m.log, "cancelling...")
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter), key.Matches(msg, m.keys.back):
		m.view = MenuView
		m.outcome = Msg{}
		m.err = nil
		return m, nil
	}
	return m, nil
}

// start runs fn in the background and streams its progress into the model.
func (m *Model) start(title string, fn func(context.Context, chan<- tasks.ProgressUpdate) Msg) tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	op := &operation{
		title:    title,
		progress: make(chan tasks.ProgressUpdate, 64),
		done:     make(chan Msg, 1),
		cancel:   cancel,
	}

	m.op = op
	m.view = RunningView
	m.progress = tasks.ProgressUpdate{}
	m.log = nil

	go func() {
		op.done <- fn(ctx, op.progress)
		close(op.progress)
	}()

	return tea.Batch(m.spinner.Tick, m.waitForProgress())
}

func (m *Model) waitForProgress() tea.Cmd {
	op := m.op
	if op == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-op.progress
		if !ok {
			return <-op.done
		}
		return progressUpdateMsg(update)
	}
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case MenuView:
		return m.renderMenu()
	case FilePickerView:
		return m.renderFiles()
	case RunningView:
		return m.renderRunning()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) renderMenu() string {
	cache := "off"
	if m.useCache {
		cache = "on"
	}
	status := styles.help.Render(fmt.Sprintf("exports: %s • match cache: %s", m.engine.ExportsDir(), cache))
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.cache, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", m.menu.View(), status, helpView)
}

func (m *Model) renderFiles() string {
	helpView := m.help.ShortHelpView([]key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "import")),
		m.keys.dryRun, m.keys.back, m.keys.quit,
	})
	return fmt.Sprintf("%s\n\n%s", m.files.View(), helpView)
}

func (m *Model) renderRunning() string {
	var b strings.Builder

	title := "Working"
	if m.op != nil {
		title = m.op.title
	}
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n")

	phase := strings.ReplaceAll(m.progress.Phase.String(), "_", " ")
	if phase == "" {
		phase = "starting"
	}
	fmt.Fprintf(&b, "%s %s", m.spinner.View(), phase)
	if m.progress.Total > 0 {
		fmt.Fprintf(&b, " (%s/%s)", humanize.Comma(int64(m.progress.Step)), humanize.Comma(int64(m.progress.Total)))
	}
	b.WriteString("\n\n")

	for _, line := range m.log {
		b.WriteString(styles.help.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.ShortHelpView([]key.Binding{m.keys.cancel}))
	return b.String()
}

func (m *Model) renderResult() string {
	var body string
	switch m.outcome.kind {
	case MsgConnectionsChecked:
		body = renderConnections(m.outcome.data.([]tasks.ConnectionStatus))
	case MsgExportComplete:
		body = renderExport(m.outcome.data.(exportDone).result)
	case MsgImportComplete:
		body = renderImport(m.outcome.data.(importDone).result)
	}

	if m.err != nil {
		body = strings.TrimSpace(body + "\n\n" + styles.err.Render(fmt.Sprintf("✗ %v", m.err)))
	}

	helpView := m.help.ShortHelpView([]key.Binding{
		key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "menu")),
		m.keys.quit,
	})
	return fmt.Sprintf("%s\n\n%s", body, helpView)
}

func renderConnections(statuses []tasks.ConnectionStatus) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Connections"))
	b.WriteString("\n")

	if len(statuses) == 0 {
		b.WriteString(styles.warn.Render("No services configured"))
	}
	for _, s := range statuses {
		if s.OK() {
			name := s.User.DisplayName
			if name == "" {
				name = s.User.ID
			}
			b.WriteString(styles.ok.Render(fmt.Sprintf("✓ %s", s.Service)))
			fmt.Fprintf(&b, " signed in as %s\n", name)
			continue
		}
		b.WriteString(styles.err.Render(fmt.Sprintf("✗ %s", s.Service)))
		fmt.Fprintf(&b, " %v\n", s.Err)
	}
	return b.String()
}

func renderExport(result *tasks.ExportResult) string {
	if result == nil {
		return styles.err.Render("Export failed")
	}

	var b strings.Builder
	b.WriteString(styles.ok.Render(fmt.Sprintf("✓ Export (%s) complete", result.Kind)))
	b.WriteString("\n\n")

	if len(result.Files) == 0 {
		b.WriteString(styles.warn.Render("Nothing to export"))
		b.WriteString("\n")
	} else {
		rows := make([][]string, 0, len(result.Files))
		for _, f := range result.Files {
			rows = append(rows, []string{filepath.Base(f.Path), f.Kind.String(), humanize.Comma(int64(f.Rows))})
		}
		b.WriteString(formatter.RenderTable(
			[]string{"File", "Kind", "Rows"}, rows,
			[]formatter.Alignment{formatter.AlignLeft, formatter.AlignLeft, formatter.AlignRight},
		))
		b.WriteString("\n")
	}

	for _, err := range result.Errors {
		b.WriteString(styles.warn.Render(fmt.Sprintf("⚠ %v", err)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderImport(result *tasks.ImportResult) string {
	if result == nil {
		return styles.err.Render("Import failed")
	}

	headline := styles.ok.Render("✓ Import complete")
	if result.DryRun {
		headline = styles.ok.Render("✓ Dry run complete (nothing written to TIDAL)")
	}

	body := headline + "\n\n" + formatter.RenderKeyValues(result.Summary())
	if result.Failed > 0 {
		body += "\n" + styles.warn.Render(fmt.Sprintf("⚠ %d items need manual review", result.Failed))
	}
	return body
}
