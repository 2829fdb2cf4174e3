package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/tasks"
	"github.com/dustin/go-humanize"
)

var (
	_ list.Item = menuItem{}
	_ list.Item = fileItem{}
)

// action is what a menu entry does when selected.
type action int

const (
	actionTest action = iota
	actionExport
	actionImport
	actionQuit
)

// menuItem is one entry of the main menu.
type menuItem struct {
	title  string
	desc   string
	action action
	kind   tasks.ExportKind
}

func (i menuItem) FilterValue() string { return i.title }
func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }

func menuItems() []list.Item {
	return []list.Item{
		menuItem{title: "Test connections", desc: "Check the Spotify and TIDAL sessions", action: actionTest},
		menuItem{title: "Export liked songs", desc: "Spotify saved tracks to CSV", action: actionExport, kind: tasks.ExportTracks},
		menuItem{title: "Export albums", desc: "Spotify saved albums to CSV", action: actionExport, kind: tasks.ExportAlbums},
		menuItem{title: "Export artists", desc: "Spotify followed artists to CSV", action: actionExport, kind: tasks.ExportArtists},
		menuItem{title: "Export playlists", desc: "Every playlist and its tracks to CSV", action: actionExport, kind: tasks.ExportPlaylists},
		menuItem{title: "Export everything", desc: "Liked songs, playlists, albums and artists", action: actionExport, kind: tasks.ExportAll},
		menuItem{title: "Import from CSV", desc: "Pick an export and recreate it on TIDAL", action: actionImport},
		menuItem{title: "Quit", desc: "Leave tdx", action: actionQuit},
	}
}

// fileItem wraps [formatter.FileInfo] to implement [list.Item].
type fileItem struct {
	file formatter.FileInfo
	now  time.Time
}

func (i fileItem) FilterValue() string { return i.file.Name }
func (i fileItem) Title() string       { return i.file.Name }
func (i fileItem) Description() string {
	return fmt.Sprintf("%s • %s • %s",
		i.file.Kind, humanize.Bytes(uint64(max(i.file.Size, 0))), humanize.RelTime(i.file.Modified, i.now, "ago", "from now"))
}

// importableItems keeps the files that can be imported, newest first.
func importableItems(files []formatter.FileInfo, now time.Time) []list.Item {
	items := make([]list.Item, 0, len(files))
	for _, f := range files {
		if f.Kind.Importable() {
			items = append(items, fileItem{file: f, now: now})
		}
	}
	return items
}
