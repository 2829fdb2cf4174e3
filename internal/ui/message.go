package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tdx/internal/formatter"
	"github.com/desertthunder/tdx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgProgressUpdate MsgKind = iota
	MsgConnectionsChecked
	MsgExportComplete
	MsgImportComplete
	MsgFilesListed
)

type exportDone struct {
	result *tasks.ExportResult
	err    error
}

type importDone struct {
	result *tasks.ImportResult
	err    error
}

type filesListed struct {
	files []formatter.FileInfo
	err   error
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// connectionsCheckedMsg is the constructor for [MsgConnectionsChecked]
func connectionsCheckedMsg(statuses []tasks.ConnectionStatus) Msg {
	return Msg{kind: MsgConnectionsChecked, data: statuses}
}

// exportCompleteMsg is the constructor for [MsgExportComplete]
func exportCompleteMsg(result *tasks.ExportResult, err error) Msg {
	return Msg{kind: MsgExportComplete, data: exportDone{result, err}}
}

// importCompleteMsg is the constructor for [MsgImportComplete]
func importCompleteMsg(result *tasks.ImportResult, err error) Msg {
	return Msg{kind: MsgImportComplete, data: importDone{result, err}}
}

// filesListedMsg is the constructor for [MsgFilesListed]
func filesListedMsg(files []formatter.FileInfo, err error) Msg {
	return Msg{kind: MsgFilesListed, data: filesListed{files, err}}
}
