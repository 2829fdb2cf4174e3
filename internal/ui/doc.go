// Package ui implements the interactive menu using bubbletea's Elm architecture.
//
// The TUI moves between four views:
//  1. [MenuView] : test connections, the five exports, import, quit
//  2. [FilePickerView] : importable CSV files in the exports directory, newest first
//  3. [RunningView] : spinner, current phase and recent progress messages
//  4. [ResultView] : connection status, written files, or the import summary table
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Engine calls run in a goroutine; their progress updates flow through a channel and are read back one message at a time.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, d, c, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
