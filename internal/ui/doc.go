// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a two-view workflow for browsing listening history:
//  1. [UserListView] : Browse enrolled users
//  2. [SummaryView] : Weekly top tracks and artists for the selected user,
//     with left/right navigation across weeks
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern,
// receiving messages via the Msg union type. Aggregation queries run in tea.Cmd
// goroutines so the interface never blocks on the database.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, h/l, q) with
// contextual help displayed via charmbracelet/bubbles/help.
package ui
