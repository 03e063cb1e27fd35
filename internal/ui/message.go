package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rewind/internal/models"
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
	MsgUsersLoaded MsgKind = iota
	MsgSummaryLoaded
)

// usersLoadedMsg is the constructor for [MsgUsersLoaded]
func usersLoadedMsg(users []models.User, err error) Msg {
	return Msg{
		kind: MsgUsersLoaded,
		data: struct {
			users []models.User
			err   error
		}{users, err},
	}
}

// summaryLoadedMsg is the constructor for [MsgSummaryLoaded]
func summaryLoadedMsg(summary *models.WeeklySummary, err error) Msg {
	return Msg{
		kind: MsgSummaryLoaded,
		data: struct {
			summary *models.WeeklySummary
			err     error
		}{summary, err},
	}
}
