package ui

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/rewind/internal/models"
	"github.com/desertthunder/rewind/internal/repositories"
	"github.com/desertthunder/rewind/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	UserListView ViewState = iota
	SummaryView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	users        *repositories.UserRepository
	aggregator   *tasks.Aggregator
	width        int
	height       int
	userList     list.Model
	trackList    list.Model
	selectedUser *models.User
	weekAnchor   time.Time
	summary      *models.WeeklySummary
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, users *repositories.UserRepository, aggregator *tasks.Aggregator) *Model {
	return &Model{
		ctx:        ctx,
		view:       UserListView,
		users:      users,
		aggregator: aggregator,
		weekAnchor: time.Now().UTC(),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Run opens the summary browser on the given store and blocks until the
// user quits.
func Run(ctx context.Context, db *sql.DB) error {
	model := NewModel(ctx, repositories.NewUserRepository(db), tasks.NewAggregator(db))
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// Init initializes the TUI by loading enrolled users.
func (m *Model) Init() tea.Cmd {
	return m.loadUsers()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.userList.Width() == 0 {
			m.userList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.trackList.Width() == 0 {
			m.trackList.SetSize(msg.Width-4, msg.Height-12)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case UserListView:
			return m.handleUserListKeys(msg)
		case SummaryView:
			return m.handleSummaryKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgUsersLoaded:
		data := msg.data.(struct {
			users []models.User
			err   error
		})
		if data.err != nil {
			m.err = data.err
			return m, tea.Quit
		}
		items := make([]list.Item, len(data.users))
		for i, user := range data.users {
			items[i] = userItem{user: user}
		}
		m.userList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.userList.Title = "Enrolled Listeners"
		m.userList.SetSize(m.width-4, m.height-8)
		return m, nil

	case MsgSummaryLoaded:
		data := msg.data.(struct {
			summary *models.WeeklySummary
			err     error
		})
		if data.err != nil {
			m.err = data.err
			m.view = UserListView
			return m, nil
		}
		m.summary = data.summary
		items := make([]list.Item, len(data.summary.Tracks))
		for i, count := range data.summary.Tracks {
			items[i] = trackCountItem{rank: i + 1, count: count}
		}
		m.trackList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.trackList.Title = m.summaryTitle()
		m.trackList.SetSize(m.width-4, m.height-12)
		m.view = SummaryView
		return m, nil
	}

	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == UserListView && m.userList.Width() == 0 {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case UserListView:
		return m.renderUserList()
	case SummaryView:
		return m.renderSummary()
	default:
		return ""
	}
}

func (m *Model) handleUserListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		selected := m.userList.SelectedItem()
		if selected != nil {
			if item, ok := selected.(userItem); ok {
				user := item.user
				m.selectedUser = &user
				m.weekAnchor = time.Now().UTC()
				return m, m.loadSummary()
			}
		}
	}

	var cmd tea.Cmd
	m.userList, cmd = m.userList.Update(msg)
	return m, cmd
}

func (m *Model) handleSummaryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.view = UserListView
		m.summary = nil
		m.err = nil
		return m, nil
	case "left", "h":
		m.weekAnchor = m.weekAnchor.AddDate(0, 0, -7)
		return m, m.loadSummary()
	case "right", "l":
		next := m.weekAnchor.AddDate(0, 0, 7)
		if next.After(time.Now().UTC()) {
			return m, nil
		}
		m.weekAnchor = next
		return m, m.loadSummary()
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case UserListView:
		m.userList, cmd = m.userList.Update(msg)
	case SummaryView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadUsers() tea.Cmd {
	return func() tea.Msg {
		stored, err := m.users.List(m.ctx)
		users := make([]models.User, len(stored))
		for i, user := range stored {
			users[i] = *user
		}
		return usersLoadedMsg(users, err)
	}
}

func (m *Model) loadSummary() tea.Cmd {
	userID := m.selectedUser.ID
	anchor := m.weekAnchor
	return func() tea.Msg {
		summary, err := m.aggregator.AggregateWeek(m.ctx, userID, anchor)
		return summaryLoadedMsg(summary, err)
	}
}

func (m *Model) summaryTitle() string {
	start, _ := tasks.WeekRange(m.weekAnchor)
	year, week := start.ISOWeek()
	name := m.selectedUser.DisplayName
	if name == "" {
		name = m.selectedUser.SpotifyUserID
	}
	return fmt.Sprintf("%s • week %d, %d", name, week, year)
}

func (m *Model) renderUserList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.userList.View(), helpView)
}

func (m *Model) renderSummary() string {
	helpKeys := []key.Binding{m.keys.prevWeek, m.keys.nextWeek, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	var artists string
	if m.summary != nil && m.summary.HasArtists() {
		parts := []string{}
		for i, artist := range m.summary.TopArtists(5) {
			parts = append(parts, fmt.Sprintf("%d. %s (%d)", i+1, artist.Name, artist.Count))
		}
		artists = styles.ok.Render("Top artists: ") + strings.Join(parts, "  ")
	} else {
		artists = styles.warn.Render("No plays recorded this week")
	}

	return fmt.Sprintf("%s\n\n%s\n\n%s", m.trackList.View(), artists, helpView)
}
