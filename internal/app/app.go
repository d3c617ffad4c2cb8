package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hostpulse/dash/internal/client"
	"github.com/hostpulse/dash/internal/theme"
	"github.com/hostpulse/dash/internal/views/board"
	"github.com/hostpulse/dash/internal/views/status"
)

// tickMsg drives the periodic re-render from the store snapshot.
type tickMsg time.Time

// actionDoneMsg reports the outcome of an operator mutation.
type actionDoneMsg struct {
	action string
	err    error
}

// Model is the root Bubble Tea model. It is a thin consumer of the
// session's synchronization core: every second it snapshots the store
// and re-renders; operator mutations go through the optimistic
// coordinator.
type Model struct {
	session *Session
	keys    KeyMap

	width  int
	height int

	statusBar status.Model
	board     board.Model

	notice    string
	noticeErr bool
}

// New creates the root model around an assembled session.
func New(session *Session) Model {
	return Model{
		session:   session,
		keys:      DefaultKeyMap(),
		statusBar: status.New(),
		board:     board.New(),
	}
}

// Init starts the session and the render ticker.
func (m Model) Init() tea.Cmd {
	m.session.Start()
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.board.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.snapshot()
		return m, tick()

	case actionDoneMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s failed: %v", msg.action, msg.err)
			m.noticeErr = true
		} else {
			m.notice = msg.action + " confirmed"
			m.noticeErr = false
		}
		m.snapshot()
		return m, nil
	}

	return m, nil
}

// snapshot refreshes the render state from the store and connection.
func (m *Model) snapshot() {
	servers := m.session.Store.Servers()
	alerts := m.session.Store.Alerts()
	m.board.SetState(servers, alerts)

	var healthy, warning, down int
	for _, sv := range servers {
		switch sv.Status {
		case client.StatusHealthy:
			healthy++
		case client.StatusWarning:
			warning++
		default:
			down++
		}
	}
	m.statusBar.SetCounts(healthy, warning, down)
	m.statusBar.Alerts = len(alerts)
	m.statusBar.ConnState = m.session.Conn.State()
	m.statusBar.PullErr = m.session.Refresh.Err()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.session.Stop()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Down):
		m.board.MoveSelection(1)
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.board.MoveSelection(-1)
		return m, nil

	case msg.String() == "tab":
		m.board.CycleFocus()
		return m, nil

	case key.Matches(msg, m.keys.Acknowledge):
		if a := m.board.SelectedAlert(); a != nil && !a.Acknowledged {
			return m, m.acknowledgeCmd(a)
		}
		return m, nil

	case key.Matches(msg, m.keys.Resolve):
		if a := m.board.SelectedAlert(); a != nil {
			return m, m.resolveCmd(a)
		}
		return m, nil

	case msg.String() == "x":
		if sv := m.board.SelectedServer(); sv != nil {
			return m, m.deregisterCmd(sv)
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.session.Refresh.RefreshNow()
		return m, nil

	case key.Matches(msg, m.keys.Reconnect):
		go m.session.Conn.Connect()
		return m, nil
	}

	return m, nil
}

// acknowledgeCmd removes the unseen marker locally, then confirms with
// the server; on failure the marker is restored and the error surfaced.
func (m Model) acknowledgeCmd(a *client.Alert) tea.Cmd {
	s := m.session
	wasAcked := a.Acknowledged
	return func() tea.Msg {
		id := fmt.Sprintf("alert-ack-%d", a.ID)
		err := s.Updates.Apply(context.Background(), id,
			func() { s.Store.SetAlertAcknowledged(a.ID, true) },
			func() { s.Store.SetAlertAcknowledged(a.ID, wasAcked) },
			func(ctx context.Context) error { return s.API.AcknowledgeAlert(ctx, a.ID) },
		)
		return actionDoneMsg{action: "acknowledge", err: err}
	}
}

// resolveCmd drops the alert from the active list locally; the exact
// pre-call record is restored if the server rejects the resolve.
func (m Model) resolveCmd(a *client.Alert) tea.Cmd {
	s := m.session
	prev := *a
	return func() tea.Msg {
		id := fmt.Sprintf("alert-resolve-%d", a.ID)
		err := s.Updates.Apply(context.Background(), id,
			func() { s.Store.RemoveAlert(prev.ID) },
			func() { s.Store.UpsertAlert(&prev) },
			func(ctx context.Context) error { return s.API.ResolveAlert(ctx, prev.ID) },
		)
		return actionDoneMsg{action: "resolve", err: err}
	}
}

// deregisterCmd revokes a monitored host.
func (m Model) deregisterCmd(sv *client.ServerOverview) tea.Cmd {
	s := m.session
	prev := *sv
	return func() tea.Msg {
		id := "server-deregister-" + prev.ServerID
		err := s.Updates.Apply(context.Background(), id,
			func() { s.Store.RemoveServer(prev.ServerID) },
			func() { s.Store.UpsertServer(&prev) },
			func(ctx context.Context) error { return s.API.DeregisterServer(ctx, prev.ServerID) },
		)
		return actionDoneMsg{action: "deregister " + prev.ServerID, err: err}
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	help := theme.StyleDimmed.Render(
		"  j/k:navigate  tab:pane  a:ack  r:resolve  x:deregister  R:refresh  c:reconnect  q:quit")

	sections := []string{
		m.statusBar.View(),
		m.board.View(),
		help,
	}
	if m.notice != "" {
		style := theme.StyleDimmed
		if m.noticeErr {
			style = lipgloss.NewStyle().Foreground(theme.ColorDown)
		}
		sections = append(sections, style.Render("  "+m.notice))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
