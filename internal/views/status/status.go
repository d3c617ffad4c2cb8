// Package status renders the connection/summary bar at the top of the
// HostPulse TUI.
package status

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/hostpulse/dash/internal/client"
	"github.com/hostpulse/dash/internal/theme"
)

// Model holds the status bar state.
type Model struct {
	ConnState client.ConnState
	Healthy   int
	Warning   int
	Down      int
	Alerts    int
	PullErr   error
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{ConnState: client.StateDisconnected}
}

// SetCounts updates the server status counts.
func (m *Model) SetCounts(healthy, warning, down int) {
	m.Healthy = healthy
	m.Warning = warning
	m.Down = down
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	switch m.ConnState {
	case client.StateConnected:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Live")
	case client.StateConnecting:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("◌ Connecting...")
	case client.StateReconnecting:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("◌ Reconnecting...")
	default:
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDown).Render("○ Disconnected (polling)")
	}

	counts := fmt.Sprintf("%d healthy  %d warning  %d down",
		m.Healthy, m.Warning, m.Down)

	alertStr := theme.StyleDimmed.Render("no active alerts")
	if m.Alerts > 0 {
		alertStr = lipgloss.NewStyle().Foreground(theme.ColorCritical).
			Render(fmt.Sprintf("%d active alerts", m.Alerts))
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + counts + sep + alertStr
	if m.PullErr != nil {
		content += sep + lipgloss.NewStyle().Foreground(theme.ColorDown).Render("refresh failing")
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
