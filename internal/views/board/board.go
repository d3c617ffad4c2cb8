// Package board renders the server table and the active alerts list for
// the HostPulse TUI.
package board

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/hostpulse/dash/internal/client"
	"github.com/hostpulse/dash/internal/theme"
)

// Pane identifies which list has keyboard focus.
type Pane int

const (
	PaneAlerts Pane = iota
	PaneServers
)

// Model holds the board state.
type Model struct {
	Width       int
	Focus       Pane
	SelectedIdx int // index into the focused pane's list

	servers []*client.ServerOverview
	alerts  []*client.Alert
}

// New creates a board model.
func New() Model {
	return Model{}
}

// SetState replaces the rendered snapshot. Callers pass the sorted
// slices straight from the store.
func (m *Model) SetState(servers []*client.ServerOverview, alerts []*client.Alert) {
	m.servers = servers
	m.alerts = alerts
	if m.SelectedIdx >= m.focusedLen() {
		m.SelectedIdx = max(0, m.focusedLen()-1)
	}
}

// CycleFocus moves keyboard focus to the other pane.
func (m *Model) CycleFocus() {
	if m.Focus == PaneAlerts {
		m.Focus = PaneServers
	} else {
		m.Focus = PaneAlerts
	}
	m.SelectedIdx = 0
}

// MoveSelection moves the focused selection by delta, wrapping around.
func (m *Model) MoveSelection(delta int) {
	n := m.focusedLen()
	if n == 0 {
		m.SelectedIdx = 0
		return
	}
	m.SelectedIdx = (m.SelectedIdx + delta + n) % n
}

func (m Model) focusedLen() int {
	if m.Focus == PaneServers {
		return len(m.servers)
	}
	return len(m.alerts)
}

// SelectedAlert returns the highlighted alert, or nil.
func (m Model) SelectedAlert() *client.Alert {
	if m.Focus != PaneAlerts || m.SelectedIdx < 0 || m.SelectedIdx >= len(m.alerts) {
		return nil
	}
	return m.alerts[m.SelectedIdx]
}

// SelectedServer returns the highlighted server, or nil.
func (m Model) SelectedServer() *client.ServerOverview {
	if m.Focus != PaneServers || m.SelectedIdx < 0 || m.SelectedIdx >= len(m.servers) {
		return nil
	}
	return m.servers[m.SelectedIdx]
}

// View renders the server table and alerts list.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderServers(width),
		m.renderAlerts(width),
	)
}

func (m Model) renderServers(width int) string {
	header := theme.StyleHeader.Render("  Servers")
	if len(m.servers) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			theme.StyleDimmed.Render("  No servers registered"),
		)
	}

	colHost := 22
	colStatus := 10
	colCPU := 16
	colMem := 16
	colDisk := 16
	colLoad := 8
	colUp := 10

	dim := lipgloss.NewStyle().Foreground(theme.ColorDimmed)

	tableHeader := fmt.Sprintf("  %-*s %-*s %-*s %-*s %-*s %*s %*s",
		colHost, "Host",
		colStatus, "Status",
		colCPU, "CPU",
		colMem, "Memory",
		colDisk, "Disk",
		colLoad, "Load1",
		colUp, "Uptime",
	)
	lines := []string{
		header,
		dim.Render(tableHeader),
		dim.Render("  " + strings.Repeat("─", min(width-4, colHost+colStatus+colCPU+colMem+colDisk+colLoad+colUp+6))),
	}

	for i, sv := range m.servers {
		prefix := "  "
		if m.Focus == PaneServers && i == m.SelectedIdx {
			prefix = "> "
		}
		name := sv.Hostname
		if name == "" {
			name = sv.ServerID
		}
		if len(name) > colHost-1 {
			name = name[:colHost-2] + "…"
		}
		hostStr := lipgloss.NewStyle().Foreground(theme.StatusColor(string(sv.Status))).
			Width(colHost).Render(name)

		statusStr := lipgloss.NewStyle().Foreground(theme.StatusColor(string(sv.Status))).
			Width(colStatus).Render(theme.StatusGlyph(string(sv.Status)) + " " + string(sv.Status))

		cpuStr := dim.Width(colCPU).Render("-")
		memStr := dim.Width(colMem).Render("-")
		diskStr := dim.Width(colDisk).Render("-")
		loadStr := dim.Width(colLoad).Align(lipgloss.Right).Render("-")
		upStr := dim.Width(colUp).Align(lipgloss.Right).Render("-")

		if mt := sv.Metrics; mt != nil {
			cpuStr = lipgloss.NewStyle().Width(colCPU).Render(renderUsageBar(mt.CPUUsage, colCPU-1))
			memStr = lipgloss.NewStyle().Width(colMem).Render(renderUsageBar(mt.Memory.Percentage, colMem-1))
			diskStr = lipgloss.NewStyle().Width(colDisk).Render(renderUsageBar(maxDiskUsage(mt.DiskUsage), colDisk-1))
			loadStr = lipgloss.NewStyle().Foreground(theme.ColorBright).Width(colLoad).
				Align(lipgloss.Right).Render(fmt.Sprintf("%.2f", mt.LoadAverage.OneMin))
			upStr = dim.Width(colUp).Align(lipgloss.Right).Render(shortDuration(mt.Uptime))
		}

		lines = append(lines, fmt.Sprintf("%s%s %s %s %s %s %s %s",
			prefix, hostStr, statusStr, cpuStr, memStr, diskStr, loadStr, upStr))

		if mt := sv.Metrics; mt != nil && len(mt.FailedServices) > 0 {
			names := make([]string, 0, len(mt.FailedServices))
			for _, fs := range mt.FailedServices {
				names = append(names, fs.Name)
			}
			lines = append(lines, lipgloss.NewStyle().Foreground(theme.ColorDown).
				Render("    failed units: "+strings.Join(names, ", ")))
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) renderAlerts(width int) string {
	header := theme.StyleHeader.Render("  Active Alerts")
	if len(m.alerts) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left,
			header,
			theme.StyleDimmed.Render("  No active alerts"),
		)
	}

	lines := []string{header}
	for i, a := range m.alerts {
		selected := m.Focus == PaneAlerts && i == m.SelectedIdx
		prefix := "  "
		if selected {
			prefix = "> "
		}

		sev := lipgloss.NewStyle().Foreground(theme.SeverityColor(string(a.Severity))).
			Render(fmt.Sprintf("%-8s", string(a.Severity)))

		age := theme.StyleDimmed.Render(humanize.Time(a.TriggeredAt))

		msg := a.Message
		if msg == "" {
			msg = fmt.Sprintf("%s: %.1f (threshold %.1f)", a.Type, a.ActualValue, a.ThresholdValue)
		}
		maxMsg := width - 40
		if maxMsg > 8 && len(msg) > maxMsg {
			msg = msg[:maxMsg-1] + "…"
		}

		line := fmt.Sprintf("%s%s %-16s %s  %s", prefix, sev, a.ServerID, msg, age)
		if a.Acknowledged {
			line += lipgloss.NewStyle().Foreground(theme.ColorAck).Render("  [ack]")
		}
		if selected {
			line = theme.StyleSelected.Render(line)
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// renderUsageBar draws a small progress bar for a 0-100 percentage.
func renderUsageBar(pct float64, barWidth int) string {
	if barWidth < 8 {
		barWidth = 8
	}

	labelWidth := 5
	fillWidth := barWidth - labelWidth
	if fillWidth < 3 {
		fillWidth = 3
	}

	filled := max(0, min(int(pct/100*float64(fillWidth)), fillWidth))
	empty := fillWidth - filled

	color := theme.UsageColor(pct)
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	bar += lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(strings.Repeat("░", empty))
	label := fmt.Sprintf(" %3.0f%%", pct)

	return bar + lipgloss.NewStyle().Foreground(color).Render(label)
}

func maxDiskUsage(disks []client.DiskUsage) float64 {
	var m float64
	for _, d := range disks {
		if d.Percentage > m {
			m = d.Percentage
		}
	}
	return m
}

// shortDuration formats an uptime in seconds as "12d4h" / "4h12m".
func shortDuration(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd%dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh%dm", hours, mins)
	default:
		return fmt.Sprintf("%dm", mins)
	}
}
