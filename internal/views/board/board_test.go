package board

import (
	"strings"
	"testing"
	"time"

	"github.com/hostpulse/dash/internal/client"
)

func testServers() []*client.ServerOverview {
	return []*client.ServerOverview{
		{ServerID: "db-01", Hostname: "db-01.example", Status: client.StatusHealthy,
			Metrics: &client.SystemMetrics{CPUUsage: 35, Uptime: 90000}},
		{ServerID: "web-01", Hostname: "web-01.example", Status: client.StatusDown},
	}
}

func testAlerts() []*client.Alert {
	return []*client.Alert{
		{ID: 2, ServerID: "web-01", Severity: client.SeverityCritical,
			Message: "CPU above threshold", TriggeredAt: time.Now().Add(-time.Minute)},
		{ID: 1, ServerID: "db-01", Severity: client.SeverityWarning,
			Message: "disk filling up", TriggeredAt: time.Now().Add(-time.Hour), Acknowledged: true},
	}
}

func TestMoveSelectionWraps(t *testing.T) {
	m := New()
	m.SetState(nil, testAlerts())

	m.MoveSelection(1)
	if m.SelectedIdx != 1 {
		t.Errorf("SelectedIdx = %d, want 1", m.SelectedIdx)
	}
	m.MoveSelection(1)
	if m.SelectedIdx != 0 {
		t.Errorf("SelectedIdx after wrap = %d, want 0", m.SelectedIdx)
	}
	m.MoveSelection(-1)
	if m.SelectedIdx != 1 {
		t.Errorf("SelectedIdx after reverse wrap = %d, want 1", m.SelectedIdx)
	}
}

func TestMoveSelectionEmptyList(t *testing.T) {
	m := New()
	m.MoveSelection(1)
	if m.SelectedIdx != 0 {
		t.Errorf("SelectedIdx on empty list = %d, want 0", m.SelectedIdx)
	}
}

func TestSetStateClampsSelection(t *testing.T) {
	m := New()
	m.SetState(nil, testAlerts())
	m.MoveSelection(1) // idx 1

	// The selected alert resolves away; selection clamps to the list.
	m.SetState(nil, testAlerts()[:1])
	if m.SelectedIdx != 0 {
		t.Errorf("SelectedIdx after shrink = %d, want 0", m.SelectedIdx)
	}
	m.SetState(nil, nil)
	if m.SelectedIdx != 0 {
		t.Errorf("SelectedIdx after empty = %d, want 0", m.SelectedIdx)
	}
}

func TestSelectionFollowsFocus(t *testing.T) {
	m := New()
	m.SetState(testServers(), testAlerts())

	if a := m.SelectedAlert(); a == nil || a.ID != 2 {
		t.Errorf("SelectedAlert = %+v, want id 2 (newest first)", a)
	}
	if sv := m.SelectedServer(); sv != nil {
		t.Errorf("SelectedServer = %+v while alerts focused, want nil", sv)
	}

	m.CycleFocus()
	if a := m.SelectedAlert(); a != nil {
		t.Errorf("SelectedAlert = %+v while servers focused, want nil", a)
	}
	if sv := m.SelectedServer(); sv == nil || sv.ServerID != "db-01" {
		t.Errorf("SelectedServer = %+v, want db-01", sv)
	}

	m.CycleFocus()
	if m.Focus != PaneAlerts {
		t.Errorf("Focus = %d after two cycles, want PaneAlerts", m.Focus)
	}
}

func TestViewRendersServersAndAlerts(t *testing.T) {
	m := New()
	m.Width = 120
	m.SetState(testServers(), testAlerts())

	view := m.View()
	for _, want := range []string{
		"Servers", "db-01.example", "web-01.example",
		"Active Alerts", "CPU above threshold", "[ack]",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}
}

func TestViewEmptyStates(t *testing.T) {
	m := New()
	m.Width = 80

	view := m.View()
	if !strings.Contains(view, "No servers registered") {
		t.Error("View() missing empty-servers placeholder")
	}
	if !strings.Contains(view, "No active alerts") {
		t.Error("View() missing empty-alerts placeholder")
	}
}

func TestMaxDiskUsage(t *testing.T) {
	disks := []client.DiskUsage{
		{Mountpoint: "/", Percentage: 41},
		{Mountpoint: "/data", Percentage: 93.5},
		{Mountpoint: "/boot", Percentage: 12},
	}
	if got := maxDiskUsage(disks); got != 93.5 {
		t.Errorf("maxDiskUsage = %v, want 93.5", got)
	}
	if got := maxDiskUsage(nil); got != 0 {
		t.Errorf("maxDiskUsage(nil) = %v, want 0", got)
	}
}

func TestShortDuration(t *testing.T) {
	tests := []struct {
		seconds int64
		want    string
	}{
		{30, "0m"},
		{300, "5m"},
		{3700, "1h1m"},
		{90000, "1d1h"},
		{864000, "10d0h"},
	}
	for _, tt := range tests {
		if got := shortDuration(tt.seconds); got != tt.want {
			t.Errorf("shortDuration(%d) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}
