package client

import (
	"testing"
	"time"
)

func metricsAt(serverID string, ts time.Time, cpu float64) SystemMetrics {
	return SystemMetrics{ServerID: serverID, Timestamp: ts, CPUUsage: cpu}
}

func TestApplyMetricsCreatesRow(t *testing.T) {
	s := NewStore()
	ts := time.Now()
	s.ApplyMetrics("web-01", metricsAt("web-01", ts, 10))

	sv := s.Server("web-01")
	if sv == nil {
		t.Fatal("ApplyMetrics did not create a server row")
	}
	if sv.Metrics == nil || sv.Metrics.CPUUsage != 10 {
		t.Errorf("server metrics = %+v", sv.Metrics)
	}
	if !sv.LastSeen.Equal(ts) {
		t.Errorf("LastSeen = %v, want %v", sv.LastSeen, ts)
	}
}

func TestApplyMetricsDropsStaleSamples(t *testing.T) {
	s := NewStore()
	t0 := time.Now()

	s.ApplyMetrics("web-01", metricsAt("web-01", t0, 50))
	s.ApplyMetrics("web-01", metricsAt("web-01", t0.Add(-time.Second), 99)) // older
	s.ApplyMetrics("web-01", metricsAt("web-01", t0, 99))                   // equal

	sv := s.Server("web-01")
	if sv.Metrics.CPUUsage != 50 {
		t.Errorf("stale sample overwrote fresher metrics: cpu = %v, want 50", sv.Metrics.CPUUsage)
	}

	s.ApplyMetrics("web-01", metricsAt("web-01", t0.Add(time.Second), 60))
	if sv := s.Server("web-01"); sv.Metrics.CPUUsage != 60 {
		t.Errorf("fresher sample dropped: cpu = %v, want 60", sv.Metrics.CPUUsage)
	}
}

func TestReplaceServersKeepsFresherStreamMetrics(t *testing.T) {
	s := NewStore()
	t0 := time.Now()

	// The stream delivered a sample newer than what the poll returns.
	s.ApplyMetrics("web-01", metricsAt("web-01", t0, 75))

	stale := metricsAt("web-01", t0.Add(-10*time.Second), 20)
	s.ReplaceServers([]*ServerOverview{
		{ServerID: "web-01", Hostname: "web-01.example", Status: StatusHealthy, Metrics: &stale},
	})

	sv := s.Server("web-01")
	if sv.Hostname != "web-01.example" {
		t.Errorf("replace did not apply row fields: hostname = %q", sv.Hostname)
	}
	if sv.Metrics.CPUUsage != 75 {
		t.Errorf("stale poll clobbered streamed metrics: cpu = %v, want 75", sv.Metrics.CPUUsage)
	}

	// A poll newer than the stream wins.
	fresh := metricsAt("web-01", t0.Add(10*time.Second), 30)
	s.ReplaceServers([]*ServerOverview{
		{ServerID: "web-01", Status: StatusHealthy, Metrics: &fresh},
	})
	if sv := s.Server("web-01"); sv.Metrics.CPUUsage != 30 {
		t.Errorf("fresher poll dropped: cpu = %v, want 30", sv.Metrics.CPUUsage)
	}
}

func TestReplaceServersDropsMissingRows(t *testing.T) {
	s := NewStore()
	s.UpsertServer(&ServerOverview{ServerID: "a"})
	s.UpsertServer(&ServerOverview{ServerID: "b"})

	s.ReplaceServers([]*ServerOverview{{ServerID: "b"}})

	if s.Server("a") != nil {
		t.Error("server missing from full pull survived ReplaceServers")
	}
	if s.Server("b") == nil {
		t.Error("server present in full pull removed by ReplaceServers")
	}
}

func TestRemoveServerClearsStalenessMarker(t *testing.T) {
	s := NewStore()
	t0 := time.Now()
	s.ApplyMetrics("web-01", metricsAt("web-01", t0, 50))
	s.RemoveServer("web-01")

	// After removal even an "old" sample is fresh again.
	s.ApplyMetrics("web-01", metricsAt("web-01", t0.Add(-time.Minute), 10))
	sv := s.Server("web-01")
	if sv == nil || sv.Metrics.CPUUsage != 10 {
		t.Error("staleness marker survived server removal")
	}
}

func TestSetServerStatus(t *testing.T) {
	s := NewStore()
	t0 := time.Now()
	s.UpsertServer(&ServerOverview{ServerID: "web-01", Status: StatusHealthy, LastSeen: t0})

	s.SetServerStatus("web-01", StatusDown, t0.Add(time.Minute))
	sv := s.Server("web-01")
	if sv.Status != StatusDown {
		t.Errorf("status = %q, want %q", sv.Status, StatusDown)
	}
	if !sv.LastSeen.Equal(t0.Add(time.Minute)) {
		t.Errorf("LastSeen not advanced: %v", sv.LastSeen)
	}

	// LastSeen never goes backwards.
	s.SetServerStatus("web-01", StatusHealthy, t0)
	if sv := s.Server("web-01"); !sv.LastSeen.Equal(t0.Add(time.Minute)) {
		t.Errorf("LastSeen regressed to %v", sv.LastSeen)
	}
}

func TestServersSortedAndCopied(t *testing.T) {
	s := NewStore()
	s.UpsertServer(&ServerOverview{ServerID: "b"})
	s.UpsertServer(&ServerOverview{ServerID: "a"})
	s.UpsertServer(&ServerOverview{ServerID: "c"})

	servers := s.Servers()
	if len(servers) != 3 {
		t.Fatalf("len(Servers()) = %d, want 3", len(servers))
	}
	for i, want := range []string{"a", "b", "c"} {
		if servers[i].ServerID != want {
			t.Errorf("Servers()[%d] = %q, want %q", i, servers[i].ServerID, want)
		}
	}

	servers[0].Hostname = "mutated"
	if s.Server("a").Hostname == "mutated" {
		t.Error("Servers() did not return copies; mutation leaked into store")
	}
}

func TestUpsertAlertResolvedRemoves(t *testing.T) {
	s := NewStore()
	s.UpsertAlert(&Alert{ID: 1, ServerID: "web-01", Severity: SeverityWarning})
	if s.Alert(1) == nil {
		t.Fatal("alert not stored")
	}

	s.UpsertAlert(&Alert{ID: 1, ServerID: "web-01", Resolved: true})
	if s.Alert(1) != nil {
		t.Error("resolved alert still in active set")
	}
}

func TestSetAlertAcknowledged(t *testing.T) {
	s := NewStore()
	s.UpsertAlert(&Alert{ID: 1})

	s.SetAlertAcknowledged(1, true)
	if a := s.Alert(1); !a.Acknowledged {
		t.Error("alert not acknowledged")
	}
	s.SetAlertAcknowledged(1, false)
	if a := s.Alert(1); a.Acknowledged {
		t.Error("acknowledged flag not cleared")
	}
	// Unknown id is a no-op, not a panic.
	s.SetAlertAcknowledged(999, true)
}

func TestAlertsNewestFirst(t *testing.T) {
	s := NewStore()
	t0 := time.Now()
	s.UpsertAlert(&Alert{ID: 1, TriggeredAt: t0.Add(-2 * time.Minute)})
	s.UpsertAlert(&Alert{ID: 2, TriggeredAt: t0})
	s.UpsertAlert(&Alert{ID: 3, TriggeredAt: t0.Add(-time.Minute)})
	s.UpsertAlert(&Alert{ID: 4, TriggeredAt: t0}) // same time as 2, higher id first

	alerts := s.Alerts()
	got := make([]int64, len(alerts))
	for i, a := range alerts {
		got[i] = a.ID
	}
	want := []int64{4, 2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Alerts() order = %v, want %v", got, want)
		}
	}
}

func TestOnChangeNotified(t *testing.T) {
	s := NewStore()
	var calls int
	s.OnChange(func() { calls++ })

	s.UpsertServer(&ServerOverview{ServerID: "a"})
	s.UpsertAlert(&Alert{ID: 1})
	s.RemoveAlert(1)

	if calls != 3 {
		t.Errorf("OnChange called %d times, want 3", calls)
	}
}
