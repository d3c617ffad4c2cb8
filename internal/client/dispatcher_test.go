package client

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func newTestDispatcher(pull PullFunc) (*Dispatcher, *ConnClient, *Store, *FallbackPoller, *AutoRefresh) {
	if pull == nil {
		pull = func(context.Context) error { return nil }
	}
	conn := NewConnClient(ConnConfig{URL: "ws://127.0.0.1:1/ws", Logger: testLogger()})
	store := NewStore()
	refresh := NewAutoRefresh(pull, time.Hour, testLogger())
	fallback := NewFallbackPoller(pull, time.Hour, testLogger())
	d := NewDispatcher(conn, store, refresh, fallback, testLogger())
	return d, conn, store, fallback, refresh
}

func TestWireIdempotent(t *testing.T) {
	d, conn, _, _, _ := newTestDispatcher(nil)

	d.Wire()
	d.Wire()

	for _, kind := range []MessageType{
		MsgMetricsUpdate, MsgAlertUpdate, MsgServerStatusChange,
		MsgServerRegistered, MsgServerDeregistered,
		MsgConnectionEstablished, MsgSubscriptionConfirmed, MsgPong, MsgError,
	} {
		if got := conn.subscriberCount(kind); got != 1 {
			t.Errorf("subscriberCount(%s) = %d, want 1", kind, got)
		}
	}
	if got := conn.stateSubscriberCount(); got != 1 {
		t.Errorf("stateSubscriberCount() = %d, want 1", got)
	}
}

func TestUnwireRemovesEverything(t *testing.T) {
	d, conn, _, _, _ := newTestDispatcher(nil)

	d.Wire()
	d.Unwire()

	if got := conn.subscriberCount(MsgMetricsUpdate); got != 0 {
		t.Errorf("subscriberCount after Unwire = %d, want 0", got)
	}
	if got := conn.stateSubscriberCount(); got != 0 {
		t.Errorf("stateSubscriberCount after Unwire = %d, want 0", got)
	}

	// Wire again works after Unwire: one registration each.
	d.Wire()
	if got := conn.subscriberCount(MsgMetricsUpdate); got != 1 {
		t.Errorf("subscriberCount after rewire = %d, want 1", got)
	}
}

func TestStateTransitionsDriveFallback(t *testing.T) {
	pull := &countingPull{}
	d, _, _, fallback, _ := newTestDispatcher(pull.fn)
	d.Wire()

	d.onStateChange(StateDisconnected)
	if !fallback.Running() {
		t.Fatal("fallback not started on disconnect")
	}

	// Reconnecting keeps the fallback alive; only connected stops it.
	d.onStateChange(StateReconnecting)
	if !fallback.Running() {
		t.Error("fallback stopped while still reconnecting")
	}

	d.onStateChange(StateConnected)
	if fallback.Running() {
		t.Error("fallback still running after connect")
	}
	// Reconnection triggers an immediate refresh to close the gap.
	waitFor(t, time.Second, func() bool { return pull.count() >= 1 },
		"no catch-up pull on connect")
}

func TestInitialDialFailureStartsFallback(t *testing.T) {
	pull := &countingPull{}
	d, conn, _, fallback, _ := newTestDispatcher(pull.fn)
	d.Wire()
	defer fallback.Stop()
	defer conn.Disconnect()

	// Nothing listens on the client's URL: the very first dial fails and
	// the client goes connecting → reconnecting without ever having been
	// connected.
	if err := conn.Connect(); err == nil {
		t.Fatal("Connect() to a dead address returned nil error")
	}

	waitFor(t, 2*time.Second, func() bool {
		return conn.State() == StateReconnecting
	}, "client never entered reconnecting after a failed initial dial")

	if !fallback.Running() {
		t.Error("state is reconnecting but the fallback poller is not running")
	}
}

func TestMetricsUpdateEnvelope(t *testing.T) {
	d, _, store, _, _ := newTestDispatcher(nil)

	data, _ := json.Marshal(MetricsUpdateData{
		ServerID: "web-01",
		Metrics:  metricsAt("web-01", time.Now(), 88),
	})
	d.onMetricsUpdate(Envelope{Type: MsgMetricsUpdate, Data: data})

	sv := store.Server("web-01")
	if sv == nil || sv.Metrics == nil || sv.Metrics.CPUUsage != 88 {
		t.Errorf("metrics_update not applied: %+v", sv)
	}

	// Malformed payload is dropped without mutating the store.
	d.onMetricsUpdate(Envelope{Type: MsgMetricsUpdate, Data: json.RawMessage(`"nope"`)})
	if got := len(store.Servers()); got != 1 {
		t.Errorf("malformed payload mutated the store: %d servers", got)
	}
}

func TestAlertUpdateEnvelope(t *testing.T) {
	d, _, store, _, _ := newTestDispatcher(nil)

	data, _ := json.Marshal(Alert{ID: 9, ServerID: "db-01", Severity: SeverityCritical})
	d.onAlertUpdate(Envelope{Type: MsgAlertUpdate, Data: data})
	if store.Alert(9) == nil {
		t.Fatal("alert_update not applied")
	}

	resolved, _ := json.Marshal(Alert{ID: 9, ServerID: "db-01", Resolved: true})
	d.onAlertUpdate(Envelope{Type: MsgAlertUpdate, Data: resolved})
	if store.Alert(9) != nil {
		t.Error("resolved alert_update did not remove the alert")
	}
}

func TestServerLifecycleEnvelopes(t *testing.T) {
	d, _, store, _, _ := newTestDispatcher(nil)

	reg, _ := json.Marshal(ServerOverview{ServerID: "new-01", Hostname: "new-01.example"})
	d.onServerRegistered(Envelope{Type: MsgServerRegistered, Data: reg})
	if store.Server("new-01") == nil {
		t.Fatal("server_registered not applied")
	}

	status, _ := json.Marshal(ServerStatusChangeData{
		ServerID: "new-01", Status: StatusDown, LastSeen: time.Now(),
	})
	d.onServerStatusChange(Envelope{Type: MsgServerStatusChange, Data: status})
	if got := store.Server("new-01").Status; got != StatusDown {
		t.Errorf("status = %q, want %q", got, StatusDown)
	}

	dereg, _ := json.Marshal(ServerDeregisteredData{ServerID: "new-01"})
	d.onServerDeregistered(Envelope{Type: MsgServerDeregistered, Data: dereg})
	if store.Server("new-01") != nil {
		t.Error("server_deregistered did not remove the server")
	}
}

func TestNoticeEnvelopesDoNotMutateStore(t *testing.T) {
	d, _, store, _, _ := newTestDispatcher(nil)

	notice, _ := json.Marshal(NoticeData{Message: "Connected to HostPulse"})
	d.onNotice(Envelope{Type: MsgConnectionEstablished, Data: notice})
	d.onServerError(Envelope{Type: MsgError, Data: notice})
	d.onServerError(Envelope{Type: MsgError, Data: json.RawMessage(`{`)})

	if len(store.Servers()) != 0 || len(store.Alerts()) != 0 {
		t.Error("notice envelopes mutated the store")
	}
}
