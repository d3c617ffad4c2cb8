package client

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Dispatcher fans incoming stream events into the store and drives the
// fallback poller from connection state. Wire runs once per session;
// Unwire removes every registration so the next session cannot
// double-dispatch.
type Dispatcher struct {
	conn     *ConnClient
	store    *Store
	fallback *FallbackPoller
	refresh  *AutoRefresh
	logger   *slog.Logger

	mu    sync.Mutex
	wired bool
	subs  []Subscription
}

// NewDispatcher creates an unwired dispatcher.
func NewDispatcher(conn *ConnClient, store *Store, refresh *AutoRefresh, fallback *FallbackPoller, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{conn: conn, store: store, refresh: refresh, fallback: fallback, logger: logger}
}

// Wire registers all event and state subscriptions. Idempotent: a
// second call while wired is a no-op.
func (d *Dispatcher) Wire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.wired {
		return
	}
	d.wired = true

	d.subs = []Subscription{
		d.conn.Subscribe(MsgMetricsUpdate, d.onMetricsUpdate),
		d.conn.Subscribe(MsgAlertUpdate, d.onAlertUpdate),
		d.conn.Subscribe(MsgServerStatusChange, d.onServerStatusChange),
		d.conn.Subscribe(MsgServerRegistered, d.onServerRegistered),
		d.conn.Subscribe(MsgServerDeregistered, d.onServerDeregistered),
		d.conn.Subscribe(MsgConnectionEstablished, d.onNotice),
		d.conn.Subscribe(MsgSubscriptionConfirmed, d.onNotice),
		d.conn.Subscribe(MsgPong, d.onNotice),
		d.conn.Subscribe(MsgError, d.onServerError),
		d.conn.OnStateChange(d.onStateChange),
	}
}

// Unwire cancels every registration and resets the guard.
func (d *Dispatcher) Unwire() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.wired {
		return
	}
	for _, sub := range d.subs {
		sub.Cancel()
	}
	d.subs = nil
	d.wired = false
}

func (d *Dispatcher) onStateChange(s ConnState) {
	switch s {
	case StateConnected:
		d.fallback.Stop()
		d.refresh.RefreshNow()
		// The server keys alert broadcasts off an explicit subscription.
		if err := d.conn.Send(map[string]string{"type": "subscribe_alerts"}); err != nil {
			d.logger.Warn("alert subscription request failed", "err", err)
		}
	case StateDisconnected, StateReconnecting:
		// Reconnecting covers the initial-dial-failure path, which
		// never passes through disconnected; Start is a no-op while
		// the poller is already running.
		d.fallback.Start()
	}
}

func (d *Dispatcher) onMetricsUpdate(env Envelope) {
	var data MetricsUpdateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		d.logger.Warn("bad metrics_update payload", "err", err)
		return
	}
	d.store.ApplyMetrics(data.ServerID, data.Metrics)
}

func (d *Dispatcher) onAlertUpdate(env Envelope) {
	var alert Alert
	if err := json.Unmarshal(env.Data, &alert); err != nil {
		d.logger.Warn("bad alert_update payload", "err", err)
		return
	}
	d.store.UpsertAlert(&alert)
}

func (d *Dispatcher) onServerStatusChange(env Envelope) {
	var data ServerStatusChangeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		d.logger.Warn("bad server_status_change payload", "err", err)
		return
	}
	d.store.SetServerStatus(data.ServerID, data.Status, data.LastSeen)
}

func (d *Dispatcher) onServerRegistered(env Envelope) {
	var sv ServerOverview
	if err := json.Unmarshal(env.Data, &sv); err != nil || sv.ServerID == "" {
		d.logger.Warn("bad server_registered payload", "err", err)
		return
	}
	d.store.UpsertServer(&sv)
}

func (d *Dispatcher) onServerDeregistered(env Envelope) {
	var data ServerDeregisteredData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		d.logger.Warn("bad server_deregistered payload", "err", err)
		return
	}
	d.store.RemoveServer(data.ServerID)
}

func (d *Dispatcher) onNotice(env Envelope) {
	var data NoticeData
	if json.Unmarshal(env.Data, &data) == nil && data.Message != "" {
		d.logger.Debug("server notice", "type", string(env.Type), "message", data.Message)
	}
}

func (d *Dispatcher) onServerError(env Envelope) {
	var data NoticeData
	if json.Unmarshal(env.Data, &data) != nil || data.Message == "" {
		d.logger.Warn("server error event with unreadable payload")
		return
	}
	d.logger.Warn("server error event", "message", data.Message)
}
