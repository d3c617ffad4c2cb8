// Package client implements the real-time synchronization core for the
// HostPulse dashboard: a WebSocket connection client with automatic
// reconnection, an event dispatcher, refresh/fallback schedulers, an
// optimistic-update coordinator, and the shared state store they all
// write into. Types mirror the monitoring server's wire protocol without
// importing server packages.
package client

import (
	"encoding/json"
	"time"
)

// MessageType identifies the kind of WebSocket envelope.
type MessageType string

const (
	MsgMetricsUpdate         MessageType = "metrics_update"
	MsgAlertUpdate           MessageType = "alert_update"
	MsgServerStatusChange    MessageType = "server_status_change"
	MsgServerRegistered      MessageType = "server_registered"
	MsgServerDeregistered    MessageType = "server_deregistered"
	MsgConnectionEstablished MessageType = "connection_established"
	MsgSubscriptionConfirmed MessageType = "subscription_confirmed"
	MsgPong                  MessageType = "pong"
	MsgError                 MessageType = "error"
)

// Envelope is the wire format for all WebSocket messages. It is
// validated, dispatched and discarded; nothing persists it.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// --- Domain entities mirrored from the server ---

// MemoryInfo is memory usage in bytes plus a percentage.
type MemoryInfo struct {
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Percentage float64 `json:"percentage"`
}

// DiskUsage is usage for one mounted filesystem.
type DiskUsage struct {
	Mountpoint string  `json:"mountpoint"`
	Total      uint64  `json:"total"`
	Used       uint64  `json:"used"`
	Percentage float64 `json:"percentage"`
}

// LoadAverage is the 1/5/15 minute system load.
type LoadAverage struct {
	OneMin     float64 `json:"one_min"`
	FiveMin    float64 `json:"five_min"`
	FifteenMin float64 `json:"fifteen_min"`
}

// FailedService describes a failed systemd unit reported by an agent.
type FailedService struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Since  string `json:"since,omitempty"`
}

// SystemMetrics is one full metrics sample for a server.
type SystemMetrics struct {
	ServerID       string          `json:"server_id"`
	Timestamp      time.Time       `json:"timestamp"`
	CPUUsage       float64         `json:"cpu_usage"`
	Memory         MemoryInfo      `json:"memory"`
	DiskUsage      []DiskUsage     `json:"disk_usage"`
	LoadAverage    LoadAverage     `json:"load_average"`
	Uptime         int64           `json:"uptime"`
	FailedServices []FailedService `json:"failed_services"`
}

// ServerStatus classifies a monitored server's health.
type ServerStatus string

const (
	StatusHealthy ServerStatus = "healthy"
	StatusWarning ServerStatus = "warning"
	StatusDown    ServerStatus = "down"
	StatusOffline ServerStatus = "offline"
)

// ServerOverview is one row of the servers overview returned by the
// dashboard API and kept in the store, keyed by ServerID.
type ServerOverview struct {
	ServerID  string         `json:"server_id"`
	Hostname  string         `json:"hostname"`
	IPAddress string         `json:"ip_address"`
	LastSeen  time.Time      `json:"last_seen"`
	Status    ServerStatus   `json:"status"`
	Metrics   *SystemMetrics `json:"current_metrics,omitempty"`
}

// AlertSeverity ranks an alert.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert mirrors a server-side alert record, keyed by ID.
type Alert struct {
	ID             int64         `json:"id"`
	ServerID       string        `json:"server_id"`
	Type           string        `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	Message        string        `json:"message"`
	ThresholdValue float64       `json:"threshold_value"`
	ActualValue    float64       `json:"actual_value"`
	TriggeredAt    time.Time     `json:"triggered_at"`
	ResolvedAt     *time.Time    `json:"resolved_at,omitempty"`
	Acknowledged   bool          `json:"acknowledged"`
	Resolved       bool          `json:"is_resolved"`
}

// --- WebSocket payload types ---

// MetricsUpdateData carries a fresh metrics sample for one server.
type MetricsUpdateData struct {
	ServerID string        `json:"server_id"`
	Metrics  SystemMetrics `json:"metrics"`
}

// ServerStatusChangeData announces a server status transition.
type ServerStatusChangeData struct {
	ServerID string       `json:"server_id"`
	Status   ServerStatus `json:"status"`
	LastSeen time.Time    `json:"last_seen"`
}

// ServerDeregisteredData announces a server removal.
type ServerDeregisteredData struct {
	ServerID string `json:"server_id"`
	Message  string `json:"message,omitempty"`
}

// NoticeData is the shape of connection_established,
// subscription_confirmed, pong and error payloads.
type NoticeData struct {
	Message  string `json:"message"`
	ServerID string `json:"server_id,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
}

// --- HTTP response types ---

// ServersResponse is returned by GET /servers.
type ServersResponse struct {
	Servers    []*ServerOverview `json:"servers"`
	TotalCount int               `json:"total_count"`
	Timestamp  time.Time         `json:"timestamp"`
}

// AlertsResponse is returned by GET /alerts.
type AlertsResponse struct {
	Alerts     []*Alert `json:"alerts"`
	TotalCount int      `json:"total_count"`
	ActiveOnly bool     `json:"active_only"`
}

// RegisterServerRequest registers a new host for monitoring.
type RegisterServerRequest struct {
	ServerID  string `json:"server_id"`
	Hostname  string `json:"hostname"`
	IPAddress string `json:"ip_address,omitempty"`
}

// RegisterServerResponse carries the API key minted for a new host.
type RegisterServerResponse struct {
	ServerID string `json:"server_id"`
	APIKey   string `json:"api_key"`
}
