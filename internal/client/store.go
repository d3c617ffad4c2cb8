package client

import (
	"sort"
	"sync"
	"time"
)

// Store is the shared state container every update source writes into:
// the push stream, the fallback poller, the scheduled refresh and the
// optimistic coordinator. Entities are keyed by their stable server-side
// id and overwritten in place, except that a write carrying a timestamp
// older than the stored entity's is dropped, so a stale poll response
// cannot clobber a newer push-delivered value.
type Store struct {
	mu       sync.RWMutex
	servers  map[string]*ServerOverview
	alerts   map[int64]*Alert
	seenAt   map[string]time.Time // newest metrics timestamp per server
	onChange []func()
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		servers: make(map[string]*ServerOverview),
		alerts:  make(map[int64]*Alert),
		seenAt:  make(map[string]time.Time),
	}
}

// OnChange registers a callback invoked after every mutation. Callbacks
// must not call back into the store.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func (s *Store) notify() {
	s.mu.RLock()
	callbacks := append([]func(){}, s.onChange...)
	s.mu.RUnlock()
	for _, fn := range callbacks {
		fn()
	}
}

// ReplaceServers applies a full servers overview pull. Rows older than
// what the stream already delivered keep the fresher metrics.
func (s *Store) ReplaceServers(servers []*ServerOverview) {
	s.mu.Lock()
	next := make(map[string]*ServerOverview, len(servers))
	for _, sv := range servers {
		if prev, ok := s.servers[sv.ServerID]; ok && sv.Metrics != nil {
			if seen := s.seenAt[sv.ServerID]; sv.Metrics.Timestamp.Before(seen) {
				sv.Metrics = prev.Metrics
			} else {
				s.seenAt[sv.ServerID] = sv.Metrics.Timestamp
			}
		} else if sv.Metrics != nil {
			s.seenAt[sv.ServerID] = sv.Metrics.Timestamp
		}
		next[sv.ServerID] = sv
	}
	s.servers = next
	s.mu.Unlock()
	s.notify()
}

// ApplyMetrics records a pushed metrics sample for one server. Samples
// at or before the newest seen timestamp for that server are dropped.
func (s *Store) ApplyMetrics(serverID string, m SystemMetrics) {
	s.mu.Lock()
	if seen, ok := s.seenAt[serverID]; ok && !m.Timestamp.After(seen) {
		s.mu.Unlock()
		return
	}
	s.seenAt[serverID] = m.Timestamp
	sv, ok := s.servers[serverID]
	if !ok {
		sv = &ServerOverview{ServerID: serverID, Status: StatusHealthy}
		s.servers[serverID] = sv
	}
	sv.Metrics = &m
	sv.LastSeen = m.Timestamp
	s.mu.Unlock()
	s.notify()
}

// SetServerStatus applies a server status transition.
func (s *Store) SetServerStatus(serverID string, status ServerStatus, lastSeen time.Time) {
	s.mu.Lock()
	sv, ok := s.servers[serverID]
	if !ok {
		sv = &ServerOverview{ServerID: serverID}
		s.servers[serverID] = sv
	}
	sv.Status = status
	if lastSeen.After(sv.LastSeen) {
		sv.LastSeen = lastSeen
	}
	s.mu.Unlock()
	s.notify()
}

// UpsertServer adds or overwrites one server row.
func (s *Store) UpsertServer(sv *ServerOverview) {
	s.mu.Lock()
	s.servers[sv.ServerID] = sv
	if sv.Metrics != nil {
		s.seenAt[sv.ServerID] = sv.Metrics.Timestamp
	}
	s.mu.Unlock()
	s.notify()
}

// RemoveServer deletes a server and its staleness marker.
func (s *Store) RemoveServer(serverID string) {
	s.mu.Lock()
	delete(s.servers, serverID)
	delete(s.seenAt, serverID)
	s.mu.Unlock()
	s.notify()
}

// Servers returns the overview rows sorted by server id.
func (s *Store) Servers() []*ServerOverview {
	s.mu.RLock()
	out := make([]*ServerOverview, 0, len(s.servers))
	for _, sv := range s.servers {
		copied := *sv
		out = append(out, &copied)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ServerID < out[j].ServerID })
	return out
}

// Server returns one overview row, or nil.
func (s *Store) Server(serverID string) *ServerOverview {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sv, ok := s.servers[serverID]; ok {
		copied := *sv
		return &copied
	}
	return nil
}

// ReplaceAlerts applies a full active-alerts pull.
func (s *Store) ReplaceAlerts(alerts []*Alert) {
	s.mu.Lock()
	next := make(map[int64]*Alert, len(alerts))
	for _, a := range alerts {
		next[a.ID] = a
	}
	s.alerts = next
	s.mu.Unlock()
	s.notify()
}

// UpsertAlert adds or overwrites one alert; a resolved alert is removed
// from the active set.
func (s *Store) UpsertAlert(a *Alert) {
	s.mu.Lock()
	if a.Resolved {
		delete(s.alerts, a.ID)
	} else {
		s.alerts[a.ID] = a
	}
	s.mu.Unlock()
	s.notify()
}

// RemoveAlert deletes an alert from the active set.
func (s *Store) RemoveAlert(id int64) {
	s.mu.Lock()
	delete(s.alerts, id)
	s.mu.Unlock()
	s.notify()
}

// Alert returns one alert, or nil.
func (s *Store) Alert(id int64) *Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if a, ok := s.alerts[id]; ok {
		copied := *a
		return &copied
	}
	return nil
}

// SetAlertAcknowledged flips the acknowledged flag on an active alert.
func (s *Store) SetAlertAcknowledged(id int64, acked bool) {
	s.mu.Lock()
	if a, ok := s.alerts[id]; ok {
		a.Acknowledged = acked
	}
	s.mu.Unlock()
	s.notify()
}

// Alerts returns active alerts, newest first.
func (s *Store) Alerts() []*Alert {
	s.mu.RLock()
	out := make([]*Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		copied := *a
		out = append(out, &copied)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].TriggeredAt.Equal(out[j].TriggeredAt) {
			return out[i].TriggeredAt.After(out[j].TriggeredAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
