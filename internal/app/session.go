package app

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/hostpulse/dash/internal/client"
	"github.com/hostpulse/dash/internal/config"
)

// Session owns the synchronization core for one dashboard run: the
// connection client, store, dispatcher, schedulers and optimistic
// coordinator, created here and injected into their consumers. Nothing
// in the core is a package-level singleton.
type Session struct {
	Conn     *client.ConnClient
	API      *client.APIClient
	Store    *client.Store
	Refresh  *client.AutoRefresh
	Fallback *client.FallbackPoller
	Updates  *client.Updates

	dispatcher *client.Dispatcher
}

// NewSession builds the core from configuration.
func NewSession(cfg *config.Config, logger *slog.Logger) (*Session, error) {
	wsURL, err := deriveWSURL(cfg.Server.URL)
	if err != nil {
		return nil, err
	}

	store := client.NewStore()
	api := client.NewAPIClient(cfg.Server.URL, cfg.Server.Token)
	conn := client.NewConnClient(client.ConnConfig{
		URL:         wsURL,
		Token:       cfg.Server.Token,
		BaseDelay:   cfg.Sync.ReconnectBaseDelay,
		MaxDelay:    cfg.Sync.ReconnectMaxDelay,
		MaxAttempts: cfg.Sync.ReconnectMaxRetries,
		Logger:      logger,
	})

	pull := client.PullState(api, store)
	refresh := client.NewAutoRefresh(pull, cfg.Sync.RefreshInterval, logger)
	fallback := client.NewFallbackPoller(pull, cfg.Sync.FallbackInterval, logger)
	dispatcher := client.NewDispatcher(conn, store, refresh, fallback, logger)

	return &Session{
		Conn:       conn,
		API:        api,
		Store:      store,
		Refresh:    refresh,
		Fallback:   fallback,
		Updates:    client.NewUpdates(),
		dispatcher: dispatcher,
	}, nil
}

// Start wires the dispatcher, begins the scheduled refresh and opens the
// stream. The refresh and the connect run concurrently; a dial failure
// degrades to fallback polling rather than failing the session.
func (s *Session) Start() {
	s.dispatcher.Wire()
	s.Refresh.Start()
	go s.Conn.Connect()
}

// Stop tears the session down: speculative state rolled back, the
// dispatcher unwired first so the disconnect transition cannot restart
// the fallback poller, then the stream closed and the schedulers
// stopped.
func (s *Session) Stop() {
	s.Updates.RollbackAll()
	s.dispatcher.Unwire()
	s.Conn.Disconnect()
	s.Refresh.Stop()
	s.Fallback.Stop()
}

// deriveWSURL converts http://host:port → ws://host:port/ws.
func deriveWSURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	scheme := "ws"
	if strings.HasPrefix(u.Scheme, "https") {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}
