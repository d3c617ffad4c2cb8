package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hostpulse/dash/internal/app"
	"github.com/hostpulse/dash/internal/client"
	"github.com/hostpulse/dash/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	serverURL := flag.String("url", "", "Override server URL (http://host:port)")
	token := flag.String("token", "", "Override dashboard token")
	logPath := flag.String("log", "", "Write logs to this file (silent otherwise)")
	registerHost := flag.String("register", "", "Register a host (server_id) and exit")
	hostname := flag.String("hostname", "", "Hostname for -register")
	flag.Parse()

	cfg := config.Default()
	if _, err := os.Stat(*configPath); err == nil {
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *serverURL != "" {
		cfg.Server.URL = *serverURL
	}
	if *token != "" {
		cfg.Server.Token = *token
	}

	logger, closeLog, err := newLogger(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if *registerHost != "" {
		if err := runRegister(cfg, *registerHost, *hostname); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	session, err := app.NewSession(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(app.New(session), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runRegister performs a one-shot host registration and prints the
// minted API key for the agent's config.
func runRegister(cfg *config.Config, serverID, hostname string) error {
	if hostname == "" {
		hostname = serverID
	}
	api := client.NewAPIClient(cfg.Server.URL, cfg.Server.Token)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	resp, err := api.RegisterServer(ctx, client.RegisterServerRequest{
		ServerID: serverID,
		Hostname: hostname,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s\napi_key: %s\n", resp.ServerID, resp.APIKey)
	return nil
}

// newLogger returns a logger that never writes to the terminal the TUI
// owns: logs go to the given file, or nowhere.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}
