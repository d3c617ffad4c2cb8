package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hostpulse/dash/internal/agent"
	"github.com/hostpulse/dash/internal/config"
)

func main() {
	configPath := flag.String("config", "agent.yaml", "Path to config file")
	serverURL := flag.String("url", "", "Override server URL (http://host:port)")
	register := flag.Bool("register", false, "Register this host and print the API key")
	verbose := flag.Bool("v", false, "Debug logging")
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

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	serverID := cfg.Agent.ServerID
	if serverID == "" {
		if hn, err := os.Hostname(); err == nil && hn != "" {
			serverID = hn
		} else {
			serverID = uuid.NewString()
		}
		logger.Info("no server_id configured, derived one", "server_id", serverID)
	}

	transmitter := agent.NewTransmitter(cfg.Server.URL, cfg.Agent.APIKey,
		cfg.Agent.RetryAttempts, cfg.Agent.RetryBackoff, logger)

	if *register {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		key, err := transmitter.Register(ctx, serverID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Registered %s\napi_key: %s\n", serverID, key)
		return
	}

	if cfg.Agent.APIKey == "" {
		fmt.Fprintln(os.Stderr, "No api_key configured; run with -register first")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svc := agent.NewService(agent.NewCollector(serverID), transmitter,
		cfg.Agent.CollectionInterval, logger)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
