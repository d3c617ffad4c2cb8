// Package config loads HostPulse configuration from a YAML file with
// sensible defaults for every field.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server ServerConfig `yaml:"server"`
	Sync   SyncConfig   `yaml:"sync"`
	Agent  AgentConfig  `yaml:"agent"`
}

// ServerConfig locates the monitoring server.
type ServerConfig struct {
	URL   string `yaml:"url"`   // HTTP base, e.g. http://127.0.0.1:8000
	Token string `yaml:"token"` // dashboard session token
}

// SyncConfig tunes the real-time synchronization core.
type SyncConfig struct {
	RefreshInterval     time.Duration `yaml:"refresh_interval"`
	FallbackInterval    time.Duration `yaml:"fallback_interval"`
	ReconnectBaseDelay  time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay   time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMaxRetries int           `yaml:"reconnect_max_retries"`
}

// AgentConfig tunes the host metrics agent.
type AgentConfig struct {
	ServerID           string        `yaml:"server_id"` // defaults to the hostname
	APIKey             string        `yaml:"api_key"`
	CollectionInterval time.Duration `yaml:"collection_interval"`
	RetryAttempts      int           `yaml:"retry_attempts"`
	RetryBackoff       float64       `yaml:"retry_backoff"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			URL: "http://127.0.0.1:8000",
		},
		Sync: SyncConfig{
			RefreshInterval:     30 * time.Second,
			FallbackInterval:    60 * time.Second,
			ReconnectBaseDelay:  time.Second,
			ReconnectMaxDelay:   30 * time.Second,
			ReconnectMaxRetries: 10,
		},
		Agent: AgentConfig{
			CollectionInterval: 60 * time.Second,
			RetryAttempts:      3,
			RetryBackoff:       2.0,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is
// an error; callers that treat the file as optional should check for it
// first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Sync.FallbackInterval <= cfg.Sync.RefreshInterval {
		return nil, fmt.Errorf("fallback_interval (%s) must be coarser than refresh_interval (%s)",
			cfg.Sync.FallbackInterval, cfg.Sync.RefreshInterval)
	}
	return cfg, nil
}
