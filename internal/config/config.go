// Package config loads agent configuration from the environment and the
// optional resource-type registry file.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment-driven configuration of the sync agent.
type Config struct {
	// APIURL is the REST backend root.
	APIURL string `env:"PLANHUB_API_URL" envDefault:"http://localhost:8090"`
	// WSURL is the websocket root; rooms attach under /ws/{room}.
	WSURL string `env:"PLANHUB_WS_URL" envDefault:"ws://localhost:8090"`
	// DataDir holds the local database.
	DataDir string `env:"PLANHUB_DATA_DIR" envDefault:".planhub"`
	// SyncInterval is the periodic sync period.
	SyncInterval time.Duration `env:"PLANHUB_SYNC_INTERVAL" envDefault:"30s"`
	// RetryBackoff is the delay before retrying a failed cycle.
	RetryBackoff time.Duration `env:"PLANHUB_RETRY_BACKOFF" envDefault:"5s"`
	// Rooms are the realtime rooms to join.
	Rooms []string `env:"PLANHUB_ROOMS" envSeparator:"," envDefault:"dashboard,projects,risks,resources"`
	// LogLevel selects the minimum log level (DEBUG, INFO, WARN, ERROR).
	LogLevel string `env:"PLANHUB_LOG_LEVEL" envDefault:"INFO"`
	// RegistryPath optionally points at a YAML registry overriding the
	// built-in resource-type definitions.
	RegistryPath string `env:"PLANHUB_REGISTRY" envDefault:""`
}

// FromEnv parses the configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
