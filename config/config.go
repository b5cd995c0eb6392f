// Package config loads lockstepd settings from LOCKSTEP_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/blockberries/lockstep"
	"github.com/blockberries/lockstep/fingerprint"
)

// Config is the daemon configuration.
type Config struct {
	Mode string `env:"LOCKSTEP_MODE" envDefault:"server"`

	// Server: where the sync service listens. Client: where to dial.
	GRPCAddr    string `env:"LOCKSTEP_GRPC_ADDR" envDefault:"127.0.0.1:7420"`
	// Websocket status feed and Prometheus endpoints. Empty disables.
	StatusAddr  string `env:"LOCKSTEP_STATUS_ADDR"`
	MetricsAddr string `env:"LOCKSTEP_METRICS_ADDR"`

	LedgerCapacity int           `env:"LOCKSTEP_LEDGER_CAPACITY" envDefault:"256"`
	InboxSize      int           `env:"LOCKSTEP_INBOX_SIZE"`
	Digest         string        `env:"LOCKSTEP_DIGEST" envDefault:"rolling"`
	TickInterval   time.Duration `env:"LOCKSTEP_TICK_INTERVAL" envDefault:"40ms"`
	StatusInterval time.Duration `env:"LOCKSTEP_STATUS_INTERVAL" envDefault:"250ms"`

	Seed   uint32 `env:"LOCKSTEP_SEED" envDefault:"1"`
	Guests int    `env:"LOCKSTEP_GUESTS" envDefault:"64"`
	// Stop after this many ticks; zero runs until interrupted.
	Ticks uint64 `env:"LOCKSTEP_TICKS"`

	LogLevel string `env:"LOCKSTEP_LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOCKSTEP_LOG_JSON"`
}

// Load reads the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadFrom reads the given variables instead of the process
// environment.
func LoadFrom(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values that parse but make no sense.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Role(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Algorithm(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.LedgerCapacity <= 0 {
		errs = append(errs, fmt.Errorf("LOCKSTEP_LEDGER_CAPACITY must be positive, got %d", c.LedgerCapacity))
	}
	if c.InboxSize < 0 {
		errs = append(errs, fmt.Errorf("LOCKSTEP_INBOX_SIZE must not be negative, got %d", c.InboxSize))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("LOCKSTEP_TICK_INTERVAL must be positive, got %s", c.TickInterval))
	}
	if c.Guests < 0 {
		errs = append(errs, fmt.Errorf("LOCKSTEP_GUESTS must not be negative, got %d", c.Guests))
	}
	return errors.Join(errs...)
}

// Role maps Mode to a session role.
func (c Config) Role() (lockstep.Role, error) {
	switch strings.ToLower(c.Mode) {
	case "server":
		return lockstep.RoleServer, nil
	case "client":
		return lockstep.RoleClient, nil
	default:
		return 0, fmt.Errorf("LOCKSTEP_MODE must be server or client, got %q", c.Mode)
	}
}

// Algorithm maps Digest to a fingerprint algorithm.
func (c Config) Algorithm() (fingerprint.Algorithm, error) {
	return fingerprint.ParseAlgorithm(c.Digest)
}

// Level maps LogLevel to a zerolog level.
func (c Config) Level() (zerolog.Level, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("LOCKSTEP_LOG_LEVEL: %w", err)
	}
	return lvl, nil
}
