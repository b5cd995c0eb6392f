// Command lockstepd runs a reference park simulation as either the
// authoritative server or a client, and checks the two stay in lock
// step.
//
// Configuration comes from LOCKSTEP_* environment variables; see
// package config.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/blockberries/lockstep/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := newLogger(config.Config{}, os.Stderr)
		boot.Fatal().Err(err).Msg("load config")
	}
	log := newLogger(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("lockstepd failed")
	}
}

func newLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	lvl, err := cfg.Level()
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if !cfg.LogJSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(lvl).With().
		Timestamp().
		Str("service", "lockstepd").
		Logger()
}
