// Package main implements the scanvault gateway, a small HTTP daemon that
// fronts the credential security layer for the OCR web application.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/scanvault/clock"
	"github.com/pixelforge/scanvault/monitor"
	"github.com/pixelforge/scanvault/secure"
	"github.com/pixelforge/scanvault/store"
)

// Version is set at build time
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	listen := flag.String("listen", "", "Listen address (overrides config)")
	dbPath := flag.String("db", "scanvault.db", "Path to the credential database")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	// Configure logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Secure.Production {
		log.Logger = zerolog.New(monitor.NewLogFilter(os.Stderr, true)).
			With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Info().
		Str("version", Version).
		Str("listen", cfg.Listen).
		Bool("production", cfg.Secure.Production).
		Msg("Gateway starting")

	if err := monitor.Harden(); err != nil {
		log.Warn().Err(err).Msg("Process hardening unavailable")
	}

	// The long-lived layer survives restarts, the session layer does not.
	longBackend, err := store.NewSQLiteBackend(*dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open credential database")
	}
	defer longBackend.Close()

	clk := clock.New()
	probes := []monitor.Probe{
		&monitor.TracerPIDProbe{},
		&monitor.DebuggerParentProbe{},
		monitor.NewStallProbe(clk, cfg.Secure.MonitorInterval(), 5*time.Second),
	}

	mgr := secure.NewManager(cfg.Secure, clk, store.NewMemoryBackend(), longBackend, probes, secure.Hooks{})
	mgr.Initialize()
	defer mgr.Close()

	srv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      NewServer(cfg, mgr, NewHTTPValidator(cfg.Provider.URL, cfg.ProviderTimeout()), clk),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Graceful shutdown failed")
	}
	log.Info().Msg("Gateway stopped")
}
