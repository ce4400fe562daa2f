// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Command daemon runs the vloop scheduler: the display poll protocol, the
// operator API and the metrics endpoint, backed by the catalog read view and
// the scheduling store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/vloop/internal/api"
	"github.com/ManuGH/vloop/internal/catalog"
	"github.com/ManuGH/vloop/internal/clock"
	"github.com/ManuGH/vloop/internal/config"
	"github.com/ManuGH/vloop/internal/log"
	"github.com/ManuGH/vloop/internal/scheduling/command"
	"github.com/ManuGH/vloop/internal/scheduling/playlist"
	"github.com/ManuGH/vloop/internal/scheduling/store"
	"github.com/ManuGH/vloop/internal/scheduling/timeline"
)

// version is injected at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	if err := run(*configPath); err != nil {
		logger := log.Base()
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "vloop",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalogStore, err := catalog.NewSqliteStore(cfg.CatalogDBPath)
	if err != nil {
		return fmt.Errorf("open catalog store: %w", err)
	}
	defer func() { _ = catalogStore.Close() }()

	schedStore, err := store.NewSqliteStore(cfg.SchedulingDBPath)
	if err != nil {
		return fmt.Errorf("open scheduling store: %w", err)
	}
	defer func() { _ = schedStore.Close() }()

	clk := clock.System()
	search := catalog.NewService(catalogStore, catalog.ServiceConfig{
		CountTTL: cfg.CountCacheTTL,
	})
	engine := timeline.NewEngine(schedStore, search, clk, timeline.Config{
		CatalogTimeout: cfg.CatalogTimeout,
	})
	playlists := playlist.NewManager(schedStore, clk)
	commands := command.NewQueue(schedStore, clk)

	server := api.NewServer(schedStore, engine, playlists, commands, search, clk, api.Config{
		PollRateLimit:   cfg.PollRateLimit,
		OnlineThreshold: cfg.OnlineThreshold,
	})

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("event", "daemon.listening").
			Str("addr", cfg.ListenAddr).
			Str("version", version).
			Msg("scheduler listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Str("event", "daemon.shutdown").Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
