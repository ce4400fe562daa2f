// Copyright (c) 2025 ManuGH
// SPDX-License-Identifier: MIT

// Package api exposes the scheduler over HTTP: the display poll protocol and
// the operator surface for displays, playlists and commands.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/vloop/internal/catalog"
	"github.com/ManuGH/vloop/internal/clock"
	"github.com/ManuGH/vloop/internal/log"
	"github.com/ManuGH/vloop/internal/scheduling/command"
	"github.com/ManuGH/vloop/internal/scheduling/playlist"
	"github.com/ManuGH/vloop/internal/scheduling/store"
	"github.com/ManuGH/vloop/internal/scheduling/timeline"
)

// Config tunes the HTTP surface.
type Config struct {
	// PollRateLimit caps poll requests per display key per minute. Displays
	// poll at 1 Hz; the default of 120 leaves room for retries.
	PollRateLimit int
	// OnlineThreshold bounds how stale last_ping may be for "online".
	OnlineThreshold time.Duration
	// MaxBodyBytes caps request bodies. Default 64 KiB.
	MaxBodyBytes int64
}

func (c Config) withDefaults() Config {
	if c.PollRateLimit <= 0 {
		c.PollRateLimit = 120
	}
	if c.OnlineThreshold <= 0 {
		c.OnlineThreshold = 30 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 64 << 10
	}
	return c
}

// Server holds the handler dependencies. All state lives behind the store;
// the server itself is stateless and safe for concurrent use.
type Server struct {
	store     store.Store
	engine    *timeline.Engine
	playlists *playlist.Manager
	commands  *command.Queue
	search    *catalog.Service
	clock     clock.Clock
	cfg       Config
	log       zerolog.Logger
}

// NewServer constructs the API server.
func NewServer(
	st store.Store,
	engine *timeline.Engine,
	playlists *playlist.Manager,
	commands *command.Queue,
	search *catalog.Service,
	clk clock.Clock,
	cfg Config,
) *Server {
	return &Server{
		store:     st,
		engine:    engine,
		playlists: playlists,
		commands:  commands,
		search:    search,
		clock:     clk,
		cfg:       cfg.withDefaults(),
		log:       log.WithComponent("api"),
	}
}

// Routes builds the router. Poll traffic is rate limited per display id so a
// runaway client cannot starve the rest.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/catalog/count", s.handleCatalogCount)

	// Display protocol.
	r.Group(func(r chi.Router) {
		r.Use(httprate.Limit(
			s.cfg.PollRateLimit, time.Minute,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
				return chi.URLParam(r, "displayID"), nil
			}),
		))
		r.Post("/poll/{displayID}", s.handlePoll)
	})
	r.Post("/timeline/mark-played", s.handleMarkPlayed)

	// Operator surface.
	r.Route("/displays", func(r chi.Router) {
		r.Get("/", s.handleListDisplays)
		r.Post("/", s.handleCreateDisplay)
		r.Route("/{displayID}", func(r chi.Router) {
			r.Get("/", s.handleGetDisplay)
			r.Patch("/", s.handleRenameDisplay)
			r.Delete("/", s.handleDeleteDisplay)
			r.Get("/queue", s.handleQueuePreview)
			r.Post("/commands", s.handleEnqueueCommand)
			r.Route("/playlists", func(r chi.Router) {
				r.Get("/", s.handleListPlaylists)
				r.Post("/", s.handleCreatePlaylist)
				r.Route("/{playlistID}", func(r chi.Router) {
					r.Get("/", s.handleGetPlaylist)
					r.Patch("/", s.handleRenamePlaylist)
					r.Delete("/", s.handleDeletePlaylist)
					r.Post("/activate", s.handleActivatePlaylist)
					r.Post("/reset-blocks", s.handleResetBlocks)
				})
			})
		})
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
