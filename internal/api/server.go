// SPDX-License-Identifier: MIT

// Package api exposes the cache over HTTP so remote clients can share one
// store through the http backend. The routes mirror the client contract:
// entry blobs live under /api/v1/entries/{id}, dict skeletons can be
// inspected under /api/v1/dicts/{id}.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/davips/cdict/cache"
	apimw "github.com/davips/cdict/internal/api/middleware"
	"github.com/davips/cdict/internal/config"
	"github.com/davips/cdict/internal/log"
)

// Server handles the HTTP API for a cdictd store.
type Server struct {
	cfg       config.Config
	store     cache.Cache
	logger    zerolog.Logger
	startTime time.Time
}

// New creates a server backed by store. The store is shared with the
// daemon's other components and is not closed by the server.
func New(cfg config.Config, store cache.Cache) *Server {
	return &Server{
		cfg:       cfg,
		store:     store,
		logger:    log.WithComponent("api"),
		startTime: time.Now(),
	}
}

// Handler builds the route tree with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	tracing := ""
	if s.cfg.OTLPEndpoint != "" {
		tracing = "cdictd"
	}
	r := apimw.NewRouter(apimw.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         s.cfg.MetricsEnabled,
		TracingService:        tracing,
		EnableLogging:         true,
		EnableRateLimit:       true,
	})

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.cfg.MetricsEnabled {
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", s.handleVersion)
		r.Get("/stats", s.handleStats)
		r.Get("/dicts/{id}", s.handleGetDict)

		r.Get("/entries/{id}", s.handleGetEntry)
		r.Head("/entries/{id}", s.handleHasEntry)

		// Mutating routes require the token when one is configured.
		rw := r.With(apimw.RequireToken(s.cfg.APIToken))
		rw.Put("/entries/{id}", s.handlePutEntry)
		rw.Delete("/entries/{id}", s.handleDeleteEntry)
	})

	return r
}
