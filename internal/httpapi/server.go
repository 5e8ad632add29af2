// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package httpapi is the thin HTTP edge spec.md §1 scopes down to routing
// and JSON marshaling: every handler decodes a request, calls straight into
// internal/command or internal/migration, and re-encodes the Result. No
// workflow rule, validation, or serialization format is owned by this
// package.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nxentra/ledgerd/internal/command"
	"github.com/nxentra/ledgerd/internal/config"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/health"
	"github.com/nxentra/ledgerd/internal/migration"
	"github.com/nxentra/ledgerd/internal/tenant"
)

// Server bundles the edge's routing table and the collaborators handlers
// call into. It owns no business state of its own.
type Server struct {
	mux *chi.Mux

	cfg       *config.Config
	defaultDB *database.DB
	dir       *tenant.Directory
	routerTbl *tenant.Router
	cmd       *command.Commander
	migrator  *migration.Orchestrator
	actors    *actorExtractor
}

// New wires the chi router and middleware stack over the given collaborators.
func New(cfg *config.Config, defaultDB *database.DB, dir *tenant.Directory, rt *tenant.Router, cmd *command.Commander, migrator *migration.Orchestrator) *Server {
	s := &Server{
		cfg:       cfg,
		defaultDB: defaultDB,
		dir:       dir,
		routerTbl: rt,
		cmd:       cmd,
		migrator:  migrator,
		actors:    newActorExtractor(cfg.Security.JWTSigningKey),
	}
	s.mux = chi.NewRouter()
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) readiness(ctx context.Context) error {
	return health.Readiness(ctx, s.defaultDB)
}

func (s *Server) fullHealth(ctx context.Context) (health.Report, error) {
	return health.Full(ctx, s.dir, s.routerTbl, s.cfg.Projection.LagThreshold)
}

func (s *Server) routes() {
	s.mux.Use(chimiddleware.Recoverer)
	s.mux.Use(s.requestLogger)
	s.mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	s.mux.Get("/healthz", s.handleLiveness)
	s.mux.Get("/readyz", s.handleReadiness)
	s.mux.Handle("/metrics", promhttp.Handler())

	s.mux.Route("/v1", func(r chi.Router) {
		r.Use(s.requireActor)

		r.Get("/health/full", s.handleFullHealth)
		r.Post("/tenants", s.handleRegisterTenant)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Use(s.resolveTenant)

			r.Post("/migrate", s.handleMigrateTenant)
			r.Post("/status", s.handleSetTenantStatus)

			r.Post("/accounts", s.handleCreateAccount)
			r.Put("/accounts/{accountID}", s.handleUpdateAccount)
			r.Delete("/accounts/{accountID}", s.handleDeleteAccount)

			r.Post("/journal-entries", s.handleCreateJournalEntry)
			r.Put("/journal-entries/{journalID}", s.handleUpdateJournalEntry)
			r.Post("/journal-entries/{journalID}/save-complete", s.handleSaveCompleteJournalEntry)
			r.Post("/journal-entries/{journalID}/post", s.handlePostJournalEntry)
			r.Post("/journal-entries/{journalID}/reverse", s.handleReverseJournalEntry)
			r.Delete("/journal-entries/{journalID}", s.handleDeleteJournalEntry)
			r.Put("/journal-entries/{journalID}/lines/analysis", s.handleSetLineAnalysis)
		})
	})
}
