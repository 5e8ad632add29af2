// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Command ledgerd runs the HTTP edge, the async projection dispatcher, and
// a periodic integrity sweep in one process -- the daemon side of spec.md
// §6's operational surface. Operator-triggered one-shot work (rebuilds,
// exports, migrations) lives in cmd/ledgerctl instead.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nxentra/ledgerd/internal/command"
	"github.com/nxentra/ledgerd/internal/config"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/emitter"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/eventstore/outbox"
	"github.com/nxentra/ledgerd/internal/httpapi"
	"github.com/nxentra/ledgerd/internal/integrity"
	"github.com/nxentra/ledgerd/internal/logging"
	"github.com/nxentra/ledgerd/internal/migration"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/policy"
	"github.com/nxentra/ledgerd/internal/projection"
	"github.com/nxentra/ledgerd/internal/schema"
	"github.com/nxentra/ledgerd/internal/tenant"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("ledgerd exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: cfg.Logging.Timestamp,
	})

	dbConfig := database.Config{
		Handle:    cfg.Tenancy.DefaultHandle,
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	}
	defaultDB, err := database.New(&dbConfig)
	if err != nil {
		return fmt.Errorf("open default database: %w", err)
	}
	defer defaultDB.Close()

	router := tenant.NewRouter(defaultDB, dbConfig, cfg.Database.DedicatedHandleDir)
	defer router.Close()
	dir := tenant.NewDirectory(defaultDB)

	registry, err := schema.NewRegistry()
	if err != nil {
		return fmt.Errorf("build schema registry: %w", err)
	}
	if err := schema.RegisterDefaults(registry); err != nil {
		return fmt.Errorf("register default schemas: %w", err)
	}

	var ob *outbox.Outbox
	if !cfg.Projection.Sync {
		ob, err = outbox.Open(cfg.Projection.OutboxPath)
		if err != nil {
			return fmt.Errorf("open outbox: %w", err)
		}
		defer ob.Close()
	}

	emit := emitter.New(router, registry, cfg, ob)

	enforcer, err := policy.New(policy.Config{
		ModelPath: cfg.Security.PolicyModelPath,
		CacheTTL:  time.Minute,
	})
	if err != nil {
		return fmt.Errorf("build policy enforcer: %w", err)
	}

	chunker := payload.NewChunker(cfg.Payload.MaxLinesPerChunk)
	cmd := command.New(router, emit, enforcer, chunker, cfg.Projection.Sync)
	migrator := migration.New(dir, router, enforcer)

	server := httpapi.New(cfg, defaultDB, dir, router, cmd, migrator)

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := cron.New(cron.WithSeconds())
	if !cfg.Projection.Sync {
		dispatcher := projection.NewDispatcher(ob, router, dir)
		if _, err := sched.AddFunc(cfg.Projection.DrainSchedule, func() {
			n, err := dispatcher.RunOnce(ctx, cfg.Projection.BatchSize, projection.Filter{})
			if err != nil {
				logging.Error().Err(err).Msg("projection drain tick failed")
				return
			}
			if n > 0 {
				logging.Debug().Int("confirmed", n).Msg("projection drain tick")
			}
		}); err != nil {
			return fmt.Errorf("schedule projection drain: %w", err)
		}
	}
	if _, err := sched.AddFunc("@every 1h", func() {
		runIntegritySweep(ctx, dir, router)
	}); err != nil {
		return fmt.Errorf("schedule integrity sweep: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", httpSrv.Addr).Msg("ledgerd listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// runIntegritySweep verifies every active tenant's event log once an hour,
// logging discrepancies rather than failing the process -- an operator
// follows up with rebuild_projection or migrate_tenant as needed.
func runIntegritySweep(ctx context.Context, dir *tenant.Directory, router *tenant.Router) {
	entries, err := dir.ListActive(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("integrity sweep: list active tenants")
		return
	}
	for _, entry := range entries {
		db, err := router.Route(entry)
		if err != nil {
			logging.Error().Err(err).Int64("tenant_id", entry.TenantID).Msg("integrity sweep: route tenant")
			continue
		}
		verifier := integrity.New(eventstore.New(db), payload.New(db))
		report, err := verifier.Verify(ctx, entry.TenantID)
		if err != nil {
			logging.Error().Err(err).Int64("tenant_id", entry.TenantID).Msg("integrity sweep: verify")
			continue
		}
		if !report.OK() {
			logging.Warn().Int64("tenant_id", entry.TenantID).Int("violations", len(report.Violations)).Msg("integrity sweep found violations")
		}
	}
}
