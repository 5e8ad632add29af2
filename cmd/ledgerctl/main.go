// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Command ledgerctl is the operator CLI for the five one-shot and daemon
// maintenance operations spec.md §6 lists: rebuilding a projection from its
// event log, running the projection dispatcher, and exporting/importing/
// migrating a tenant's event log. It talks straight to the same internal
// packages cmd/ledgerd wires, never through the HTTP edge.
//
// Tenants here are identified purely by their numeric id; this codebase has
// no separate "slug" concept, so --tenant always takes the directory's
// int64 tenant_id.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/nxentra/ledgerd/internal/config"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/eventstore/outbox"
	"github.com/nxentra/ledgerd/internal/integrity"
	"github.com/nxentra/ledgerd/internal/logging"
	"github.com/nxentra/ledgerd/internal/migration"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/policy"
	"github.com/nxentra/ledgerd/internal/projection"
	"github.com/nxentra/ledgerd/internal/tenant"
)

type cli struct {
	RebuildProjection struct {
		Projection  string `help:"Projection name to rebuild." required:""`
		Tenant      int64  `help:"Tenant id to rebuild (ignored with --all-tenants)."`
		AllTenants  bool   `help:"Rebuild every active tenant instead of one."`
		VerifyFirst bool   `help:"Run an integrity check before rebuilding and abort on violations."`
		DryRun      bool   `help:"Report what would be rebuilt without writing anything."`
	} `cmd:"" name:"rebuild_projection" help:"Replay a projection from its event log from scratch."`

	RunProjections struct {
		Projection      string        `help:"Limit to a single projection name; default is all registered projections."`
		Tenant          int64         `help:"Limit to a single tenant id; default is every active tenant."`
		Daemon          bool          `help:"Keep running on --interval instead of a single pass."`
		Interval        time.Duration `help:"Tick interval in daemon mode." default:"5s"`
		VerifyIntegrity bool          `help:"Run an integrity check before draining each tenant's outbox entries."`
		Strict          bool          `help:"Abort without draining (or advancing any bookmark) for a tenant that fails --verify-integrity."`
		Diagnostics     string        `help:"Write the integrity report(s) from --verify-integrity to this file path."`
	} `cmd:"" name:"run_projections" help:"Drain pending async projection work once, or continuously with --daemon."`

	ExportTenantEvents struct {
		Tenant          int64  `help:"Tenant id to export." required:""`
		Out             string `help:"Output bundle file path." required:""`
		AfterSequence   int64  `help:"Only export events with stream_sequence greater than this."`
		IncludePayloads bool   `help:"Embed EXTERNAL-storage payload bytes so the bundle is self-contained; otherwise only a payload_ref_id is recorded."`
	} `cmd:"" name:"export_tenant_events" help:"Write a tenant's event log to a portable bundle file."`

	ImportTenantEvents struct {
		Handle       string `help:"Database handle name to import into." required:""`
		Tenant       int64  `help:"Tenant id the imported events belong to." required:""`
		In           string `help:"Input bundle file path." required:""`
		SkipExisting bool   `help:"Skip bundle records whose event id is already present on the target handle, instead of failing."`
		DryRun       bool   `help:"Report what would be imported without writing anything."`
	} `cmd:"" name:"import_tenant_events" help:"Re-insert a bundle's events into a database handle."`

	MigrateTenant struct {
		Tenant       int64  `help:"Tenant id to migrate." required:""`
		TargetMode   string `help:"Target isolation mode: SHARED or DEDICATED." required:""`
		TargetHandle string `help:"Target handle name, required for DEDICATED."`
		DryRun       bool   `help:"Report the plan (from/to mode, target handle) without executing any step."`
		SkipExport   bool   `help:"Skip the export step, reusing a previously exported bundle already recorded for this tenant."`
		SkipImport   bool   `help:"Skip the import step, assuming the target handle already has the bundle's events."`
		SkipReplay   bool   `help:"Skip rebuilding projections on the target handle, assuming they are already current."`
	} `cmd:"" name:"migrate_tenant" help:"Freeze, export, import, replay, verify, and cut over a tenant to a new handle."`
}

func main() {
	var c cli
	ctx := kong.Parse(&c, kong.Name("ledgerctl"), kong.Description("ledgerd operator CLI"))

	cfg, err := config.LoadWithKoanf()
	ctx.FatalIfErrorf(err)
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	app, err := newApp(cfg)
	ctx.FatalIfErrorf(err)
	defer app.close()

	switch ctx.Command() {
	case "rebuild_projection":
		err = app.rebuildProjection(context.Background(), c.RebuildProjection.Projection, c.RebuildProjection.Tenant, c.RebuildProjection.AllTenants, c.RebuildProjection.VerifyFirst, c.RebuildProjection.DryRun)
	case "run_projections":
		err = app.runProjections(context.Background(), runProjectionsArgs{
			projection:      c.RunProjections.Projection,
			tenant:          c.RunProjections.Tenant,
			daemon:          c.RunProjections.Daemon,
			interval:        c.RunProjections.Interval,
			verifyIntegrity: c.RunProjections.VerifyIntegrity,
			strict:          c.RunProjections.Strict,
			diagnostics:     c.RunProjections.Diagnostics,
		})
	case "export_tenant_events":
		err = app.exportTenantEvents(context.Background(), c.ExportTenantEvents.Tenant, c.ExportTenantEvents.Out, c.ExportTenantEvents.AfterSequence, c.ExportTenantEvents.IncludePayloads)
	case "import_tenant_events":
		err = app.importTenantEvents(context.Background(), c.ImportTenantEvents.Handle, c.ImportTenantEvents.Tenant, c.ImportTenantEvents.In, migration.ImportOptions{
			SkipExisting: c.ImportTenantEvents.SkipExisting,
			DryRun:       c.ImportTenantEvents.DryRun,
		})
	case "migrate_tenant":
		err = app.migrateTenant(context.Background(), migrateTenantArgs{
			tenant:       c.MigrateTenant.Tenant,
			targetMode:   c.MigrateTenant.TargetMode,
			targetHandle: c.MigrateTenant.TargetHandle,
			dryRun:       c.MigrateTenant.DryRun,
			skipExport:   c.MigrateTenant.SkipExport,
			skipImport:   c.MigrateTenant.SkipImport,
			skipReplay:   c.MigrateTenant.SkipReplay,
		})
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	ctx.FatalIfErrorf(err)
}

// app bundles the collaborators every subcommand needs. It is built fresh
// per invocation since ledgerctl is a one-shot process, not a daemon.
type app struct {
	cfg       *config.Config
	defaultDB *database.DB
	router    *tenant.Router
	dir       *tenant.Directory
	enforcer  *policy.Enforcer
	migrator  *migration.Orchestrator
	ob        *outbox.Outbox
}

func newApp(cfg *config.Config) (*app, error) {
	dbConfig := database.Config{
		Handle:    cfg.Tenancy.DefaultHandle,
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	}
	defaultDB, err := database.New(&dbConfig)
	if err != nil {
		return nil, fmt.Errorf("open default database: %w", err)
	}
	router := tenant.NewRouter(defaultDB, dbConfig, cfg.Database.DedicatedHandleDir)
	dir := tenant.NewDirectory(defaultDB)

	enforcer, err := policy.New(policy.Config{ModelPath: cfg.Security.PolicyModelPath, CacheTTL: time.Minute})
	if err != nil {
		return nil, fmt.Errorf("build policy enforcer: %w", err)
	}
	migrator := migration.New(dir, router, enforcer)

	var ob *outbox.Outbox
	if !cfg.Projection.Sync {
		ob, err = outbox.Open(cfg.Projection.OutboxPath)
		if err != nil {
			return nil, fmt.Errorf("open outbox: %w", err)
		}
	}

	return &app{cfg: cfg, defaultDB: defaultDB, router: router, dir: dir, enforcer: enforcer, migrator: migrator, ob: ob}, nil
}

func (a *app) close() {
	if a.ob != nil {
		_ = a.ob.Close()
	}
	_ = a.router.Close()
	_ = a.defaultDB.Close()
}

// adminActor is the operator identity every CLI-triggered command runs as;
// ledgerctl is only reachable by whoever can already run a process on the
// host, so there is no separate auth step here.
func adminActor() policy.Actor {
	return policy.Actor{UserID: 0, Roles: []string{"admin"}}
}

func (a *app) rebuildProjection(ctx context.Context, projectionName string, tenantID int64, allTenants, verifyFirst, dryRun bool) error {
	entries, err := a.targetEntries(ctx, tenantID, allTenants)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		db, err := a.router.Route(entry)
		if err != nil {
			return fmt.Errorf("route tenant %d: %w", entry.TenantID, err)
		}
		if verifyFirst {
			verifier := integrity.New(eventstore.New(db), payload.New(db))
			report, err := verifier.Verify(ctx, entry.TenantID)
			if err != nil {
				return fmt.Errorf("verify tenant %d before rebuild: %w", entry.TenantID, err)
			}
			if !report.OK() {
				return fmt.Errorf("tenant %d failed integrity verification (%d violations); rebuild aborted", entry.TenantID, len(report.Violations))
			}
		}
		if dryRun {
			logging.Info().Int64("tenant_id", entry.TenantID).Str("projection", projectionName).Msg("dry run: would rebuild")
			continue
		}
		engine := projection.NewDefaultEngine(db)
		if err := engine.Rebuild(ctx, entry.TenantID, projectionName); err != nil {
			return fmt.Errorf("rebuild %s for tenant %d: %w", projectionName, entry.TenantID, err)
		}
		logging.Info().Int64("tenant_id", entry.TenantID).Str("projection", projectionName).Msg("rebuilt projection")
	}
	return nil
}

func (a *app) targetEntries(ctx context.Context, tenantID int64, allTenants bool) ([]tenant.Entry, error) {
	if allTenants {
		return a.dir.ListActive(ctx)
	}
	entry, err := a.dir.Resolve(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant %d: %w", tenantID, err)
	}
	return []tenant.Entry{entry}, nil
}

// runProjectionsArgs bundles the run_projections subcommand's flags.
type runProjectionsArgs struct {
	projection      string
	tenant          int64
	daemon          bool
	interval        time.Duration
	verifyIntegrity bool
	strict          bool
	diagnostics     string
}

func (a *app) runProjections(ctx context.Context, args runProjectionsArgs) error {
	if a.ob == nil {
		return fmt.Errorf("run_projections requires async projections (PROJECTIONS_SYNC must be off)")
	}
	dispatcher := projection.NewDispatcher(a.ob, a.router, a.dir)
	filter := projection.Filter{TenantID: args.tenant, Projection: args.projection}

	runPass := func() error {
		if args.verifyIntegrity {
			reports, verr := a.verifyIntegrity(ctx, args.tenant)
			if len(args.diagnostics) > 0 {
				if werr := writeDiagnostics(args.diagnostics, reports); werr != nil {
					logging.Error().Err(werr).Str("path", args.diagnostics).Msg("run_projections: failed to write diagnostics")
				}
			}
			if verr != nil {
				if args.strict {
					return verr
				}
				logging.Warn().Err(verr).Msg("run_projections: draining despite integrity violation (not --strict)")
			}
		}
		n, err := dispatcher.RunOnce(ctx, a.cfg.Projection.BatchSize, filter)
		if err != nil {
			return err
		}
		logging.Info().Int("confirmed", n).Msg("run_projections: pass complete")
		return nil
	}

	if !args.daemon {
		return runPass()
	}

	ticker := time.NewTicker(args.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := runPass(); err != nil {
				logging.Error().Err(err).Msg("run_projections: tick failed")
			}
		}
	}
}

// verifyIntegrity checks every entry run_projections is about to drain
// (tenantID, or every active tenant when tenantID is 0), returning one
// Report per tenant checked plus the first violation as an error -- the
// --strict path refuses to drain (or advance any bookmark) when that error
// is non-nil, making spec.md's "run_projections --strict exits non-zero
// without advancing any bookmark" scenario literally the first thing that
// happens, before RunOnce is ever called.
func (a *app) verifyIntegrity(ctx context.Context, tenantID int64) ([]integrity.Report, error) {
	entries, err := a.targetEntries(ctx, tenantID, tenantID == 0)
	if err != nil {
		return nil, err
	}
	var reports []integrity.Report
	var failure error
	for _, entry := range entries {
		db, err := a.router.Route(entry)
		if err != nil {
			return reports, fmt.Errorf("route tenant %d: %w", entry.TenantID, err)
		}
		verifier := integrity.New(eventstore.New(db), payload.New(db))
		report, err := verifier.Verify(ctx, entry.TenantID)
		if err != nil {
			return reports, fmt.Errorf("verify tenant %d: %w", entry.TenantID, err)
		}
		reports = append(reports, report)
		if !report.OK() {
			logging.Error().Int64("tenant_id", entry.TenantID).Int("violations", len(report.Violations)).Msg("run_projections: integrity violation")
			if failure == nil {
				failure = fmt.Errorf("tenant %d failed integrity verification (%d violations); run_projections aborted before draining", entry.TenantID, len(report.Violations))
			}
		}
	}
	return reports, failure
}

func writeDiagnostics(path string, reports []integrity.Report) error {
	out, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write diagnostics to %s: %w", path, err)
	}
	return nil
}

func (a *app) exportTenantEvents(ctx context.Context, tenantID int64, outPath string, afterSequence int64, includePayloads bool) error {
	entry, err := a.dir.Resolve(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("resolve tenant %d: %w", tenantID, err)
	}
	db, err := a.router.Route(entry)
	if err != nil {
		return fmt.Errorf("route tenant %d: %w", tenantID, err)
	}

	bundle, err := migration.ExportTenantEvents(ctx, eventstore.New(db), payload.New(db), tenantID, a.cfg.Projection.BatchSize, afterSequence, includePayloads)
	if err != nil {
		return fmt.Errorf("export tenant %d: %w", tenantID, err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	defer f.Close()
	if err := bundle.WriteTo(f); err != nil {
		return fmt.Errorf("write bundle to %s: %w", outPath, err)
	}
	logging.Info().Int64("tenant_id", tenantID).Str("out", outPath).Int64("events", bundle.EventCount).Msg("exported tenant events")
	return nil
}

func (a *app) importTenantEvents(ctx context.Context, handle string, tenantID int64, inPath string, opts migration.ImportOptions) error {
	f, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", inPath, err)
	}
	defer f.Close()
	bundle, err := migration.ReadBundle(f)
	if err != nil {
		return fmt.Errorf("read bundle from %s: %w", inPath, err)
	}

	db, err := a.router.OpenHandle(handle)
	if err != nil {
		return fmt.Errorf("open handle %s: %w", handle, err)
	}

	importHash, importCount, err := migration.ImportTenantEvents(ctx, eventstore.New(db), payload.New(db), tenantID, bundle, opts)
	if err != nil {
		return fmt.Errorf("import tenant %d into %s: %w", tenantID, handle, err)
	}
	if opts.DryRun {
		logging.Info().Int64("tenant_id", tenantID).Str("handle", handle).Int64("events", importCount).Str("hash", importHash).Msg("dry run: would import tenant events")
		return nil
	}
	logging.Info().Int64("tenant_id", tenantID).Str("handle", handle).Int64("events", importCount).Str("hash", importHash).Msg("imported tenant events")
	return nil
}

// migrateTenantArgs bundles the migrate_tenant subcommand's flags.
type migrateTenantArgs struct {
	tenant       int64
	targetMode   string
	targetHandle string
	dryRun       bool
	skipExport   bool
	skipImport   bool
	skipReplay   bool
}

func (a *app) migrateTenant(ctx context.Context, args migrateTenantArgs) error {
	report, err := a.migrator.Migrate(ctx, adminActor(), migration.Plan{
		TenantID:     args.tenant,
		TargetMode:   tenant.IsolationMode(args.targetMode),
		TargetHandle: args.targetHandle,
		DryRun:       args.dryRun,
		SkipExport:   args.skipExport,
		SkipImport:   args.skipImport,
		SkipReplay:   args.skipReplay,
	})
	if err != nil {
		return fmt.Errorf("migrate tenant %d: %w", args.tenant, err)
	}
	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	return nil
}
