// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package migration implements the online tenant migration orchestrator
// (C14): moving a tenant between SHARED and DEDICATED isolation without
// downtime, per spec.md §4.10's freeze -> export -> prepare target ->
// import -> replay -> verify -> cutover sequence, with rollback on any
// step's failure.
package migration

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/logging"
	"github.com/nxentra/ledgerd/internal/metrics"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/policy"
	"github.com/nxentra/ledgerd/internal/projection"
	"github.com/nxentra/ledgerd/internal/tenant"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

// Plan describes one migration request.
type Plan struct {
	TenantID int64
	// TargetMode is the isolation mode the tenant should end up in.
	TargetMode tenant.IsolationMode
	// TargetHandle names the dedicated handle to create when TargetMode is
	// IsolationDedicated. Ignored (and forced to "default") when TargetMode
	// is IsolationShared.
	TargetHandle string
	// PageSize bounds how many events the export/import steps hold at
	// once; defaults to 500.
	PageSize int
	// DryRun reports the plan (from/to mode, target handle) without
	// executing any step.
	DryRun bool
	// SkipExport skips the freeze+export steps, reusing the export
	// watermark already recorded on the tenant's directory entry from a
	// prior attempt. Since a Bundle's records are never persisted between
	// Migrate calls, SkipExport is only valid together with SkipImport --
	// there would otherwise be no records to import.
	SkipExport bool
	// SkipImport skips the import step, assuming the target handle
	// already holds this tenant's events from a prior attempt. The
	// import hash used by the verify step is taken from the directory
	// entry's recorded ImportHash instead of a fresh importBundle result.
	SkipImport bool
	// SkipReplay skips rebuilding projections on the target handle,
	// assuming they are already current from a prior attempt.
	SkipReplay bool
}

// Report summarizes a completed (or rolled-back) migration.
type Report struct {
	TenantID      int64
	FromMode      tenant.IsolationMode
	ToMode        tenant.IsolationMode
	TargetHandle  string
	EventCount    int64
	ExportHash    string
	ImportHash    string
	TrialBalanced bool
}

// Orchestrator drives Plan executions against a tenant directory and
// router shared with the rest of the process.
type Orchestrator struct {
	dir      *tenant.Directory
	router   *tenant.Router
	enforcer *policy.Enforcer

	mu       sync.Mutex
	breakers map[string]*targetBreaker
}

// New builds an Orchestrator.
func New(dir *tenant.Directory, router *tenant.Router, enforcer *policy.Enforcer) *Orchestrator {
	return &Orchestrator{dir: dir, router: router, enforcer: enforcer, breakers: make(map[string]*targetBreaker)}
}

// Migrate executes plan's full freeze/export/prepare/import/replay/verify/
// cutover sequence. A failure at any step triggers rollback and the
// returned error wraps the step's cause; a partially-filled Report is
// still returned so the caller can log how far the attempt got.
func (o *Orchestrator) Migrate(ctx context.Context, actor policy.Actor, plan Plan) (Report, error) {
	if err := o.enforcer.Check(actor, "migration", "execute"); err != nil {
		return Report{}, err
	}
	if plan.PageSize <= 0 {
		plan.PageSize = 500
	}
	if plan.SkipExport && !plan.SkipImport {
		return Report{}, fmt.Errorf("migration: --skip-export requires --skip-import (a bundle's records are not persisted between runs)")
	}

	entry, err := o.dir.Resolve(ctx, plan.TenantID)
	if err != nil {
		return Report{}, fmt.Errorf("resolve tenant %d: %w", plan.TenantID, err)
	}
	if entry.IsolationMode == plan.TargetMode {
		return Report{}, fmt.Errorf("migration: tenant %d is already %s", plan.TenantID, plan.TargetMode)
	}
	if plan.SkipExport && entry.ExportHash == "" {
		return Report{}, fmt.Errorf("migration: --skip-export requested but tenant %d has no recorded export to reuse", plan.TenantID)
	}

	targetHandle := plan.TargetHandle
	if plan.TargetMode == tenant.IsolationShared {
		targetHandle = "default"
	} else if targetHandle == "" {
		return Report{}, fmt.Errorf("migration: a target handle name is required to move tenant %d to DEDICATED", plan.TenantID)
	}

	report := Report{TenantID: plan.TenantID, FromMode: entry.IsolationMode, ToMode: plan.TargetMode, TargetHandle: targetHandle}
	logging.WithTenant(plan.TenantID).Info().Str("from", string(entry.IsolationMode)).
		Str("to", string(plan.TargetMode)).Str("target_handle", targetHandle).Bool("dry_run", plan.DryRun).Msg("migration starting")

	if plan.DryRun {
		logging.WithTenant(plan.TenantID).Info().Msg("migration dry run: no step executed")
		return report, nil
	}

	if err := o.step(plan.TenantID, "freeze", func() error { return o.freeze(ctx, plan.TenantID) }); err != nil {
		return report, o.rollback(plan.TenantID, err)
	}
	logging.NewSecurityLogger().LogTenantFrozen(fmt.Sprintf("%d", actor.UserID), plan.TenantID)

	sourceDB, err := o.router.Route(entry)
	if err != nil {
		return report, o.rollback(plan.TenantID, fmt.Errorf("route source handle: %w", err))
	}
	sourceStore := eventstore.New(sourceDB)
	sourcePayloads := payload.New(sourceDB)

	bundle := Bundle{Version: bundleVersion, TenantID: plan.TenantID}
	if plan.SkipExport {
		logging.WithTenant(plan.TenantID).Info().Msg("migration: skipping export, reusing recorded watermark")
		bundle.ExportHash = entry.ExportHash
		bundle.LastStreamSequence = entry.LastExportedStreamSequence
	} else if err := o.step(plan.TenantID, "export", func() error {
		b, err := exportTenant(writebarrier.With(ctx, writebarrier.TagMigration), sourceStore, sourcePayloads, plan.TenantID, plan.PageSize)
		if err != nil {
			return err
		}
		bundle = b
		return nil
	}); err != nil {
		return report, o.rollback(plan.TenantID, err)
	}
	report.EventCount = bundle.EventCount
	report.ExportHash = bundle.ExportHash

	if !plan.SkipExport {
		if err := o.dir.RecordExport(ctx, plan.TenantID, bundle.LastStreamSequence, bundle.ExportHash); err != nil {
			return report, o.rollback(plan.TenantID, fmt.Errorf("record export: %w", err))
		}
	}

	var targetDB *database.DB
	if err := o.step(plan.TenantID, "prepare_target", func() error {
		db, err := o.prepareTarget(plan.TargetMode, targetHandle)
		if err != nil {
			return err
		}
		targetDB = db
		return nil
	}); err != nil {
		return report, o.rollback(plan.TenantID, err)
	}
	targetStore := eventstore.New(targetDB)
	targetPayloads := payload.New(targetDB)

	if plan.SkipImport {
		logging.WithTenant(plan.TenantID).Info().Msg("migration: skipping import, reusing recorded import hash")
		report.ImportHash = entry.ImportHash
	} else if err := o.step(plan.TenantID, "import", func() error {
		importCtx := writebarrier.With(ctx, writebarrier.TagMigration)
		return o.breakerFor(targetHandle).run(func() error {
			importHash, importCount, err := importBundle(importCtx, targetStore, targetPayloads, plan.TenantID, bundle, ImportOptions{})
			if err != nil {
				return err
			}
			report.ImportHash = importHash
			return o.dir.RecordImport(ctx, plan.TenantID, importHash, importCount)
		})
	}); err != nil {
		return report, o.rollback(plan.TenantID, err)
	}

	if plan.SkipReplay {
		logging.WithTenant(plan.TenantID).Info().Msg("migration: skipping replay, assuming target projections are current")
	} else if err := o.step(plan.TenantID, "replay", func() error { return o.replay(ctx, targetDB, plan.TenantID) }); err != nil {
		return report, o.rollback(plan.TenantID, err)
	}

	if err := o.step(plan.TenantID, "verify", func() error {
		balanced, err := o.verify(ctx, sourceDB, targetDB, plan.TenantID, bundle.ExportHash, report.ImportHash)
		report.TrialBalanced = balanced
		return err
	}); err != nil {
		return report, o.rollback(plan.TenantID, err)
	}

	if err := o.step(plan.TenantID, "cutover", func() error {
		return o.dir.Cutover(writebarrier.With(ctx, writebarrier.TagMigration), plan.TenantID, plan.TargetMode, targetHandle)
	}); err != nil {
		return report, o.rollback(plan.TenantID, err)
	}

	logging.WithTenant(plan.TenantID).Info().Str("target_handle", targetHandle).Msg("migration cutover complete")
	logging.NewSecurityLogger().LogTenantMigrated(fmt.Sprintf("%d", actor.UserID), plan.TenantID, string(plan.TargetMode), targetHandle)
	return report, nil
}

// step times fn under name and records its success/failure outcome, the
// same pattern used for every other timed operation in the process.
func (o *Orchestrator) step(tenantID int64, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.MigrationStepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "failure"
		logging.WithTenant(tenantID).Error().Err(err).Str("step", name).Msg("migration step failed")
	}
	metrics.MigrationStepOutcome.WithLabelValues(name, outcome).Inc()
	return err
}

func (o *Orchestrator) freeze(ctx context.Context, tenantID int64) error {
	return o.dir.SetStatus(writebarrier.With(ctx, writebarrier.TagMigration), tenantID, tenant.StatusMigrating)
}

// rollback restores a tenant to ACTIVE on its current (source) handle,
// leaving its isolation mode untouched, and leaves any target data in
// place for an operator's offline cleanup -- spec.md §4.10 explicitly
// does not ask the rollback step to reclaim target storage.
func (o *Orchestrator) rollback(tenantID int64, cause error) error {
	bg := writebarrier.With(context.Background(), writebarrier.TagMigration)
	if err := o.dir.SetStatus(bg, tenantID, tenant.StatusActive); err != nil {
		logging.WithTenant(tenantID).Error().Err(err).Msg("migration rollback: failed to restore ACTIVE status")
	}
	metrics.MigrationStepOutcome.WithLabelValues("rollback", "executed").Inc()
	logging.WithTenant(tenantID).Warn().Err(cause).Msg("migration rolled back")
	logging.NewSecurityLogger().LogTenantMigrationRolledBack("", tenantID, cause.Error())
	return fmt.Errorf("migration rolled back: %w", cause)
}

// prepareTarget opens the target handle. database.New already creates
// schema and runs versioned migrations as part of opening a handle, so
// that alone satisfies spec.md §4.10's "run schema migrations on the
// target handle" -- there is no separate migration-invocation step here.
func (o *Orchestrator) prepareTarget(mode tenant.IsolationMode, handle string) (*database.DB, error) {
	if mode == tenant.IsolationShared {
		return o.router.DefaultDB(), nil
	}
	var db *database.DB
	err := o.breakerFor(handle).run(func() error {
		opened, err := o.router.OpenHandle(handle)
		if err != nil {
			return err
		}
		db = opened
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("prepare target handle %q: %w", handle, err)
	}
	return db, nil
}

func (o *Orchestrator) breakerFor(handle string) *targetBreaker {
	o.mu.Lock()
	defer o.mu.Unlock()
	b, ok := o.breakers[handle]
	if !ok {
		b = newTargetBreaker(handle)
		o.breakers[handle] = b
	}
	return b
}

// replay rebuilds every registered projection on the target handle from
// its freshly-imported event log, using the same registration list the
// command layer's synchronous drain uses so replay can never fall behind
// a projection the rest of the process already knows about.
func (o *Orchestrator) replay(ctx context.Context, targetDB *database.DB, tenantID int64) error {
	engine := projection.NewDefaultEngine(targetDB)
	for _, name := range projection.Names {
		if err := engine.Rebuild(ctx, tenantID, name); err != nil {
			return fmt.Errorf("replay %s: %w", name, err)
		}
	}
	return nil
}

// verify checks the export/import hash chain matches and that the
// trial balance -- the sum of every account's total_debit and
// total_credit -- agrees between source and freshly-replayed target.
func (o *Orchestrator) verify(ctx context.Context, sourceDB, targetDB *database.DB, tenantID int64, exportHash, importHash string) (bool, error) {
	if exportHash != importHash {
		return false, fmt.Errorf("export/import hash mismatch: export=%s import=%s", exportHash, importHash)
	}
	sourceTotals, err := trialBalance(ctx, sourceDB, tenantID)
	if err != nil {
		return false, fmt.Errorf("source trial balance: %w", err)
	}
	targetTotals, err := trialBalance(ctx, targetDB, tenantID)
	if err != nil {
		return false, fmt.Errorf("target trial balance: %w", err)
	}
	if sourceTotals.debit.Cmp(targetTotals.debit) != 0 || sourceTotals.credit.Cmp(targetTotals.credit) != 0 {
		return false, fmt.Errorf("trial balance mismatch: source debit=%s credit=%s target debit=%s credit=%s",
			sourceTotals.debit.FloatString(2), sourceTotals.credit.FloatString(2),
			targetTotals.debit.FloatString(2), targetTotals.credit.FloatString(2))
	}
	return true, nil
}

type balanceTotals struct {
	debit, credit *big.Rat
}

func trialBalance(ctx context.Context, db *database.DB, tenantID int64) (balanceTotals, error) {
	rows, err := db.Conn().QueryContext(ctx,
		`SELECT total_debit, total_credit FROM account_balances WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return balanceTotals{}, fmt.Errorf("query account balances: %w", err)
	}
	defer rows.Close()

	debit, credit := new(big.Rat), new(big.Rat)
	for rows.Next() {
		var d, c string
		if err := rows.Scan(&d, &c); err != nil {
			return balanceTotals{}, fmt.Errorf("scan account balance row: %w", err)
		}
		debit.Add(debit, parseAmount(d))
		credit.Add(credit, parseAmount(c))
	}
	if err := rows.Err(); err != nil {
		return balanceTotals{}, err
	}
	return balanceTotals{debit: debit, credit: credit}, nil
}

func parseAmount(s string) *big.Rat {
	r := new(big.Rat)
	if s == "" {
		return r
	}
	r.SetString(s)
	return r
}
