// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package migration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/command"
	"github.com/nxentra/ledgerd/internal/config"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/emitter"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/policy"
	"github.com/nxentra/ledgerd/internal/schema"
	"github.com/nxentra/ledgerd/internal/tenant"
	"github.com/nxentra/ledgerd/internal/testsupport"
)

const testTenantID = 701

// harness bundles everything a migration test needs: a commander to post
// real business activity for the tenant being migrated, and the
// directory/router/orchestrator triple that Migrate operates on.
type harness struct {
	dir    *tenant.Directory
	router *tenant.Router
	enf    *policy.Enforcer
	cmd    *command.Commander
	entry  tenant.Entry
}

func newHarness(t *testing.T) harness {
	t.Helper()
	db := testsupport.OpenDB(t)
	entry := testsupport.SeedTenant(t, db, testTenantID, tenant.IsolationShared)

	router := tenant.NewRouter(db, database.Config{}, t.TempDir())
	t.Cleanup(func() { _ = router.Close() })
	dir := tenant.NewDirectory(db)

	registry, err := schema.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, schema.RegisterDefaults(registry))

	cfg := &config.Config{
		Payload:    config.PayloadConfig{InlineMaxBytes: 1 << 20, ExternalMaxBytes: 1 << 24, MaxLinesPerChunk: 500},
		Projection: config.ProjectionConfig{Sync: true},
	}
	em := emitter.New(router, registry, cfg, nil)

	enf, err := policy.New(policy.DefaultConfig())
	require.NoError(t, err)

	chunker := payload.NewChunker(500)
	cmd := command.New(router, em, enf, chunker, true)

	return harness{dir: dir, router: router, enf: enf, cmd: cmd, entry: entry}
}

func adminActor() policy.Actor {
	return policy.Actor{UserID: 1, Roles: []string{"admin"}}
}

func viewerActor() policy.Actor {
	return policy.Actor{UserID: 2, Roles: []string{"viewer"}}
}

func ctxFor(entry tenant.Entry) context.Context {
	return tenant.WithTenant(context.Background(), entry)
}

// seedLedgerActivity creates two accounts and a balanced, posted journal
// entry for the harness's tenant, exercising the account.created and full
// journal.created/save_completed/posted event family a migration must carry
// across intact.
func seedLedgerActivity(t *testing.T, h harness) {
	t.Helper()
	ctx := ctxFor(h.entry)

	cash := h.cmd.CreateAccount(ctx, adminActor(), command.CreateAccountInput{
		Code: "1000", Name: "Cash", AccountType: "ASSET", NormalBalance: "DEBIT",
	})
	require.True(t, cash.Success, "%v", cash.Err)
	cashID := cash.Event.AggregateID

	revenue := h.cmd.CreateAccount(ctx, adminActor(), command.CreateAccountInput{
		Code: "4000", Name: "Revenue", AccountType: "REVENUE", NormalBalance: "CREDIT",
	})
	require.True(t, revenue.Success, "%v", revenue.Err)
	revenueID := revenue.Event.AggregateID

	je := h.cmd.CreateJournalEntry(ctx, adminActor(), 500, command.CreateJournalEntryInput{
		Date: "2026-01-15", Memo: "cash sale", Currency: "USD", Kind: "STANDARD",
		Lines: []command.JournalLineInput{
			{AccountID: cashID, Debit: "150.00", Credit: "0.00", Memo: "cash in"},
			{AccountID: revenueID, Debit: "0.00", Credit: "150.00", Memo: "sale"},
		},
	})
	require.True(t, je.Success, "%v", je.Err)
	journalID := je.Event.AggregateID

	require.True(t, h.cmd.SaveComplete(ctx, adminActor(), journalID).Success)
	require.True(t, h.cmd.Post(ctx, adminActor(), journalID).Success)
}

func TestMigrateSharedToDedicatedRoundTrip(t *testing.T) {
	h := newHarness(t)
	seedLedgerActivity(t, h)

	orch := New(h.dir, h.router, h.enf)
	report, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:     testTenantID,
		TargetMode:   tenant.IsolationDedicated,
		TargetHandle: "tenant-701",
	})
	require.NoError(t, err)
	require.True(t, report.TrialBalanced)
	require.NotEmpty(t, report.ExportHash)
	require.Equal(t, report.ExportHash, report.ImportHash)
	require.GreaterOrEqual(t, report.EventCount, int64(1))

	entry, err := h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Equal(t, tenant.IsolationDedicated, entry.IsolationMode)
	require.Equal(t, "tenant-701", entry.Handle)
	require.Equal(t, tenant.StatusActive, entry.Status)

	// The tenant is writable again post-cutover, on its new dedicated handle.
	require.True(t, entry.Writable())
	db, err := h.router.Route(entry)
	require.NoError(t, err)
	var count int
	row := db.Conn().QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM account_balances WHERE tenant_id = ?`, testTenantID)
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 2, count)
}

func TestMigrateRejectsSameMode(t *testing.T) {
	h := newHarness(t)
	orch := New(h.dir, h.router, h.enf)

	_, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:   testTenantID,
		TargetMode: tenant.IsolationShared,
	})
	require.Error(t, err)

	entry, err := h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Equal(t, tenant.StatusActive, entry.Status)
}

func TestMigrateRejectsNonAdminActor(t *testing.T) {
	h := newHarness(t)
	orch := New(h.dir, h.router, h.enf)

	_, err := orch.Migrate(context.Background(), viewerActor(), Plan{
		TenantID:     testTenantID,
		TargetMode:   tenant.IsolationDedicated,
		TargetHandle: "tenant-701",
	})
	require.Error(t, err)

	// Policy check happens before freeze: the tenant must still be ACTIVE.
	entry, err := h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Equal(t, tenant.StatusActive, entry.Status)
	require.Equal(t, tenant.IsolationShared, entry.IsolationMode)
}

func TestMigrateRejectsMissingTargetHandle(t *testing.T) {
	h := newHarness(t)
	seedLedgerActivity(t, h)
	orch := New(h.dir, h.router, h.enf)

	// An empty target handle for a SHARED->DEDICATED move is rejected
	// before the freeze step runs, so the tenant stays ACTIVE and SHARED.
	_, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:   testTenantID,
		TargetMode: tenant.IsolationDedicated,
	})
	require.Error(t, err)

	entry, err := h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Equal(t, tenant.StatusActive, entry.Status)
	require.Equal(t, tenant.IsolationShared, entry.IsolationMode)
	require.Equal(t, "default", entry.Handle)
}

func TestMigrateDedicatedBackToShared(t *testing.T) {
	h := newHarness(t)

	// Move the tenant to DEDICATED first with no activity, then exercise
	// the reverse direction once it holds real ledger data.
	orch := New(h.dir, h.router, h.enf)
	_, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:     testTenantID,
		TargetMode:   tenant.IsolationDedicated,
		TargetHandle: "tenant-701-a",
	})
	require.NoError(t, err)

	entry, err := h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	h.entry = entry
	seedLedgerActivity(t, h)

	report, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:   testTenantID,
		TargetMode: tenant.IsolationShared,
	})
	require.NoError(t, err)
	require.True(t, report.TrialBalanced)
	require.Equal(t, report.ExportHash, report.ImportHash)

	entry, err = h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Equal(t, tenant.IsolationShared, entry.IsolationMode)
	require.Equal(t, "default", entry.Handle)
}

func TestMigrateDryRunExecutesNoStep(t *testing.T) {
	h := newHarness(t)
	seedLedgerActivity(t, h)
	orch := New(h.dir, h.router, h.enf)

	report, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:     testTenantID,
		TargetMode:   tenant.IsolationDedicated,
		TargetHandle: "tenant-701-dry",
		DryRun:       true,
	})
	require.NoError(t, err)
	require.Equal(t, tenant.IsolationShared, report.FromMode)
	require.Equal(t, tenant.IsolationDedicated, report.ToMode)
	require.Equal(t, "tenant-701-dry", report.TargetHandle)
	require.Empty(t, report.ExportHash)
	require.Zero(t, report.EventCount)

	// Nothing executed: the tenant is untouched, still ACTIVE and SHARED.
	entry, err := h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Equal(t, tenant.StatusActive, entry.Status)
	require.Equal(t, tenant.IsolationShared, entry.IsolationMode)
}

func TestMigrateSkipExportWithoutSkipImportRejected(t *testing.T) {
	h := newHarness(t)
	orch := New(h.dir, h.router, h.enf)

	_, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:     testTenantID,
		TargetMode:   tenant.IsolationDedicated,
		TargetHandle: "tenant-701-skip",
		SkipExport:   true,
	})
	require.Error(t, err)

	// Rejected before the tenant is touched at all.
	entry, err := h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Equal(t, tenant.StatusActive, entry.Status)
	require.Equal(t, tenant.IsolationShared, entry.IsolationMode)
}

// TestMigrateSkipExportAndImportResumesFromRecordedWatermarks models an
// operator re-running a migration that already completed its data-movement
// steps in a prior attempt: --skip-export and --skip-import reuse the
// directory entry's already-recorded export/import hashes instead of moving
// data again, and --skip-replay assumes the target's projections (still
// holding the tenant's original activity on its original default handle)
// are already current.
func TestMigrateSkipExportAndImportResumesFromRecordedWatermarks(t *testing.T) {
	h := newHarness(t)
	seedLedgerActivity(t, h)
	orch := New(h.dir, h.router, h.enf)

	_, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:     testTenantID,
		TargetMode:   tenant.IsolationDedicated,
		TargetHandle: "tenant-701-resume",
	})
	require.NoError(t, err)

	report, err := orch.Migrate(context.Background(), adminActor(), Plan{
		TenantID:     testTenantID,
		TargetMode:   tenant.IsolationShared,
		SkipExport:   true,
		SkipImport:   true,
		SkipReplay:   true,
	})
	require.NoError(t, err)
	require.True(t, report.TrialBalanced)
	require.Equal(t, report.ExportHash, report.ImportHash)

	entry, err := h.dir.Resolve(context.Background(), testTenantID)
	require.NoError(t, err)
	require.Equal(t, tenant.IsolationShared, entry.IsolationMode)
	require.Equal(t, tenant.StatusActive, entry.Status)
}
