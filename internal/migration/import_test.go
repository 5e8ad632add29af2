// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package migration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/testsupport"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

func importTestCtx() context.Context {
	return writebarrier.With(context.Background(), writebarrier.TagCommand)
}

const importTestTenantID = 801

func seedOneAccountEvent(t *testing.T, store *eventstore.Store) eventstore.BusinessEvent {
	t.Helper()
	p := map[string]interface{}{"code": "1000", "name": "Cash", "normal_balance": "DEBIT"}
	canon, err := canonjson.Marshal(p)
	require.NoError(t, err)
	evt, err := store.Append(importTestCtx(), eventstore.Draft{
		TenantID: importTestTenantID, EventType: aggregate.EventAccountCreated, AggregateType: aggregate.AggregateTypeAccount,
		AggregateID: "55555555-5555-5555-5555-555555555555", IdempotencyKey: "k-import-test",
		PayloadStorage: eventstore.StorageInline, InlineData: canon, PayloadHash: canonjson.HashBytes(canon),
		Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	return evt
}

func TestImportTenantEvents_SkipExistingAvoidsPrimaryKeyCollision(t *testing.T) {
	sourceDB := testsupport.OpenDB(t)
	sourceStore := eventstore.New(sourceDB)
	sourcePayloads := payload.New(sourceDB)
	seedOneAccountEvent(t, sourceStore)

	bundle, err := exportTenant(context.Background(), sourceStore, sourcePayloads, importTestTenantID, 500)
	require.NoError(t, err)
	require.Equal(t, int64(1), bundle.EventCount)

	targetDB := testsupport.OpenDB(t)
	targetStore := eventstore.New(targetDB)
	targetPayloads := payload.New(targetDB)

	_, count, err := ImportTenantEvents(importTestCtx(), targetStore, targetPayloads, importTestTenantID, bundle, ImportOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	// Re-importing the same bundle without --skip-existing collides on the
	// event id primary key.
	_, _, err = ImportTenantEvents(importTestCtx(), targetStore, targetPayloads, importTestTenantID, bundle, ImportOptions{})
	require.Error(t, err)

	// --skip-existing makes the re-run a no-op instead of a failure.
	_, count, err = ImportTenantEvents(importTestCtx(), targetStore, targetPayloads, importTestTenantID, bundle, ImportOptions{SkipExisting: true})
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestImportTenantEvents_DryRunWritesNothing(t *testing.T) {
	sourceDB := testsupport.OpenDB(t)
	sourceStore := eventstore.New(sourceDB)
	sourcePayloads := payload.New(sourceDB)
	seedOneAccountEvent(t, sourceStore)

	bundle, err := exportTenant(context.Background(), sourceStore, sourcePayloads, importTestTenantID, 500)
	require.NoError(t, err)

	targetDB := testsupport.OpenDB(t)
	targetStore := eventstore.New(targetDB)
	targetPayloads := payload.New(targetDB)

	hash, count, err := ImportTenantEvents(importTestCtx(), targetStore, targetPayloads, importTestTenantID, bundle, ImportOptions{DryRun: true})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	require.Equal(t, bundle.ExportHash, hash)

	exists, err := targetStore.EventExists(importTestCtx(), uuid.MustParse(bundle.Records[0].ID))
	require.NoError(t, err)
	require.False(t, exists, "dry run must not insert any event")
}
