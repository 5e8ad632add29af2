// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/testsupport"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

func commandCtx() context.Context {
	return writebarrier.With(context.Background(), writebarrier.TagCommand)
}

func appendInline(t *testing.T, store *eventstore.Store, ctx context.Context, aggType, aggID, eventType, idemKey string, p interface{}) {
	t.Helper()
	canon, err := canonjson.Marshal(p)
	require.NoError(t, err)
	_, err = store.Append(ctx, eventstore.Draft{
		TenantID: 1, EventType: eventType, AggregateType: aggType, AggregateID: aggID,
		IdempotencyKey: idemKey, PayloadStorage: eventstore.StorageInline, InlineData: canon,
		PayloadHash: canonjson.HashBytes(canon), Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestAccount_AppliesCreateThenUpdateThenDelete(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	ctx := commandCtx()

	appendInline(t, store, ctx, AggregateTypeAccount, "acct-1", EventAccountCreated, "k1",
		accountCreatedPayload{Code: "1000", Name: "Cash", NormalBalance: NormalBalanceDebit})
	newName := "Cash and Equivalents"
	appendInline(t, store, ctx, AggregateTypeAccount, "acct-1", EventAccountUpdated, "k2",
		accountUpdatedPayload{Name: &newName})
	appendInline(t, store, ctx, AggregateTypeAccount, "acct-1", EventAccountDeleted, "k3", map[string]interface{}{})

	loader := New(store, nil)
	var acc Account
	found, err := loader.Load(ctx, 1, AggregateTypeAccount, "acct-1", &acc)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1000", acc.Code)
	assert.Equal(t, "Cash and Equivalents", acc.Name)
	assert.True(t, acc.Deleted)
}

func TestAccount_UnknownEventTypeIgnored(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	ctx := commandCtx()

	appendInline(t, store, ctx, AggregateTypeAccount, "acct-1", EventAccountCreated, "k1",
		accountCreatedPayload{Code: "1000", Name: "Cash"})
	appendInline(t, store, ctx, AggregateTypeAccount, "acct-1", "account.some_future_event", "k2",
		map[string]interface{}{"whatever": "value"})

	loader := New(store, nil)
	var acc Account
	found, err := loader.Load(ctx, 1, AggregateTypeAccount, "acct-1", &acc)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Cash", acc.Name)
}

func TestJournalEntry_FoldsChunkedFamily(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	ctx := commandCtx()

	appendInline(t, store, ctx, AggregateTypeJournalEntry, "je-1", EventJournalCreated, "k1",
		journalCreatedPayload{Date: "2026-01-01", Memo: "opening", Currency: "USD", Kind: "STANDARD"})
	appendInline(t, store, ctx, AggregateTypeJournalEntry, "je-1", EventJournalLinesChunkAdded, "k2",
		journalLinesChunkPayload{ChunkIndex: 0, TotalChunks: 2, Lines: []journalLine{{AccountID: "a1", Debit: "100.00"}}})
	appendInline(t, store, ctx, AggregateTypeJournalEntry, "je-1", EventJournalLinesChunkAdded, "k3",
		journalLinesChunkPayload{ChunkIndex: 1, TotalChunks: 2, Lines: []journalLine{{AccountID: "a2", Credit: "100.00"}}})
	appendInline(t, store, ctx, AggregateTypeJournalEntry, "je-1", EventJournalFinalized, "k4",
		journalFinalizedPayload{TotalDebit: "100.00", TotalCredit: "100.00", LineCount: 2, ChunkCount: 2, FinalStatus: "COMPLETE"})
	appendInline(t, store, ctx, AggregateTypeJournalEntry, "je-1", EventJournalPosted, "k5", map[string]interface{}{})

	loader := New(store, nil)
	var je JournalEntry
	found, err := loader.Load(ctx, 1, AggregateTypeJournalEntry, "je-1", &je)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Len(t, je.Lines, 2)
	assert.Equal(t, 2, je.ChunksSeen)
	assert.Equal(t, JournalStatusPosted, je.Status)
	assert.Equal(t, "100.00", je.TotalDebit)
}

func TestFiscalPeriod_OpenCloseLifecycle(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	ctx := commandCtx()

	appendInline(t, store, ctx, AggregateTypeFiscalPeriod, "fp-2026-01", EventFiscalPeriodRangeSet, "k1",
		fiscalPeriodRangeSetPayload{StartDate: "2026-01-01", EndDate: "2026-01-31", Label: "Jan 2026"})
	appendInline(t, store, ctx, AggregateTypeFiscalPeriod, "fp-2026-01", EventFiscalPeriodClosed, "k2", map[string]interface{}{})

	loader := New(store, nil)
	var fp FiscalPeriod
	found, err := loader.Load(ctx, 1, AggregateTypeFiscalPeriod, "fp-2026-01", &fp)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, FiscalPeriodStatusClosed, fp.Status)
}

func TestImportBatch_FoldsHeaderChunksFinalized(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	payloadStore := payload.New(db)
	ctx := commandCtx()

	appendInline(t, store, ctx, payload.AggregateTypeImportBatch, "batch-1", payload.EventTypeImportHeader, "k1",
		importHeaderPayload{BatchID: "batch-1", TotalLines: 3, TotalChunks: 2, ChunkSize: 2})
	appendInline(t, store, ctx, payload.AggregateTypeImportBatch, "batch-1", payload.EventTypeImportChunk, "k2",
		importChunkPayload{ChunkIndex: 0, Lines: []interface{}{"row1", "row2"}})
	appendInline(t, store, ctx, payload.AggregateTypeImportBatch, "batch-1", payload.EventTypeImportChunk, "k3",
		importChunkPayload{ChunkIndex: 1, Lines: []interface{}{"row3"}})
	appendInline(t, store, ctx, payload.AggregateTypeImportBatch, "batch-1", payload.EventTypeImportFinalized, "k4",
		importFinalizedPayload{LineCount: 3})

	loader := New(store, payloadStore)
	var batch ImportBatch
	found, err := loader.Load(ctx, 1, payload.AggregateTypeImportBatch, "batch-1", &batch)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, ImportBatchStatusFinalized, batch.Status)
	assert.Len(t, batch.StagedLines, 3)
	assert.Equal(t, 2, batch.ChunksSeen)
}

func TestLoad_NoEventsReturnsNotFound(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	loader := New(store, nil)
	var acc Account
	found, err := loader.Load(context.Background(), 1, AggregateTypeAccount, "missing", &acc)
	require.NoError(t, err)
	assert.False(t, found)
}
