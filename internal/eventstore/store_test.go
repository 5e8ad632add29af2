// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package eventstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/testsupport"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

func commandCtx() context.Context {
	return writebarrier.With(context.Background(), writebarrier.TagCommand)
}

func TestAppend_AllocatesSequences(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	ctx := commandCtx()

	e1, err := store.Append(ctx, Draft{
		TenantID: 1, EventType: "account.created", AggregateType: "account", AggregateID: "acct-1",
		IdempotencyKey: "key-1", PayloadStorage: StorageInline, InlineData: []byte(`{"n":1}`),
		Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.AggregateSequence)
	assert.Equal(t, int64(1), e1.StreamSequence)

	e2, err := store.Append(ctx, Draft{
		TenantID: 1, EventType: "account.renamed", AggregateType: "account", AggregateID: "acct-1",
		IdempotencyKey: "key-2", PayloadStorage: StorageInline, InlineData: []byte(`{"n":2}`),
		Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), e2.AggregateSequence)
	assert.Equal(t, int64(2), e2.StreamSequence)

	e3, err := store.Append(ctx, Draft{
		TenantID: 1, EventType: "account.created", AggregateType: "account", AggregateID: "acct-2",
		IdempotencyKey: "key-3", PayloadStorage: StorageInline, InlineData: []byte(`{"n":1}`),
		Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), e3.AggregateSequence, "a different aggregate starts its own sequence")
	assert.Equal(t, int64(3), e3.StreamSequence, "stream sequence is per-tenant, not per-aggregate")
}

func TestAppend_IdempotentReplayReturnsExisting(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	ctx := commandCtx()

	draft := Draft{
		TenantID: 1, EventType: "account.created", AggregateType: "account", AggregateID: "acct-1",
		IdempotencyKey: "same-key", PayloadStorage: StorageInline, InlineData: []byte(`{}`),
		Origin: "command", OccurredAt: time.Now(),
	}

	first, err := store.Append(ctx, draft)
	require.NoError(t, err)

	second, err := store.Append(ctx, draft)
	assert.True(t, errors.Is(err, apperrors.ErrIdempotencyKeyReplay))
	assert.Equal(t, first.ID, second.ID)
}

func TestAppend_RequiresOrigin(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	_, err := store.Append(commandCtx(), Draft{
		TenantID: 1, EventType: "account.created", AggregateType: "account", AggregateID: "acct-1",
		IdempotencyKey: "k", PayloadStorage: StorageInline, OccurredAt: time.Now(),
	})
	assert.Equal(t, apperrors.CategoryInvariantViolation, apperrors.Categorize(err))
}

func TestAppend_DeniedWithoutWriteBarrierTag(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	_, err := store.Append(context.Background(), Draft{
		TenantID: 1, EventType: "account.created", AggregateType: "account", AggregateID: "acct-1",
		IdempotencyKey: "k", PayloadStorage: StorageInline, Origin: "command", OccurredAt: time.Now(),
	})
	assert.Error(t, err)
}

func TestLoadStream_OrdersByAggregateSequence(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	ctx := commandCtx()

	for i := 1; i <= 3; i++ {
		_, err := store.Append(ctx, Draft{
			TenantID: 1, EventType: "journal.line_added", AggregateType: "journal_entry", AggregateID: "je-1",
			IdempotencyKey: string(rune('a' + i)), PayloadStorage: StorageInline, InlineData: []byte(`{}`),
			Origin: "command", OccurredAt: time.Now(),
		})
		require.NoError(t, err)
	}

	events, err := store.LoadStream(ctx, 1, "journal_entry", "je-1")
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.AggregateSequence)
	}
}

func TestLoadTenantStream_RespectsWatermarkAndLimit(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	ctx := commandCtx()

	for i := 0; i < 5; i++ {
		_, err := store.Append(ctx, Draft{
			TenantID: 1, EventType: "account.created", AggregateType: "account",
			AggregateID: string(rune('a' + i)), IdempotencyKey: string(rune('A' + i)),
			PayloadStorage: StorageInline, InlineData: []byte(`{}`), Origin: "command", OccurredAt: time.Now(),
		})
		require.NoError(t, err)
	}

	page, err := store.LoadTenantStream(ctx, 1, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].StreamSequence)
	assert.Equal(t, int64(4), page[1].StreamSequence)
}

func TestHeadStreamSequence_ZeroWhenNoEvents(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	head, err := store.HeadStreamSequence(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, int64(0), head)
}
