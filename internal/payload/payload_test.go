// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package payload

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/testsupport"
)

func TestPut_DedupesByContentHash(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	ctx := context.Background()

	id1, hash1, deduped1, err := store.Put(ctx, map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.False(t, deduped1)

	id2, hash2, deduped2, err := store.Put(ctx, map[string]interface{}{"a": 1})
	require.NoError(t, err)
	assert.True(t, deduped2)
	assert.Equal(t, hash1, hash2)
	assert.Equal(t, id1, id2)
}

func TestPut_DifferentPayloadsDifferentHashes(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	ctx := context.Background()

	_, hash1, _, err := store.Put(ctx, map[string]interface{}{"a": 1})
	require.NoError(t, err)
	_, hash2, _, err := store.Put(ctx, map[string]interface{}{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2)
}

func TestGetByHash_MissingReturnsErrPayloadMissing(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := New(db)
	_, err := store.GetByHash(context.Background(), "does-not-exist")
	assert.Error(t, err)
}

func TestDecide_ChoosesInlineOrExternal(t *testing.T) {
	t_ := Thresholds{InlineMaxBytes: 100, ExternalMaxBytes: 1000}
	assert.Equal(t, eventstore.StorageInline, Decide(50, t_))
	assert.Equal(t, eventstore.StorageExternal, Decide(500, t_))
}

func TestChunker_PlansHeaderChunksAndTrailer(t *testing.T) {
	c := NewChunker(2)
	lines := []interface{}{1, 2, 3, 4, 5}
	batchID := uuid.New()

	emissions, err := c.Plan(batchID, lines, "command", time.Now())
	require.NoError(t, err)
	require.Len(t, emissions, 1+3+1) // header + 3 chunks (2,2,1) + trailer

	assert.Equal(t, EventTypeImportHeader, emissions[0].EventType)
	assert.Equal(t, EventTypeImportChunk, emissions[1].EventType)
	assert.Equal(t, EventTypeImportFinalized, emissions[len(emissions)-1].EventType)
	for _, e := range emissions {
		assert.Equal(t, batchID.String(), e.AggregateID)
	}
}

func TestChunker_RejectsEmptyLines(t *testing.T) {
	c := NewChunker(10)
	_, err := c.Plan(uuid.New(), nil, "command", time.Now())
	assert.Error(t, err)
}
