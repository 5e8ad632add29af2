// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/payload"
)

func TestImportBatch_RejectsEmptyLines(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	_, err := c.ImportBatch(ctx, adminActor(), ImportBatchInput{Lines: nil})
	assert.Error(t, err)
}

func TestImportBatch_ChunksAboveThreshold(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	lines := make([]interface{}, testMaxLinesPerChunk*2+3)
	for i := range lines {
		lines[i] = map[string]interface{}{"row": i}
	}

	results, err := c.ImportBatch(ctx, adminActor(), ImportBatchInput{Lines: lines, Origin: OriginBatch})
	require.NoError(t, err)
	// header + 3 chunks + finalized
	require.Len(t, results, 5)
	assert.Equal(t, payload.EventTypeImportHeader, results[0].Event.EventType)
	assert.Equal(t, payload.EventTypeImportChunk, results[1].Event.EventType)
	assert.Equal(t, payload.EventTypeImportFinalized, results[len(results)-1].Event.EventType)
	for _, r := range results {
		assert.True(t, r.Success, "%v", r.Err)
	}
}

func TestImportBatch_SmallBatchStillProducesFullFamily(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	results, err := c.ImportBatch(ctx, adminActor(), ImportBatchInput{
		Lines: []interface{}{map[string]interface{}{"row": 1}},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)
}
