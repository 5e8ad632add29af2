// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package outbox

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *Outbox {
	t.Helper()
	ob, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })
	return ob
}

func TestEnqueueAndPending(t *testing.T) {
	ob := openTest(t)
	eventID := uuid.New()
	require.NoError(t, ob.Enqueue(1, eventID, 42))

	entries, err := ob.Pending(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].TenantID)
	assert.Equal(t, eventID, entries[0].EventID)
	assert.Equal(t, int64(42), entries[0].StreamSequence)
}

func TestConfirmRemovesFromPending(t *testing.T) {
	ob := openTest(t)
	require.NoError(t, ob.Enqueue(1, uuid.New(), 1))
	entries, err := ob.Pending(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, ob.Confirm(entries[0].ID))

	remaining, err := ob.Pending(10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMarkAttempt_IncrementsCountAndRecordsError(t *testing.T) {
	ob := openTest(t)
	require.NoError(t, ob.Enqueue(1, uuid.New(), 1))
	entries, err := ob.Pending(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, ob.MarkAttempt(entries[0].ID, assertError{}))

	updated, err := ob.Pending(10)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, 1, updated[0].Attempts)
	assert.Equal(t, "dispatch failed", updated[0].LastError)
}

type assertError struct{}

func (assertError) Error() string { return "dispatch failed" }

func TestPending_RespectsLimit(t *testing.T) {
	ob := openTest(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, ob.Enqueue(1, uuid.New(), int64(i)))
	}
	entries, err := ob.Pending(2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
