// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/payload"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, RegisterDefaults(r))
	return r
}

func TestValidate_UnregisteredEventTypePasses(t *testing.T) {
	r := newTestRegistry(t)
	assert.NoError(t, r.Validate("some.unregistered.event", map[string]interface{}{}))
}

func TestValidate_MissingRequiredField(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Validate(payload.EventTypeImportHeader, map[string]interface{}{
		"batch_id": "abc", "total_lines": 10.0, "chunk_size": 5.0,
	})
	assert.Error(t, err)
}

func TestValidate_ClosedSetRejectsExtraField(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Validate(payload.EventTypeImportHeader, map[string]interface{}{
		"batch_id": "abc", "total_lines": 10.0, "total_chunks": 2.0, "chunk_size": 5.0,
		"unexpected": "value",
	})
	assert.Error(t, err)
}

func TestValidate_CELCrossFieldCheckFails(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Validate(payload.EventTypeImportHeader, map[string]interface{}{
		"batch_id": "abc", "total_lines": 10.0, "total_chunks": 0.0, "chunk_size": 5.0,
	})
	assert.Error(t, err)
}

func TestValidate_ValidPayloadPasses(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Validate(payload.EventTypeImportHeader, map[string]interface{}{
		"batch_id": "abc", "total_lines": 10.0, "total_chunks": 2.0, "chunk_size": 5.0,
	})
	assert.NoError(t, err)
}

func TestValidate_ChunkWrongType(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Validate(payload.EventTypeImportChunk, map[string]interface{}{
		"batch_id": "abc", "chunk_index": "not-a-number", "lines": []interface{}{1},
	})
	assert.Error(t, err)
}
