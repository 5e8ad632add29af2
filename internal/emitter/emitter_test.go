// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package emitter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/config"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/schema"
	"github.com/nxentra/ledgerd/internal/tenant"
	"github.com/nxentra/ledgerd/internal/testsupport"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

func newTestEmitter(t *testing.T) (*Emitter, tenant.Entry) {
	t.Helper()
	db := testsupport.OpenDB(t)
	entry := testsupport.SeedTenant(t, db, 1, tenant.IsolationShared)

	router := tenant.NewRouter(db, database.Config{}, t.TempDir())
	registry, err := schema.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, schema.RegisterDefaults(registry))

	cfg := &config.Config{
		Payload: config.PayloadConfig{InlineMaxBytes: 4096, ExternalMaxBytes: 1 << 20},
	}
	cfg.Projection.Sync = true // no outbox required in these tests
	return New(router, registry, cfg, nil), entry
}

func commandCtx() context.Context {
	return writebarrier.With(context.Background(), writebarrier.TagCommand)
}

func TestEmit_InlinePayloadPersists(t *testing.T) {
	e, entry := newTestEmitter(t)

	event, err := e.Emit(commandCtx(), entry, Request{
		TenantID:       1,
		EventType:      "account.created",
		AggregateType:  "account",
		AggregateID:    "acct-1",
		IdempotencyKey: "k-1",
		Payload:        map[string]interface{}{"name": "Cash"},
		Origin:         "command",
		OccurredAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, eventstore.StorageInline, event.PayloadStorage)
	assert.NotEmpty(t, event.PayloadHash)
	assert.NotEmpty(t, event.InlineData)
}

func TestEmit_LargePayloadGoesExternal(t *testing.T) {
	e, entry := newTestEmitter(t)

	big := make(map[string]interface{}, 1000)
	for i := 0; i < 1000; i++ {
		big[string(rune('a'+i%26))+string(rune(i))] = "padding-value-to-exceed-inline-threshold"
	}

	event, err := e.Emit(commandCtx(), entry, Request{
		TenantID:       1,
		EventType:      "import.batch.note",
		AggregateType:  "import_batch",
		AggregateID:    "batch-1",
		IdempotencyKey: "k-2",
		Payload:        big,
		Origin:         "command",
		OccurredAt:     time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, eventstore.StorageExternal, event.PayloadStorage)
	assert.Nil(t, event.InlineData)
	assert.NotNil(t, event.PayloadRef)
}

func TestEmit_NonWritableTenantRejected(t *testing.T) {
	e, entry := newTestEmitter(t)
	entry.Status = tenant.StatusMigrating

	_, err := e.Emit(commandCtx(), entry, Request{
		TenantID: 1, EventType: "account.created", AggregateType: "account", AggregateID: "a",
		IdempotencyKey: "k", Payload: map[string]interface{}{}, Origin: "command", OccurredAt: time.Now(),
	})
	assert.True(t, errors.Is(err, apperrors.ErrTenantNotWritable))
}

func TestEmit_RejectsInvalidSchemaPayload(t *testing.T) {
	e, entry := newTestEmitter(t)

	_, err := e.Emit(commandCtx(), entry, Request{
		TenantID:       1,
		EventType:      payload.EventTypeImportHeader,
		AggregateType:  payload.AggregateTypeImportBatch,
		AggregateID:    "batch-1",
		IdempotencyKey: "k-3",
		Payload:        map[string]interface{}{"batch_id": "b1"}, // missing required fields
		Origin:         "command",
		OccurredAt:     time.Now(),
	})
	assert.Error(t, err)
}

func TestEmit_DeduplicatesExternalPayloadsByHash(t *testing.T) {
	e, entry := newTestEmitter(t)
	big := make(map[string]interface{}, 1000)
	for i := 0; i < 1000; i++ {
		big[string(rune('a'+i%26))+string(rune(i))] = "padding-value-to-exceed-inline-threshold"
	}

	first, err := e.Emit(commandCtx(), entry, Request{
		TenantID: 1, EventType: "import.batch.note", AggregateType: "import_batch", AggregateID: "b1",
		IdempotencyKey: "k-a", Payload: big, Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	second, err := e.Emit(commandCtx(), entry, Request{
		TenantID: 1, EventType: "import.batch.note", AggregateType: "import_batch", AggregateID: "b2",
		IdempotencyKey: "k-b", Payload: big, Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, first.PayloadHash, second.PayloadHash)
	assert.Equal(t, *first.PayloadRef, *second.PayloadRef)
}
