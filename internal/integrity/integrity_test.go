// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package integrity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/testsupport"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

func commandCtx() context.Context {
	return writebarrier.With(context.Background(), writebarrier.TagCommand)
}

func appendInline(t *testing.T, store *eventstore.Store, ctx context.Context, aggType, aggID, eventType, idemKey string, p interface{}) eventstore.BusinessEvent {
	t.Helper()
	canon, err := canonjson.Marshal(p)
	require.NoError(t, err)
	event, err := store.Append(ctx, eventstore.Draft{
		TenantID: 1, EventType: eventType, AggregateType: aggType, AggregateID: aggID,
		IdempotencyKey: idemKey, PayloadStorage: eventstore.StorageInline, InlineData: canon,
		PayloadHash: canonjson.HashBytes(canon), Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	return event
}

func TestVerify_CleanLogHasNoViolations(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	ctx := commandCtx()

	acctID := uuid.New().String()
	appendInline(t, store, ctx, aggregate.AggregateTypeAccount, acctID, aggregate.EventAccountCreated, "k1",
		map[string]interface{}{"code": "1000", "name": "Cash"})

	v := New(store, payload.New(db))
	report, err := v.Verify(ctx, 1)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.EventsChecked)
}

func TestVerify_DetectsHashMismatch(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	ctx := commandCtx()

	acctID := uuid.New().String()
	appendInline(t, store, ctx, aggregate.AggregateTypeAccount, acctID, aggregate.EventAccountCreated, "k1",
		map[string]interface{}{"code": "1000", "name": "Cash"})

	_, err := db.Conn().ExecContext(ctx, `UPDATE business_events SET inline_data = ? WHERE aggregate_id = ?`,
		`{"code":"9999","name":"Tampered"}`, acctID)
	require.NoError(t, err)

	v := New(store, payload.New(db))
	report, err := v.Verify(ctx, 1)
	require.Error(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "hash_mismatch", report.Violations[0].Kind)
}

func TestVerify_DetectsExternalPayloadMissing(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	payloadStore := payload.New(db)
	ctx := commandCtx()

	acctID := uuid.New().String()
	body := map[string]interface{}{"code": "1000", "name": "Cash"}
	blobID, hash, _, err := payloadStore.Put(ctx, body)
	require.NoError(t, err)

	_, err = store.Append(ctx, eventstore.Draft{
		TenantID: 1, EventType: aggregate.EventAccountCreated, AggregateType: aggregate.AggregateTypeAccount,
		AggregateID: acctID, IdempotencyKey: "k1", PayloadStorage: eventstore.StorageExternal,
		PayloadHash: hash, PayloadRef: &blobID, Origin: "command", OccurredAt: time.Now(),
	})
	require.NoError(t, err)

	_, err = db.Conn().ExecContext(ctx, `DELETE FROM payload_blobs WHERE id = ?`, blobID)
	require.NoError(t, err)

	v := New(store, payloadStore)
	report, err := v.Verify(ctx, 1)
	require.Error(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "payload_missing", report.Violations[0].Kind)
}

func TestVerify_DetectsMissingChunkInImportBatch(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	ctx := commandCtx()

	batchID := uuid.New()
	appendInline(t, store, ctx, payload.AggregateTypeImportBatch, batchID.String(), payload.EventTypeImportHeader, "h1",
		payload.ChunkHeaderPayload{BatchID: batchID, TotalLines: 4, TotalChunks: 2, ChunkSize: 2})
	appendInline(t, store, ctx, payload.AggregateTypeImportBatch, batchID.String(), payload.EventTypeImportChunk, "c1",
		payload.ChunkPayload{BatchID: batchID, ChunkIndex: 0, Lines: []interface{}{map[string]interface{}{"a": 1}}})
	// chunk index 1 never emitted
	appendInline(t, store, ctx, payload.AggregateTypeImportBatch, batchID.String(), payload.EventTypeImportFinalized, "f1",
		payload.ChunkFinalizedPayload{BatchID: batchID, LineCount: 4})

	v := New(store, payload.New(db))
	report, err := v.Verify(ctx, 1)
	require.Error(t, err)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "chunk_missing", report.Violations[0].Kind)
}

func TestVerify_DetectsStreamSequenceGap(t *testing.T) {
	db := testsupport.OpenDB(t)
	store := eventstore.New(db)
	ctx := commandCtx()

	acctID := uuid.New().String()
	appendInline(t, store, ctx, aggregate.AggregateTypeAccount, acctID, aggregate.EventAccountCreated, "k1",
		map[string]interface{}{"code": "1000", "name": "Cash"})

	_, err := db.Conn().ExecContext(ctx, `UPDATE business_events SET stream_sequence = 5 WHERE aggregate_id = ?`, acctID)
	require.NoError(t, err)

	v := New(store, payload.New(db))
	report, err := v.Verify(ctx, 1)
	require.Error(t, err)
	require.NotEmpty(t, report.Violations)
	assert.Equal(t, "sequence_gap", report.Violations[0].Kind)
}
