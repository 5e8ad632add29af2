// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package eventstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/metrics"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

// maxAppendAttempts bounds the aggregate_sequence collision retry loop (C6).
const maxAppendAttempts = 3

// Store appends to and reads from the business_events table on one database
// handle. Callers obtain the right handle per tenant from internal/tenant.Router
// before constructing a Store, or reuse one Store per handle.
type Store struct {
	db *database.DB
}

// New wraps a database handle as an event store.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Append persists a new event, allocating its stream_sequence and
// aggregate_sequence. If draft.IdempotencyKey already has a persisted event,
// Append returns that existing event and apperrors.ErrIdempotencyKeyReplay
// instead of creating a duplicate -- the caller should treat this as success.
func (s *Store) Append(ctx context.Context, draft Draft) (BusinessEvent, error) {
	if err := writebarrier.Check(ctx, writebarrier.EntityEventLog); err != nil {
		return BusinessEvent{}, err
	}
	if draft.Origin == "" {
		return BusinessEvent{}, apperrors.New(apperrors.CategoryInvariantViolation, "event origin is required at emission")
	}

	start := time.Now()
	var appended BusinessEvent
	var err error

	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		appended, err = s.tryAppend(ctx, draft)
		if err == nil {
			metrics.RecordEventAppend(draft.AggregateType, string(draft.PayloadStorage), time.Since(start))
			return appended, nil
		}
		if errors.Is(err, apperrors.ErrIdempotencyKeyReplay) {
			return appended, err
		}
		if !errors.Is(err, apperrors.ErrAggregateSequenceConflict) {
			return BusinessEvent{}, err
		}
		metrics.EventAppendRetries.WithLabelValues(draft.AggregateType).Inc()
	}
	return BusinessEvent{}, fmt.Errorf("append %s/%s: %w after %d attempts",
		draft.AggregateType, draft.AggregateID, apperrors.ErrAggregateSequenceConflict, maxAppendAttempts)
}

func (s *Store) tryAppend(ctx context.Context, draft Draft) (BusinessEvent, error) {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return BusinessEvent{}, apperrors.Wrap(apperrors.CategoryTransient, "begin append transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if existing, found, err := findByIdempotencyKey(ctx, tx, draft.TenantID, draft.IdempotencyKey); err != nil {
		return BusinessEvent{}, err
	} else if found {
		metrics.IdempotentReplaysServed.WithLabelValues(draft.AggregateType).Inc()
		return existing, apperrors.ErrIdempotencyKeyReplay
	}

	var aggSeq int64
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(aggregate_sequence), 0) + 1
		FROM business_events
		WHERE tenant_id = ? AND aggregate_type = ? AND aggregate_id = ?`,
		draft.TenantID, draft.AggregateType, draft.AggregateID).Scan(&aggSeq)
	if err != nil {
		return BusinessEvent{}, fmt.Errorf("compute aggregate sequence: %w", err)
	}

	var streamSeq int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO tenant_stream_counters (tenant_id, last_stream_sequence)
		VALUES (?, 1)
		ON CONFLICT (tenant_id) DO UPDATE
			SET last_stream_sequence = tenant_stream_counters.last_stream_sequence + 1
		RETURNING last_stream_sequence`, draft.TenantID).Scan(&streamSeq)
	if err != nil {
		return BusinessEvent{}, fmt.Errorf("allocate stream sequence: %w", err)
	}

	event := BusinessEvent{
		ID:                uuid.New(),
		TenantID:          draft.TenantID,
		EventType:         draft.EventType,
		AggregateType:     draft.AggregateType,
		AggregateID:       draft.AggregateID,
		AggregateSequence: aggSeq,
		StreamSequence:    streamSeq,
		IdempotencyKey:    draft.IdempotencyKey,
		PayloadStorage:    draft.PayloadStorage,
		PayloadHash:       draft.PayloadHash,
		PayloadRef:        draft.PayloadRef,
		InlineData:        draft.InlineData,
		Origin:            draft.Origin,
		CausedByUserID:    draft.CausedByUserID,
		CausedByEventID:   draft.CausedByEventID,
		OccurredAt:        draft.OccurredAt,
		RecordedAt:        time.Now().UTC(),
		SchemaVersion:     draft.SchemaVersion,
		Metadata:          draft.Metadata,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO business_events (
			id, tenant_id, event_type, aggregate_type, aggregate_id, aggregate_sequence,
			stream_sequence, idempotency_key, payload_storage, payload_hash, payload_ref,
			inline_data, origin, caused_by_user_id, caused_by_event_id, occurred_at,
			recorded_at, schema_version, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.TenantID, event.EventType, event.AggregateType, event.AggregateID,
		event.AggregateSequence, event.StreamSequence, event.IdempotencyKey, event.PayloadStorage,
		event.PayloadHash, event.PayloadRef, nullableBytes(event.InlineData), event.Origin,
		event.CausedByUserID, event.CausedByEventID, event.OccurredAt, event.RecordedAt,
		event.SchemaVersion, nullableBytes(event.Metadata))
	if err != nil {
		if database.IsTransactionConflict(err) {
			return BusinessEvent{}, apperrors.Wrap(apperrors.CategoryTransient, "insert event", apperrors.ErrAggregateSequenceConflict)
		}
		return BusinessEvent{}, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if database.IsTransactionConflict(err) {
			return BusinessEvent{}, apperrors.Wrap(apperrors.CategoryTransient, "commit append", apperrors.ErrAggregateSequenceConflict)
		}
		return BusinessEvent{}, fmt.Errorf("commit append: %w", err)
	}
	return event, nil
}

func findByIdempotencyKey(ctx context.Context, tx *sql.Tx, tenantID int64, key string) (BusinessEvent, bool, error) {
	event, err := scanEvent(tx.QueryRowContext(ctx, eventSelectColumns+`
		FROM business_events WHERE tenant_id = ? AND idempotency_key = ?`, tenantID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return BusinessEvent{}, false, nil
	}
	if err != nil {
		return BusinessEvent{}, false, fmt.Errorf("lookup idempotency key: %w", err)
	}
	return event, true, nil
}

// LoadStream returns every event for one aggregate, ordered by aggregate_sequence.
func (s *Store) LoadStream(ctx context.Context, tenantID int64, aggregateType, aggregateID string) ([]BusinessEvent, error) {
	rows, err := s.db.Conn().QueryContext(ctx, eventSelectColumns+`
		FROM business_events
		WHERE tenant_id = ? AND aggregate_type = ? AND aggregate_id = ?
		ORDER BY aggregate_sequence ASC`, tenantID, aggregateType, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("load stream %s/%s: %w", aggregateType, aggregateID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// LoadTenantStream returns up to limit events after fromStreamSequence
// (exclusive), ordered by stream_sequence. This is the projection engine's
// and the migration export step's read path over the whole tenant log.
func (s *Store) LoadTenantStream(ctx context.Context, tenantID int64, fromStreamSequence int64, limit int) ([]BusinessEvent, error) {
	rows, err := s.db.Conn().QueryContext(ctx, eventSelectColumns+`
		FROM business_events
		WHERE tenant_id = ? AND stream_sequence > ?
		ORDER BY stream_sequence ASC
		LIMIT ?`, tenantID, fromStreamSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("load tenant stream for tenant %d: %w", tenantID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// HeadStreamSequence returns the highest stream_sequence recorded for a tenant.
func (s *Store) HeadStreamSequence(ctx context.Context, tenantID int64) (int64, error) {
	var seq int64
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COALESCE(last_stream_sequence, 0) FROM tenant_stream_counters WHERE tenant_id = ?`,
		tenantID).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("head stream sequence for tenant %d: %w", tenantID, err)
	}
	return seq, nil
}

// ImportEvent persists evt exactly as given, preserving its id,
// aggregate_sequence and stream_sequence. Unlike Append, it never
// allocates sequences of its own -- the migration orchestrator's import
// step uses this to replicate an event's identity onto a target handle
// rather than append a new one (spec.md §4.10 "re-insert each event
// preserving id, aggregate_sequence, stream_sequence").
func (s *Store) ImportEvent(ctx context.Context, evt BusinessEvent) error {
	if err := writebarrier.Check(ctx, writebarrier.EntityEventLog); err != nil {
		return err
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO business_events (
			id, tenant_id, event_type, aggregate_type, aggregate_id, aggregate_sequence,
			stream_sequence, idempotency_key, payload_storage, payload_hash, payload_ref,
			inline_data, origin, caused_by_user_id, caused_by_event_id, occurred_at,
			recorded_at, schema_version, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, evt.TenantID, evt.EventType, evt.AggregateType, evt.AggregateID,
		evt.AggregateSequence, evt.StreamSequence, evt.IdempotencyKey, evt.PayloadStorage,
		evt.PayloadHash, evt.PayloadRef, nullableBytes(evt.InlineData), evt.Origin,
		evt.CausedByUserID, evt.CausedByEventID, evt.OccurredAt, evt.RecordedAt,
		evt.SchemaVersion, nullableBytes(evt.Metadata))
	if err != nil {
		return fmt.Errorf("import event %s: %w", evt.ID, err)
	}
	return nil
}

// EventExists reports whether id is already present in the store, regardless
// of tenant -- id is a UUID primary key global to business_events. The
// standalone `import_tenant_events --skip-existing` operator command uses
// this to re-run an import against a handle that already has some of the
// bundle's events without failing on the primary-key collision.
func (s *Store) EventExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM business_events WHERE id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check event %s exists: %w", id, err)
	}
	return exists, nil
}

// SetStreamCounter advances the tenant's stream counter to at least seq.
// Called once after the migration import step has replayed every event,
// so Append on the target handle continues from the migrated high-water
// mark instead of colliding with the sequences ImportEvent just wrote.
func (s *Store) SetStreamCounter(ctx context.Context, tenantID int64, seq int64) error {
	if err := writebarrier.Check(ctx, writebarrier.EntityEventLog); err != nil {
		return err
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO tenant_stream_counters (tenant_id, last_stream_sequence)
		VALUES (?, ?)
		ON CONFLICT (tenant_id) DO UPDATE
			SET last_stream_sequence = GREATEST(tenant_stream_counters.last_stream_sequence, EXCLUDED.last_stream_sequence)`,
		tenantID, seq)
	if err != nil {
		return fmt.Errorf("set stream counter for tenant %d: %w", tenantID, err)
	}
	return nil
}

func nullableBytes(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return string(b)
}
