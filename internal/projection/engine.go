// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package projection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/metrics"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

// Engine drives one database handle's projections. A SHARED tenant and a
// DEDICATED tenant each get their own Engine, bound to the *database.DB the
// tenant.Router resolved for them.
type Engine struct {
	db      *database.DB
	store   *eventstore.Store
	payload *payload.Store
	byName  map[string]Handler
}

// New builds an Engine bound to db.
func New(db *database.DB) *Engine {
	return &Engine{
		db:      db,
		store:   eventstore.New(db),
		payload: payload.New(db),
		byName:  make(map[string]Handler),
	}
}

// Register adds h to the engine at process start. Registering two handlers
// with the same name is a programmer error.
func (e *Engine) Register(h Handler) {
	if _, exists := e.byName[h.Name()]; exists {
		panic(fmt.Sprintf("projection %q already registered", h.Name()))
	}
	e.byName[h.Name()] = h
}

type bookmark struct {
	lastStreamSequence int64
	isPaused           bool
}

func (e *Engine) getOrCreateBookmark(ctx context.Context, projectionName string, tenantID int64) (bookmark, error) {
	var bm bookmark
	err := e.db.Conn().QueryRowContext(ctx, `
		SELECT last_stream_sequence, is_paused FROM projection_bookmarks
		WHERE projection_name = ? AND tenant_id = ?`, projectionName, tenantID).
		Scan(&bm.lastStreamSequence, &bm.isPaused)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = e.db.Conn().ExecContext(ctx, `
			INSERT INTO projection_bookmarks (projection_name, tenant_id, last_stream_sequence)
			VALUES (?, ?, 0)`, projectionName, tenantID)
		if err != nil {
			return bookmark{}, fmt.Errorf("create bookmark for %s/%d: %w", projectionName, tenantID, err)
		}
		return bookmark{}, nil
	}
	if err != nil {
		return bookmark{}, fmt.Errorf("load bookmark for %s/%d: %w", projectionName, tenantID, err)
	}
	return bm, nil
}

func (e *Engine) recordFailure(ctx context.Context, projectionName string, tenantID int64, cause error) {
	_, _ = e.db.Conn().ExecContext(ctx, `
		UPDATE projection_bookmarks
		SET error_count = error_count + 1, last_error = ?
		WHERE projection_name = ? AND tenant_id = ?`, cause.Error(), projectionName, tenantID)
}

// ProcessPending fetches up to limit unprocessed events for projectionName
// and applies them in stream_sequence order, returning how many were
// actually applied. It stops at the first handler failure, per the
// hard-fail discipline: a broken projection must not silently skip ahead.
func (e *Engine) ProcessPending(ctx context.Context, tenantID int64, projectionName string, limit int) (int, error) {
	h, ok := e.byName[projectionName]
	if !ok {
		return 0, fmt.Errorf("projection %q is not registered", projectionName)
	}

	bm, err := e.getOrCreateBookmark(ctx, projectionName, tenantID)
	if err != nil {
		return 0, err
	}
	if bm.isPaused {
		return 0, nil
	}

	events, err := e.pendingEvents(ctx, tenantID, bm.lastStreamSequence, h.EventTypes(), limit)
	if err != nil {
		return 0, fmt.Errorf("fetch pending events for %s/%d: %w", projectionName, tenantID, err)
	}

	const maxApplyAttempts = 3
	processed := 0
	for _, event := range events {
		start := time.Now()
		var applyErr error
		for attempt := 0; attempt < maxApplyAttempts; attempt++ {
			applyErr = e.applyOne(ctx, projectionName, tenantID, h, event)
			if applyErr == nil || !database.IsTransactionConflict(applyErr) {
				break
			}
		}
		if applyErr != nil {
			e.recordFailure(ctx, projectionName, tenantID, applyErr)
			metrics.ProjectionErrors.WithLabelValues(projectionName).Inc()
			return processed, fmt.Errorf("apply event %s to %s: %w", event.ID, projectionName, applyErr)
		}
		metrics.ProjectionApplyDuration.WithLabelValues(projectionName).Observe(time.Since(start).Seconds())
		metrics.ProjectionEventsProcessed.WithLabelValues(projectionName).Inc()
		processed++
	}
	return processed, nil
}

func (e *Engine) applyOne(ctx context.Context, projectionName string, tenantID int64, h Handler, event eventstore.BusinessEvent) error {
	tx, err := e.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin projection tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ctx = writebarrier.With(ctx, writebarrier.TagProjection)
	if err := writebarrier.Check(ctx, writebarrier.EntityProjectionMeta); err != nil {
		return err
	}

	var already int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM projection_applied_events
		WHERE tenant_id = ? AND projection_name = ? AND event_id = ?`,
		tenantID, projectionName, event.ID).Scan(&already)
	if err != nil {
		return fmt.Errorf("check applied-event ledger: %w", err)
	}

	if already == 0 {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO projection_applied_events (tenant_id, projection_name, event_id) VALUES (?, ?, ?)`,
			tenantID, projectionName, event.ID); err != nil {
			return fmt.Errorf("record applied event: %w", err)
		}

		data, err := e.resolvePayload(ctx, event)
		if err != nil {
			return err
		}
		if err := h.Handle(ctx, tx, event, data); err != nil {
			return fmt.Errorf("handler %s: %w", projectionName, err)
		}
	} else {
		metrics.ProjectionDoubleApplySkipped.WithLabelValues(projectionName).Inc()
	}

	if err := e.advanceBookmarkTx(ctx, tx, projectionName, tenantID, event); err != nil {
		return err
	}
	return tx.Commit()
}

func (e *Engine) advanceBookmarkTx(ctx context.Context, tx *sql.Tx, projectionName string, tenantID int64, event eventstore.BusinessEvent) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projection_bookmarks
		SET last_event_id = ?, last_stream_sequence = ?, last_processed_at = CURRENT_TIMESTAMP,
		    error_count = 0, last_error = NULL
		WHERE projection_name = ? AND tenant_id = ?`,
		event.ID, event.StreamSequence, projectionName, tenantID)
	if err != nil {
		return fmt.Errorf("advance bookmark: %w", err)
	}
	return nil
}

func (e *Engine) resolvePayload(ctx context.Context, event eventstore.BusinessEvent) ([]byte, error) {
	switch event.PayloadStorage {
	case eventstore.StorageInline:
		return event.InlineData, nil
	case eventstore.StorageExternal:
		blob, err := e.payload.GetByHash(ctx, event.PayloadHash)
		if err != nil {
			return nil, fmt.Errorf("resolve external payload for %s: %w", event.ID, err)
		}
		return blob.Payload, nil
	default:
		return nil, apperrors.New(apperrors.CategoryInvariantViolation,
			fmt.Sprintf("event %s has unknown payload storage %q", event.ID, event.PayloadStorage))
	}
}

func (e *Engine) pendingEvents(ctx context.Context, tenantID int64, afterSeq int64, eventTypes []string, limit int) ([]eventstore.BusinessEvent, error) {
	page, err := e.store.LoadTenantStream(ctx, tenantID, afterSeq+1, limit*4) // overfetch before type-filtering
	if err != nil {
		return nil, err
	}
	if len(eventTypes) == 0 {
		if len(page) > limit {
			page = page[:limit]
		}
		return page, nil
	}
	want := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		want[t] = true
	}
	filtered := make([]eventstore.BusinessEvent, 0, limit)
	for _, e := range page {
		if want[e.EventType] {
			filtered = append(filtered, e)
			if len(filtered) == limit {
				break
			}
		}
	}
	return filtered, nil
}

// Rebuild resets projectionName's bookmark and applied-event ledger for
// tenantID, clears its owned tables via the handler's Clear hook, then
// drains the entire stream from the beginning.
func (e *Engine) Rebuild(ctx context.Context, tenantID int64, projectionName string) error {
	h, ok := e.byName[projectionName]
	if !ok {
		return fmt.Errorf("projection %q is not registered", projectionName)
	}

	ctx = writebarrier.With(ctx, writebarrier.TagProjection)
	tx, err := e.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM projection_applied_events WHERE tenant_id = ? AND projection_name = ?`,
		tenantID, projectionName); err != nil {
		return fmt.Errorf("clear applied-event ledger: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM projection_bookmarks WHERE tenant_id = ? AND projection_name = ?`,
		tenantID, projectionName); err != nil {
		return fmt.Errorf("clear bookmark: %w", err)
	}
	if err := h.Clear(ctx, tx, tenantID); err != nil {
		return fmt.Errorf("clear read model for %s: %w", projectionName, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild reset: %w", err)
	}

	for {
		n, err := e.ProcessPending(ctx, tenantID, projectionName, 500)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// Names lists every registered projection in the order they must drain or
// replay: balances reads journal_lines written by JournalEntriesProjection,
// so journal_entries must apply before account_balances within one pass.
var Names = []string{
	"accounts",
	"journal_entries",
	"account_balances",
	"fiscal_periods",
	"dimensions",
	"identity_crosswalks",
	"import_batches",
}

// NewDefaultEngine builds an Engine bound to db with every projection
// registered, in Names order. Both the command layer's synchronous drain
// (internal/command) and the migration orchestrator's replay step
// (internal/migration) share this single registration list so neither can
// drift out of sync with the other about which projections exist.
func NewDefaultEngine(db *database.DB) *Engine {
	e := New(db)
	e.Register(AccountsProjection{})
	e.Register(JournalEntriesProjection{})
	e.Register(BalancesProjection{})
	e.Register(FiscalPeriodsProjection{})
	e.Register(DimensionsProjection{})
	e.Register(CrosswalksProjection{})
	e.Register(ImportBatchesProjection{})
	return e
}

// Lag returns the number of events not yet applied by projectionName for
// tenantID, and records it in the projection_lag_events gauge.
func (e *Engine) Lag(ctx context.Context, tenantID int64, projectionName string) (int64, error) {
	bm, err := e.getOrCreateBookmark(ctx, projectionName, tenantID)
	if err != nil {
		return 0, err
	}
	head, err := e.store.HeadStreamSequence(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	lag := head - bm.lastStreamSequence
	if lag < 0 {
		lag = 0
	}
	metrics.ProjectionLagEvents.WithLabelValues(fmt.Sprintf("%d", tenantID), projectionName).Set(float64(lag))
	return lag, nil
}
