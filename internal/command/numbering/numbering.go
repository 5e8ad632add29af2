// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package numbering allocates per-tenant, per-sequence-name monotonic
// integers (entry numbers, account numbers, ...) from entry_number_sequences.
// This is deliberately separate from the event store's stream_sequence and
// aggregate_sequence (C6): those order the log itself, while a sequence
// here is a business-facing number a command assigns once, on success, and
// folds into the event payload it emits.
package numbering

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nxentra/ledgerd/internal/database"
)

// Allocator hands out the next value of a named sequence for a tenant.
type Allocator struct {
	db *database.DB
}

// New builds an Allocator bound to db.
func New(db *database.DB) *Allocator {
	return &Allocator{db: db}
}

// Next returns the next value of sequenceName for tenantID, formatted per
// format (e.g. "JE-%06d" for entry numbers, "%04d" for account numbers).
// Callers already hold a write context; Next runs its own transaction, so
// the allocation commits independently of whatever event the caller emits
// afterward -- a failed emit leaves its number consumed and a retried
// command allocates the next one, a gap that is harmless but visible in
// audit trails. Retried on DuckDB transaction conflicts
// the same way the event store retries aggregate-sequence races.
func (a *Allocator) Next(ctx context.Context, tenantID int64, sequenceName, format string) (string, error) {
	const maxAttempts = 3
	var value int64
	var err error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		value, err = a.increment(ctx, tenantID, sequenceName)
		if err == nil || !database.IsTransactionConflict(err) {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("allocate sequence %s for tenant %d: %w", sequenceName, tenantID, err)
	}
	return fmt.Sprintf(format, value), nil
}

func (a *Allocator) increment(ctx context.Context, tenantID int64, sequenceName string) (int64, error) {
	tx, err := a.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin sequence tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current int64
	err = tx.QueryRowContext(ctx, `
		SELECT last_value FROM entry_number_sequences WHERE tenant_id = ? AND sequence_name = ?`,
		tenantID, sequenceName).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		current = 0
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO entry_number_sequences (tenant_id, sequence_name, last_value) VALUES (?, ?, 0)`,
			tenantID, sequenceName); err != nil {
			return 0, fmt.Errorf("seed sequence row: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("load sequence row: %w", err)
	}

	next := current + 1
	if _, err := tx.ExecContext(ctx, `
		UPDATE entry_number_sequences SET last_value = ? WHERE tenant_id = ? AND sequence_name = ?`,
		next, tenantID, sequenceName); err != nil {
		return 0, fmt.Errorf("advance sequence: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit sequence advance: %w", err)
	}
	return next, nil
}
