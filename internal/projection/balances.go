// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package projection

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/eventstore"
)

// BalancesProjection maintains account_balances, updated only by posted
// journal entries. Decimal amounts travel as strings end to end (never
// float64) so balances never accumulate rounding error.
type BalancesProjection struct{}

func (BalancesProjection) Name() string { return "account_balances" }

func (BalancesProjection) EventTypes() []string {
	return []string{aggregate.EventJournalPosted}
}

type postedLineRow struct {
	AccountID string `json:"account_id"`
	Debit     string `json:"debit"`
	Credit    string `json:"credit"`
	Memo      string `json:"memo"`
}

// Handle re-derives the posting's lines from journal_lines (already
// populated by JournalEntriesProjection, which is registered ahead of this
// one) rather than decoding the posted event's own payload, since
// journal.posted carries no line data of its own.
func (BalancesProjection) Handle(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, payloadData []byte) error {
	rows, err := tx.QueryContext(ctx, `
		SELECT account_public_id, debit, credit FROM journal_lines
		WHERE tenant_id = ? AND journal_public_id = ? ORDER BY line_index`,
		event.TenantID, event.AggregateID)
	if err != nil {
		return fmt.Errorf("load posted lines: %w", err)
	}
	var lines []postedLineRow
	for rows.Next() {
		var l postedLineRow
		if err := rows.Scan(&l.AccountID, &l.Debit, &l.Credit); err != nil {
			rows.Close()
			return err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, line := range lines {
		if isZeroDecimal(line.Debit) && isZeroDecimal(line.Credit) {
			continue // memo-only line, no balance impact
		}
		if err := applyLineToBalance(ctx, tx, event, line); err != nil {
			return err
		}
	}
	return nil
}

func applyLineToBalance(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, line postedLineRow) error {
	// Check-then-apply: DuckDB has no row-level locking, so serialization
	// against concurrent projection workers comes from its optimistic
	// transaction conflict detection at commit time (the same mechanism
	// internal/eventstore relies on for aggregate_sequence races) rather
	// than an explicit lock here. The last_event_id recheck below still
	// makes a retried apply of the same event a no-op.
	var lastEventID sql.NullString
	var totalDebit, totalCredit, normalBalance string
	err := tx.QueryRowContext(ctx, `
		SELECT ab.last_event_id, ab.total_debit, ab.total_credit, a.normal_balance
		FROM account_balances ab
		JOIN accounts a ON a.tenant_id = ab.tenant_id AND a.public_id = ab.account_public_id
		WHERE ab.tenant_id = ? AND ab.account_public_id = ?`, event.TenantID, line.AccountID).
		Scan(&lastEventID, &totalDebit, &totalCredit, &normalBalance)

	if err == sql.ErrNoRows {
		if _, ierr := tx.ExecContext(ctx, `
			INSERT INTO account_balances (tenant_id, account_public_id, total_debit, total_credit, balance)
			VALUES (?, ?, '0', '0', '0')`, event.TenantID, line.AccountID); ierr != nil {
			return fmt.Errorf("seed balance row for %s: %w", line.AccountID, ierr)
		}
		var nb sql.NullString
		if qerr := tx.QueryRowContext(ctx, `SELECT normal_balance FROM accounts WHERE tenant_id = ? AND public_id = ?`,
			event.TenantID, line.AccountID).Scan(&nb); qerr != nil {
			return fmt.Errorf("load normal balance for %s: %w", line.AccountID, qerr)
		}
		normalBalance = nb.String
		totalDebit, totalCredit = "0", "0"
		lastEventID = sql.NullString{}
	} else if err != nil {
		return fmt.Errorf("lock balance row for %s: %w", line.AccountID, err)
	}

	if lastEventID.Valid && lastEventID.String == event.ID.String() {
		return nil // already applied; idempotent re-entry
	}

	newDebit := addDecimal(totalDebit, line.Debit)
	newCredit := addDecimal(totalCredit, line.Credit)
	balance := newDebit
	if normalBalance == string(aggregate.NormalBalanceCredit) {
		balance = subDecimal(newCredit, newDebit)
	} else {
		balance = subDecimal(newDebit, newCredit)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE account_balances SET total_debit = ?, total_credit = ?, balance = ?, last_event_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ? AND account_public_id = ?`,
		newDebit, newCredit, balance, event.ID, event.TenantID, line.AccountID)
	if err != nil {
		return fmt.Errorf("update balance for %s: %w", line.AccountID, err)
	}
	return nil
}

func (BalancesProjection) Clear(ctx context.Context, tx *sql.Tx, tenantID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM account_balances WHERE tenant_id = ?`, tenantID)
	return err
}

func parseDecimal(s string) *big.Rat {
	r := new(big.Rat)
	if s == "" {
		return r
	}
	r.SetString(s)
	return r
}

func isZeroDecimal(s string) bool {
	return parseDecimal(s).Sign() == 0
}

func addDecimal(a, b string) string {
	r := new(big.Rat).Add(parseDecimal(a), parseDecimal(b))
	return r.FloatString(2)
}

func subDecimal(a, b string) string {
	r := new(big.Rat).Sub(parseDecimal(a), parseDecimal(b))
	return r.FloatString(2)
}
