// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/eventstore"
)

// JournalEntriesProjection maintains journal_entries and journal_lines.
type JournalEntriesProjection struct{}

func (JournalEntriesProjection) Name() string { return "journal_entries" }

func (JournalEntriesProjection) EventTypes() []string {
	return []string{
		aggregate.EventJournalCreated, aggregate.EventJournalUpdated, aggregate.EventJournalLinesChunkAdded,
		aggregate.EventJournalFinalized, aggregate.EventJournalSaveCompleted, aggregate.EventJournalPosted,
		aggregate.EventJournalReversed, aggregate.EventJournalDeleted, aggregate.EventJournalLineAnalysisSet,
	}
}

type journalLineRow struct {
	AccountID    string      `json:"account_id"`
	Debit        string      `json:"debit"`
	Credit       string      `json:"credit"`
	Memo         string      `json:"memo"`
	AnalysisTags interface{} `json:"analysis_tags"`
}

func (JournalEntriesProjection) Handle(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case aggregate.EventJournalCreated:
		var p struct {
			Date            string           `json:"date"`
			Memo            string           `json:"memo"`
			Currency        string           `json:"currency"`
			Kind            string           `json:"kind"`
			ReversesEntryID string           `json:"reverses_entry_id"`
			Lines           []journalLineRow `json:"lines"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode journal.created: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO journal_entries (tenant_id, public_id, entry_date, memo, currency, kind, reverses_entry_id, status, line_count, last_event_id)
			VALUES (?, ?, ?, ?, ?, ?, NULLIF(?, ''), 'INCOMPLETE', ?, ?)
			ON CONFLICT (tenant_id, public_id) DO UPDATE SET
				entry_date = EXCLUDED.entry_date, memo = EXCLUDED.memo, currency = EXCLUDED.currency,
				kind = EXCLUDED.kind, line_count = EXCLUDED.line_count, last_event_id = EXCLUDED.last_event_id,
				updated_at = CURRENT_TIMESTAMP`,
			event.TenantID, event.AggregateID, p.Date, p.Memo, p.Currency, p.Kind, p.ReversesEntryID, len(p.Lines), event.ID); err != nil {
			return err
		}
		return insertJournalLines(ctx, tx, event.TenantID, event.AggregateID, 0, p.Lines)

	case aggregate.EventJournalUpdated:
		var p struct {
			Memo  *string          `json:"memo"`
			Lines []journalLineRow `json:"lines"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode journal.updated: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE journal_entries SET memo = COALESCE(?, memo), last_event_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE tenant_id = ? AND public_id = ?`, p.Memo, event.ID, event.TenantID, event.AggregateID); err != nil {
			return err
		}
		if p.Lines != nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM journal_lines WHERE tenant_id = ? AND journal_public_id = ?`,
				event.TenantID, event.AggregateID); err != nil {
				return err
			}
			if err := insertJournalLines(ctx, tx, event.TenantID, event.AggregateID, 0, p.Lines); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE journal_entries SET line_count = ? WHERE tenant_id = ? AND public_id = ?`,
				len(p.Lines), event.TenantID, event.AggregateID); err != nil {
				return err
			}
		}
		return nil

	case aggregate.EventJournalLinesChunkAdded:
		var p struct {
			ChunkIndex int              `json:"chunk_index"`
			Lines      []journalLineRow `json:"lines"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode journal.lines_chunk_added: %w", err)
		}
		var existing int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM journal_lines WHERE tenant_id = ? AND journal_public_id = ?`,
			event.TenantID, event.AggregateID).Scan(&existing); err != nil {
			return err
		}
		if err := insertJournalLines(ctx, tx, event.TenantID, event.AggregateID, existing, p.Lines); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE journal_entries SET line_count = line_count + ?, last_event_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE tenant_id = ? AND public_id = ?`, len(p.Lines), event.ID, event.TenantID, event.AggregateID)
		return err

	case aggregate.EventJournalFinalized:
		var p struct {
			TotalDebit  string `json:"total_debit"`
			TotalCredit string `json:"total_credit"`
			FinalStatus string `json:"final_status"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode journal.finalized: %w", err)
		}
		status := p.FinalStatus
		if status == "" {
			status = "COMPLETE"
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE journal_entries SET total_debit = ?, total_credit = ?, status = ?, last_event_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE tenant_id = ? AND public_id = ?`, p.TotalDebit, p.TotalCredit, status, event.ID, event.TenantID, event.AggregateID)
		return err

	case aggregate.EventJournalSaveCompleted:
		var p struct {
			EntryNumber string `json:"entry_number"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode journal.save_completed: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE journal_entries SET status = 'COMPLETE', entry_number = ?, last_event_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE tenant_id = ? AND public_id = ?`, p.EntryNumber, event.ID, event.TenantID, event.AggregateID)
		return err
	case aggregate.EventJournalPosted:
		return setJournalStatus(ctx, tx, event, "POSTED")
	case aggregate.EventJournalReversed:
		return setJournalStatus(ctx, tx, event, "REVERSED")
	case aggregate.EventJournalDeleted:
		return setJournalStatus(ctx, tx, event, "DELETED")

	case aggregate.EventJournalLineAnalysisSet:
		var p struct {
			LineIndex    int64       `json:"line_index"`
			AnalysisTags interface{} `json:"analysis_tags"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode journal.line_analysis_set: %w", err)
		}
		tags, err := canonjson.Marshal(p.AnalysisTags)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE journal_lines SET dimension_values = ?
			WHERE tenant_id = ? AND journal_public_id = ? AND line_index = ?`,
			string(tags), event.TenantID, event.AggregateID, p.LineIndex)
		return err
	}
	return nil
}

func insertJournalLines(ctx context.Context, tx *sql.Tx, tenantID int64, journalID string, startIndex int, lines []journalLineRow) error {
	for i, line := range lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO journal_lines (tenant_id, journal_public_id, line_index, account_public_id, debit, credit, memo)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, journal_public_id, line_index) DO UPDATE SET
				account_public_id = EXCLUDED.account_public_id, debit = EXCLUDED.debit,
				credit = EXCLUDED.credit, memo = EXCLUDED.memo`,
			tenantID, journalID, startIndex+i, line.AccountID, line.Debit, line.Credit, line.Memo); err != nil {
			return fmt.Errorf("insert journal line %d: %w", startIndex+i, err)
		}
	}
	return nil
}

func setJournalStatus(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, status string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE journal_entries SET status = ?, last_event_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ? AND public_id = ?`, status, event.ID, event.TenantID, event.AggregateID)
	return err
}

func (JournalEntriesProjection) Clear(ctx context.Context, tx *sql.Tx, tenantID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM journal_lines WHERE tenant_id = ?`, tenantID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM journal_entries WHERE tenant_id = ?`, tenantID)
	return err
}
