// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package projection

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
)

// ImportBatchesProjection maintains import_batches and staged_import_records
// from the chunked ingestion event family (C8).
type ImportBatchesProjection struct{}

func (ImportBatchesProjection) Name() string { return "import_batches" }

func (ImportBatchesProjection) EventTypes() []string {
	return []string{payload.EventTypeImportHeader, payload.EventTypeImportChunk, payload.EventTypeImportFinalized}
}

func (ImportBatchesProjection) Handle(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case payload.EventTypeImportHeader:
		var p struct {
			TotalLines int `json:"total_lines"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode import header: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO import_batches (tenant_id, public_id, source, status, row_count, last_event_id)
			VALUES (?, ?, 'command', 'STAGING', ?, ?)
			ON CONFLICT (tenant_id, public_id) DO UPDATE SET row_count = EXCLUDED.row_count, last_event_id = EXCLUDED.last_event_id`,
			event.TenantID, event.AggregateID, p.TotalLines, event.ID)
		return err

	case payload.EventTypeImportChunk:
		var p struct {
			ChunkIndex int           `json:"chunk_index"`
			Lines      []interface{} `json:"lines"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode import chunk: %w", err)
		}
		chunkSize := len(p.Lines)
		for i, line := range p.Lines {
			raw, err := canonjson.Marshal(line)
			if err != nil {
				return fmt.Errorf("canonicalize staged row: %w", err)
			}
			rowIndex := p.ChunkIndex*chunkSize + i
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO staged_import_records (tenant_id, batch_public_id, row_index, raw_data, status)
				VALUES (?, ?, ?, ?, 'STAGED')
				ON CONFLICT (tenant_id, batch_public_id, row_index) DO UPDATE SET raw_data = EXCLUDED.raw_data`,
				event.TenantID, event.AggregateID, rowIndex, string(raw)); err != nil {
				return fmt.Errorf("stage row %d: %w", rowIndex, err)
			}
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE import_batches SET committed_count = committed_count + ?, last_event_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE tenant_id = ? AND public_id = ?`, len(p.Lines), event.ID, event.TenantID, event.AggregateID)
		return err

	case payload.EventTypeImportFinalized:
		_, err := tx.ExecContext(ctx, `
			UPDATE import_batches SET status = 'FINALIZED', last_event_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE tenant_id = ? AND public_id = ?`, event.ID, event.TenantID, event.AggregateID)
		return err
	}
	return nil
}

func (ImportBatchesProjection) Clear(ctx context.Context, tx *sql.Tx, tenantID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM staged_import_records WHERE tenant_id = ?`, tenantID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM import_batches WHERE tenant_id = ?`, tenantID)
	return err
}
