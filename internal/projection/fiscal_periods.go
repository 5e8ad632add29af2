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

// FiscalPeriodsProjection maintains the fiscal_periods read model.
type FiscalPeriodsProjection struct{}

func (FiscalPeriodsProjection) Name() string { return "fiscal_periods" }

func (FiscalPeriodsProjection) EventTypes() []string {
	return []string{aggregate.EventFiscalPeriodRangeSet, aggregate.EventFiscalPeriodOpened, aggregate.EventFiscalPeriodClosed}
}

func (FiscalPeriodsProjection) Handle(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case aggregate.EventFiscalPeriodRangeSet:
		var p struct {
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
			Label     string `json:"label"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode fiscal_period.range_set: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fiscal_periods (tenant_id, public_id, period_start, period_end, label, last_event_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, public_id) DO UPDATE SET
				period_start = EXCLUDED.period_start, period_end = EXCLUDED.period_end, label = EXCLUDED.label,
				last_event_id = EXCLUDED.last_event_id, updated_at = CURRENT_TIMESTAMP`,
			event.TenantID, event.AggregateID, p.StartDate, p.EndDate, p.Label, event.ID)
		return err

	case aggregate.EventFiscalPeriodOpened:
		return setFiscalPeriodStatus(ctx, tx, event, "OPEN")
	case aggregate.EventFiscalPeriodClosed:
		return setFiscalPeriodStatus(ctx, tx, event, "CLOSED")
	}
	return nil
}

func setFiscalPeriodStatus(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, status string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE fiscal_periods SET status = ?, last_event_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ? AND public_id = ?`, status, event.ID, event.TenantID, event.AggregateID)
	return err
}

func (FiscalPeriodsProjection) Clear(ctx context.Context, tx *sql.Tx, tenantID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM fiscal_periods WHERE tenant_id = ?`, tenantID)
	return err
}
