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

// AccountsProjection maintains the accounts read model.
type AccountsProjection struct{}

func (AccountsProjection) Name() string { return "accounts" }

func (AccountsProjection) EventTypes() []string {
	return []string{aggregate.EventAccountCreated, aggregate.EventAccountUpdated, aggregate.EventAccountDeleted}
}

func (AccountsProjection) Handle(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case aggregate.EventAccountCreated:
		var p struct {
			Code          string `json:"code"`
			Name          string `json:"name"`
			ParentID      string `json:"parent_id"`
			AccountType   string `json:"account_type"`
			NormalBalance string `json:"normal_balance"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode account.created: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (tenant_id, public_id, parent_public_id, account_number, name, account_type, normal_balance, last_event_id)
			VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, public_id) DO UPDATE SET
				parent_public_id = EXCLUDED.parent_public_id, account_number = EXCLUDED.account_number,
				name = EXCLUDED.name, account_type = EXCLUDED.account_type, normal_balance = EXCLUDED.normal_balance,
				last_event_id = EXCLUDED.last_event_id, updated_at = CURRENT_TIMESTAMP`,
			event.TenantID, event.AggregateID, p.ParentID, p.Code, p.Name, p.AccountType, p.NormalBalance, event.ID)
		return err

	case aggregate.EventAccountUpdated:
		var p struct {
			Name     *string `json:"name"`
			ParentID *string `json:"parent_id"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode account.updated: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE accounts SET
				name = COALESCE(?, name),
				parent_public_id = COALESCE(?, parent_public_id),
				last_event_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE tenant_id = ? AND public_id = ?`,
			p.Name, p.ParentID, event.ID, event.TenantID, event.AggregateID)
		return err

	case aggregate.EventAccountDeleted:
		_, err := tx.ExecContext(ctx, `
			UPDATE accounts SET active = FALSE, last_event_id = ?, updated_at = CURRENT_TIMESTAMP
			WHERE tenant_id = ? AND public_id = ?`, event.ID, event.TenantID, event.AggregateID)
		return err
	}
	return nil
}

func (AccountsProjection) Clear(ctx context.Context, tx *sql.Tx, tenantID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE tenant_id = ?`, tenantID)
	return err
}
