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

// DimensionsProjection maintains dimension_types and dimension_values.
type DimensionsProjection struct{}

func (DimensionsProjection) Name() string { return "dimensions" }

func (DimensionsProjection) EventTypes() []string {
	return []string{aggregate.EventDimensionTypeCreated, aggregate.EventDimensionValueCreated, aggregate.EventDimensionValueRetired}
}

func (DimensionsProjection) Handle(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case aggregate.EventDimensionTypeCreated:
		var p struct {
			Code string `json:"code"`
			Name string `json:"name"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode dimension_type.created: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dimension_types (tenant_id, public_id, code, name, last_event_id)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, public_id) DO UPDATE SET name = EXCLUDED.name, last_event_id = EXCLUDED.last_event_id`,
			event.TenantID, event.AggregateID, p.Code, p.Name, event.ID)
		return err

	case aggregate.EventDimensionValueCreated:
		var p struct {
			DimensionTypeID string `json:"dimension_type_id"`
			Code            string `json:"code"`
			Name            string `json:"name"`
		}
		if err := canonjson.Unmarshal(payloadData, &p); err != nil {
			return fmt.Errorf("decode dimension_value.created: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO dimension_values (tenant_id, public_id, dimension_type_public_id, code, name, last_event_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, public_id) DO UPDATE SET name = EXCLUDED.name, last_event_id = EXCLUDED.last_event_id`,
			event.TenantID, event.AggregateID, p.DimensionTypeID, p.Code, p.Name, event.ID)
		return err

	case aggregate.EventDimensionValueRetired:
		_, err := tx.ExecContext(ctx, `
			UPDATE dimension_values SET active = FALSE, last_event_id = ? WHERE tenant_id = ? AND public_id = ?`,
			event.ID, event.TenantID, event.AggregateID)
		return err
	}
	return nil
}

func (DimensionsProjection) Clear(ctx context.Context, tx *sql.Tx, tenantID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM dimension_values WHERE tenant_id = ?`, tenantID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM dimension_types WHERE tenant_id = ?`, tenantID)
	return err
}

// CrosswalksProjection maintains identity_crosswalks.
type CrosswalksProjection struct{}

func (CrosswalksProjection) Name() string { return "identity_crosswalks" }

func (CrosswalksProjection) EventTypes() []string {
	return []string{aggregate.EventCrosswalkMapped}
}

func (CrosswalksProjection) Handle(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, payloadData []byte) error {
	var p struct {
		ExternalSource     string `json:"external_source"`
		ExternalID         string `json:"external_id"`
		InternalEntityType string `json:"internal_entity_type"`
		InternalEntityID   string `json:"internal_entity_id"`
	}
	if err := canonjson.Unmarshal(payloadData, &p); err != nil {
		return fmt.Errorf("decode crosswalk.mapped: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO identity_crosswalks (tenant_id, public_id, external_source, external_id, internal_entity_type, internal_entity_id, last_event_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, public_id) DO UPDATE SET
			internal_entity_type = EXCLUDED.internal_entity_type, internal_entity_id = EXCLUDED.internal_entity_id,
			last_event_id = EXCLUDED.last_event_id`,
		event.TenantID, event.AggregateID, p.ExternalSource, p.ExternalID, p.InternalEntityType, p.InternalEntityID, event.ID)
	return err
}

func (CrosswalksProjection) Clear(ctx context.Context, tx *sql.Tx, tenantID int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM identity_crosswalks WHERE tenant_id = ?`, tenantID)
	return err
}
