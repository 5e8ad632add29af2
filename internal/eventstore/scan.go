// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package eventstore

import (
	"database/sql"

	"github.com/google/uuid"
)

const eventSelectColumns = `
	SELECT id, tenant_id, event_type, aggregate_type, aggregate_id, aggregate_sequence,
	       stream_sequence, idempotency_key, payload_storage, payload_hash, payload_ref,
	       inline_data, origin, caused_by_user_id, caused_by_event_id, occurred_at,
	       recorded_at, schema_version, metadata
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (BusinessEvent, error) {
	var e BusinessEvent
	var payloadRef uuid.NullUUID
	var causedByEventID uuid.NullUUID
	var causedByUserID sql.NullInt64
	var inlineData, metadata sql.NullString

	err := row.Scan(&e.ID, &e.TenantID, &e.EventType, &e.AggregateType, &e.AggregateID,
		&e.AggregateSequence, &e.StreamSequence, &e.IdempotencyKey, &e.PayloadStorage,
		&e.PayloadHash, &payloadRef, &inlineData, &e.Origin, &causedByUserID,
		&causedByEventID, &e.OccurredAt, &e.RecordedAt, &e.SchemaVersion, &metadata)
	if err != nil {
		return BusinessEvent{}, err
	}

	if payloadRef.Valid {
		e.PayloadRef = &payloadRef.UUID
	}
	if causedByEventID.Valid {
		e.CausedByEventID = &causedByEventID.UUID
	}
	if causedByUserID.Valid {
		v := causedByUserID.Int64
		e.CausedByUserID = &v
	}
	if inlineData.Valid {
		e.InlineData = []byte(inlineData.String)
	}
	if metadata.Valid {
		e.Metadata = []byte(metadata.String)
	}
	return e, nil
}

func scanEvents(rows *sql.Rows) ([]BusinessEvent, error) {
	var events []BusinessEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
