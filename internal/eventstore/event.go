// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package eventstore is the append-only business event log (C6): per-tenant
// monotonic stream_sequence, per-aggregate monotonic aggregate_sequence,
// idempotency key uniqueness, and a caused_by_event_id causation link.
// There is no update or delete path; correcting a mistake means appending a
// compensating event.
package eventstore

import (
	"time"

	"github.com/google/uuid"
)

// PayloadStorage is the LEPH storage strategy chosen for an event's payload.
type PayloadStorage string

const (
	// StorageInline means the payload is small enough to live directly on
	// the event row (business_events.inline_data).
	StorageInline PayloadStorage = "INLINE"
	// StorageExternal means the payload is content-addressed in
	// payload_blobs and the event row only carries payload_hash/payload_ref.
	StorageExternal PayloadStorage = "EXTERNAL"
)

// BusinessEvent is one immutable row of business_events.
type BusinessEvent struct {
	ID                uuid.UUID
	TenantID          int64
	EventType         string
	AggregateType     string
	AggregateID       string
	AggregateSequence int64
	StreamSequence    int64
	IdempotencyKey    string
	PayloadStorage    PayloadStorage
	PayloadHash       string
	PayloadRef        *uuid.UUID
	InlineData        []byte // canonical JSON, nil when PayloadStorage == StorageExternal
	Origin            string // required at emission per the "no heuristic backfill" decision
	CausedByUserID    *int64
	CausedByEventID   *uuid.UUID
	OccurredAt        time.Time
	RecordedAt        time.Time
	SchemaVersion     int
	Metadata          []byte // canonical JSON, may be nil
}

// Draft is what a caller supplies to Append; fields the store itself owns
// (ID, AggregateSequence, StreamSequence, RecordedAt) are absent.
type Draft struct {
	TenantID        int64
	EventType       string
	AggregateType   string
	AggregateID     string
	IdempotencyKey  string
	PayloadStorage  PayloadStorage
	PayloadHash     string
	PayloadRef      *uuid.UUID
	InlineData      []byte
	Origin          string
	CausedByUserID  *int64
	CausedByEventID *uuid.UUID
	OccurredAt      time.Time
	SchemaVersion   int
	Metadata        []byte
}
