// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package projection is the projection engine (C11): a registry of named
// consumers that fold the business event log into read models, each
// tracked by its own per-tenant bookmark so a worker can stop and resume
// without re-applying or skipping an event.
package projection

import (
	"context"
	"database/sql"

	"github.com/nxentra/ledgerd/internal/eventstore"
)

// Handler is one named projection's event-handling contract. Handle
// performs read-model writes against tx, which the engine has already
// opened and tagged with writebarrier.TagProjection. Clear wipes this
// projection's owned tables for one tenant, used by Rebuild before
// replaying from the start of the stream.
type Handler interface {
	Name() string
	EventTypes() []string
	// Handle applies event to this projection's read-model tables.
	// payloadData is the event's canonical JSON payload, already resolved
	// by the engine from inline_data or the external payload store.
	Handle(ctx context.Context, tx *sql.Tx, event eventstore.BusinessEvent, payloadData []byte) error
	Clear(ctx context.Context, tx *sql.Tx, tenantID int64) error
}
