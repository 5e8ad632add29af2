// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package writebarrier tags every write path with the context it is running
// under and enforces which tags may persist to which kind of read-model
// entity (C5). A command handler, a projection applying an event, a
// bootstrap seeder, a schema migration, and an operator's emergency repair
// all write to the database, but only a subset of those should ever be
// allowed to touch a given table -- the barrier is what makes that a
// checked invariant instead of a code-review convention.
package writebarrier

import (
	"context"
	"fmt"

	"github.com/nxentra/ledgerd/internal/apperrors"
)

// Tag identifies which kind of code path is performing a write.
type Tag string

const (
	// TagCommand is the command layer appending new business events.
	TagCommand Tag = "command"
	// TagProjection is the projection engine applying events to read models.
	TagProjection Tag = "projection"
	// TagBootstrap is one-time seeding (e.g. chart-of-accounts templates).
	TagBootstrap Tag = "bootstrap"
	// TagMigration is the tenant migration orchestrator (internal/migration):
	// event import and directory freeze/cutover/rollback.
	TagMigration Tag = "migration"
	// TagAdminEmergency is an operator-invoked emergency repair, gated
	// separately by the ALLOW_ADMIN_EMERGENCY_WRITES operational flag.
	TagAdminEmergency Tag = "admin_emergency"
)

// Entity identifies the kind of table a write targets.
type Entity string

const (
	EntityEventLog       Entity = "event_log"       // business_events, payload_blobs
	EntityReadModel      Entity = "read_model"      // accounts, journal_entries, balances, ...
	EntityProjectionMeta Entity = "projection_meta" // bookmarks, applied-event ledger, status
	EntitySchema         Entity = "schema"          // DDL-owned tables
	EntityTenantDirectory Entity = "tenant_directory"
)

// allowed maps each entity to the tags permitted to write it. Anything not
// listed here is denied by default; a new entity must be added explicitly.
var allowed = map[Entity]map[Tag]bool{
	EntityEventLog: {
		TagCommand:        true,
		TagBootstrap:      true,
		TagMigration:      true, // import step re-inserts events preserving original sequences
		TagAdminEmergency: true,
	},
	EntityReadModel: {
		TagProjection:     true,
		TagBootstrap:      true,
		TagAdminEmergency: true,
	},
	EntityProjectionMeta: {
		TagProjection: true,
	},
	EntitySchema: {
		TagMigration: true,
	},
	EntityTenantDirectory: {
		TagCommand:        true, // registration, and migration status transitions
		TagMigration:      true,
		TagAdminEmergency: true,
	},
}

type contextKey struct{}

// With returns a context tagged with the given write context. Handlers
// should call this once near their entry point (command dispatch,
// projection apply loop, migration runner) rather than deep in a helper, so
// the tag always reflects the actual call path.
func With(ctx context.Context, tag Tag) context.Context {
	return context.WithValue(ctx, contextKey{}, tag)
}

// TagFromContext extracts the write-context tag, if any.
func TagFromContext(ctx context.Context) (Tag, bool) {
	tag, ok := ctx.Value(contextKey{}).(Tag)
	return tag, ok
}

// Check enforces that ctx's write-context tag may write to entity. The event
// store's Append, ImportEvent and SetStreamCounter and the projection
// engine's per-event apply call it before issuing their SQL. The tenant
// directory, the payload blob store, the numbering allocator and the
// projection handlers' read-model writes do not call it.
func Check(ctx context.Context, entity Entity) error {
	tag, ok := TagFromContext(ctx)
	if !ok {
		return apperrors.Wrap(apperrors.CategoryAuthorization,
			fmt.Sprintf("write to %s attempted without a write-context tag", entity),
			apperrors.ErrWriteBarrierDenied)
	}
	if allowed[entity][tag] {
		return nil
	}
	return apperrors.Wrap(apperrors.CategoryAuthorization,
		fmt.Sprintf("write context %q may not write to %s", tag, entity),
		apperrors.ErrWriteBarrierDenied)
}
