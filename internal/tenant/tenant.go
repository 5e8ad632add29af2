// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package tenant implements the tenant directory, the ambient tenant
// context, the database router and the row-filter enforcer (C1-C4).
//
// DuckDB has no Postgres-style session GUC or row-level security policy, so
// the row-filter enforcer here works at the query-builder layer: every
// tenant-owned query is built from a query.WhereBuilder seeded with an
// explicit tenant_id predicate. Dedicated-handle tenants get the same
// predicate even though their handle physically holds only their own rows,
// so a single code path works for both isolation modes.
package tenant

import (
	"context"
	"fmt"
)

// IsolationMode is how a tenant's data is physically isolated.
type IsolationMode string

const (
	// IsolationShared means the tenant's rows live on the default handle,
	// row-filtered by tenant_id on every query.
	IsolationShared IsolationMode = "SHARED"
	// IsolationDedicated means the tenant has its own DuckDB handle.
	IsolationDedicated IsolationMode = "DEDICATED"
)

// Status is the tenant directory entry's operational status (spec.md §3's
// closed set: ACTIVE, MIGRATING, READ_ONLY, SUSPENDED).
type Status string

const (
	StatusActive Status = "ACTIVE"
	// StatusMigrating is set by the migration orchestrator's freeze step
	// (C14) for the duration of an online SHARED<->DEDICATED move; cleared
	// back to ACTIVE on cutover or rollback.
	StatusMigrating Status = "MIGRATING"
	// StatusReadOnly is an operator-initiated maintenance pause: unlike
	// MIGRATING, nothing but an explicit admin action sets or clears it.
	StatusReadOnly Status = "READ_ONLY"
	// StatusSuspended is an operator-initiated hard stop (e.g. a billing or
	// compliance hold), cleared only by an explicit admin action.
	StatusSuspended Status = "SUSPENDED"
)

// Entry is one row of the tenant directory.
type Entry struct {
	TenantID                   int64
	IsolationMode               IsolationMode
	Handle                       string
	Status                       Status
	LastExportedStreamSequence int64
	ExportHash                  string
	ImportHash                  string
	ImportCount                 int64
}

// Writable reports whether commands may append events for this tenant.
func (e Entry) Writable() bool {
	return e.Status == StatusActive
}

type contextKey struct{}

// ctxValue is what's threaded through context.Context. Go's context package
// makes thread-local-style ambient state explicit at every call site instead
// of hidden in goroutine-local storage; C2 requires that every command,
// projection and migration step carries its own context.Context rather than
// resolving tenant identity from package-level state.
type ctxValue struct {
	entry Entry
}

// WithTenant returns a context carrying the resolved tenant entry.
func WithTenant(ctx context.Context, entry Entry) context.Context {
	return context.WithValue(ctx, contextKey{}, ctxValue{entry: entry})
}

// FromContext extracts the tenant entry a context was scoped to.
func FromContext(ctx context.Context) (Entry, bool) {
	v, ok := ctx.Value(contextKey{}).(ctxValue)
	return v.entry, ok
}

// MustFromContext extracts the tenant entry or panics. Used deep in code
// paths (projections, the event store) that are only ever reached once a
// command or projection runner has already resolved and attached a tenant;
// a missing tenant context there is a programming error, not a runtime one.
func MustFromContext(ctx context.Context) Entry {
	entry, ok := FromContext(ctx)
	if !ok {
		panic(fmt.Sprintf("tenant: %T used without a tenant context", ctx))
	}
	return entry
}
