// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package testsupport provides an in-memory DuckDB harness for package
// tests, so the event store, projections, and command layer can be tested
// against a real schema without a file on disk.
package testsupport

import (
	"context"
	"testing"

	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/tenant"
)

// OpenDB opens a fresh in-memory DuckDB handle with the full schema applied,
// and registers a cleanup to close it when the test ends.
func OpenDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(&database.Config{
		Handle: "test",
		Path:   ":memory:",
	})
	if err != nil {
		t.Fatalf("open in-memory database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

// SeedTenant registers a tenant directory entry and returns its Entry,
// for tests that need a ready-to-use tenant without going through the
// command layer's registration flow.
func SeedTenant(t *testing.T, db *database.DB, tenantID int64, mode tenant.IsolationMode) tenant.Entry {
	t.Helper()
	dir := tenant.NewDirectory(db)
	handle := "default"
	if mode == tenant.IsolationDedicated {
		handle = "dedicated-test"
	}
	if err := dir.Register(context.Background(), tenantID, mode, handle); err != nil {
		t.Fatalf("seed tenant %d: %v", tenantID, err)
	}
	entry, err := dir.Resolve(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("resolve seeded tenant %d: %v", tenantID, err)
	}
	return entry
}
