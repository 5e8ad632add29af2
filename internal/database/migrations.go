// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package database provides versioned schema migration support.
//
// All current columns are defined directly in the CREATE TABLE statements in
// database_schema.go. This file tracks migrations applied *after* that
// baseline, so a future schema change never has to touch the baseline
// statements or lose data on an already-populated handle. Migrations run
// directly on the connection when a handle is opened; no write-barrier tag
// is set or checked for them.
package database

import (
	"context"
	"fmt"
	"time"
)

// Migration represents a versioned, append-only schema change.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// getMigrations returns all versioned migrations in order. Empty today: the
// baseline schema in database_schema.go covers every table this release
// needs. Append new entries here, starting at version 1, for future changes;
// never edit or remove an entry once a handle may have applied it.
func (db *DB) getMigrations() []Migration {
	return []Migration{}
}

func (db *DB) createMigrationsTable(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, schemaMigrationsTable)
	return err
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// runVersionedMigrations executes only migrations that haven't been applied
// yet on this handle.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if err := db.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range db.getMigrations() {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version, err)
		}
	}
	return nil
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (db *DB) GetCurrentSchemaVersion() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var version int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("get schema version: %w", err)
	}
	return version, nil
}
