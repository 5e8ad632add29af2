// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

/*
database_schema.go - Database Schema Management

Tables, grouped by who owns them (spec.md section 3):

System-owned (createTables creates these on every handle, like the
tenant-owned tables below):
  - companies: tenant aggregate roots
  - tenant_directory_entries: routing table (C1)
  - migration_log: migration orchestrator audit trail

Tenant-owned (present on every handle, shared handles carry a tenant_id column
that the row-filter enforcer always predicates on; dedicated handles hold
exactly one tenant's rows but keep the same column for uniform querying):
  - business_events: the event log (C6)
  - payload_blobs: LEPH external payload store (C7)
  - tenant_stream_counters: per-tenant stream sequence allocator
  - projection_bookmarks, projection_applied_events, projection_status (C11)
  - accounts, journal_entries, journal_lines, fiscal_periods, account_balances,
    dimension_types, dimension_values, identity_crosswalks, import_batches,
    staged_import_records: read models
  - entry_number_sequences: per-tenant monotonic number allocator (§ SPEC_FULL 3)

Schema strategy: all columns live in the initial CREATE TABLE statements
rather than trickling in through later migrations, since there is no
installed base yet to preserve compatibility with. Changes after the
first release go through migrations.go.
*/

//nolint:staticcheck // File documentation, not package doc
package database

import (
	"context"
	"fmt"
	"time"
)

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, stmt := range db.getTableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %s: %w", stmt, err)
		}
	}
	return nil
}

func (db *DB) getTableCreationQueries() []string {
	return []string{
		// ============================================================
		// System-owned tables
		// ============================================================
		`CREATE TABLE IF NOT EXISTS companies (
			id BIGINT PRIMARY KEY,
			public_id UUID NOT NULL UNIQUE,
			slug TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL,
			base_currency TEXT NOT NULL,
			fiscal_year_start_month INTEGER NOT NULL DEFAULT 1,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE SEQUENCE IF NOT EXISTS companies_id_seq START 1;`,

		`CREATE TABLE IF NOT EXISTS tenant_directory_entries (
			tenant_id BIGINT PRIMARY KEY,
			isolation_mode TEXT NOT NULL,
			handle TEXT NOT NULL,
			status TEXT NOT NULL,
			last_exported_stream_sequence BIGINT NOT NULL DEFAULT 0,
			export_hash TEXT,
			import_hash TEXT,
			import_count BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS migration_log (
			id UUID PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			source_handle TEXT NOT NULL,
			target_handle TEXT NOT NULL,
			step TEXT NOT NULL,
			outcome TEXT NOT NULL,
			detail JSON,
			occurred_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		// ============================================================
		// Event store (C6, C7)
		// ============================================================
		`CREATE TABLE IF NOT EXISTS business_events (
			id UUID PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			aggregate_sequence BIGINT NOT NULL,
			stream_sequence BIGINT NOT NULL,
			idempotency_key TEXT NOT NULL,
			payload_storage TEXT NOT NULL,
			payload_hash TEXT NOT NULL DEFAULT '',
			payload_ref UUID,
			inline_data JSON,
			origin TEXT NOT NULL,
			caused_by_user_id BIGINT,
			caused_by_event_id UUID,
			occurred_at TIMESTAMP NOT NULL,
			recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			schema_version INTEGER NOT NULL DEFAULT 1,
			metadata JSON,
			UNIQUE (tenant_id, aggregate_type, aggregate_id, aggregate_sequence),
			UNIQUE (tenant_id, idempotency_key),
			UNIQUE (tenant_id, stream_sequence)
		);`,

		`CREATE TABLE IF NOT EXISTS payload_blobs (
			id UUID PRIMARY KEY,
			content_hash TEXT NOT NULL UNIQUE,
			payload JSON NOT NULL,
			size_bytes BIGINT NOT NULL,
			compression TEXT NOT NULL DEFAULT 'none',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS tenant_stream_counters (
			tenant_id BIGINT PRIMARY KEY,
			last_stream_sequence BIGINT NOT NULL DEFAULT 0
		);`,

		// ============================================================
		// Projection engine (C11)
		// ============================================================
		`CREATE TABLE IF NOT EXISTS projection_bookmarks (
			projection_name TEXT NOT NULL,
			tenant_id BIGINT NOT NULL,
			last_event_id UUID,
			last_stream_sequence BIGINT NOT NULL DEFAULT 0,
			last_processed_at TIMESTAMP,
			is_paused BOOLEAN NOT NULL DEFAULT FALSE,
			error_count BIGINT NOT NULL DEFAULT 0,
			last_error TEXT,
			PRIMARY KEY (projection_name, tenant_id)
		);`,

		`CREATE TABLE IF NOT EXISTS projection_applied_events (
			tenant_id BIGINT NOT NULL,
			projection_name TEXT NOT NULL,
			event_id UUID NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, projection_name, event_id)
		);`,

		`CREATE TABLE IF NOT EXISTS projection_status (
			tenant_id BIGINT NOT NULL,
			projection_name TEXT NOT NULL,
			operational_status TEXT NOT NULL DEFAULT 'UNKNOWN',
			events_processed BIGINT NOT NULL DEFAULT 0,
			last_rebuild_duration_ms BIGINT NOT NULL DEFAULT 0,
			last_error TEXT,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, projection_name)
		);`,

		// ============================================================
		// Read models
		// ============================================================
		`CREATE TABLE IF NOT EXISTS accounts (
			tenant_id BIGINT NOT NULL,
			public_id UUID NOT NULL,
			parent_public_id UUID,
			account_number TEXT NOT NULL,
			name TEXT NOT NULL,
			account_type TEXT NOT NULL,
			normal_balance TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_event_id UUID,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, public_id)
		);`,

		`CREATE TABLE IF NOT EXISTS journal_entries (
			tenant_id BIGINT NOT NULL,
			public_id UUID NOT NULL,
			entry_number TEXT,
			entry_date DATE NOT NULL,
			memo TEXT,
			currency TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'STANDARD',
			status TEXT NOT NULL DEFAULT 'INCOMPLETE',
			reverses_entry_id UUID,
			total_debit TEXT NOT NULL DEFAULT '0',
			total_credit TEXT NOT NULL DEFAULT '0',
			line_count BIGINT NOT NULL DEFAULT 0,
			last_event_id UUID,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, public_id)
		);`,

		`CREATE TABLE IF NOT EXISTS journal_lines (
			tenant_id BIGINT NOT NULL,
			journal_public_id UUID NOT NULL,
			line_index BIGINT NOT NULL,
			account_public_id UUID NOT NULL,
			debit TEXT NOT NULL DEFAULT '0',
			credit TEXT NOT NULL DEFAULT '0',
			memo TEXT,
			dimension_values JSON,
			PRIMARY KEY (tenant_id, journal_public_id, line_index)
		);`,

		`CREATE TABLE IF NOT EXISTS fiscal_periods (
			tenant_id BIGINT NOT NULL,
			public_id UUID NOT NULL,
			period_start DATE NOT NULL,
			period_end DATE NOT NULL,
			label TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'OPEN',
			last_event_id UUID,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, public_id)
		);`,

		`CREATE TABLE IF NOT EXISTS account_balances (
			tenant_id BIGINT NOT NULL,
			account_public_id UUID NOT NULL,
			total_debit TEXT NOT NULL DEFAULT '0',
			total_credit TEXT NOT NULL DEFAULT '0',
			balance TEXT NOT NULL DEFAULT '0',
			last_event_id UUID,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, account_public_id)
		);`,

		`CREATE TABLE IF NOT EXISTS dimension_types (
			tenant_id BIGINT NOT NULL,
			public_id UUID NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_event_id UUID,
			PRIMARY KEY (tenant_id, public_id)
		);`,

		`CREATE TABLE IF NOT EXISTS dimension_values (
			tenant_id BIGINT NOT NULL,
			public_id UUID NOT NULL,
			dimension_type_public_id UUID NOT NULL,
			code TEXT NOT NULL,
			name TEXT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			last_event_id UUID,
			PRIMARY KEY (tenant_id, public_id)
		);`,

		`CREATE TABLE IF NOT EXISTS identity_crosswalks (
			tenant_id BIGINT NOT NULL,
			public_id UUID NOT NULL,
			external_source TEXT NOT NULL,
			external_id TEXT NOT NULL,
			internal_entity_type TEXT NOT NULL,
			internal_entity_id TEXT NOT NULL,
			last_event_id UUID,
			PRIMARY KEY (tenant_id, public_id),
			UNIQUE (tenant_id, external_source, external_id)
		);`,

		`CREATE TABLE IF NOT EXISTS import_batches (
			tenant_id BIGINT NOT NULL,
			public_id UUID NOT NULL,
			source TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'CREATED',
			row_count BIGINT NOT NULL DEFAULT 0,
			committed_count BIGINT NOT NULL DEFAULT 0,
			failed_count BIGINT NOT NULL DEFAULT 0,
			last_event_id UUID,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant_id, public_id)
		);`,

		`CREATE TABLE IF NOT EXISTS staged_import_records (
			tenant_id BIGINT NOT NULL,
			batch_public_id UUID NOT NULL,
			row_index BIGINT NOT NULL,
			raw_data JSON NOT NULL,
			status TEXT NOT NULL DEFAULT 'STAGED',
			error TEXT,
			PRIMARY KEY (tenant_id, batch_public_id, row_index)
		);`,

		`CREATE TABLE IF NOT EXISTS entry_number_sequences (
			tenant_id BIGINT NOT NULL,
			sequence_name TEXT NOT NULL,
			last_value BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (tenant_id, sequence_name)
		);`,
	}
}

func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_business_events_tenant_stream ON business_events(tenant_id, stream_sequence);`,
		`CREATE INDEX IF NOT EXISTS idx_business_events_aggregate ON business_events(tenant_id, aggregate_type, aggregate_id, aggregate_sequence);`,
		`CREATE INDEX IF NOT EXISTS idx_business_events_caused_by ON business_events(caused_by_event_id);`,
		`CREATE INDEX IF NOT EXISTS idx_business_events_type ON business_events(tenant_id, event_type);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_lines_account ON journal_lines(tenant_id, account_public_id);`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_number ON accounts(tenant_id, account_number);`,
		`CREATE INDEX IF NOT EXISTS idx_import_staged_batch ON staged_import_records(tenant_id, batch_public_id);`,
	}

	for _, stmt := range indexes {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %s: %w", stmt, err)
		}
	}
	return nil
}
