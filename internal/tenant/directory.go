// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package tenant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/database"
)

// Directory resolves tenant ids to directory entries and is the sole writer
// of tenant_directory_entries. It always reads from the default handle:
// the directory itself is system-owned data, never tenant-owned.
type Directory struct {
	defaultDB *database.DB
}

// NewDirectory wraps the default handle as a tenant directory.
func NewDirectory(defaultDB *database.DB) *Directory {
	return &Directory{defaultDB: defaultDB}
}

// Resolve loads the directory entry for a tenant id.
func (d *Directory) Resolve(ctx context.Context, tenantID int64) (Entry, error) {
	row := d.defaultDB.Conn().QueryRowContext(ctx, `
		SELECT tenant_id, isolation_mode, handle, status,
		       last_exported_stream_sequence, export_hash, import_hash, import_count
		FROM tenant_directory_entries
		WHERE tenant_id = ?`, tenantID)

	var e Entry
	var exportHash, importHash sql.NullString
	err := row.Scan(&e.TenantID, &e.IsolationMode, &e.Handle, &e.Status,
		&e.LastExportedStreamSequence, &exportHash, &importHash, &e.ImportCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, apperrors.ErrTenantNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("resolve tenant %d: %w", tenantID, err)
	}
	e.ExportHash = exportHash.String
	e.ImportHash = importHash.String
	return e, nil
}

// Register creates a new tenant directory entry. Called once by the command
// layer's tenant-registration operation; it is a single INSERT on the
// default handle, outside any caller transaction.
func (d *Directory) Register(ctx context.Context, tenantID int64, mode IsolationMode, handle string) error {
	_, err := d.defaultDB.Conn().ExecContext(ctx, `
		INSERT INTO tenant_directory_entries (tenant_id, isolation_mode, handle, status)
		VALUES (?, ?, ?, ?)`, tenantID, mode, handle, StatusActive)
	if err != nil {
		return fmt.Errorf("register tenant %d: %w", tenantID, err)
	}
	return nil
}

// SetStatus transitions a tenant's operational status. The migration
// orchestrator uses this for freeze and rollback (cutover goes through
// Cutover), and the command layer's setTenantStatus calls it too. It does
// not check the write barrier itself.
func (d *Directory) SetStatus(ctx context.Context, tenantID int64, status Status) error {
	res, err := d.defaultDB.Conn().ExecContext(ctx, `
		UPDATE tenant_directory_entries SET status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ?`, status, tenantID)
	if err != nil {
		return fmt.Errorf("set status for tenant %d: %w", tenantID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for tenant %d: %w", tenantID, err)
	}
	if n == 0 {
		return apperrors.ErrTenantNotFound
	}
	return nil
}

// RecordExport stores the migration export watermark (C14 export step).
func (d *Directory) RecordExport(ctx context.Context, tenantID int64, streamSequence int64, exportHash string) error {
	_, err := d.defaultDB.Conn().ExecContext(ctx, `
		UPDATE tenant_directory_entries
		SET last_exported_stream_sequence = ?, export_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ?`, streamSequence, exportHash, tenantID)
	if err != nil {
		return fmt.Errorf("record export for tenant %d: %w", tenantID, err)
	}
	return nil
}

// RecordImport stores the migration import result (C14 import step).
func (d *Directory) RecordImport(ctx context.Context, tenantID int64, importHash string, importCount int64) error {
	_, err := d.defaultDB.Conn().ExecContext(ctx, `
		UPDATE tenant_directory_entries
		SET import_hash = ?, import_count = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ?`, importHash, importCount, tenantID)
	if err != nil {
		return fmt.Errorf("record import for tenant %d: %w", tenantID, err)
	}
	return nil
}

// Cutover finalizes a migration: switches a tenant's isolation mode and
// handle in the same update that returns it to ACTIVE, so no reader ever
// observes an ACTIVE entry still pointing at the pre-migration handle.
func (d *Directory) Cutover(ctx context.Context, tenantID int64, mode IsolationMode, handle string) error {
	res, err := d.defaultDB.Conn().ExecContext(ctx, `
		UPDATE tenant_directory_entries
		SET isolation_mode = ?, handle = ?, status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE tenant_id = ?`, mode, handle, StatusActive, tenantID)
	if err != nil {
		return fmt.Errorf("cutover tenant %d: %w", tenantID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for tenant %d: %w", tenantID, err)
	}
	if n == 0 {
		return apperrors.ErrTenantNotFound
	}
	return nil
}

// ListActive returns every tenant currently in ACTIVE status, used by the
// projection scheduler and the integrity sweep to enumerate work.
func (d *Directory) ListActive(ctx context.Context) ([]Entry, error) {
	rows, err := d.defaultDB.Conn().QueryContext(ctx, `
		SELECT tenant_id, isolation_mode, handle, status,
		       last_exported_stream_sequence, export_hash, import_hash, import_count
		FROM tenant_directory_entries
		WHERE status = ?`, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active tenants: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var exportHash, importHash sql.NullString
		if err := rows.Scan(&e.TenantID, &e.IsolationMode, &e.Handle, &e.Status,
			&e.LastExportedStreamSequence, &exportHash, &importHash, &e.ImportCount); err != nil {
			return nil, fmt.Errorf("scan tenant row: %w", err)
		}
		e.ExportHash = exportHash.String
		e.ImportHash = importHash.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
