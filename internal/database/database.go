// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package database wraps the DuckDB connection used by every database handle
// in the tenant directory (the "default" shared handle and any configured
// dedicated handles). It owns schema creation/migration and exposes the raw
// *sql.DB so that higher layers (event store, projections, command layer)
// can build their own parameterized queries through the query package.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/nxentra/ledgerd/internal/logging"
)

// Config controls how a single database handle is opened.
type Config struct {
	// Handle is the opaque connection pool name this config backs (e.g.
	// "default" or a configured dedicated handle name). Never a DSN/secret.
	Handle string

	// Path is the DuckDB file path (or ":memory:" for tests).
	Path string

	// MaxMemory is DuckDB's max_memory setting, e.g. "4GB".
	MaxMemory string

	// Threads overrides DuckDB's thread count; 0 means runtime.NumCPU().
	Threads int
}

// DB wraps a DuckDB connection for one database handle.
type DB struct {
	conn   *sql.DB
	cfg    *Config
	handle string
}

// New opens (or creates) the DuckDB database backing a handle and runs
// schema creation + versioned migrations against it.
func New(cfg *Config) (*DB, error) {
	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("create database directory %s: %w", dir, err)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	maxMemory := cfg.MaxMemory
	if maxMemory == "" {
		maxMemory = "2GB"
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, maxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database handle %q: %w", cfg.Handle, err)
	}

	db := &DB{conn: conn, cfg: cfg, handle: cfg.Handle}

	scopedLog := logging.NewScopedSlogLogger(map[string]string{"handle": cfg.Handle})

	if err := db.configureConnectionPool(); err != nil {
		closeWithLog(conn, scopedLog, "duckdb_connection")
		return nil, fmt.Errorf("configure connection pool for handle %q: %w", cfg.Handle, err)
	}

	if err := db.initialize(); err != nil {
		closeWithLog(conn, scopedLog, "duckdb_connection")
		return nil, fmt.Errorf("initialize schema for handle %q: %w", cfg.Handle, err)
	}

	logging.Info().Str("handle", cfg.Handle).Str("path", cfg.Path).Msg("database handle opened")
	return db, nil
}

// Handle returns the opaque handle name this DB backs.
func (db *DB) Handle() string { return db.handle }

// Conn returns the underlying *sql.DB. Callers build their own parameterized
// queries via the query package; this package owns only schema lifecycle.
func (db *DB) Conn() *sql.DB { return db.conn }

// Ping checks the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close flushes pending writes and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Str("handle", db.handle).Msg("failed to checkpoint before close")
	}
	return db.conn.Close()
}

// Checkpoint forces DuckDB to flush its WAL to the main database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	_, err := db.conn.ExecContext(ctx, "CHECKPOINT")
	return err
}

func (db *DB) initialize() error {
	if err := db.createTables(); err != nil {
		return err
	}
	if err := db.runVersionedMigrations(); err != nil {
		return err
	}
	return db.createIndexes()
}
