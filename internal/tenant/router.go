// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package tenant

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/logging"
)

// Router resolves a tenant directory entry to the *database.DB that holds
// its rows: the default handle for SHARED tenants, or a lazily-opened
// dedicated handle for DEDICATED tenants.
type Router struct {
	defaultDB *database.DB
	dbConfig  database.Config // template for dedicated handles; Path is overridden per tenant
	handleDir string

	mu       sync.Mutex
	handles  map[string]*database.DB
}

// NewRouter builds a router around the default handle. handleDir is where
// dedicated handle files are created, one DuckDB file per dedicated tenant.
func NewRouter(defaultDB *database.DB, dbConfig database.Config, handleDir string) *Router {
	return &Router{
		defaultDB: defaultDB,
		dbConfig:  dbConfig,
		handleDir: handleDir,
		handles:   make(map[string]*database.DB),
	}
}

// Route returns the DB handle backing entry's tenant.
func (r *Router) Route(entry Entry) (*database.DB, error) {
	if entry.IsolationMode == IsolationShared {
		return r.defaultDB, nil
	}
	return r.dedicatedHandle(entry.TenantID, entry.Handle)
}

// dedicatedHandle opens (or returns the cached) dedicated handle by name.
// tenantID is 0 when called from OpenHandle before a directory entry exists
// yet (a migration target being prepared); the opened-handle log line omits
// tenant_id in that case rather than stamping a misleading zero.
func (r *Router) dedicatedHandle(tenantID int64, handle string) (*database.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.handles[handle]; ok {
		return db, nil
	}

	cfg := r.dbConfig
	cfg.Handle = handle
	cfg.Path = filepath.Join(r.handleDir, handle+".duckdb")

	db, err := database.New(&cfg)
	if err != nil {
		return nil, fmt.Errorf("open dedicated handle %q: %w", handle, err)
	}
	r.handles[handle] = db
	logEvent := logging.Logger().Info()
	if tenantID != 0 {
		logEvent = logging.WithTenant(tenantID).Info()
	}
	logEvent.Str("handle", handle).Msg("opened dedicated tenant handle")
	return db, nil
}

// OpenHandle opens (or returns the cached) dedicated handle by name,
// independent of any directory entry. The migration orchestrator uses
// this to prepare a DEDICATED target handle before a directory entry
// exists for it, and to pick up the same connection pool after cutover.
func (r *Router) OpenHandle(handle string) (*database.DB, error) {
	return r.dedicatedHandle(0, handle)
}

// DefaultDB returns the shared default handle, the migration orchestrator's
// target when cutting a tenant back from DEDICATED to SHARED.
func (r *Router) DefaultDB() *database.DB {
	return r.defaultDB
}

// Close closes every dedicated handle opened by this router. The default
// handle is owned by the caller that constructed the router and is not
// closed here.
func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for handle, db := range r.handles {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close handle %q: %w", handle, err)
		}
	}
	r.handles = make(map[string]*database.DB)
	return firstErr
}
