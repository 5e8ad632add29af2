// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package projection

import (
	"context"
	"fmt"

	"github.com/nxentra/ledgerd/internal/eventstore/outbox"
	"github.com/nxentra/ledgerd/internal/tenant"
)

// Dispatcher is the scheduler outbox's package doc describes: it drains
// staged entries and only confirms one once every projection in the run's
// filter (every registered projection when the filter names none) has
// drained that entry's tenant. It is
// the asynchronous counterpart to Commander's syncDrain path.
type Dispatcher struct {
	ob     *outbox.Outbox
	router *tenant.Router
	dir    *tenant.Directory
}

// NewDispatcher builds a Dispatcher bound to the shared outbox, tenant
// router, and tenant directory.
func NewDispatcher(ob *outbox.Outbox, router *tenant.Router, dir *tenant.Directory) *Dispatcher {
	return &Dispatcher{ob: ob, router: router, dir: dir}
}

// Filter narrows RunOnce to a subset of pending work. The zero value drains
// every tenant's every registered projection, the default run_projections
// behavior.
type Filter struct {
	// TenantID limits draining to one tenant's entries; 0 means every tenant.
	TenantID int64
	// Projection limits draining to one registered projection name; ""
	// means every projection in Names.
	Projection string
}

func (f Filter) matchesTenant(tenantID int64) bool {
	return f.TenantID == 0 || f.TenantID == tenantID
}

func (f Filter) projections() []string {
	if f.Projection == "" {
		return Names
	}
	return []string{f.Projection}
}

// RunOnce drains up to batchSize pending outbox entries matching filter,
// returning how many were confirmed. A failed entry is left pending
// (MarkAttempt records the cause) so the next tick retries it;
// ProcessPending is idempotent per bookmark, so a retry after partial
// progress never double-applies. An entry that doesn't match filter is left
// untouched -- neither confirmed nor marked failed -- so a tenant- or
// projection-scoped run never perturbs bookmarks outside its scope.
func (d *Dispatcher) RunOnce(ctx context.Context, batchSize int, filter Filter) (int, error) {
	entries, err := d.ob.Pending(batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending outbox entries: %w", err)
	}

	confirmed := 0
	for _, entry := range entries {
		if !filter.matchesTenant(entry.TenantID) {
			continue
		}
		if err := d.dispatch(ctx, entry, filter.projections()); err != nil {
			_ = d.ob.MarkAttempt(entry.ID, err)
			continue
		}
		if err := d.ob.Confirm(entry.ID); err != nil {
			return confirmed, fmt.Errorf("confirm outbox entry %s: %w", entry.ID, err)
		}
		confirmed++
	}
	return confirmed, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, entry outbox.Entry, names []string) error {
	dirEntry, err := d.dir.Resolve(ctx, entry.TenantID)
	if err != nil {
		return fmt.Errorf("resolve tenant %d: %w", entry.TenantID, err)
	}
	db, err := d.router.Route(dirEntry)
	if err != nil {
		return fmt.Errorf("route tenant %d: %w", entry.TenantID, err)
	}

	engine := NewDefaultEngine(db)
	for _, name := range names {
		for {
			n, err := engine.ProcessPending(ctx, entry.TenantID, name, 500)
			if err != nil {
				return fmt.Errorf("drain projection %s for tenant %d: %w", name, entry.TenantID, err)
			}
			if n == 0 {
				break
			}
		}
	}
	return nil
}
