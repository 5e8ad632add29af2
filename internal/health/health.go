// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package health implements the three health surfaces spec.md §6 describes
// as a thin external collaborator: liveness (process is up), readiness
// (default database reachable), and a full report (per-projection lag and
// tenant-directory consistency) consumed by an operator dashboard or the
// run_projections --verify-integrity CLI path.
package health

import (
	"context"
	"fmt"

	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/metrics"
	"github.com/nxentra/ledgerd/internal/projection"
	"github.com/nxentra/ledgerd/internal/tenant"
)

// Liveness always succeeds once the process can run this call; it exists so
// the HTTP edge has a handler that never touches the database.
func Liveness() bool { return true }

// Readiness reports whether the default database handle is reachable.
func Readiness(ctx context.Context, defaultDB *database.DB) error {
	if err := defaultDB.Ping(ctx); err != nil {
		return fmt.Errorf("readiness: default handle unreachable: %w", err)
	}
	return nil
}

// ProjectionLag is one tenant/projection pair's replay lag.
type ProjectionLag struct {
	TenantID   int64  `json:"tenant_id"`
	Projection string `json:"projection"`
	Lag        int64  `json:"lag_events"`
}

// Report is the full health surface: per-tenant/per-projection lag plus a
// count of tenant directory entries whose isolation mode doesn't match a
// reachable handle, the same "consistency count" spec.md §6 asks for.
type Report struct {
	ActiveTenants        int             `json:"active_tenants"`
	UnreachableHandles   int             `json:"unreachable_handles"`
	ProjectionLag        []ProjectionLag `json:"projection_lag"`
	LagThresholdExceeded []ProjectionLag `json:"lag_threshold_exceeded,omitempty"`
}

// Full walks every ACTIVE tenant, checks its routed handle is reachable, and
// reports each registered projection's lag, flagging any that exceed
// lagThreshold -- fed by PROJECTION_LAG_THRESHOLD (spec.md §6).
func Full(ctx context.Context, dir *tenant.Directory, router *tenant.Router, lagThreshold int64) (Report, error) {
	entries, err := dir.ListActive(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("full health check: list active tenants: %w", err)
	}

	report := Report{ActiveTenants: len(entries)}
	for _, entry := range entries {
		db, err := router.Route(entry)
		if err != nil {
			report.UnreachableHandles++
			continue
		}
		if err := db.Ping(ctx); err != nil {
			report.UnreachableHandles++
			continue
		}

		engine := projection.NewDefaultEngine(db)
		for _, name := range projection.Names {
			lag, err := engine.Lag(ctx, entry.TenantID, name)
			if err != nil {
				return report, fmt.Errorf("lag for tenant %d projection %s: %w", entry.TenantID, name, err)
			}
			pl := ProjectionLag{TenantID: entry.TenantID, Projection: name, Lag: lag}
			report.ProjectionLag = append(report.ProjectionLag, pl)
			if lagThreshold > 0 && lag > lagThreshold {
				report.LagThresholdExceeded = append(report.LagThresholdExceeded, pl)
			}
		}
	}
	metrics.TenantDirectoryInconsistencies.Set(float64(report.UnreachableHandles))
	return report, nil
}
