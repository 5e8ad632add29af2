// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"context"
	"fmt"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/logging"
	"github.com/nxentra/ledgerd/internal/policy"
	"github.com/nxentra/ledgerd/internal/tenant"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

// RegisterTenantInput is the typed input for RegisterTenant.
type RegisterTenantInput struct {
	TenantID      int64
	IsolationMode tenant.IsolationMode
	Handle        string // handle name (never a DSN); routing uses it only for DEDICATED tenants
}

// RegisterTenant writes a new tenant_directory_entries row directly,
// without going through the emitter -- the deliberate exception to "exactly
// one event" noted on the command package's contract (§4.8): the tenant
// directory is a SYSTEM entity the event log itself has no notion of (an
// event's tenant_id must already resolve to a directory entry before it can
// be appended), so there is nothing for an aggregate to fold this into.
// Registration is authorized directly against the "admin" role rather than
// through a resolved tenant context, since no tenant context exists yet.
func (c *Commander) RegisterTenant(ctx context.Context, actor policy.Actor, dir *tenant.Directory, in RegisterTenantInput) error {
	if err := c.policy.Check(actor, "tenant", "manage"); err != nil {
		return err
	}
	if in.TenantID <= 0 {
		return apperrors.New(apperrors.CategoryInvariantViolation, "tenant_id must be positive")
	}
	if in.Handle == "" {
		return apperrors.New(apperrors.CategoryInvariantViolation, "tenant registration requires a handle")
	}

	tagged := writebarrier.With(ctx, writebarrier.TagCommand)
	if err := dir.Register(tagged, in.TenantID, in.IsolationMode, in.Handle); err != nil {
		return fmt.Errorf("register tenant %d: %w", in.TenantID, err)
	}
	return nil
}

// SetTenantReadOnly pauses a tenant's writes directly, outside of a
// migration -- an operator-initiated maintenance window spec.md §3's
// READ_ONLY status exists for, distinct from MIGRATING (which only the
// migration orchestrator's freeze step ever sets). This writes under
// TagAdminEmergency, the same tag an operator's emergency repair uses,
// since it is an out-of-band directory mutation with no originating
// business event.
func (c *Commander) SetTenantReadOnly(ctx context.Context, actor policy.Actor, dir *tenant.Directory, tenantID int64) error {
	return c.setTenantStatus(ctx, actor, dir, tenantID, tenant.StatusReadOnly)
}

// SuspendTenant sets SUSPENDED, an operator-initiated hard stop (e.g. a
// billing or compliance hold). Like READ_ONLY it rejects writes via
// Entry.Writable(); unlike READ_ONLY it signals an indefinite hold rather
// than a scheduled maintenance window, so callers at the edge may choose to
// refuse reads too -- that distinction is left to httpapi/policy, not
// modeled here.
func (c *Commander) SuspendTenant(ctx context.Context, actor policy.Actor, dir *tenant.Directory, tenantID int64) error {
	return c.setTenantStatus(ctx, actor, dir, tenantID, tenant.StatusSuspended)
}

// ResumeTenant returns a READ_ONLY or SUSPENDED tenant to ACTIVE. It does
// not resume a tenant stuck in MIGRATING -- that status is only ever
// cleared by the migration orchestrator's cutover or rollback step.
func (c *Commander) ResumeTenant(ctx context.Context, actor policy.Actor, dir *tenant.Directory, tenantID int64) error {
	return c.setTenantStatus(ctx, actor, dir, tenantID, tenant.StatusActive)
}

func (c *Commander) setTenantStatus(ctx context.Context, actor policy.Actor, dir *tenant.Directory, tenantID int64, status tenant.Status) error {
	if err := c.policy.Check(actor, "tenant", "manage"); err != nil {
		return err
	}
	tagged := writebarrier.With(ctx, writebarrier.TagAdminEmergency)
	if err := dir.SetStatus(tagged, tenantID, status); err != nil {
		return fmt.Errorf("set tenant %d status %s: %w", tenantID, status, err)
	}
	logging.NewSecurityLogger().LogAdminEmergencyWrite(fmt.Sprintf("%d", actor.UserID), tenantID, "tenant_directory_entries")
	return nil
}
