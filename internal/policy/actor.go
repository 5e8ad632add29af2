// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package policy

import "github.com/nxentra/ledgerd/internal/apperrors"

// Actor is the authenticated caller of a command, as extracted from the
// HTTP edge's JWT claims (sub -> UserID, a roles claim -> Roles).
type Actor struct {
	UserID int64
	Roles  []string
}

// Check enforces that actor may perform action on resource, returning
// apperrors.ErrPolicyDenied (CategoryAuthorization) if not. Commands call
// this before emitting; a denial never reaches internal/emitter.
func (e *Enforcer) Check(actor Actor, resource, action string) error {
	if len(actor.Roles) == 0 {
		return apperrors.ErrPolicyDenied
	}
	allowed, err := e.EnforceAny(actor.Roles, resource, action)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.ErrPolicyDenied
	}
	return nil
}
