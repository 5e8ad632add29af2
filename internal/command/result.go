// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package command is the command layer (C13): one function per mutation,
// each enforcing permissions and workflow rules before emitting exactly one
// business event (or returning the prior event on an idempotent replay).
// Database-level invariants live on the read model; workflow rules (only
// COMPLETE entries may post, only POSTED entries may reverse, ...) live
// here and nowhere else, so a rebuild can replay history in any order
// without a workflow check vetoing an event that already happened.
package command

import "github.com/nxentra/ledgerd/internal/eventstore"

// Result is what every command function returns: spec.md's
// CommandResult{success, data|error, event?}.
type Result struct {
	Success bool
	Event   eventstore.BusinessEvent
	Err     error
}

func ok(event eventstore.BusinessEvent) Result {
	return Result{Success: true, Event: event}
}

func fail(err error) Result {
	return Result{Success: false, Err: err}
}
