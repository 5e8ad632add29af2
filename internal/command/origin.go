// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

// Origin values for emitter.Request.Origin (spec.md §4.2): HUMAN commands
// come from an authenticated actor through the HTTP edge; BATCH commands
// come from the import pipeline. Origin is required on every emit -- there
// is no heuristic backfill (SPEC_FULL.md §4).
const (
	OriginHuman = "HUMAN"
	OriginBatch = "BATCH"
)
