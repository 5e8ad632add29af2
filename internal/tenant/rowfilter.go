// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package tenant

import "github.com/nxentra/ledgerd/internal/database/query"

// Scoped returns a WhereBuilder pre-seeded with the tenant's row filter.
// Every read or write against a tenant-owned table starts here: for a
// SHARED-mode tenant this is the only thing standing between one tenant's
// data and another's, since the underlying handle is physically shared.
// For a DEDICATED-mode tenant the predicate is redundant with physical
// isolation but kept anyway, so call sites never need to branch on
// isolation mode.
func Scoped(entry Entry) *query.WhereBuilder {
	return query.NewWhereBuilder().AddEquals("tenant_id", entry.TenantID)
}
