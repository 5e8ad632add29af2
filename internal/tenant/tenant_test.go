// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package tenant

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTenant_RoundTrips(t *testing.T) {
	entry := Entry{TenantID: 42, IsolationMode: IsolationShared, Status: StatusActive}
	ctx := WithTenant(context.Background(), entry)

	got, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, entry, got)
}

func TestFromContext_MissingReturnsFalse(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestMustFromContext_PanicsWhenMissing(t *testing.T) {
	assert.Panics(t, func() {
		MustFromContext(context.Background())
	})
}

func TestEntry_Writable(t *testing.T) {
	assert.True(t, Entry{Status: StatusActive}.Writable())
	assert.False(t, Entry{Status: StatusMigrating}.Writable())
	assert.False(t, Entry{Status: StatusReadOnly}.Writable())
	assert.False(t, Entry{Status: StatusSuspended}.Writable())
}

func TestScoped_SeedsTenantPredicate(t *testing.T) {
	wb := Scoped(Entry{TenantID: 7})
	clause, args := wb.Build()
	assert.Equal(t, "tenant_id = ?", clause)
	assert.Equal(t, []interface{}{int64(7)}, args)
}
