// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/tenant"
	"github.com/nxentra/ledgerd/internal/testsupport"
)

func TestRegisterTenant_CreatesResolvableEntry(t *testing.T) {
	c, _ := newTestCommander(t)
	db := testsupport.OpenDB(t)
	dir := tenant.NewDirectory(db)

	err := c.RegisterTenant(context.Background(), adminActor(), dir, RegisterTenantInput{
		TenantID: 99, IsolationMode: tenant.IsolationShared, Handle: "default",
	})
	require.NoError(t, err)

	entry, err := dir.Resolve(context.Background(), 99)
	require.NoError(t, err)
	assert.Equal(t, int64(99), entry.TenantID)
	assert.Equal(t, tenant.IsolationShared, entry.IsolationMode)
}

func TestRegisterTenant_RejectsMissingHandle(t *testing.T) {
	c, _ := newTestCommander(t)
	db := testsupport.OpenDB(t)
	dir := tenant.NewDirectory(db)

	err := c.RegisterTenant(context.Background(), adminActor(), dir, RegisterTenantInput{
		TenantID: 100, IsolationMode: tenant.IsolationShared, Handle: "",
	})
	assert.Error(t, err)
}

func TestRegisterTenant_RejectsNonPositiveTenantID(t *testing.T) {
	c, _ := newTestCommander(t)
	db := testsupport.OpenDB(t)
	dir := tenant.NewDirectory(db)

	err := c.RegisterTenant(context.Background(), adminActor(), dir, RegisterTenantInput{
		TenantID: 0, IsolationMode: tenant.IsolationShared, Handle: "default",
	})
	assert.Error(t, err)
}

func TestRegisterTenant_DeniedForNonAdminRole(t *testing.T) {
	c, _ := newTestCommander(t)
	db := testsupport.OpenDB(t)
	dir := tenant.NewDirectory(db)

	err := c.RegisterTenant(context.Background(), actorWithRole("accountant"), dir, RegisterTenantInput{
		TenantID: 101, IsolationMode: tenant.IsolationShared, Handle: "default",
	})
	assert.Error(t, err, "only admin holds tenant/manage per the embedded policy")
}

func TestRegisterTenant_DuplicateTenantIDFails(t *testing.T) {
	c, _ := newTestCommander(t)
	db := testsupport.OpenDB(t)
	dir := tenant.NewDirectory(db)

	in := RegisterTenantInput{TenantID: 102, IsolationMode: tenant.IsolationShared, Handle: "default"}
	require.NoError(t, c.RegisterTenant(context.Background(), adminActor(), dir, in))

	err := c.RegisterTenant(context.Background(), adminActor(), dir, in)
	assert.Error(t, err, "tenant_directory_entries.tenant_id is a primary key")
}

func TestSetTenantReadOnly_ThenResumeRoundTrips(t *testing.T) {
	c, _ := newTestCommander(t)
	db := testsupport.OpenDB(t)
	dir := tenant.NewDirectory(db)
	require.NoError(t, c.RegisterTenant(context.Background(), adminActor(), dir, RegisterTenantInput{
		TenantID: 201, IsolationMode: tenant.IsolationShared, Handle: "default",
	}))

	require.NoError(t, c.SetTenantReadOnly(context.Background(), adminActor(), dir, 201))
	entry, err := dir.Resolve(context.Background(), 201)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusReadOnly, entry.Status)
	assert.False(t, entry.Writable())

	require.NoError(t, c.ResumeTenant(context.Background(), adminActor(), dir, 201))
	entry, err = dir.Resolve(context.Background(), 201)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, entry.Status)
	assert.True(t, entry.Writable())
}

func TestSuspendTenant_RejectsWrites(t *testing.T) {
	c, _ := newTestCommander(t)
	db := testsupport.OpenDB(t)
	dir := tenant.NewDirectory(db)
	require.NoError(t, c.RegisterTenant(context.Background(), adminActor(), dir, RegisterTenantInput{
		TenantID: 202, IsolationMode: tenant.IsolationShared, Handle: "default",
	}))

	require.NoError(t, c.SuspendTenant(context.Background(), adminActor(), dir, 202))
	entry, err := dir.Resolve(context.Background(), 202)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusSuspended, entry.Status)
	assert.False(t, entry.Writable())
}

func TestSetTenantReadOnly_DeniedForNonAdminRole(t *testing.T) {
	c, _ := newTestCommander(t)
	db := testsupport.OpenDB(t)
	dir := tenant.NewDirectory(db)
	require.NoError(t, c.RegisterTenant(context.Background(), adminActor(), dir, RegisterTenantInput{
		TenantID: 203, IsolationMode: tenant.IsolationShared, Handle: "default",
	}))

	err := c.SetTenantReadOnly(context.Background(), actorWithRole("accountant"), dir, 203)
	assert.Error(t, err, "only admin holds tenant/manage per the embedded policy")
}
