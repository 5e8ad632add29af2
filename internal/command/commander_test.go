// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/config"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/emitter"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/policy"
	"github.com/nxentra/ledgerd/internal/schema"
	"github.com/nxentra/ledgerd/internal/tenant"
	"github.com/nxentra/ledgerd/internal/testsupport"
)

const testMaxLinesPerChunk = 500

// newTestCommander builds a Commander wired to an in-memory DuckDB handle,
// a seeded ACTIVE tenant, and the embedded RBAC policy -- the harness every
// command test in this package shares.
func newTestCommander(t *testing.T) (*Commander, tenant.Entry) {
	t.Helper()
	db := testsupport.OpenDB(t)
	entry := testsupport.SeedTenant(t, db, 1, tenant.IsolationShared)

	router := tenant.NewRouter(db, database.Config{}, t.TempDir())
	t.Cleanup(func() { _ = router.Close() })

	registry, err := schema.NewRegistry()
	require.NoError(t, err)
	require.NoError(t, schema.RegisterDefaults(registry))

	cfg := &config.Config{
		Payload:    config.PayloadConfig{InlineMaxBytes: 1 << 20, ExternalMaxBytes: 1 << 24, MaxLinesPerChunk: testMaxLinesPerChunk},
		Projection: config.ProjectionConfig{Sync: true},
	}
	em := emitter.New(router, registry, cfg, nil)

	enforcer, err := policy.New(policy.DefaultConfig())
	require.NoError(t, err)

	chunker := payload.NewChunker(testMaxLinesPerChunk)

	return New(router, em, enforcer, chunker, true), entry
}

func adminActor() policy.Actor {
	return policy.Actor{UserID: 1, Roles: []string{"admin"}}
}

func actorWithRole(role string) policy.Actor {
	return policy.Actor{UserID: 2, Roles: []string{role}}
}

func ctxFor(entry tenant.Entry) context.Context {
	return tenant.WithTenant(context.Background(), entry)
}
