// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package metrics exposes Prometheus instrumentation for the event store,
// projection engine, outbox, migration orchestrator and HTTP edge.
//
// Metrics are registered at package init via promauto and served by the
// caller (cmd/ledgerd) on /metrics through promhttp.Handler. Recording
// functions are safe for concurrent use; the underlying client_golang
// collectors handle their own synchronization.
package metrics
