// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event store

	EventsAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_events_appended_total",
			Help: "Total business events appended, by aggregate type and storage strategy.",
		},
		[]string{"aggregate_type", "storage"},
	)

	EventAppendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerd_event_append_duration_seconds",
			Help:    "Duration of a single event append, including any aggregate-sequence retry.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"aggregate_type"},
	)

	EventAppendRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_event_append_retries_total",
			Help: "Aggregate-sequence collisions that triggered an append retry.",
		},
		[]string{"aggregate_type"},
	)

	IdempotentReplaysServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_idempotent_replays_total",
			Help: "Emitter calls short-circuited by an idempotency key match.",
		},
		[]string{"aggregate_type"},
	)

	// Payload store

	PayloadBlobsDeduped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerd_payload_blobs_deduped_total",
			Help: "External payload writes that matched an existing content hash.",
		},
	)

	PayloadBlobsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerd_payload_blobs_stored_total",
			Help: "New external payload blobs persisted.",
		},
	)

	// Projection engine

	ProjectionLagEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerd_projection_lag_events",
			Help: "Events behind the stream head for a given tenant/projection pair.",
		},
		[]string{"tenant_id", "projection"},
	)

	ProjectionApplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerd_projection_apply_duration_seconds",
			Help:    "Duration applying a single event to a projection.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"projection"},
	)

	ProjectionEventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_projection_events_processed_total",
			Help: "Events successfully applied by a projection.",
		},
		[]string{"projection"},
	)

	ProjectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_projection_errors_total",
			Help: "Errors encountered while applying an event to a projection.",
		},
		[]string{"projection"},
	)

	ProjectionDoubleApplySkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_projection_double_apply_skipped_total",
			Help: "Events skipped because the applied-event ledger already recorded them.",
		},
		[]string{"projection"},
	)

	// Outbox (internal/eventstore/outbox)

	OutboxPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgerd_outbox_pending_entries",
			Help: "Entries in the crash-safe outbox awaiting confirmed dispatch.",
		},
	)

	OutboxDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerd_outbox_dispatched_total",
			Help: "Outbox entries confirmed dispatched to a projection consumer.",
		},
	)

	OutboxDispatchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgerd_outbox_dispatch_errors_total",
			Help: "Outbox dispatch attempts that failed.",
		},
	)

	// Integrity verifier

	IntegrityViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_integrity_violations_total",
			Help: "Hard-fail integrity violations found during a verification walk.",
		},
		[]string{"kind"},
	)

	IntegrityRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgerd_integrity_run_duration_seconds",
			Help:    "Duration of a full tenant integrity verification walk.",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		},
	)

	// Migration orchestrator

	MigrationStepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerd_migration_step_duration_seconds",
			Help:    "Duration of a single migration orchestrator step.",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300, 600},
		},
		[]string{"step"},
	)

	MigrationStepOutcome = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_migration_step_outcome_total",
			Help: "Outcome of each migration orchestrator step.",
		},
		[]string{"step", "outcome"},
	)

	MigrationCircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ledgerd_migration_circuit_breaker_state",
			Help: "Target-handle circuit breaker state: 0=closed, 1=half-open, 2=open.",
		},
		[]string{"target_handle"},
	)

	// Emitter rate limiting

	EmitterRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgerd_emitter_rate_limited_total",
			Help: "Emit calls rejected by the per-tenant rate limiter.",
		},
		[]string{"tenant_id"},
	)

	// Health

	TenantDirectoryInconsistencies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgerd_tenant_directory_inconsistencies",
			Help: "ACTIVE tenant directory entries whose routed handle was unreachable on the last full health check.",
		},
	)

	// HTTP edge

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledgerd_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ledgerd_http_requests_in_flight",
			Help: "HTTP requests currently being handled.",
		},
	)
)

// RecordEventAppend records a successful append and its duration.
func RecordEventAppend(aggregateType, storage string, duration time.Duration) {
	EventsAppended.WithLabelValues(aggregateType, storage).Inc()
	EventAppendDuration.WithLabelValues(aggregateType).Observe(duration.Seconds())
}

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(method, route, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, status).Observe(duration.Seconds())
}

// CircuitBreakerStateValue returns the MigrationCircuitBreakerState gauge for
// the named target handle.
func CircuitBreakerStateValue(name string) prometheus.Gauge {
	return MigrationCircuitBreakerState.WithLabelValues(name)
}
