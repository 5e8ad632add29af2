// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package emitter is the single entry point for creating a business event
// (C9): schema validation, storage-strategy selection, hashing, idempotent
// persistence, and -- when running asynchronously -- staging the event in
// the outbox for the projection scheduler to pick up.
package emitter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/config"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/eventstore/outbox"
	"github.com/nxentra/ledgerd/internal/metrics"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/schema"
	"github.com/nxentra/ledgerd/internal/tenant"
)

// Request describes one event to create. Payload is a plain value (usually
// a struct or map) that Emit canonicalizes itself; callers never hash or
// encode payloads by hand.
type Request struct {
	TenantID        int64
	EventType       string
	AggregateType   string
	AggregateID     string
	IdempotencyKey  string
	Payload         interface{}
	Origin          string
	CausedByUserID  *int64
	CausedByEventID *uuid.UUID
	OccurredAt      time.Time
	SchemaVersion   int
}

// Emitter is shared across all tenants; it resolves the right database
// handle per call through a tenant.Router.
type Emitter struct {
	router     *tenant.Router
	registry   *schema.Registry
	thresholds payload.Thresholds
	outbox     *outbox.Outbox // nil when running synchronously
	sync       bool

	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	rateCfg  config.SecurityConfig
}

// New builds an Emitter. ob may be nil when cfg.Projection.Sync is true:
// synchronous mode applies projections inline and never needs staging.
func New(router *tenant.Router, registry *schema.Registry, cfg *config.Config, ob *outbox.Outbox) *Emitter {
	return &Emitter{
		router:   router,
		registry: registry,
		thresholds: payload.Thresholds{
			InlineMaxBytes:   cfg.Payload.InlineMaxBytes,
			ExternalMaxBytes: cfg.Payload.ExternalMaxBytes,
		},
		outbox:   ob,
		sync:     cfg.Projection.Sync,
		limiters: make(map[int64]*rate.Limiter),
		rateCfg:  cfg.Security,
	}
}

// Emit validates, stores, and (if async) stages req for dispatch, returning
// the persisted event. An idempotency-key replay returns the existing event
// and apperrors.ErrIdempotencyKeyReplay, which callers should treat as
// success.
func (e *Emitter) Emit(ctx context.Context, entry tenant.Entry, req Request) (eventstore.BusinessEvent, error) {
	if !entry.Writable() {
		return eventstore.BusinessEvent{}, apperrors.ErrTenantNotWritable
	}
	if !e.allow(entry.TenantID) {
		metrics.EmitterRateLimited.WithLabelValues(fmt.Sprintf("%d", entry.TenantID)).Inc()
		return eventstore.BusinessEvent{}, apperrors.New(apperrors.CategoryTransient, "emitter rate limit exceeded")
	}

	if !config.DisableEventValidation() {
		asMap, err := toFieldMap(req.Payload)
		if err != nil {
			return eventstore.BusinessEvent{}, fmt.Errorf("normalize payload for validation: %w", err)
		}
		if err := e.registry.Validate(req.EventType, asMap); err != nil {
			return eventstore.BusinessEvent{}, err
		}
	}

	canon, err := canonjson.Marshal(req.Payload)
	if err != nil {
		return eventstore.BusinessEvent{}, fmt.Errorf("canonicalize payload: %w", err)
	}

	db, err := e.router.Route(entry)
	if err != nil {
		return eventstore.BusinessEvent{}, fmt.Errorf("route tenant %d: %w", entry.TenantID, err)
	}
	store := eventstore.New(db)

	draft := eventstore.Draft{
		TenantID:        req.TenantID,
		EventType:       req.EventType,
		AggregateType:   req.AggregateType,
		AggregateID:     req.AggregateID,
		IdempotencyKey:  req.IdempotencyKey,
		Origin:          req.Origin,
		CausedByUserID:  req.CausedByUserID,
		CausedByEventID: req.CausedByEventID,
		OccurredAt:      req.OccurredAt,
		SchemaVersion:   req.SchemaVersion,
	}

	strategy := payload.Decide(len(canon), e.thresholds)
	draft.PayloadStorage = strategy
	if strategy == eventstore.StorageInline {
		draft.InlineData = canon
		draft.PayloadHash = canonjson.HashBytes(canon)
	} else {
		blobID, hash, _, err := payload.New(db).Put(ctx, req.Payload)
		if err != nil {
			return eventstore.BusinessEvent{}, fmt.Errorf("store external payload: %w", err)
		}
		draft.PayloadRef = &blobID
		draft.PayloadHash = hash
	}

	event, err := store.Append(ctx, draft)
	if err != nil {
		return event, err
	}

	if !e.sync && e.outbox != nil {
		if err := e.outbox.Enqueue(event.TenantID, event.ID, event.StreamSequence); err != nil {
			return event, fmt.Errorf("stage event %s for dispatch: %w", event.ID, err)
		}
	}
	return event, nil
}

func (e *Emitter) allow(tenantID int64) bool {
	if e.rateCfg.RateLimitPerSecond <= 0 {
		return true
	}
	e.mu.Lock()
	limiter, ok := e.limiters[tenantID]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(e.rateCfg.RateLimitPerSecond), e.rateCfg.RateLimitBurst)
		e.limiters[tenantID] = limiter
	}
	e.mu.Unlock()
	return limiter.Allow()
}

// toFieldMap converts a payload value to map[string]interface{} via a
// canonical-JSON round trip, so schema.Validate sees the same shape
// regardless of whether the caller passed a struct or a map.
func toFieldMap(v interface{}) (map[string]interface{}, error) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, nil
	}
	canon, err := canonjson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(canon, &m); err != nil {
		return nil, err
	}
	return m, nil
}
