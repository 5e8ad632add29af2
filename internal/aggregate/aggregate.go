// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package aggregate folds an aggregate's event stream into a snapshot (C10).
// Every apply function here must be pure and deterministic: the same event
// slice, replayed in any process, at any time, yields the same snapshot.
// Unknown event types are ignored so that older aggregate code keeps working
// against a stream that later gained new event types.
package aggregate

import (
	"context"
	"fmt"

	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
)

// Snapshot is the folded state of one aggregate stream. payloadData is the
// event's canonical JSON payload resolved by the Loader -- from
// inline_data for INLINE events, or fetched from the payload store for
// EXTERNAL ones -- so apply functions never need to know which storage
// strategy produced a given event.
type Snapshot interface {
	Apply(event eventstore.BusinessEvent, payloadData []byte) error
}

// Loader fetches an aggregate's stream, resolves each event's payload, and
// folds the result through a fresh snapshot of the caller's choosing.
type Loader struct {
	store   *eventstore.Store
	payload *payload.Store // nil if this aggregate kind never uses EXTERNAL storage
}

// New builds a Loader. payloadStore may be nil for aggregate kinds whose
// events are always small enough to stay INLINE.
func New(store *eventstore.Store, payloadStore *payload.Store) *Loader {
	return &Loader{store: store, payload: payloadStore}
}

// Load replays aggregateType/aggregateID's full stream into snapshot,
// ordered by aggregate_sequence. An aggregate with no events leaves
// snapshot untouched and returns found=false.
func (l *Loader) Load(ctx context.Context, tenantID int64, aggregateType, aggregateID string, snapshot Snapshot) (found bool, err error) {
	events, err := l.store.LoadStream(ctx, tenantID, aggregateType, aggregateID)
	if err != nil {
		return false, fmt.Errorf("load stream %s/%s: %w", aggregateType, aggregateID, err)
	}
	if len(events) == 0 {
		return false, nil
	}
	for _, event := range events {
		data, err := l.resolvePayload(ctx, event)
		if err != nil {
			return true, fmt.Errorf("resolve payload for %s@%d: %w", event.EventType, event.AggregateSequence, err)
		}
		if err := snapshot.Apply(event, data); err != nil {
			return true, fmt.Errorf("apply %s@%d to %s/%s: %w",
				event.EventType, event.AggregateSequence, aggregateType, aggregateID, err)
		}
	}
	return true, nil
}

func (l *Loader) resolvePayload(ctx context.Context, event eventstore.BusinessEvent) ([]byte, error) {
	switch event.PayloadStorage {
	case eventstore.StorageInline:
		return event.InlineData, nil
	case eventstore.StorageExternal:
		if l.payload == nil {
			return nil, fmt.Errorf("event %s is EXTERNAL but loader has no payload store configured", event.ID)
		}
		blob, err := l.payload.GetByHash(ctx, event.PayloadHash)
		if err != nil {
			return nil, fmt.Errorf("fetch external payload for event %s: %w", event.ID, err)
		}
		return blob.Payload, nil
	default:
		return nil, fmt.Errorf("event %s has unknown payload storage %q", event.ID, event.PayloadStorage)
	}
}

// decodeInto unmarshals a resolved canonical-JSON payload into v.
func decodeInto(data []byte, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	return canonjson.Unmarshal(data, v)
}
