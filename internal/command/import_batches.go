// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/emitter"
	"github.com/nxentra/ledgerd/internal/policy"
)

// ImportBatchInput is one batch of externally-sourced rows to stage for
// later reconciliation. Rows are opaque to the command layer -- they are
// whatever shape the source system produced, decoded only far enough to
// satisfy the schema registered for import_batch.* event types.
type ImportBatchInput struct {
	Lines  []interface{}
	Origin string // OriginHuman or OriginBatch; defaults to OriginBatch
}

// ImportBatch plans and emits a header/chunk.../finalized event family via
// internal/payload.Chunker (C8) -- the one chunked family that abstraction
// was actually built for (see DESIGN.md for why journals needed their own
// hand-rolled chunking instead). Every Emission in the plan must succeed for
// the batch to be well-formed; on a partial failure the returned slice ends
// with the failed emission's Result, paired with its error.
func (c *Commander) ImportBatch(ctx context.Context, actor policy.Actor, in ImportBatchInput) ([]Result, error) {
	ac, err := c.resolve(ctx, actor, "import_batch", "create")
	if err != nil {
		return nil, err
	}
	if len(in.Lines) == 0 {
		return nil, apperrors.New(apperrors.CategoryInvariantViolation, "import batch has no lines")
	}
	origin := in.Origin
	if origin == "" {
		origin = OriginBatch
	}

	batchID := uuid.New()
	emissions, err := c.chunker.Plan(batchID, in.Lines, origin, time.Now())
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(emissions))
	var headerEventID *uuid.UUID
	for i, em := range emissions {
		req := emitter.Request{
			TenantID: ac.entry.TenantID, EventType: em.EventType,
			AggregateType: em.AggregateType, AggregateID: em.AggregateID,
			IdempotencyKey: em.IdempotencyKey, Payload: em.Payload,
			Origin: em.Origin, OccurredAt: em.OccurredAt,
		}
		// The first emission in the plan is the header; every later one in
		// the family is caused by it, matching the journal chunk family's
		// caused_by_event convention (spec.md §4.2).
		if i > 0 {
			req.CausedByEventID = headerEventID
		}
		r := c.emitOne(ac, req)
		results = append(results, r)
		if !r.Success {
			return results, r.Err
		}
		if i == 0 {
			id := r.Event.ID
			headerEventID = &id
		}
	}
	return results, nil
}
