// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/command/numbering"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/emitter"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/logging"
	"github.com/nxentra/ledgerd/internal/payload"
	"github.com/nxentra/ledgerd/internal/policy"
	"github.com/nxentra/ledgerd/internal/projection"
	"github.com/nxentra/ledgerd/internal/tenant"
	"github.com/nxentra/ledgerd/internal/writebarrier"
)

// Commander wires the command layer's shared dependencies: the emitter
// (C9), the policy enforcer for permission preconditions, the tenant
// router for resolving which database handle a tenant's aggregates and
// numbering sequences live on, and the chunker for oversized journals and
// import batches (C8).
type Commander struct {
	router  *tenant.Router
	emit    *emitter.Emitter
	policy  *policy.Enforcer
	chunker *payload.Chunker
	// syncDrain forces every registered projection to drain to zero lag
	// after each successful emit: a test/dev convenience (spec.md §4.5
	// "tests may force synchronous processing after each command") so
	// assertions can read projections immediately after a command returns.
	syncDrain bool
}

// New builds a Commander.
func New(router *tenant.Router, emit *emitter.Emitter, enforcer *policy.Enforcer, chunker *payload.Chunker, syncDrain bool) *Commander {
	return &Commander{router: router, emit: emit, policy: enforcer, chunker: chunker, syncDrain: syncDrain}
}

// actorContext bundles what every command needs from its caller: the
// resolved tenant (bound by the request edge per §4.8) and the
// authenticated actor (bound by the HTTP edge's JWT, per internal/policy).
type actorContext struct {
	ctx   context.Context
	entry tenant.Entry
	actor policy.Actor
}

// resolve extracts the tenant entry from ctx, tags ctx with the command
// write-context (C5), and authorizes actor against resource/action before
// any command proceeds.
func (c *Commander) resolve(ctx context.Context, actor policy.Actor, resource, action string) (actorContext, error) {
	entry, ok := tenant.FromContext(ctx)
	if !ok {
		return actorContext{}, apperrors.New(apperrors.CategoryInvariantViolation, "command invoked without a resolved tenant context")
	}
	if !entry.Writable() {
		return actorContext{}, apperrors.ErrTenantNotWritable
	}
	if err := c.policy.Check(actor, resource, action); err != nil {
		logging.NewSecurityLogger().LogPolicyDenial(fmt.Sprintf("%d", actor.UserID), entry.TenantID, resource, action)
		return actorContext{}, err
	}
	return actorContext{
		ctx:   writebarrier.With(ctx, writebarrier.TagCommand),
		entry: entry,
		actor: actor,
	}, nil
}

func (c *Commander) db(entry tenant.Entry) (*database.DB, error) {
	db, err := c.router.Route(entry)
	if err != nil {
		return nil, fmt.Errorf("route tenant %d: %w", entry.TenantID, err)
	}
	return db, nil
}

// loader builds an aggregate.Loader bound to entry's routed database.
func (c *Commander) loader(entry tenant.Entry) (*aggregate.Loader, error) {
	db, err := c.db(entry)
	if err != nil {
		return nil, err
	}
	return aggregate.New(eventstore.New(db), payload.New(db)), nil
}

// allocator builds a numbering.Allocator bound to entry's routed database --
// entry_number_sequences is a tenant-owned table (spec.md §3), so this must
// follow the same routing as everything else tenant-scoped, not live on the
// default handle.
func (c *Commander) allocator(entry tenant.Entry) (*numbering.Allocator, error) {
	db, err := c.db(entry)
	if err != nil {
		return nil, err
	}
	return numbering.New(db), nil
}

// emitOne is the common tail of every command: emit req through the
// Emitter, optionally drain every projection synchronously, and wrap the
// result as a command Result. An idempotency-key replay is still success
// per spec.md §4.7 ("or zero [events] if the call was idempotent").
//
// Every event a command emits is actor-initiated, so caused_by_user_id is
// always the resolved actor's id (spec.md §3, glossary "Causation chain" --
// root = actor-initiated event); callers only need to set CausedByEventID
// themselves when chaining a later event in a sequence to an earlier one.
func (c *Commander) emitOne(ac actorContext, req emitter.Request) Result {
	if req.CausedByUserID == nil {
		userID := ac.actor.UserID
		req.CausedByUserID = &userID
	}
	event, err := c.emit.Emit(ac.ctx, ac.entry, req)
	if err != nil && apperrors.Categorize(err) != apperrors.CategoryIdempotencyReplay {
		return fail(err)
	}
	if c.syncDrain {
		if derr := c.drainProjections(ac); derr != nil {
			return fail(derr)
		}
	}
	return ok(event)
}

func (c *Commander) drainProjections(ac actorContext) error {
	db, err := c.db(ac.entry)
	if err != nil {
		return err
	}
	engine := projection.NewDefaultEngine(db)
	for _, name := range projection.Names {
		for {
			n, err := engine.ProcessPending(ac.ctx, ac.entry.TenantID, name, 500)
			if err != nil {
				return fmt.Errorf("drain projection %s: %w", name, err)
			}
			if n == 0 {
				break
			}
		}
	}
	return nil
}

// idempotencyKey builds the "{scope}:{stable_hash_of_intent}" key spec.md
// §4.3 requires: a command forms it from its own typed inputs so a retried
// HTTP request with identical inputs produces a byte-identical key and
// therefore exactly one event.
func idempotencyKey(scope string, intent interface{}) string {
	canon, err := canonjson.Marshal(intent)
	if err != nil {
		// Intent is always a plain struct of strings/numbers the caller
		// built; a marshal failure here is a programmer error, not a
		// runtime condition worth a typed error path.
		panic(fmt.Sprintf("command: marshal idempotency intent for %s: %v", scope, err))
	}
	sum := sha256.Sum256(canon)
	return scope + ":" + hex.EncodeToString(sum[:])
}
