// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package migration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
)

// ImportOptions controls the standalone `import_tenant_events` operator
// command's behavior. Orchestrator.Migrate always imports with the zero
// value -- no skip, no dry run -- since it drives a single controlled
// first-time import of a freshly prepared target handle.
type ImportOptions struct {
	// SkipExisting silently skips any bundle record whose event id is
	// already present on the target handle, instead of failing on the
	// primary-key collision -- for re-running an import that was
	// interrupted partway through.
	SkipExisting bool
	// DryRun reports what would be imported (count, recomputed hash)
	// without writing anything.
	DryRun bool
}

// ImportTenantEvents re-inserts bundle onto the target handle, for the
// standalone `import_tenant_events` operator command -- independent of
// Orchestrator.Migrate, which calls importBundle directly as one step of a
// full migration run.
func ImportTenantEvents(ctx context.Context, store *eventstore.Store, payloads *payload.Store, tenantID int64, bundle Bundle, opts ImportOptions) (importHash string, importCount int64, err error) {
	return importBundle(ctx, store, payloads, tenantID, bundle, opts)
}

// importBundle re-inserts every record in bundle onto the target handle,
// preserving each event's original id and sequences via
// eventstore.Store.ImportEvent rather than Store.Append, which would
// allocate fresh ones. It recomputes the same running hash the export
// step computed so Migrate's verify step can compare the two
// independently of whatever happened to the bundle in transit.
func importBundle(ctx context.Context, store *eventstore.Store, payloads *payload.Store, tenantID int64, bundle Bundle, opts ImportOptions) (importHash string, importCount int64, err error) {
	hasher := sha256.New()
	var maxSeq int64
	for _, rec := range bundle.Records {
		evt, terr := rec.toBusinessEvent(tenantID)
		if terr != nil {
			return "", 0, fmt.Errorf("import: %w", terr)
		}
		if opts.SkipExisting {
			exists, eerr := store.EventExists(ctx, evt.ID)
			if eerr != nil {
				return "", 0, fmt.Errorf("import: check existing event %s: %w", rec.ID, eerr)
			}
			if exists {
				continue
			}
		}
		if len(rec.ExternalPayload) > 0 && !opts.DryRun {
			var decoded interface{}
			if derr := canonjson.Unmarshal(rec.ExternalPayload, &decoded); derr != nil {
				return "", 0, fmt.Errorf("import: decode external payload for event %s: %w", rec.ID, derr)
			}
			id, hash, _, perr := payloads.Put(ctx, decoded)
			if perr != nil {
				return "", 0, fmt.Errorf("import: re-upload payload for event %s: %w", rec.ID, perr)
			}
			if hash != evt.PayloadHash {
				return "", 0, fmt.Errorf("import: payload hash mismatch for event %s: stored %s, recomputed %s",
					rec.ID, evt.PayloadHash, hash)
			}
			evt.PayloadRef = &id
		}
		if !opts.DryRun {
			if ierr := store.ImportEvent(ctx, evt); ierr != nil {
				return "", 0, fmt.Errorf("import: insert event %s: %w", rec.ID, ierr)
			}
		}
		canon, cerr := canonjson.Marshal(rec)
		if cerr != nil {
			return "", 0, fmt.Errorf("import: canonicalize event %s: %w", rec.ID, cerr)
		}
		hasher.Write(canon)
		importCount++
		if evt.StreamSequence > maxSeq {
			maxSeq = evt.StreamSequence
		}
	}
	if importCount > 0 && !opts.DryRun {
		if serr := store.SetStreamCounter(ctx, tenantID, maxSeq); serr != nil {
			return "", 0, fmt.Errorf("import: set stream counter: %w", serr)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), importCount, nil
}
