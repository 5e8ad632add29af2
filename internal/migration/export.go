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
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
)

const bundleVersion = 1

// exportRecord is one event as it travels in a Bundle: the full identity
// spec.md §4.10 requires preserved across a migration (id, both
// sequences, idempotency key, causation, timestamps, origin) plus either
// its inline payload or a copy of its resolved external payload.
type exportRecord struct {
	ID                string  `json:"id"`
	AggregateSequence int64   `json:"aggregate_sequence"`
	StreamSequence    int64   `json:"stream_sequence"`
	EventType         string  `json:"event_type"`
	AggregateType     string  `json:"aggregate_type"`
	AggregateID       string  `json:"aggregate_id"`
	IdempotencyKey    string  `json:"idempotency_key"`
	PayloadStorage    string  `json:"payload_storage"`
	PayloadHash       string  `json:"payload_hash"`
	InlineData        []byte  `json:"inline_data,omitempty"`
	ExternalPayload   []byte  `json:"external_payload,omitempty"`
	PayloadRefID      string  `json:"payload_ref_id,omitempty"`
	Origin            string  `json:"origin"`
	CausedByUserID    *int64  `json:"caused_by_user_id,omitempty"`
	CausedByEventID   *string `json:"caused_by_event_id,omitempty"`
	OccurredAt        string  `json:"occurred_at"`
	RecordedAt        string  `json:"recorded_at"`
	SchemaVersion     int     `json:"schema_version"`
	Metadata          []byte  `json:"metadata,omitempty"`
}

// Bundle is the canonical-JSON artifact the export step produces and the
// import step consumes: a versioned, sequence-preserving snapshot of one
// tenant's entire event log (spec.md §4.10's "canonical-JSON file").
type Bundle struct {
	Version            int            `json:"version"`
	TenantID           int64          `json:"tenant_id"`
	EventCount         int64          `json:"event_count"`
	LastStreamSequence int64          `json:"last_stream_sequence"`
	ExportHash         string         `json:"export_hash"`
	Records            []exportRecord `json:"records"`
}

// WriteTo canonically encodes the bundle, for operators who hand it to
// object storage between the export and import steps of an offline move.
func (b Bundle) WriteTo(w io.Writer) error {
	canon, err := canonjson.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode migration bundle: %w", err)
	}
	_, err = w.Write(canon)
	return err
}

// ReadBundle decodes a bundle previously written by Bundle.WriteTo.
func ReadBundle(r io.Reader) (Bundle, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Bundle{}, fmt.Errorf("read migration bundle: %w", err)
	}
	var b Bundle
	if err := canonjson.Unmarshal(raw, &b); err != nil {
		return Bundle{}, fmt.Errorf("decode migration bundle: %w", err)
	}
	return b, nil
}

// ExportTenantEvents streams tenantID's event log into a Bundle, for the
// standalone `export_tenant_events` operator command -- independent of
// Orchestrator.Migrate, which always calls exportTenant directly with
// afterSequence 0 and includePayloads true, since a migration's bundle must
// be fully self-contained to import onto a handle with no access back to
// the source.
//
// afterSequence limits the export to events with stream_sequence strictly
// greater than it, for a resumable partial export. includePayloads
// controls whether an EXTERNAL-storage event's payload bytes are embedded
// (a self-contained bundle, importable onto any handle) or left as a
// payload_ref_id reference into the source store (a lighter export for
// inspection, not meant to be imported against a different store).
func ExportTenantEvents(ctx context.Context, store *eventstore.Store, payloads *payload.Store, tenantID int64, pageSize int, afterSequence int64, includePayloads bool) (Bundle, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	return exportTenantFrom(ctx, store, payloads, tenantID, pageSize, afterSequence, includePayloads)
}

func toExportRecord(evt eventstore.BusinessEvent) exportRecord {
	rec := exportRecord{
		ID:                evt.ID.String(),
		AggregateSequence: evt.AggregateSequence,
		StreamSequence:    evt.StreamSequence,
		EventType:         evt.EventType,
		AggregateType:     evt.AggregateType,
		AggregateID:       evt.AggregateID,
		IdempotencyKey:    evt.IdempotencyKey,
		PayloadStorage:    string(evt.PayloadStorage),
		PayloadHash:       evt.PayloadHash,
		InlineData:        evt.InlineData,
		Origin:            evt.Origin,
		CausedByUserID:    evt.CausedByUserID,
		OccurredAt:        evt.OccurredAt.UTC().Format(time.RFC3339Nano),
		RecordedAt:        evt.RecordedAt.UTC().Format(time.RFC3339Nano),
		SchemaVersion:     evt.SchemaVersion,
		Metadata:          evt.Metadata,
	}
	if evt.CausedByEventID != nil {
		s := evt.CausedByEventID.String()
		rec.CausedByEventID = &s
	}
	return rec
}

func (rec exportRecord) toBusinessEvent(tenantID int64) (eventstore.BusinessEvent, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return eventstore.BusinessEvent{}, fmt.Errorf("parse event id %q: %w", rec.ID, err)
	}
	occurredAt, err := time.Parse(time.RFC3339Nano, rec.OccurredAt)
	if err != nil {
		return eventstore.BusinessEvent{}, fmt.Errorf("parse occurred_at for %s: %w", rec.ID, err)
	}
	recordedAt, err := time.Parse(time.RFC3339Nano, rec.RecordedAt)
	if err != nil {
		return eventstore.BusinessEvent{}, fmt.Errorf("parse recorded_at for %s: %w", rec.ID, err)
	}
	evt := eventstore.BusinessEvent{
		ID:                id,
		TenantID:          tenantID,
		EventType:         rec.EventType,
		AggregateType:     rec.AggregateType,
		AggregateID:       rec.AggregateID,
		AggregateSequence: rec.AggregateSequence,
		StreamSequence:    rec.StreamSequence,
		IdempotencyKey:    rec.IdempotencyKey,
		PayloadStorage:    eventstore.PayloadStorage(rec.PayloadStorage),
		PayloadHash:       rec.PayloadHash,
		InlineData:        rec.InlineData,
		Origin:            rec.Origin,
		CausedByUserID:    rec.CausedByUserID,
		OccurredAt:        occurredAt,
		RecordedAt:        recordedAt,
		SchemaVersion:     rec.SchemaVersion,
		Metadata:          rec.Metadata,
	}
	if rec.CausedByEventID != nil {
		causedID, err := uuid.Parse(*rec.CausedByEventID)
		if err != nil {
			return eventstore.BusinessEvent{}, fmt.Errorf("parse caused_by_event_id for %s: %w", rec.ID, err)
		}
		evt.CausedByEventID = &causedID
	}
	return evt, nil
}

// exportTenant streams tenantID's entire event log from genesis, always
// embedding EXTERNAL payloads so the bundle is self-contained -- the form
// Orchestrator.Migrate always needs, since its import step has no access
// back to the source store.
func exportTenant(ctx context.Context, store *eventstore.Store, payloads *payload.Store, tenantID int64, pageSize int) (Bundle, error) {
	return exportTenantFrom(ctx, store, payloads, tenantID, pageSize, 0, true)
}

// exportTenantFrom streams tenantID's event log with stream_sequence >
// afterSequence, accumulating a running SHA-256 over each record's
// canonical JSON. When includePayloads is false, an EXTERNAL event's
// payload bytes are left out of the bundle and only its payload_ref_id is
// recorded -- the record still carries payload_hash, so the bundle remains
// useful for audit/inspection, but re-importing it against a store that
// doesn't already hold that payload will fail.
func exportTenantFrom(ctx context.Context, store *eventstore.Store, payloads *payload.Store, tenantID int64, pageSize int, afterSequence int64, includePayloads bool) (Bundle, error) {
	hasher := sha256.New()
	bundle := Bundle{Version: bundleVersion, TenantID: tenantID}
	fromSeq := afterSequence
	for {
		page, err := store.LoadTenantStream(ctx, tenantID, fromSeq, pageSize)
		if err != nil {
			return Bundle{}, fmt.Errorf("export: load tenant stream after %d: %w", fromSeq, err)
		}
		if len(page) == 0 {
			break
		}
		for _, evt := range page {
			rec := toExportRecord(evt)
			if evt.PayloadStorage == eventstore.StorageExternal {
				if evt.PayloadRef == nil {
					return Bundle{}, fmt.Errorf("export: event %s is EXTERNAL with no payload_ref", evt.ID)
				}
				if includePayloads {
					blob, err := payloads.GetByID(ctx, *evt.PayloadRef)
					if err != nil {
						return Bundle{}, fmt.Errorf("export: resolve payload for event %s: %w", evt.ID, err)
					}
					rec.ExternalPayload = blob.Payload
				} else {
					rec.PayloadRefID = evt.PayloadRef.String()
				}
			}
			canon, err := canonjson.Marshal(rec)
			if err != nil {
				return Bundle{}, fmt.Errorf("export: canonicalize event %s: %w", evt.ID, err)
			}
			hasher.Write(canon)
			bundle.Records = append(bundle.Records, rec)
			bundle.EventCount++
			fromSeq = evt.StreamSequence
		}
		if len(page) < pageSize {
			break
		}
	}
	bundle.LastStreamSequence = fromSeq
	bundle.ExportHash = hex.EncodeToString(hasher.Sum(nil))
	return bundle, nil
}
