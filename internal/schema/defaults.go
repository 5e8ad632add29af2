// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package schema

import (
	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/payload"
)

// RegisterDefaults registers schemas for the chunked import event family
// (C8) and for every event type the command layer (C13) emits. Event types
// outside this set pass through unchecked.
func RegisterDefaults(r *Registry) error {
	if err := registerCommandDefaults(r); err != nil {
		return err
	}
	if err := r.Register(Definition{
		EventType: payload.EventTypeImportHeader,
		Fields: []Field{
			{Name: "batch_id", Kind: KindString, Required: true},
			{Name: "total_lines", Kind: KindNumber, Required: true},
			{Name: "total_chunks", Kind: KindNumber, Required: true},
			{Name: "chunk_size", Kind: KindNumber, Required: true},
		},
		ClosedSet:      true,
		CELExpressions: []string{"payload.total_chunks > 0.0", "payload.total_lines > 0.0"},
	}); err != nil {
		return err
	}

	if err := r.Register(Definition{
		EventType: payload.EventTypeImportChunk,
		Fields: []Field{
			{Name: "batch_id", Kind: KindString, Required: true},
			{Name: "chunk_index", Kind: KindNumber, Required: true},
			{Name: "lines", Kind: KindArray, Required: true},
		},
		ClosedSet:      true,
		CELExpressions: []string{"payload.chunk_index >= 0.0", "size(payload.lines) > 0"},
	}); err != nil {
		return err
	}

	return r.Register(Definition{
		EventType: payload.EventTypeImportFinalized,
		Fields: []Field{
			{Name: "batch_id", Kind: KindString, Required: true},
			{Name: "line_count", Kind: KindNumber, Required: true},
		},
		ClosedSet:      true,
		CELExpressions: []string{"payload.line_count > 0.0"},
	})
}

// registerCommandDefaults covers account.*, journal.*, fiscal_period.*,
// dimension.*/crosswalk.* -- every non-import event type internal/command
// emits. Fields that are only ever present on some variants of an event
// (e.g. journal.created's "lines", empty on a chunked header) are left
// optional rather than required, and these definitions are not ClosedSet:
// a command's payload struct is the single source of truth for its shape,
// this registry only catches the field mistakes worth failing fast on.
func registerCommandDefaults(r *Registry) error {
	defs := []Definition{
		{
			EventType: aggregate.EventAccountCreated,
			Fields: []Field{
				{Name: "code", Kind: KindString, Required: true},
				{Name: "name", Kind: KindString, Required: true},
				{Name: "account_type", Kind: KindString, Required: true},
				{Name: "normal_balance", Kind: KindString, Required: true},
			},
			CELExpressions: []string{
				`payload.normal_balance == "DEBIT" || payload.normal_balance == "CREDIT"`,
			},
		},
		{EventType: aggregate.EventAccountUpdated},
		{EventType: aggregate.EventAccountDeleted},

		{
			EventType: aggregate.EventJournalCreated,
			Fields: []Field{
				{Name: "date", Kind: KindString, Required: true},
				{Name: "currency", Kind: KindString, Required: true},
				{Name: "kind", Kind: KindString, Required: true},
			},
		},
		{EventType: aggregate.EventJournalUpdated},
		{
			EventType: aggregate.EventJournalLinesChunkAdded,
			Fields: []Field{
				{Name: "chunk_index", Kind: KindNumber, Required: true},
				{Name: "total_chunks", Kind: KindNumber, Required: true},
				{Name: "lines", Kind: KindArray, Required: true},
			},
			CELExpressions: []string{"payload.chunk_index >= 0.0", "size(payload.lines) > 0"},
		},
		{
			EventType: aggregate.EventJournalFinalized,
			Fields: []Field{
				{Name: "total_debit", Kind: KindString, Required: true},
				{Name: "total_credit", Kind: KindString, Required: true},
				{Name: "line_count", Kind: KindNumber, Required: true},
				{Name: "chunk_count", Kind: KindNumber, Required: true},
			},
		},
		{
			EventType: aggregate.EventJournalSaveCompleted,
			Fields: []Field{
				{Name: "entry_number", Kind: KindString, Required: true},
			},
		},
		{EventType: aggregate.EventJournalPosted},
		{
			EventType: aggregate.EventJournalReversed,
			Fields: []Field{
				{Name: "reversed_by_entry_id", Kind: KindString, Required: true},
			},
		},
		{EventType: aggregate.EventJournalDeleted},
		{
			EventType: aggregate.EventJournalLineAnalysisSet,
			Fields: []Field{
				{Name: "line_index", Kind: KindNumber, Required: true},
			},
		},

		{
			EventType: aggregate.EventFiscalPeriodRangeSet,
			Fields: []Field{
				{Name: "start_date", Kind: KindString, Required: true},
				{Name: "end_date", Kind: KindString, Required: true},
			},
		},
		{EventType: aggregate.EventFiscalPeriodOpened},
		{EventType: aggregate.EventFiscalPeriodClosed},

		{
			EventType: aggregate.EventDimensionTypeCreated,
			Fields: []Field{
				{Name: "code", Kind: KindString, Required: true},
			},
		},
		{
			EventType: aggregate.EventDimensionValueCreated,
			Fields: []Field{
				{Name: "dimension_type_id", Kind: KindString, Required: true},
				{Name: "code", Kind: KindString, Required: true},
			},
		},
		{EventType: aggregate.EventDimensionValueRetired},

		{
			EventType: aggregate.EventCrosswalkMapped,
			Fields: []Field{
				{Name: "external_source", Kind: KindString, Required: true},
				{Name: "external_id", Kind: KindString, Required: true},
			},
		},
	}

	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}
