// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/emitter"
	"github.com/nxentra/ledgerd/internal/policy"
)

// JournalLineInput is one line of a journal entry. Debit/Credit travel as
// decimal strings end to end, matching the aggregate and read model -- a
// command never touches float64 for money.
type JournalLineInput struct {
	AccountID    string
	Debit        string
	Credit       string
	Memo         string
	AnalysisTags interface{}
}

// CreateJournalEntryInput is the typed input for CreateJournalEntry.
type CreateJournalEntryInput struct {
	Date     string
	Memo     string
	Currency string
	Kind     string // "STANDARD" or "REVERSAL"; callers other than Reverse use STANDARD
	Lines    []JournalLineInput
}

func toJournalLines(in []JournalLineInput) []interface{} {
	out := make([]interface{}, len(in))
	for i, l := range in {
		out[i] = journalLinePayload{
			AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit,
			Memo: l.Memo, AnalysisTags: l.AnalysisTags,
		}
	}
	return out
}

// journalLinePayload mirrors aggregate's unexported journalLine so this
// package can build journal.created/lines_chunk_added payloads without
// reaching into aggregate's internals.
type journalLinePayload struct {
	AccountID    string      `json:"account_id"`
	Debit        string      `json:"debit"`
	Credit       string      `json:"credit"`
	Memo         string      `json:"memo"`
	AnalysisTags interface{} `json:"analysis_tags"`
}

// CreateJournalEntry emits journal.created, either as a single INLINE-sized
// event (most entries) or, when the entry has more lines than
// Payload.MaxLinesPerChunk, as a journal.created header carrying no lines
// followed by N journal.lines_chunk_added events and a journal.finalized
// trailer (spec.md §4.2's chunked family, C8). This sequence is hand-built
// here rather than through internal/payload.Chunker, because that chunker's
// event/aggregate type names and payload shapes are fixed to import batches
// (see DESIGN.md) -- journals need their own three event types, which
// already exist on the aggregate but were never generic enough to share.
func (c *Commander) CreateJournalEntry(ctx context.Context, actor policy.Actor, maxLinesPerChunk int, in CreateJournalEntryInput) Result {
	return c.createJournalEntry(ctx, actor, maxLinesPerChunk, in, "", nil)
}

// createJournalEntry emits journal.created (and, if oversized, the
// lines_chunk_added/finalized trailer). causedByEventID, when non-nil,
// links the header event back to whatever event triggered this creation --
// Reverse passes the original entry's last event here, so the causation
// DAG (spec.md glossary "Causation chain") connects a reversal's new entry
// to the entry it reverses.
func (c *Commander) createJournalEntry(ctx context.Context, actor policy.Actor, maxLinesPerChunk int, in CreateJournalEntryInput, reversesEntryID string, causedByEventID *uuid.UUID) Result {
	ac, err := c.resolve(ctx, actor, "journal_entry", "create")
	if err != nil {
		return fail(err)
	}
	if len(in.Lines) == 0 {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "journal entry must have at least one line"))
	}
	kind := in.Kind
	if kind == "" {
		kind = "STANDARD"
	}

	journalID := uuid.New().String()
	now := time.Now()
	idemp := idempotencyKey("journal.create", struct {
		TenantID int64  `json:"tenant_id"`
		Memo     string `json:"memo"`
		Date     string `json:"date"`
		Lines    int    `json:"line_count"`
	}{ac.entry.TenantID, in.Memo, in.Date, len(in.Lines)})

	if maxLinesPerChunk <= 0 || len(in.Lines) <= maxLinesPerChunk {
		payload := journalCreatedPayload{
			Date: in.Date, Memo: in.Memo, Currency: in.Currency, Kind: kind,
			ReversesEntryID: reversesEntryID, Lines: toJournalLines(in.Lines),
		}
		return c.emitOne(ac, emitter.Request{
			TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalCreated,
			AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
			IdempotencyKey: idemp, Payload: payload, Origin: OriginHuman, OccurredAt: now,
			CausedByEventID: causedByEventID,
		})
	}

	// Oversized: header carries no lines, followed by chunk and finalized
	// events on the same aggregate. Only the header's emit result is
	// returned to the caller; the remaining events must all succeed for the
	// family to be well-formed, matching the chunked-aggregate invariant
	// internal/integrity enforces (every chunk between header and finalized
	// present, none missing).
	header := journalCreatedPayload{
		Date: in.Date, Memo: in.Memo, Currency: in.Currency, Kind: kind,
		ReversesEntryID: reversesEntryID,
	}
	headerResult := c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalCreated,
		AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
		IdempotencyKey: idemp, Payload: header, Origin: OriginHuman, OccurredAt: now,
		CausedByEventID: causedByEventID,
	})
	if !headerResult.Success {
		return headerResult
	}
	// Every subsequent event in the family is caused by the header, per
	// spec.md §4.2 step 2/3 ("caused_by_event = created_event").
	headerEventID := headerResult.Event.ID

	totalChunks := (len(in.Lines) + maxLinesPerChunk - 1) / maxLinesPerChunk
	var totalDebit, totalCredit big.Rat
	for i := 0; i < totalChunks; i++ {
		start := i * maxLinesPerChunk
		end := start + maxLinesPerChunk
		if end > len(in.Lines) {
			end = len(in.Lines)
		}
		chunkLines := in.Lines[start:end]
		for _, l := range chunkLines {
			totalDebit.Add(&totalDebit, parseRat(l.Debit))
			totalCredit.Add(&totalCredit, parseRat(l.Credit))
		}
		chunkPayload := journalLinesChunkPayload{
			ChunkIndex: i, TotalChunks: totalChunks, Lines: toJournalLines(chunkLines),
		}
		r := c.emitOne(ac, emitter.Request{
			TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalLinesChunkAdded,
			AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
			IdempotencyKey: fmt.Sprintf("%s:chunk:%d", idemp, i),
			Payload:        chunkPayload, Origin: OriginHuman, OccurredAt: now,
			CausedByEventID: &headerEventID,
		})
		if !r.Success {
			return r
		}
	}

	trailer := journalFinalizedPayload{
		TotalDebit: totalDebit.FloatString(2), TotalCredit: totalCredit.FloatString(2),
		LineCount: len(in.Lines), ChunkCount: totalChunks, FinalStatus: string(aggregate.JournalStatusIncomplete),
	}
	if r := c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalFinalized,
		AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
		IdempotencyKey: idemp + ":finalized", Payload: trailer, Origin: OriginHuman, OccurredAt: now,
		CausedByEventID: &headerEventID,
	}); !r.Success {
		return r
	}
	return headerResult
}

// journalCreatedPayload, journalLinesChunkPayload and journalFinalizedPayload
// mirror aggregate's unexported payload shapes field-for-field so the wire
// format this package emits decodes identically on replay.
type journalCreatedPayload struct {
	Date            string        `json:"date"`
	Memo            string        `json:"memo"`
	Currency        string        `json:"currency"`
	Kind            string        `json:"kind"`
	ReversesEntryID string        `json:"reverses_entry_id"`
	Lines           []interface{} `json:"lines"`
}

type journalLinesChunkPayload struct {
	ChunkIndex  int           `json:"chunk_index"`
	TotalChunks int           `json:"total_chunks"`
	Lines       []interface{} `json:"lines"`
}

type journalFinalizedPayload struct {
	TotalDebit  string `json:"total_debit"`
	TotalCredit string `json:"total_credit"`
	LineCount   int    `json:"line_count"`
	ChunkCount  int    `json:"chunk_count"`
	FinalStatus string `json:"final_status"`
}

func parseRat(s string) *big.Rat {
	r := new(big.Rat)
	if s == "" {
		return r
	}
	r.SetString(s)
	return r
}

// UpdateJournalEntryInput is the typed input for UpdateJournalEntry. Only
// INCOMPLETE entries may be updated -- enforced here, a workflow rule, not
// on the read model.
type UpdateJournalEntryInput struct {
	JournalID string
	Memo      *string
	Lines     []JournalLineInput
}

func (c *Commander) UpdateJournalEntry(ctx context.Context, actor policy.Actor, in UpdateJournalEntryInput) Result {
	ac, err := c.resolve(ctx, actor, "journal_entry", "update")
	if err != nil {
		return fail(err)
	}
	j, err := c.loadJournal(ac, in.JournalID)
	if err != nil {
		return fail(err)
	}
	if j.Status != aggregate.JournalStatusIncomplete {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "only an INCOMPLETE journal entry may be updated"))
	}

	var lines []interface{}
	if in.Lines != nil {
		lines = toJournalLines(in.Lines)
	}
	payload := struct {
		Memo  *string       `json:"memo"`
		Lines []interface{} `json:"lines"`
	}{in.Memo, lines}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalUpdated,
		AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: in.JournalID,
		IdempotencyKey: idempotencyKey("journal.update", struct {
			TenantID  int64  `json:"tenant_id"`
			JournalID string `json:"journal_id"`
			Seq       int64  `json:"next_seq"`
		}{ac.entry.TenantID, in.JournalID, j.LastEventSequence + 1}),
		Payload: payload, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// SaveComplete validates the entry is balanced (sum of debits == sum of
// credits, per spec.md's "unbalanced save is rejected" scenario), allocates
// its entry number, and emits journal.save_completed.
func (c *Commander) SaveComplete(ctx context.Context, actor policy.Actor, journalID string) Result {
	ac, err := c.resolve(ctx, actor, "journal_entry", "save_complete")
	if err != nil {
		return fail(err)
	}
	j, err := c.loadJournal(ac, journalID)
	if err != nil {
		return fail(err)
	}
	if j.Status != aggregate.JournalStatusIncomplete {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "only an INCOMPLETE journal entry may be saved complete"))
	}

	var debit, credit big.Rat
	for _, l := range j.Lines {
		debit.Add(&debit, parseRat(l.Debit))
		credit.Add(&credit, parseRat(l.Credit))
	}
	if debit.Cmp(&credit) != 0 {
		return fail(apperrors.ErrUnbalancedEntry)
	}

	alloc, err := c.allocator(ac.entry)
	if err != nil {
		return fail(err)
	}
	entryNumber, err := alloc.Next(ac.ctx, ac.entry.TenantID, "journal_entry", "JE-%06d")
	if err != nil {
		return fail(err)
	}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalSaveCompleted,
		AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
		IdempotencyKey: idempotencyKey("journal.save_complete", struct {
			TenantID  int64  `json:"tenant_id"`
			JournalID string `json:"journal_id"`
		}{ac.entry.TenantID, journalID}),
		Payload: struct {
			EntryNumber string `json:"entry_number"`
		}{entryNumber},
		Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// Post moves a COMPLETE journal entry to POSTED, the transition that makes
// its lines visible to BalancesProjection.
func (c *Commander) Post(ctx context.Context, actor policy.Actor, journalID string) Result {
	ac, err := c.resolve(ctx, actor, "journal_entry", "post")
	if err != nil {
		return fail(err)
	}
	j, err := c.loadJournal(ac, journalID)
	if err != nil {
		return fail(err)
	}
	if j.Status != aggregate.JournalStatusComplete {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "only a COMPLETE journal entry may be posted"))
	}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalPosted,
		AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
		IdempotencyKey: idempotencyKey("journal.post", struct {
			TenantID  int64  `json:"tenant_id"`
			JournalID string `json:"journal_id"`
		}{ac.entry.TenantID, journalID}),
		Payload: map[string]interface{}{}, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// Reverse creates a new REVERSAL-kind entry with every line's debit and
// credit swapped, completes and posts it, then emits journal.reversed on
// the original entry linking the two (spec.md scenario 2). Only a POSTED
// entry may be reversed.
func (c *Commander) Reverse(ctx context.Context, actor policy.Actor, maxLinesPerChunk int, journalID string) Result {
	ac, err := c.resolve(ctx, actor, "journal_entry", "reverse")
	if err != nil {
		return fail(err)
	}
	j, err := c.loadJournal(ac, journalID)
	if err != nil {
		return fail(err)
	}
	if j.Status != aggregate.JournalStatusPosted {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "only a POSTED journal entry may be reversed"))
	}

	swapped := make([]JournalLineInput, len(j.Lines))
	for i, l := range j.Lines {
		swapped[i] = JournalLineInput{AccountID: l.AccountID, Debit: l.Credit, Credit: l.Debit, Memo: l.Memo, AnalysisTags: l.AnalysisTags}
	}

	// The reversal's header event is caused by the original entry's last
	// event -- the one that made it eligible for reversal in the first
	// place -- so the causation DAG connects the two aggregates.
	var originalLastEventID *uuid.UUID
	if j.LastEventID != "" {
		if parsed, err := uuid.Parse(j.LastEventID); err == nil {
			originalLastEventID = &parsed
		}
	}

	createResult := c.createJournalEntry(ctx, actor, maxLinesPerChunk, CreateJournalEntryInput{
		Date: j.Date, Memo: "Reversal of " + j.Number, Currency: j.Currency, Kind: "REVERSAL", Lines: swapped,
	}, journalID, originalLastEventID)
	if !createResult.Success {
		return createResult
	}
	reversalID := createResult.Event.AggregateID

	if r := c.SaveComplete(ctx, actor, reversalID); !r.Success {
		return r
	}
	if r := c.Post(ctx, actor, reversalID); !r.Success {
		return r
	}

	// The marker event on the original entry is in turn caused by the
	// reversal entry's own creation completing.
	reversalEventID := createResult.Event.ID
	finalResult := c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalReversed,
		AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
		IdempotencyKey: idempotencyKey("journal.reverse", struct {
			TenantID  int64  `json:"tenant_id"`
			JournalID string `json:"journal_id"`
		}{ac.entry.TenantID, journalID}),
		Payload: struct {
			ReversedByEntryID string `json:"reversed_by_entry_id"`
		}{reversalID},
		Origin: OriginHuman, OccurredAt: time.Now(),
		CausedByEventID: &reversalEventID,
	})
	if !finalResult.Success {
		return finalResult
	}
	// Report the reversal entry's own event, not the marker event on the
	// original, since that's the new entry callers actually want to look at.
	return createResult
}

// Delete emits journal.deleted. Workflow rule: a POSTED entry may not be
// deleted, only reversed.
func (c *Commander) Delete(ctx context.Context, actor policy.Actor, journalID string) Result {
	ac, err := c.resolve(ctx, actor, "journal_entry", "delete")
	if err != nil {
		return fail(err)
	}
	j, err := c.loadJournal(ac, journalID)
	if err != nil {
		return fail(err)
	}
	if j.Status == aggregate.JournalStatusPosted {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "a POSTED journal entry must be reversed, not deleted"))
	}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalDeleted,
		AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
		IdempotencyKey: idempotencyKey("journal.delete", struct {
			TenantID  int64  `json:"tenant_id"`
			JournalID string `json:"journal_id"`
		}{ac.entry.TenantID, journalID}),
		Payload: map[string]interface{}{}, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// SetLineAnalysis attaches dimension/analysis tags to one line of an entry.
func (c *Commander) SetLineAnalysis(ctx context.Context, actor policy.Actor, journalID string, lineIndex int, tags interface{}) Result {
	ac, err := c.resolve(ctx, actor, "journal_entry", "set_line_analysis")
	if err != nil {
		return fail(err)
	}
	j, err := c.loadJournal(ac, journalID)
	if err != nil {
		return fail(err)
	}
	if lineIndex < 0 || lineIndex >= len(j.Lines) {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "line index out of range"))
	}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventJournalLineAnalysisSet,
		AggregateType: aggregate.AggregateTypeJournalEntry, AggregateID: journalID,
		IdempotencyKey: idempotencyKey("journal.set_line_analysis", struct {
			TenantID  int64  `json:"tenant_id"`
			JournalID string `json:"journal_id"`
			LineIndex int    `json:"line_index"`
			Seq       int64  `json:"next_seq"`
		}{ac.entry.TenantID, journalID, lineIndex, j.LastEventSequence + 1}),
		Payload: struct {
			LineIndex    int         `json:"line_index"`
			AnalysisTags interface{} `json:"analysis_tags"`
		}{lineIndex, tags},
		Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// loadJournal loads and folds the journal entry aggregate for ac's tenant,
// failing if the entry doesn't exist (every journal command operates on an
// already-created entry).
func (c *Commander) loadJournal(ac actorContext, journalID string) (*aggregate.JournalEntry, error) {
	loader, err := c.loader(ac.entry)
	if err != nil {
		return nil, err
	}
	var j aggregate.JournalEntry
	found, err := loader.Load(ac.ctx, ac.entry.TenantID, aggregate.AggregateTypeJournalEntry, journalID, &j)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.New(apperrors.CategoryInvariantViolation, "journal entry not found")
	}
	return &j, nil
}
