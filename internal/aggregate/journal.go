// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package aggregate

import "github.com/nxentra/ledgerd/internal/eventstore"

const (
	EventJournalCreated         = "journal.created"
	EventJournalUpdated         = "journal.updated"
	EventJournalLinesChunkAdded = "journal.lines_chunk_added"
	EventJournalFinalized       = "journal.finalized"
	EventJournalSaveCompleted   = "journal.save_completed"
	EventJournalPosted          = "journal.posted"
	EventJournalReversed        = "journal.reversed"
	EventJournalDeleted         = "journal.deleted"
	EventJournalLineAnalysisSet = "journal.line_analysis_set"

	AggregateTypeJournalEntry = "journal_entry"
)

// JournalStatus is the workflow state of a journal entry. Workflow
// transitions (e.g. only COMPLETE may POST) are enforced by the command layer,
// not here: the aggregate fold must accept whatever history the log
// contains, including during a rebuild that replays events out of their
// original wall-clock order.
type JournalStatus string

const (
	// JournalStatusIncomplete is a journal entry's status from creation
	// until save_complete succeeds -- named to match the read model and
	// the unbalanced-save-is-rejected scenario, not the "draft" language
	// used elsewhere in the domain.
	JournalStatusIncomplete JournalStatus = "INCOMPLETE"
	JournalStatusComplete   JournalStatus = "COMPLETE"
	JournalStatusPosted     JournalStatus = "POSTED"
	JournalStatusReversed   JournalStatus = "REVERSED"
	JournalStatusDeleted    JournalStatus = "DELETED"
)

type journalLine struct {
	AccountID    string      `json:"account_id"`
	Debit        string      `json:"debit"`  // decimal-as-string
	Credit       string      `json:"credit"` // decimal-as-string
	Memo         string      `json:"memo"`
	AnalysisTags interface{} `json:"analysis_tags"`
}

type journalCreatedPayload struct {
	Date     string `json:"date"`
	Memo     string `json:"memo"`
	Currency string `json:"currency"`
	Kind     string `json:"kind"`
	// ReversesEntryID is set only when Kind is REVERSAL: the public id of
	// the posted entry this one reverses.
	ReversesEntryID string `json:"reverses_entry_id"`
	// Lines is present only when the entry was small enough to stay
	// INLINE; a CHUNKED entry carries its lines across later
	// journal.lines_chunk_added events instead.
	Lines []journalLine `json:"lines"`
}

type journalUpdatedPayload struct {
	Memo  *string       `json:"memo"`
	Lines []journalLine `json:"lines"`
}

type journalLinesChunkPayload struct {
	ChunkIndex  int           `json:"chunk_index"`
	TotalChunks int           `json:"total_chunks"`
	Lines       []journalLine `json:"lines"`
}

type journalFinalizedPayload struct {
	TotalDebit  string `json:"total_debit"`
	TotalCredit string `json:"total_credit"`
	LineCount   int    `json:"line_count"`
	ChunkCount  int    `json:"chunk_count"`
	FinalStatus string `json:"final_status"`
}

type journalSaveCompletedPayload struct {
	EntryNumber string `json:"entry_number"`
}

type journalLineAnalysisSetPayload struct {
	LineIndex    int         `json:"line_index"`
	AnalysisTags interface{} `json:"analysis_tags"`
}

// JournalEntry is the journal entry aggregate's folded state.
type JournalEntry struct {
	ID       string
	Date     string
	Memo     string
	Currency string
	Kind     string
	Status   JournalStatus
	Number   string

	Lines []journalLine

	// Chunked-assembly bookkeeping: set by journal.created when the entry
	// is CHUNKED, filled in by journal.lines_chunk_added, and
	// cross-checked by journal.finalized. A finished entry has
	// ChunksSeen == ChunksExpected and Lines fully populated.
	ChunksExpected int
	ChunksSeen     int

	TotalDebit  string
	TotalCredit string

	// ReversesEntryID is set on a REVERSAL-kind entry by journal.created:
	// the public id of the entry it reverses.
	ReversesEntryID string
	// ReversedByEntryID is set on the original entry by journal.reversed:
	// the public id of the reversal entry that undid it.
	ReversedByEntryID string

	LastEventID       string
	LastEventSequence int64
}

// Apply implements Snapshot.
func (j *JournalEntry) Apply(event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case EventJournalCreated:
		var p journalCreatedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		j.ID = event.AggregateID
		j.Date = p.Date
		j.Memo = p.Memo
		j.Currency = p.Currency
		j.Kind = p.Kind
		j.Status = JournalStatusIncomplete
		j.ReversesEntryID = p.ReversesEntryID
		j.Lines = p.Lines

	case EventJournalUpdated:
		var p journalUpdatedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		if p.Memo != nil {
			j.Memo = *p.Memo
		}
		if p.Lines != nil {
			j.Lines = p.Lines
		}

	case EventJournalLinesChunkAdded:
		var p journalLinesChunkPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		j.ChunksExpected = p.TotalChunks
		j.Lines = append(j.Lines, p.Lines...)
		j.ChunksSeen++

	case EventJournalFinalized:
		var p journalFinalizedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		j.TotalDebit = p.TotalDebit
		j.TotalCredit = p.TotalCredit
		if p.FinalStatus != "" {
			j.Status = JournalStatus(p.FinalStatus)
		}

	case EventJournalSaveCompleted:
		var p journalSaveCompletedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		j.Status = JournalStatusComplete
		j.Number = p.EntryNumber

	case EventJournalPosted:
		j.Status = JournalStatusPosted

	case EventJournalReversed:
		var p struct {
			ReversedByEntryID string `json:"reversed_by_entry_id"`
		}
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		j.Status = JournalStatusReversed
		if p.ReversedByEntryID != "" {
			j.ReversedByEntryID = p.ReversedByEntryID
		}

	case EventJournalDeleted:
		j.Status = JournalStatusDeleted

	case EventJournalLineAnalysisSet:
		var p journalLineAnalysisSetPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		if p.LineIndex >= 0 && p.LineIndex < len(j.Lines) {
			j.Lines[p.LineIndex].AnalysisTags = p.AnalysisTags
		}

	default:
		return nil
	}
	j.LastEventID = event.ID.String()
	j.LastEventSequence = event.AggregateSequence
	return nil
}
