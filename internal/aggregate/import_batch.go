// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package aggregate

import (
	"github.com/nxentra/ledgerd/internal/eventstore"
	"github.com/nxentra/ledgerd/internal/payload"
)

// ImportBatchStatus is the lifecycle of one staged ingestion batch.
type ImportBatchStatus string

const (
	ImportBatchStatusStaging   ImportBatchStatus = "STAGING"
	ImportBatchStatusFinalized ImportBatchStatus = "FINALIZED"
)

type importHeaderPayload struct {
	BatchID     string `json:"batch_id"`
	TotalLines  int    `json:"total_lines"`
	TotalChunks int    `json:"total_chunks"`
	ChunkSize   int    `json:"chunk_size"`
}

type importChunkPayload struct {
	ChunkIndex int           `json:"chunk_index"`
	Lines      []interface{} `json:"lines"`
}

type importFinalizedPayload struct {
	LineCount int `json:"line_count"`
}

// ImportBatch is the import_batch aggregate's folded state (C8 chunked
// ingestion family). StagedLines accumulates in chunk order; a complete
// batch has ChunksSeen == TotalChunks and len(StagedLines) == TotalLines.
type ImportBatch struct {
	ID          string
	Status      ImportBatchStatus
	TotalLines  int
	TotalChunks int
	ChunkSize   int
	ChunksSeen  int
	StagedLines []interface{}

	LastEventID       string
	LastEventSequence int64
}

// Apply implements Snapshot.
func (b *ImportBatch) Apply(event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case payload.EventTypeImportHeader:
		var p importHeaderPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		b.ID = event.AggregateID
		b.TotalLines = p.TotalLines
		b.TotalChunks = p.TotalChunks
		b.ChunkSize = p.ChunkSize
		b.Status = ImportBatchStatusStaging

	case payload.EventTypeImportChunk:
		var p importChunkPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		b.StagedLines = append(b.StagedLines, p.Lines...)
		b.ChunksSeen++

	case payload.EventTypeImportFinalized:
		var p importFinalizedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		b.TotalLines = p.LineCount
		b.Status = ImportBatchStatusFinalized

	default:
		return nil
	}
	b.LastEventID = event.ID.String()
	b.LastEventSequence = event.AggregateSequence
	return nil
}
