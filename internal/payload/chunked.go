// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package payload

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Chunked event type names. All three share one aggregate (aggregate_type
// "import_batch", aggregate_id = the batch's public id), so the aggregate
// loader can fold them in order and the integrity verifier can cross-check
// that every chunk between header and finalized is present.
const (
	EventTypeImportHeader    = "import_batch.header"
	EventTypeImportChunk     = "import_batch.chunk"
	EventTypeImportFinalized = "import_batch.finalized"

	AggregateTypeImportBatch = "import_batch"
)

// ChunkHeaderPayload is the header event's payload.
type ChunkHeaderPayload struct {
	BatchID     uuid.UUID `json:"batch_id"`
	TotalLines  int       `json:"total_lines"`
	TotalChunks int       `json:"total_chunks"`
	ChunkSize   int       `json:"chunk_size"`
}

// ChunkPayload is one chunk event's payload.
type ChunkPayload struct {
	BatchID    uuid.UUID     `json:"batch_id"`
	ChunkIndex int           `json:"chunk_index"`
	Lines      []interface{} `json:"lines"`
}

// ChunkFinalizedPayload is the trailer event's payload.
type ChunkFinalizedPayload struct {
	BatchID   uuid.UUID `json:"batch_id"`
	LineCount int       `json:"line_count"`
}

// Emission is one event the chunked family needs emitted. It carries a raw
// payload value, not bytes: internal/emitter.Emit is still the one place
// that canonicalizes, hashes, and picks INLINE vs EXTERNAL storage (C9), so
// a chunk event goes through exactly the same path a hand-built command
// event would.
type Emission struct {
	EventType      string
	AggregateType  string
	AggregateID    string
	IdempotencyKey string
	Payload        interface{}
	Origin         string
	OccurredAt     time.Time
}

// Chunker plans a line-oriented import into a header/chunk.../finalized
// event family, splitting at maxLinesPerChunk boundaries (C8).
type Chunker struct {
	maxLinesPerChunk int
}

// NewChunker builds a Chunker from the configured MAX_LINES_PER_CHUNK.
func NewChunker(maxLinesPerChunk int) *Chunker {
	return &Chunker{maxLinesPerChunk: maxLinesPerChunk}
}

// Plan returns the ordered Emissions for one import batch: one header, N
// chunks, one finalized trailer, all sharing batchID as their aggregate id.
func (c *Chunker) Plan(batchID uuid.UUID, lines []interface{}, origin string, occurredAt time.Time) ([]Emission, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("chunked import batch %s has no lines", batchID)
	}

	totalChunks := (len(lines) + c.maxLinesPerChunk - 1) / c.maxLinesPerChunk
	emissions := make([]Emission, 0, totalChunks+2)

	emissions = append(emissions, Emission{
		EventType: EventTypeImportHeader, AggregateType: AggregateTypeImportBatch,
		AggregateID: batchID.String(), IdempotencyKey: batchID.String() + ":header",
		Payload: ChunkHeaderPayload{
			BatchID: batchID, TotalLines: len(lines), TotalChunks: totalChunks, ChunkSize: c.maxLinesPerChunk,
		},
		Origin: origin, OccurredAt: occurredAt,
	})

	for i := 0; i < totalChunks; i++ {
		start := i * c.maxLinesPerChunk
		end := start + c.maxLinesPerChunk
		if end > len(lines) {
			end = len(lines)
		}
		emissions = append(emissions, Emission{
			EventType: EventTypeImportChunk, AggregateType: AggregateTypeImportBatch,
			AggregateID: batchID.String(), IdempotencyKey: fmt.Sprintf("%s:chunk:%d", batchID, i),
			Payload: ChunkPayload{BatchID: batchID, ChunkIndex: i, Lines: lines[start:end]},
			Origin:  origin, OccurredAt: occurredAt,
		})
	}

	emissions = append(emissions, Emission{
		EventType: EventTypeImportFinalized, AggregateType: AggregateTypeImportBatch,
		AggregateID: batchID.String(), IdempotencyKey: batchID.String() + ":finalized",
		Payload: ChunkFinalizedPayload{BatchID: batchID, LineCount: len(lines)},
		Origin:  origin, OccurredAt: occurredAt,
	})

	return emissions, nil
}
