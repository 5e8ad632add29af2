// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package payload implements the LEPH (Local-External-Payload-Hashed)
// storage policy (C7) and the chunked event family for import batches that
// exceed a single event's practical payload size (C8).
package payload

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/canonjson"
	"github.com/nxentra/ledgerd/internal/database"
	"github.com/nxentra/ledgerd/internal/metrics"
)

// Blob is a row of payload_blobs: an external payload, deduplicated by the
// SHA-256 of its canonical JSON encoding.
type Blob struct {
	ID          uuid.UUID
	ContentHash string
	Payload     []byte
	SizeBytes   int64
}

// Store wraps payload_blobs on one database handle.
type Store struct {
	db *database.DB
}

// New wraps a handle as a payload blob store.
func New(db *database.DB) *Store {
	return &Store{db: db}
}

// Put canonicalizes v, computes its content hash, and stores it if no blob
// with that hash already exists. Returns the (possibly pre-existing) blob
// id and hash, and whether this call deduplicated against an existing row.
func (s *Store) Put(ctx context.Context, v interface{}) (id uuid.UUID, hash string, deduped bool, err error) {
	canon, err := canonjson.Marshal(v)
	if err != nil {
		return uuid.UUID{}, "", false, fmt.Errorf("canonicalize payload: %w", err)
	}
	hash = canonjson.HashBytes(canon)

	newID := uuid.New()
	row := s.db.Conn().QueryRowContext(ctx, `
		INSERT INTO payload_blobs (id, content_hash, payload, size_bytes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (content_hash) DO NOTHING
		RETURNING id`, newID, hash, string(canon), int64(len(canon)))

	var returnedID uuid.UUID
	err = row.Scan(&returnedID)
	if errors.Is(err, sql.ErrNoRows) {
		existing, lookupErr := s.GetByHash(ctx, hash)
		if lookupErr != nil {
			return uuid.UUID{}, "", false, fmt.Errorf("lookup deduped blob %s: %w", hash, lookupErr)
		}
		metrics.PayloadBlobsDeduped.Inc()
		return existing.ID, hash, true, nil
	}
	if err != nil {
		return uuid.UUID{}, "", false, fmt.Errorf("insert payload blob: %w", err)
	}
	metrics.PayloadBlobsStored.Inc()
	return returnedID, hash, false, nil
}

// GetByHash fetches a blob by content hash.
func (s *Store) GetByHash(ctx context.Context, hash string) (Blob, error) {
	var b Blob
	var payload string
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, content_hash, payload, size_bytes FROM payload_blobs WHERE content_hash = ?`,
		hash).Scan(&b.ID, &b.ContentHash, &payload, &b.SizeBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, apperrors.ErrPayloadMissing
	}
	if err != nil {
		return Blob{}, fmt.Errorf("get payload blob %s: %w", hash, err)
	}
	b.Payload = []byte(payload)
	return b, nil
}

// GetByID fetches a blob by its id, as stored on an event's payload_ref.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (Blob, error) {
	var b Blob
	var payload string
	err := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, content_hash, payload, size_bytes FROM payload_blobs WHERE id = ?`,
		id).Scan(&b.ID, &b.ContentHash, &payload, &b.SizeBytes)
	if errors.Is(err, sql.ErrNoRows) {
		return Blob{}, apperrors.ErrPayloadMissing
	}
	if err != nil {
		return Blob{}, fmt.Errorf("get payload blob %s: %w", id, err)
	}
	b.Payload = []byte(payload)
	return b, nil
}
