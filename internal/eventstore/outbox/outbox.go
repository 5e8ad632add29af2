// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package outbox is a crash-safe local staging area for asynchronous
// projection dispatch. When PROJECTIONS_SYNC is off, the emitter enqueues a
// pointer to each newly appended event here before returning to its caller;
// the projection scheduler drains the outbox and only deletes an entry once
// every registered projection has confirmed it applied that event. A
// process crash between append and dispatch loses nothing: the entry is
// still in Badger's write-ahead log on restart.
//
// This mirrors a write-ahead-log-before-dispatch pattern: write the intent
// to durable local storage first, confirm completion second, and only then
// remove the record.
package outbox

import (
	"encoding/binary"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/nxentra/ledgerd/internal/metrics"
)

const (
	pendingPrefix   = "pending:"
	confirmedPrefix = "confirmed:"
)

// Entry is one queued dispatch task: "projection engine, go apply the event
// at this tenant/stream position."
type Entry struct {
	ID             uuid.UUID
	TenantID       int64
	EventID        uuid.UUID
	StreamSequence int64
	CreatedAt      time.Time
	Attempts       int
	LastAttemptAt  time.Time
	LastError      string
}

// Outbox wraps a Badger instance dedicated to pending dispatch entries.
type Outbox struct {
	db *badger.DB
}

// Open opens (or creates) the outbox at dir.
func Open(dir string) (*Outbox, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open outbox at %s: %w", dir, err)
	}
	return &Outbox{db: db}, nil
}

// Close closes the underlying Badger instance.
func (o *Outbox) Close() error {
	return o.db.Close()
}

// Enqueue stages a dispatch entry for an event just appended to the log.
func (o *Outbox) Enqueue(tenantID int64, eventID uuid.UUID, streamSequence int64) error {
	entry := Entry{
		ID:             uuid.New(),
		TenantID:       tenantID,
		EventID:        eventID,
		StreamSequence: streamSequence,
		CreatedAt:      time.Now().UTC(),
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(pendingKey(entry.ID), encodeEntry(entry))
	})
}

// Pending returns up to limit staged entries, ordered by key (which embeds
// creation order via a UUIDv7-independent monotonic counter prefix is not
// guaranteed here, so the scheduler treats ordering as best-effort and
// relies on stream_sequence for correctness, not outbox iteration order).
func (o *Outbox) Pending(limit int) ([]Entry, error) {
	var entries []Entry
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(pendingPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek([]byte(pendingPrefix)); it.ValidForPrefix([]byte(pendingPrefix)); it.Next() {
			if len(entries) >= limit {
				break
			}
			item := it.Item()
			var entry Entry
			err := item.Value(func(val []byte) error {
				decoded, err := decodeEntry(val)
				if err != nil {
					return err
				}
				entry = decoded
				return nil
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pending outbox entries: %w", err)
	}
	metrics.OutboxPending.Set(float64(len(entries)))
	return entries, nil
}

// MarkAttempt records a failed dispatch attempt without removing the entry,
// so the scheduler's next drain cycle retries it.
func (o *Outbox) MarkAttempt(id uuid.UUID, dispatchErr error) error {
	return o.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey(id))
		if err != nil {
			return fmt.Errorf("get outbox entry %s: %w", id, err)
		}
		var entry Entry
		if err := item.Value(func(val []byte) error {
			decoded, err := decodeEntry(val)
			entry = decoded
			return err
		}); err != nil {
			return err
		}
		entry.Attempts++
		entry.LastAttemptAt = time.Now().UTC()
		if dispatchErr != nil {
			entry.LastError = dispatchErr.Error()
		}
		return txn.Set(pendingKey(id), encodeEntry(entry))
	})
}

// Confirm marks an entry dispatched: every registered projection has
// applied the event. The entry moves from pending to confirmed so a
// subsequent GC pass can reclaim the space once it has aged out.
func (o *Outbox) Confirm(id uuid.UUID) error {
	err := o.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(pendingKey(id))
		if err != nil {
			return fmt.Errorf("get outbox entry %s: %w", id, err)
		}
		var entry Entry
		if err := item.Value(func(val []byte) error {
			decoded, err := decodeEntry(val)
			entry = decoded
			return err
		}); err != nil {
			return err
		}
		if err := txn.Delete(pendingKey(id)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry(confirmedKey(id), encodeEntry(entry)).
			WithTTL(7 * 24 * time.Hour))
	})
	if err != nil {
		metrics.OutboxDispatchErrors.Inc()
		return fmt.Errorf("confirm outbox entry %s: %w", id, err)
	}
	metrics.OutboxDispatched.Inc()
	return nil
}

// RunGC runs one Badger value-log garbage collection pass, reclaiming space
// from confirmed entries whose TTL has expired. It is a no-op error
// (badger.ErrNoRewrite) when there's nothing to collect, which this method
// swallows since it's expected on most runs.
func (o *Outbox) RunGC() error {
	err := o.db.RunValueLogGC(0.5)
	if err != nil && err != badger.ErrNoRewrite {
		return fmt.Errorf("run outbox gc: %w", err)
	}
	return nil
}

func pendingKey(id uuid.UUID) []byte   { return append([]byte(pendingPrefix), id[:]...) }
func confirmedKey(id uuid.UUID) []byte { return append([]byte(confirmedPrefix), id[:]...) }

// encodeEntry/decodeEntry use a fixed binary layout rather than JSON: the
// outbox is on the hot path for every async append and never needs to be
// read by anything outside this package.
func encodeEntry(e Entry) []byte {
	buf := make([]byte, 0, 16+8+16+8+8+8+4+2+len(e.LastError))
	buf = append(buf, e.ID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.TenantID))
	buf = append(buf, e.EventID[:]...)
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.StreamSequence))
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.CreatedAt.UnixNano()))
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.LastAttemptAt.UnixNano()))
	buf = binary.BigEndian.AppendUint32(buf, uint32(e.Attempts))
	errBytes := []byte(e.LastError)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(errBytes)))
	buf = append(buf, errBytes...)
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	const fixedLen = 16 + 8 + 16 + 8 + 8 + 8 + 4 + 2
	if len(b) < fixedLen {
		return Entry{}, fmt.Errorf("outbox entry too short: %d bytes", len(b))
	}
	var e Entry
	copy(e.ID[:], b[0:16])
	e.TenantID = int64(binary.BigEndian.Uint64(b[16:24]))
	copy(e.EventID[:], b[24:40])
	e.StreamSequence = int64(binary.BigEndian.Uint64(b[40:48]))
	e.CreatedAt = time.Unix(0, int64(binary.BigEndian.Uint64(b[48:56]))).UTC()
	e.LastAttemptAt = time.Unix(0, int64(binary.BigEndian.Uint64(b[56:64]))).UTC()
	e.Attempts = int(binary.BigEndian.Uint32(b[64:68]))
	errLen := int(binary.BigEndian.Uint16(b[68:70]))
	if len(b) < fixedLen+errLen {
		return Entry{}, fmt.Errorf("outbox entry truncated error string")
	}
	e.LastError = string(b[fixedLen : fixedLen+errLen])
	return e, nil
}
