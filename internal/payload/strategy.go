// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package payload

import "github.com/nxentra/ledgerd/internal/eventstore"

// Thresholds are the size boundaries the emitter uses to choose a storage
// strategy, sourced from config.PayloadConfig.
type Thresholds struct {
	InlineMaxBytes   int
	ExternalMaxBytes int
}

// Decide chooses INLINE or EXTERNAL for a canonical payload of size bytes.
// A payload larger than ExternalMaxBytes is not a storage-strategy decision
// at all -- the caller (internal/command, via internal/payload.Chunker) must
// have already split it into a chunked event family before reaching here.
func Decide(canonSize int, t Thresholds) eventstore.PayloadStorage {
	if canonSize <= t.InlineMaxBytes {
		return eventstore.StorageInline
	}
	return eventstore.StorageExternal
}
