// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package database

import (
	"io"
	"log/slog"

	"github.com/nxentra/ledgerd/internal/logging"
)

// closeWithLog closes a resource and logs any error
// Use this for cleanup operations where errors should be acknowledged but not fail the operation
func closeWithLog(closer io.Closer, logger *slog.Logger, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		if logger != nil {
			logger.Error("failed to close resource",
				"type", resourceType,
				"error", err)
		} else {
			// Fallback to logging if logger not available
			logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
		}
	}
}
