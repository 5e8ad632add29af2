// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package config loads layered configuration (defaults, optional YAML file,
// environment variables) via koanf and validates the result before it
// reaches the rest of the application.
//
//	cfg, err := config.LoadWithKoanf()
//	if err != nil {
//	    logging.Fatal().Err(err).Msg("invalid configuration")
//	}
package config
