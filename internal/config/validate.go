// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package config

import "fmt"

// Validate checks structural invariants that koanf's unmarshal can't enforce.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Tenancy.DefaultHandle == "" {
		return fmt.Errorf("tenancy.default_handle must not be empty")
	}
	switch c.Tenancy.HealthCheckMode {
	case "off", "passive", "active":
	default:
		return fmt.Errorf("tenancy.health_check_mode must be one of off, passive, active, got %q", c.Tenancy.HealthCheckMode)
	}
	if c.Payload.InlineMaxBytes <= 0 {
		return fmt.Errorf("payload.inline_max_bytes must be positive")
	}
	if c.Payload.ExternalMaxBytes <= c.Payload.InlineMaxBytes {
		return fmt.Errorf("payload.external_max_bytes must be greater than payload.inline_max_bytes")
	}
	if c.Payload.MaxLinesPerChunk <= 0 {
		return fmt.Errorf("payload.max_lines_per_chunk must be positive")
	}
	if c.Projection.BatchSize <= 0 {
		return fmt.Errorf("projection.batch_size must be positive")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
