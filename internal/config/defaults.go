// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package config

import "time"

// defaultConfig returns sensible defaults. Applied first in LoadWithKoanf,
// then overridden by config file and environment variables in that order.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8080,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:               "/data/ledgerd.duckdb",
			MaxMemory:          "2GB",
			Threads:            0,
			DedicatedHandleDir: "/data/tenants",
		},
		Tenancy: TenancyConfig{
			DefaultHandle:     "default",
			HealthCheckMode:   "passive",
			HealthCheckPeriod: 5 * time.Minute,
		},
		Payload: PayloadConfig{
			InlineMaxBytes:   4 * 1024,
			ExternalMaxBytes: 8 * 1024 * 1024,
			MaxLinesPerChunk: 5000,
		},
		Projection: ProjectionConfig{
			Sync:           false,
			BatchSize:      500,
			LagThreshold:   1000,
			DrainSchedule:  "*/30 * * * * *",
			OutboxPath:     "/data/outbox",
			OutboxGCPeriod: 10 * time.Minute,
		},
		Migration: MigrationConfig{
			ExportDir:              "/data/exports",
			CircuitBreakerTimeout:  30 * time.Second,
			CircuitBreakerMaxFails: 5,
		},
		Security: SecurityConfig{
			JWTSigningKey:       "",
			AllowAdminEmergency: false,
			PolicyModelPath:     "/etc/ledgerd/policy_model.conf",
			PolicyCSVPath:       "/etc/ledgerd/policy.csv",
			RateLimitPerSecond:  50,
			RateLimitBurst:      100,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Caller:    false,
			Timestamp: true,
		},
	}
}
