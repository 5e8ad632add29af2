// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package config

import "time"

// Config is the fully resolved application configuration. Every field has a
// koanf tag matching its YAML/env path; see koanf.go for load precedence.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Tenancy    TenancyConfig    `koanf:"tenancy"`
	Payload    PayloadConfig    `koanf:"payload"`
	Projection ProjectionConfig `koanf:"projection"`
	Migration  MigrationConfig  `koanf:"migration"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig controls the HTTP edge.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig describes the "default" shared handle. Dedicated handles are
// resolved at runtime by internal/tenant from the tenant directory and reuse
// these defaults for anything they don't override.
type DatabaseConfig struct {
	Path               string `koanf:"path"`
	MaxMemory          string `koanf:"max_memory"`
	Threads            int    `koanf:"threads"`
	DedicatedHandleDir string `koanf:"dedicated_handle_dir"`
}

// TenancyConfig controls tenant directory behavior (C1-C4).
type TenancyConfig struct {
	DefaultHandle     string        `koanf:"default_handle"`
	HealthCheckMode   string        `koanf:"health_check_mode"` // off, passive, active
	HealthCheckPeriod time.Duration `koanf:"health_check_period"`
}

// PayloadConfig controls the LEPH storage-strategy thresholds (C7/C8).
type PayloadConfig struct {
	InlineMaxBytes    int `koanf:"inline_max_bytes"`
	ExternalMaxBytes  int `koanf:"external_max_bytes"`
	MaxLinesPerChunk  int `koanf:"max_lines_per_chunk"`
}

// ProjectionConfig controls the projection engine (C11).
type ProjectionConfig struct {
	Sync           bool          `koanf:"sync"`
	BatchSize      int           `koanf:"batch_size"`
	LagThreshold   int64         `koanf:"lag_threshold"`
	DrainSchedule  string        `koanf:"drain_schedule"` // cron expression
	OutboxPath     string        `koanf:"outbox_path"`
	OutboxGCPeriod time.Duration `koanf:"outbox_gc_period"`
}

// MigrationConfig controls the migration orchestrator (C14).
type MigrationConfig struct {
	ExportDir              string        `koanf:"export_dir"`
	CircuitBreakerTimeout  time.Duration `koanf:"circuit_breaker_timeout"`
	CircuitBreakerMaxFails uint32        `koanf:"circuit_breaker_max_fails"`
}

// SecurityConfig controls actor-context extraction and policy enforcement.
type SecurityConfig struct {
	JWTSigningKey      string `koanf:"jwt_signing_key"`
	AllowAdminEmergency bool   `koanf:"allow_admin_emergency_writes"`
	PolicyModelPath    string `koanf:"policy_model_path"`
	PolicyCSVPath      string `koanf:"policy_csv_path"`
	RateLimitPerSecond float64 `koanf:"rate_limit_per_second"`
	RateLimitBurst     int     `koanf:"rate_limit_burst"`
}

// LoggingConfig mirrors internal/logging.Config's environment knobs so they
// can also be set via config file.
type LoggingConfig struct {
	Level     string `koanf:"level"`
	Format    string `koanf:"format"`
	Caller    bool   `koanf:"caller"`
	Timestamp bool   `koanf:"timestamp"`
}
