// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	require.NoError(t, defaultConfig().Validate())
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := defaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsExternalBelowInline(t *testing.T) {
	cfg := defaultConfig()
	cfg.Payload.ExternalMaxBytes = cfg.Payload.InlineMaxBytes
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownHealthCheckMode(t *testing.T) {
	cfg := defaultConfig()
	cfg.Tenancy.HealthCheckMode = "sometimes"
	assert.Error(t, cfg.Validate())
}

func TestLoadWithKoanf_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("PROJECTIONS_SYNC", "true")

	cfg, err := LoadWithKoanf()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Projection.Sync)
}

func TestDisableEventValidation(t *testing.T) {
	t.Setenv("DISABLE_EVENT_VALIDATION", "true")
	assert.True(t, DisableEventValidation())
}
