// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in priority order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/ledgerd/config.yaml",
	"/etc/ledgerd/config.yml",
}

// ConfigPathEnvVar overrides the search paths with a single explicit file.
const ConfigPathEnvVar = "CONFIG_PATH"

// LoadWithKoanf layers configuration from defaults, an optional YAML file,
// then environment variables (highest priority), and validates the result.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps the flat environment variable names listed in the
// operational surface to their nested koanf paths. Anything not in this
// table falls through to koanf's default SECTION_FIELD -> section.field
// lowercasing, which still works for straightforward names.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	mappings := map[string]string{
		"projections_sync":             "projection.sync",
		"disable_event_validation":     "_disable_event_validation", // consumed directly, see below
		"tenant_health_check":          "tenancy.health_check_mode",
		"allow_admin_emergency_writes": "security.allow_admin_emergency_writes",
		"projection_lag_threshold":     "projection.lag_threshold",
		"duckdb_path":                  "database.path",
		"http_port":                    "server.port",
		"http_host":                    "server.host",
		"log_level":                    "logging.level",
		"log_format":                   "logging.format",
		"log_caller":                   "logging.caller",
		"jwt_signing_key":              "security.jwt_signing_key",
		"config_path":                  "",
	}

	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	return strings.ReplaceAll(key, "_", ".")
}

// DisableEventValidation reports whether DISABLE_EVENT_VALIDATION is set, per
// the operational surface. It is a raw os.Getenv lookup rather than a koanf
// field because it gates schema validation inside internal/emitter directly
// and must be checkable without threading a *Config through every call.
func DisableEventValidation() bool {
	v, _ := strconv.ParseBool(os.Getenv("DISABLE_EVENT_VALIDATION"))
	return v
}
