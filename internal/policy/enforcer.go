// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package policy implements the command layer's RBAC precondition check
// (§4.7 "caller has resolved policy preconditions") using Casbin. It
// answers one question -- "may this actor's role perform this action on
// this resource" -- before internal/command emits anything. It does not
// model the domain's workflow rules (those live in internal/command as
// status-transition checks); a policy denial and a workflow denial are
// deliberately different apperrors categories.
package policy

import (
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Config controls where the Enforcer loads its model/policy from and how
// long it caches enforcement decisions.
type Config struct {
	// ModelPath and PolicyPath, if set, override the embedded defaults --
	// an operator can hand-tune policy.csv per deployment without a rebuild.
	ModelPath  string
	PolicyPath string

	CacheTTL time.Duration
}

// DefaultConfig returns the embedded model/policy with a short decision cache.
func DefaultConfig() Config {
	return Config{CacheTTL: time.Minute}
}

// Enforcer wraps a Casbin synced enforcer with a short-lived decision cache,
// so a hot command path (e.g. posting many journal entries) doesn't re-walk
// the RBAC graph on every call.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
	cache    *decisionCache
}

// New builds an Enforcer from cfg, falling back to the embedded model.conf
// and policy.csv when no override paths are set.
func New(cfg Config) (*Enforcer, error) {
	m, err := loadModel(cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}

	var enforcer *casbin.SyncedEnforcer
	if cfg.PolicyPath != "" {
		enforcer, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enforcer, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadEmbeddedPolicy(enforcer, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Enforcer{enforcer: enforcer, cache: newDecisionCache(ttl)}, nil
}

func loadModel(path string) (model.Model, error) {
	if path != "" {
		return model.NewModelFromFile(path)
	}
	return model.NewModelFromString(embeddedModel)
}

// loadEmbeddedPolicy parses policy.csv's "p"/"g" lines by hand, since the
// embedded string isn't a file path a persist.Adapter can open.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) < 3 {
			continue
		}
		ptype, rule := parts[0], parts[1:]
		switch ptype {
		case "p":
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("add policy %v: %w", rule, err)
			}
		case "g":
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("add grouping policy %v: %w", rule, err)
			}
		}
	}
	return nil
}

// Enforce checks whether role may perform action on resource.
func (e *Enforcer) Enforce(role, resource, action string) (bool, error) {
	if allowed, ok := e.cache.get(role, resource, action); ok {
		return allowed, nil
	}
	allowed, err := e.enforcer.Enforce(role, resource, action)
	if err != nil {
		return false, fmt.Errorf("enforce %s/%s/%s: %w", role, resource, action, err)
	}
	e.cache.set(role, resource, action, allowed)
	return allowed, nil
}

// EnforceAny checks whether any of roles may perform action on resource --
// an actor typically carries more than one role (e.g. "accountant" and
// implicitly "viewer" through Casbin's role graph, but an actor's JWT
// claims may also list unrelated roles directly).
func (e *Enforcer) EnforceAny(roles []string, resource, action string) (bool, error) {
	for _, role := range roles {
		allowed, err := e.Enforce(role, resource, action)
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}
