// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package schema validates event payloads before they reach the event
// store: field presence, primitive type, a closed field set, and optional
// CEL expressions for checks that span more than one field (e.g. a chunk
// index must stay below its batch's total chunk count). DISABLE_EVENT_VALIDATION
// lets an operator bypass this for a known-bad backfill; internal/emitter is
// what reads that flag, not this package.
package schema

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/nxentra/ledgerd/internal/apperrors"
)

// FieldKind is the primitive JSON type a field must decode to.
type FieldKind int

const (
	KindString FieldKind = iota
	KindNumber
	KindBool
	KindArray
	KindObject
)

// Field describes one expected payload field.
type Field struct {
	Name     string
	Kind     FieldKind
	Required bool
}

// Definition is the schema for one event type.
type Definition struct {
	EventType string
	Fields    []Field
	// ClosedSet rejects any payload key not named in Fields.
	ClosedSet bool
	// CELExpressions are additional boolean expressions evaluated against a
	// `payload` map(string, dyn) variable; all must evaluate true.
	CELExpressions []string
}

// Registry holds compiled schema definitions, keyed by event type.
type Registry struct {
	definitions map[string]Definition
	programs    map[string][]cel.Program
	env         *cel.Env
}

// NewRegistry builds an empty registry with its own CEL environment.
func NewRegistry() (*Registry, error) {
	env, err := cel.NewEnv(cel.Variable("payload", cel.MapType(cel.StringType, cel.DynType)))
	if err != nil {
		return nil, fmt.Errorf("build CEL environment: %w", err)
	}
	return &Registry{
		definitions: make(map[string]Definition),
		programs:    make(map[string][]cel.Program),
		env:         env,
	}, nil
}

// Register compiles and stores a definition. Returns an error if any CEL
// expression fails to parse or type-check.
func (r *Registry) Register(def Definition) error {
	programs := make([]cel.Program, 0, len(def.CELExpressions))
	for _, expr := range def.CELExpressions {
		ast, issues := r.env.Compile(expr)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("compile CEL expression %q for %s: %w", expr, def.EventType, issues.Err())
		}
		prg, err := r.env.Program(ast)
		if err != nil {
			return fmt.Errorf("build CEL program %q for %s: %w", expr, def.EventType, err)
		}
		programs = append(programs, prg)
	}
	r.definitions[def.EventType] = def
	r.programs[def.EventType] = programs
	return nil
}

// Validate checks payload against the definition registered for eventType.
// An event type with no registered definition passes unchecked -- the
// registry only constrains event types that opted in.
func (r *Registry) Validate(eventType string, payload map[string]interface{}) error {
	def, ok := r.definitions[eventType]
	if !ok {
		return nil
	}

	known := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		known[f.Name] = true
		v, present := payload[f.Name]
		if !present {
			if f.Required {
				return apperrors.New(apperrors.CategoryInvariantViolation,
					fmt.Sprintf("%s: missing required field %q", eventType, f.Name))
			}
			continue
		}
		if !kindMatches(f.Kind, v) {
			return apperrors.New(apperrors.CategoryInvariantViolation,
				fmt.Sprintf("%s: field %q has wrong type", eventType, f.Name))
		}
	}

	if def.ClosedSet {
		for key := range payload {
			if !known[key] {
				return apperrors.New(apperrors.CategoryInvariantViolation,
					fmt.Sprintf("%s: unexpected field %q", eventType, key))
			}
		}
	}

	for i, prg := range r.programs[eventType] {
		out, _, err := prg.Eval(map[string]interface{}{"payload": payload})
		if err != nil {
			return apperrors.Wrap(apperrors.CategoryInvariantViolation,
				fmt.Sprintf("%s: evaluate cross-field check %d", eventType, i), err)
		}
		ok, isBool := out.Value().(bool)
		if !isBool || !ok {
			return apperrors.New(apperrors.CategoryInvariantViolation,
				fmt.Sprintf("%s: cross-field check failed: %s", eventType, def.CELExpressions[i]))
		}
	}

	return nil
}

func kindMatches(kind FieldKind, v interface{}) bool {
	switch kind {
	case KindString:
		_, ok := v.(string)
		return ok
	case KindNumber:
		switch v.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindArray:
		_, ok := v.([]interface{})
		return ok
	case KindObject:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return false
	}
}
