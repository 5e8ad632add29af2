// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package query provides SQL query building utilities for the database package.
// It reduces code duplication and provides type-safe, parameterized query
// construction for the row-filter enforcer and the read-model stores.
package query

import (
	"fmt"
	"strings"
)

// WhereBuilder constructs SQL WHERE clauses with parameterized arguments.
// Every call site that reads or writes a tenant-owned table starts from a
// WhereBuilder seeded with the tenant predicate (see tenant.RowFilter), so
// there is exactly one place building a row-scoped query can go wrong.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddEquals("tenant_id", tenantID)
//	wb.AddIn("status", []string{"ACTIVE", "MIGRATING"})
//	whereClause, args := wb.Build()
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{}
}

// AddClause adds a raw WHERE clause fragment with its arguments.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddEquals adds a simple "column = ?" clause. A nil value is skipped.
func (wb *WhereBuilder) AddEquals(column string, value interface{}) *WhereBuilder {
	if value == nil {
		return wb
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s = ?", column))
	wb.args = append(wb.args, value)
	return wb
}

// AddIn adds a "column IN (?, ?, ...)" clause. An empty slice is skipped.
func (wb *WhereBuilder) AddIn(column string, values []string) *WhereBuilder {
	if len(values) == 0 {
		return wb
	}
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		wb.args = append(wb.args, v)
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")))
	return wb
}

// AddGreaterThan adds a "column > ?" clause. A nil value is skipped.
func (wb *WhereBuilder) AddGreaterThan(column string, value interface{}) *WhereBuilder {
	if value == nil {
		return wb
	}
	wb.clauses = append(wb.clauses, fmt.Sprintf("%s > ?", column))
	wb.args = append(wb.args, value)
	return wb
}

// Build constructs the final WHERE clause and returns it with arguments.
// Clauses are joined with AND. Returns ("1=1", nil) if no clauses were added
// -- this is deliberate: an un-scoped WhereBuilder must still produce valid
// SQL, but every tenant-owned call site is expected to have called AddEquals
// for the tenant column before Build is reached.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", nil
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// BuildWithPrefix returns the WHERE clause prefixed with "WHERE ".
func (wb *WhereBuilder) BuildWithPrefix() (string, []interface{}) {
	clause, args := wb.Build()
	return "WHERE " + clause, args
}

// Count returns the number of clauses added to the builder.
func (wb *WhereBuilder) Count() int {
	return len(wb.clauses)
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
