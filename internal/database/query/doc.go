// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package query provides SQL query building utilities for the database package.
//
// This package reduces code duplication and provides type-safe query construction
// for parameterized SQL WHERE clauses. It ensures consistent parameter handling
// and prevents SQL injection vulnerabilities.
//
// # Overview
//
// The WhereBuilder is the primary component, providing a fluent interface for
// constructing WHERE clauses with properly parameterized queries:
//
//	wb := query.NewWhereBuilder()
//	wb.AddEquals("tenant_id", tenantID)
//	wb.AddIn("status", []string{"ACTIVE", "MIGRATING"})
//	whereClause, args := wb.Build()
//	// Result: "tenant_id = ? AND status IN (?, ?)"
//	// Args: [tenantID, "ACTIVE", "MIGRATING"]
//
// # Usage Example
//
// The row-filter enforcer (C4) seeds every tenant-scoped query from a
// WhereBuilder so that the tenant predicate can never be forgotten:
//
//	func (f *RowFilter) ScopedAccounts(ctx context.Context, entry tenant.Entry) (string, []interface{}) {
//	    wb := query.NewWhereBuilder()
//	    wb.AddEquals("tenant_id", entry.TenantID)
//	    wb.AddIn("account_type", []string{"ASSET", "LIABILITY"})
//
//	    whereClause, args := wb.Build()
//
//	    sql := fmt.Sprintf(`
//	        SELECT * FROM accounts
//	        WHERE %s
//	        ORDER BY account_number
//	    `, whereClause)
//
//	    return sql, args
//	}
//
// Adding custom clauses:
//
//	wb := query.NewWhereBuilder()
//	wb.AddClause("posted_at >= ?", periodStart)
//	wb.AddClause("status = ?", "POSTED")
//
// # Available Filter Methods
//
// The WhereBuilder provides methods for common filter types:
//
//   - AddEquals: Filters by an exact column value (skipped when the value is nil)
//   - AddIn: Filters by a column matching any of a list of values
//   - AddClause: Adds a custom WHERE clause fragment with its own parameters
//
// # SQL Injection Prevention
//
// All methods use parameterized queries with ? placeholders:
//
//	// Safe - parameters are properly escaped by the database driver
//	wb.AddIn("status", statuses)  // Generates: "status IN (?, ?)"
//
//	// The generated SQL is safe regardless of input content
//	// Never concatenate user input directly into SQL strings
//
// # Thread Safety
//
// WhereBuilder instances are not thread-safe. Create a new instance per query
// or protect concurrent access with appropriate synchronization.
//
// # Performance
//
//   - Zero allocations for empty builders (returns "1=1")
//   - Efficient string building using slices
//   - No reflection or dynamic SQL parsing
//
// # See Also
//
//   - internal/tenant: RowFilter (C4), the primary consumer of this builder
//   - internal/database: the handle this builder's queries run against
package query
