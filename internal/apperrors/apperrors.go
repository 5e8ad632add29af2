// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

// Package apperrors defines the error taxonomy shared by every layer, so a
// caller at the HTTP edge or the CLI can decide how to respond (retry, 409,
// 403, 503, fail hard) without parsing error strings.
package apperrors

import (
	"errors"
	"fmt"
)

// Category classifies an error into one of the response-shaping buckets.
type Category int

const (
	// CategoryUnknown is the zero value; Categorize falls back to it.
	CategoryUnknown Category = iota
	// CategoryInvariantViolation means the caller asked for something the
	// domain model forbids (e.g. posting an unbalanced entry).
	CategoryInvariantViolation
	// CategoryIdempotencyReplay means an identical command was already
	// applied; the caller should treat this as a no-op success.
	CategoryIdempotencyReplay
	// CategoryIntegrityViolation means the event log itself is inconsistent
	// (hash mismatch, missing payload, sequence gap). Always a hard fail.
	CategoryIntegrityViolation
	// CategoryTransient means a retry with the same input may succeed
	// (connection reset, aggregate-sequence collision exhausted retries).
	CategoryTransient
	// CategoryAuthorization means the actor's claims don't satisfy a policy
	// precondition.
	CategoryAuthorization
	// CategoryTenantReadOnly means the tenant directory entry is not in a
	// writable status (e.g. MIGRATING during a migration).
	CategoryTenantReadOnly
)

func (c Category) String() string {
	switch c {
	case CategoryInvariantViolation:
		return "invariant_violation"
	case CategoryIdempotencyReplay:
		return "idempotency_replay"
	case CategoryIntegrityViolation:
		return "integrity_violation"
	case CategoryTransient:
		return "transient"
	case CategoryAuthorization:
		return "authorization"
	case CategoryTenantReadOnly:
		return "tenant_read_only"
	default:
		return "unknown"
	}
}

// categorized is an error carrying an explicit Category alongside a cause.
type categorized struct {
	category Category
	msg      string
	cause    error
}

func (e *categorized) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *categorized) Unwrap() error { return e.cause }

// New builds an error in the given category with a message.
func New(category Category, msg string) error {
	return &categorized{category: category, msg: msg}
}

// Wrap attaches a category to an existing error.
func Wrap(category Category, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &categorized{category: category, msg: msg, cause: cause}
}

// Categorize extracts the Category of err, walking its Unwrap chain.
// Returns CategoryUnknown if no *categorized is found.
func Categorize(err error) Category {
	var c *categorized
	if errors.As(err, &c) {
		return c.category
	}
	return CategoryUnknown
}

// Sentinel errors for errors.Is comparisons at call sites that don't need
// the full category/message machinery.
var (
	// ErrUnbalancedEntry: a journal entry's debit and credit totals differ.
	ErrUnbalancedEntry = New(CategoryInvariantViolation, "journal entry is not balanced")
	// ErrAggregateSequenceConflict: two writers raced to append the same
	// aggregate_sequence; the caller should reload and retry.
	ErrAggregateSequenceConflict = New(CategoryTransient, "aggregate sequence conflict")
	// ErrIdempotencyKeyReplay: the idempotency key already has a persisted event.
	ErrIdempotencyKeyReplay = New(CategoryIdempotencyReplay, "idempotency key already applied")
	// ErrTenantNotFound: no tenant directory entry for the given tenant id.
	ErrTenantNotFound = New(CategoryInvariantViolation, "tenant not found")
	// ErrTenantNotWritable: the tenant's directory status is MIGRATING,
	// READ_ONLY, or SUSPENDED and rejects new writes.
	ErrTenantNotWritable = New(CategoryTenantReadOnly, "tenant is not writable in its current status")
	// ErrWriteBarrierDenied: the current write-context tag may not persist to
	// the target read-model entity.
	ErrWriteBarrierDenied = New(CategoryAuthorization, "write barrier denied this write context")
	// ErrPolicyDenied: casbin policy evaluation denied the actor's request.
	ErrPolicyDenied = New(CategoryAuthorization, "policy denied")
	// ErrPayloadMissing: an EXTERNAL event's blob row is absent.
	ErrPayloadMissing = New(CategoryIntegrityViolation, "payload blob missing")
	// ErrHashMismatch: a recomputed payload hash doesn't match the stored hash.
	ErrHashMismatch = New(CategoryIntegrityViolation, "payload hash mismatch")
	// ErrChunkMissing: a CHUNKED aggregate is missing an expected chunk event.
	ErrChunkMissing = New(CategoryIntegrityViolation, "chunk event missing")
	// ErrSequenceGap: stream_sequence or aggregate_sequence has a gap.
	ErrSequenceGap = New(CategoryIntegrityViolation, "sequence gap detected")
)
