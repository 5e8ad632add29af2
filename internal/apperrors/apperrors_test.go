// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package apperrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize_KnownSentinel(t *testing.T) {
	assert.Equal(t, CategoryInvariantViolation, Categorize(ErrUnbalancedEntry))
	assert.Equal(t, CategoryTransient, Categorize(ErrAggregateSequenceConflict))
	assert.Equal(t, CategoryIntegrityViolation, Categorize(ErrHashMismatch))
}

func TestCategorize_UnknownError(t *testing.T) {
	assert.Equal(t, CategoryUnknown, Categorize(errors.New("plain error")))
}

func TestWrap_PreservesCauseAndCategory(t *testing.T) {
	cause := errors.New("duckdb: connection reset")
	wrapped := Wrap(CategoryTransient, "append event", cause)

	assert.Equal(t, CategoryTransient, Categorize(wrapped))
	assert.True(t, errors.Is(wrapped, cause))
	assert.Contains(t, wrapped.Error(), "connection reset")
}

func TestWrap_NilCauseReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(CategoryTransient, "no-op", nil))
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "authorization", CategoryAuthorization.String())
	assert.Equal(t, "unknown", Category(99).String())
}
