// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nxentra/ledgerd/internal/aggregate"
)

func TestCreateDimensionType_Emits(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	r := c.CreateDimensionType(ctx, adminActor(), CreateDimensionTypeInput{Code: "department", Name: "Department"})
	require.True(t, r.Success, "%v", r.Err)
	assert.Equal(t, aggregate.EventDimensionTypeCreated, r.Event.EventType)
}

func TestCreateDimensionValue_RejectsUnknownParentType(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	r := c.CreateDimensionValue(ctx, adminActor(), CreateDimensionValueInput{
		DimensionTypeID: "does-not-exist", Code: "ENG", Name: "Engineering",
	})
	assert.False(t, r.Success, "dimension value creation requires an existing dimension type")
}

func TestCreateDimensionValue_SucceedsUnderExistingType(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	dt := c.CreateDimensionType(ctx, adminActor(), CreateDimensionTypeInput{Code: "department", Name: "Department"})
	require.True(t, dt.Success)

	r := c.CreateDimensionValue(ctx, adminActor(), CreateDimensionValueInput{
		DimensionTypeID: dt.Event.AggregateID, Code: "ENG", Name: "Engineering",
	})
	require.True(t, r.Success, "%v", r.Err)
	assert.Equal(t, aggregate.EventDimensionValueCreated, r.Event.EventType)
}

func TestRetireDimensionValue_RejectsDoubleRetire(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	dt := c.CreateDimensionType(ctx, adminActor(), CreateDimensionTypeInput{Code: "department", Name: "Department"})
	require.True(t, dt.Success)
	v := c.CreateDimensionValue(ctx, adminActor(), CreateDimensionValueInput{
		DimensionTypeID: dt.Event.AggregateID, Code: "ENG", Name: "Engineering",
	})
	require.True(t, v.Success)

	first := c.RetireDimensionValue(ctx, adminActor(), v.Event.AggregateID)
	require.True(t, first.Success, "%v", first.Err)

	second := c.RetireDimensionValue(ctx, adminActor(), v.Event.AggregateID)
	assert.False(t, second.Success, "an already-retired value may not be retired again")
}

func TestMapCrosswalk_Emits(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	r := c.MapCrosswalk(ctx, adminActor(), MapCrosswalkInput{
		ExternalSource: "quickbooks", ExternalID: "QBO-42",
		InternalEntityType: "account", InternalEntityID: "acct-1",
	})
	require.True(t, r.Success, "%v", r.Err)
	assert.Equal(t, aggregate.EventCrosswalkMapped, r.Event.EventType)
}
