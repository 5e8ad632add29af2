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

func TestSetFiscalPeriodRange_EmitsRangeSet(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	r := c.SetFiscalPeriodRange(ctx, adminActor(), FiscalPeriodRangeInput{
		StartDate: "2026-01-01", EndDate: "2026-01-31", Label: "2026-P01",
	})
	require.True(t, r.Success, "%v", r.Err)
	assert.Equal(t, aggregate.EventFiscalPeriodRangeSet, r.Event.EventType)
}

func TestGenerateFiscalYear_MonthlyProducesTwelvePeriods(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	results, err := c.GenerateFiscalYear(ctx, adminActor(), GenerateFiscalYearInput{
		Year: 2026, PeriodsPerYear: 12, LabelPrefix: "FY",
	})
	require.NoError(t, err)
	require.Len(t, results, 12)
	for _, r := range results {
		assert.True(t, r.Success, "%v", r.Err)
	}
}

func TestGenerateFiscalYear_RejectsNonDivisorPeriodCount(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	_, err := c.GenerateFiscalYear(ctx, adminActor(), GenerateFiscalYearInput{
		Year: 2026, PeriodsPerYear: 5, LabelPrefix: "FY",
	})
	assert.Error(t, err, "5 does not evenly divide 12")
}

func TestCloseThenOpenFiscalPeriod_RoundTrips(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	created := c.SetFiscalPeriodRange(ctx, adminActor(), FiscalPeriodRangeInput{
		StartDate: "2026-02-01", EndDate: "2026-02-28", Label: "2026-P02",
	})
	require.True(t, created.Success)
	periodID := created.Event.AggregateID

	closed := c.CloseFiscalPeriod(ctx, adminActor(), periodID)
	require.True(t, closed.Success, "%v", closed.Err)
	assert.Equal(t, aggregate.EventFiscalPeriodClosed, closed.Event.EventType)

	// Closing an already-CLOSED period is a workflow violation.
	reclosed := c.CloseFiscalPeriod(ctx, adminActor(), periodID)
	assert.False(t, reclosed.Success, "a CLOSED period may not be closed again")

	opened := c.OpenFiscalPeriod(ctx, adminActor(), periodID)
	require.True(t, opened.Success, "%v", opened.Err)
	assert.Equal(t, aggregate.EventFiscalPeriodOpened, opened.Event.EventType)
}

func TestOpenFiscalPeriod_RejectsAlreadyOpenPeriod(t *testing.T) {
	c, entry := newTestCommander(t)
	ctx := ctxFor(entry)

	created := c.SetFiscalPeriodRange(ctx, adminActor(), FiscalPeriodRangeInput{
		StartDate: "2026-03-01", EndDate: "2026-03-31", Label: "2026-P03",
	})
	require.True(t, created.Success)

	r := c.OpenFiscalPeriod(ctx, adminActor(), created.Event.AggregateID)
	assert.False(t, r.Success, "a fresh period is already OPEN")
}
