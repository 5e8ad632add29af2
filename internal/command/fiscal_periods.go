// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/emitter"
	"github.com/nxentra/ledgerd/internal/policy"
)

// FiscalPeriodRangeInput is one period's [start, end] range; EndDate is the
// period's last day, inclusive.
type FiscalPeriodRangeInput struct {
	StartDate string
	EndDate   string
	Label     string
}

// SetFiscalPeriodRange emits fiscal_period.range_set for a single period,
// opening it if it has never been set before.
func (c *Commander) SetFiscalPeriodRange(ctx context.Context, actor policy.Actor, in FiscalPeriodRangeInput) Result {
	ac, err := c.resolve(ctx, actor, "fiscal_period", "range_set")
	if err != nil {
		return fail(err)
	}
	if in.StartDate == "" || in.EndDate == "" {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "fiscal period requires both start_date and end_date"))
	}

	periodID := uuid.New().String()
	payload := struct {
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
		Label     string `json:"label"`
	}{in.StartDate, in.EndDate, in.Label}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventFiscalPeriodRangeSet,
		AggregateType: aggregate.AggregateTypeFiscalPeriod, AggregateID: periodID,
		IdempotencyKey: idempotencyKey("fiscal_period.set_range", struct {
			TenantID  int64  `json:"tenant_id"`
			StartDate string `json:"start_date"`
			EndDate   string `json:"end_date"`
		}{ac.entry.TenantID, in.StartDate, in.EndDate}),
		Payload: payload, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// GenerateFiscalYearInput describes a whole year's worth of periods to
// bulk-generate in one call (spec.md §4.4's "bulk period generation").
type GenerateFiscalYearInput struct {
	Year          int
	PeriodsPerYear int // 12 for monthly, 4 for quarterly, 1 for annual
	LabelPrefix   string
}

// GenerateFiscalYear emits one fiscal_period.range_set per period, each on
// its own aggregate -- the aggregate loader has no notion of a "fiscal
// year" aggregate grouping periods, so bulk generation is just this command
// looping SetFiscalPeriodRange's emission N times and returning every
// resulting event. A partial failure mid-loop leaves the periods emitted so
// far in place; the caller can safely retry since every emission's
// idempotency key already has per-period content.
func (c *Commander) GenerateFiscalYear(ctx context.Context, actor policy.Actor, in GenerateFiscalYearInput) ([]Result, error) {
	periods := in.PeriodsPerYear
	if periods <= 0 {
		periods = 12
	}
	if 12%periods != 0 {
		return nil, apperrors.New(apperrors.CategoryInvariantViolation, "periods_per_year must evenly divide 12")
	}
	monthsPerPeriod := 12 / periods

	results := make([]Result, 0, periods)
	for i := 0; i < periods; i++ {
		startMonth := i*monthsPerPeriod + 1
		endMonth := startMonth + monthsPerPeriod - 1
		start := fmt.Sprintf("%04d-%02d-01", in.Year, startMonth)
		end := lastDayOfMonth(in.Year, endMonth)
		label := fmt.Sprintf("%s%d-P%02d", in.LabelPrefix, in.Year, i+1)

		r := c.SetFiscalPeriodRange(ctx, actor, FiscalPeriodRangeInput{StartDate: start, EndDate: end, Label: label})
		results = append(results, r)
		if !r.Success {
			return results, r.Err
		}
	}
	return results, nil
}

func lastDayOfMonth(year, month int) string {
	t := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	return t.Format("2006-01-02")
}

// OpenFiscalPeriod reopens a CLOSED period.
func (c *Commander) OpenFiscalPeriod(ctx context.Context, actor policy.Actor, periodID string) Result {
	return c.setFiscalPeriodStatus(ctx, actor, periodID, aggregate.EventFiscalPeriodOpened, aggregate.FiscalPeriodStatusClosed, "open")
}

// CloseFiscalPeriod closes an OPEN period. Post does not consult fiscal
// periods: an entry dated inside a closed period still posts, and closing a
// period does not retroactively invalidate already-posted entries.
func (c *Commander) CloseFiscalPeriod(ctx context.Context, actor policy.Actor, periodID string) Result {
	return c.setFiscalPeriodStatus(ctx, actor, periodID, aggregate.EventFiscalPeriodClosed, aggregate.FiscalPeriodStatusOpen, "close")
}

func (c *Commander) setFiscalPeriodStatus(ctx context.Context, actor policy.Actor, periodID, eventType string, requiredStatus aggregate.FiscalPeriodStatus, action string) Result {
	ac, err := c.resolve(ctx, actor, "fiscal_period", action)
	if err != nil {
		return fail(err)
	}
	loader, err := c.loader(ac.entry)
	if err != nil {
		return fail(err)
	}
	var fp aggregate.FiscalPeriod
	found, err := loader.Load(ac.ctx, ac.entry.TenantID, aggregate.AggregateTypeFiscalPeriod, periodID, &fp)
	if err != nil {
		return fail(err)
	}
	if !found {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "fiscal period not found"))
	}
	if fp.Status != requiredStatus {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, fmt.Sprintf("fiscal period must be %s to %s", requiredStatus, action)))
	}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: eventType,
		AggregateType: aggregate.AggregateTypeFiscalPeriod, AggregateID: periodID,
		IdempotencyKey: idempotencyKey("fiscal_period."+action, struct {
			TenantID int64  `json:"tenant_id"`
			PeriodID string `json:"period_id"`
			Seq      int64  `json:"next_seq"`
		}{ac.entry.TenantID, periodID, fp.LastEventSequence + 1}),
		Payload: map[string]interface{}{}, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}
