// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package aggregate

import "github.com/nxentra/ledgerd/internal/eventstore"

const (
	EventFiscalPeriodRangeSet = "fiscal_period.range_set"
	EventFiscalPeriodOpened   = "fiscal_period.opened"
	EventFiscalPeriodClosed   = "fiscal_period.closed"

	AggregateTypeFiscalPeriod = "fiscal_period"
)

type fiscalPeriodRangeSetPayload struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Label     string `json:"label"`
}

// FiscalPeriodStatus mirrors the OPEN/CLOSED lifecycle of one accounting
// period. Journal posting does not check it.
type FiscalPeriodStatus string

const (
	FiscalPeriodStatusOpen   FiscalPeriodStatus = "OPEN"
	FiscalPeriodStatusClosed FiscalPeriodStatus = "CLOSED"
)

// FiscalPeriod is the fiscal period aggregate's folded state.
type FiscalPeriod struct {
	ID        string
	StartDate string
	EndDate   string
	Label     string
	Status    FiscalPeriodStatus

	LastEventID       string
	LastEventSequence int64
}

// Apply implements Snapshot.
func (f *FiscalPeriod) Apply(event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case EventFiscalPeriodRangeSet:
		var p fiscalPeriodRangeSetPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		f.ID = event.AggregateID
		f.StartDate = p.StartDate
		f.EndDate = p.EndDate
		f.Label = p.Label
		if f.Status == "" {
			f.Status = FiscalPeriodStatusOpen
		}
	case EventFiscalPeriodOpened:
		f.Status = FiscalPeriodStatusOpen
	case EventFiscalPeriodClosed:
		f.Status = FiscalPeriodStatusClosed
	default:
		return nil
	}
	f.LastEventID = event.ID.String()
	f.LastEventSequence = event.AggregateSequence
	return nil
}
