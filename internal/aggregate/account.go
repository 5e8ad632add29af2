// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package aggregate

import "github.com/nxentra/ledgerd/internal/eventstore"

const (
	EventAccountCreated = "account.created"
	EventAccountUpdated = "account.updated"
	EventAccountDeleted = "account.deleted"

	AggregateTypeAccount = "account"
)

// NormalBalance is the side on which an account's balance grows.
type NormalBalance string

const (
	NormalBalanceDebit  NormalBalance = "DEBIT"
	NormalBalanceCredit NormalBalance = "CREDIT"
)

type accountCreatedPayload struct {
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	ParentID      string        `json:"parent_id"`
	AccountType   string        `json:"account_type"`
	NormalBalance NormalBalance `json:"normal_balance"`
}

type accountUpdatedPayload struct {
	Name     *string `json:"name"`
	ParentID *string `json:"parent_id"`
}

// Account is the account aggregate's folded state: identity, hierarchy
// position, and normal-balance direction.
type Account struct {
	ID            string
	Code          string
	Name          string
	ParentID      string
	AccountType   string
	NormalBalance NormalBalance
	Deleted       bool

	LastEventID       string
	LastEventSequence int64
}

// Apply implements Snapshot.
func (a *Account) Apply(event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case EventAccountCreated:
		var p accountCreatedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		a.ID = event.AggregateID
		a.Code = p.Code
		a.Name = p.Name
		a.ParentID = p.ParentID
		a.AccountType = p.AccountType
		a.NormalBalance = p.NormalBalance
		a.Deleted = false
	case EventAccountUpdated:
		var p accountUpdatedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		if p.Name != nil {
			a.Name = *p.Name
		}
		if p.ParentID != nil {
			a.ParentID = *p.ParentID
		}
	case EventAccountDeleted:
		a.Deleted = true
	default:
		// unknown/forward-compatible event type: ignored
		return nil
	}
	a.LastEventID = event.ID.String()
	a.LastEventSequence = event.AggregateSequence
	return nil
}
