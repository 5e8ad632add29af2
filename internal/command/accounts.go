// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package command

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nxentra/ledgerd/internal/aggregate"
	"github.com/nxentra/ledgerd/internal/apperrors"
	"github.com/nxentra/ledgerd/internal/emitter"
	"github.com/nxentra/ledgerd/internal/policy"
)

// CreateAccountInput is the typed input for CreateAccount.
type CreateAccountInput struct {
	Code          string
	Name          string
	ParentID      string
	AccountType   string
	NormalBalance aggregate.NormalBalance
}

// CreateAccount emits account.created for a new chart-of-accounts entry.
func (c *Commander) CreateAccount(ctx context.Context, actor policy.Actor, in CreateAccountInput) Result {
	ac, err := c.resolve(ctx, actor, "account", "create")
	if err != nil {
		return fail(err)
	}
	if in.NormalBalance != aggregate.NormalBalanceDebit && in.NormalBalance != aggregate.NormalBalanceCredit {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "normal_balance must be DEBIT or CREDIT"))
	}

	accountID := uuid.New().String()
	payload := struct {
		Code          string                  `json:"code"`
		Name          string                  `json:"name"`
		ParentID      string                  `json:"parent_id"`
		AccountType   string                  `json:"account_type"`
		NormalBalance aggregate.NormalBalance `json:"normal_balance"`
	}{in.Code, in.Name, in.ParentID, in.AccountType, in.NormalBalance}

	return c.emitOne(ac, emitter.Request{
		TenantID:       ac.entry.TenantID,
		EventType:      aggregate.EventAccountCreated,
		AggregateType:  aggregate.AggregateTypeAccount,
		AggregateID:    accountID,
		IdempotencyKey: idempotencyKey("account.create", struct {
			TenantID int64  `json:"tenant_id"`
			Code     string `json:"code"`
		}{ac.entry.TenantID, in.Code}),
		Payload:    payload,
		Origin:     OriginHuman,
		OccurredAt: time.Now(),
	})
}

// UpdateAccountInput is the typed input for UpdateAccount. Nil fields are
// left unchanged, matching accountUpdatedPayload's partial-update shape.
type UpdateAccountInput struct {
	AccountID string
	Name      *string
	ParentID  *string
}

// UpdateAccount emits account.updated.
func (c *Commander) UpdateAccount(ctx context.Context, actor policy.Actor, in UpdateAccountInput) Result {
	ac, err := c.resolve(ctx, actor, "account", "update")
	if err != nil {
		return fail(err)
	}
	loader, err := c.loader(ac.entry)
	if err != nil {
		return fail(err)
	}
	var acc aggregate.Account
	found, err := loader.Load(ac.ctx, ac.entry.TenantID, aggregate.AggregateTypeAccount, in.AccountID, &acc)
	if err != nil {
		return fail(err)
	}
	if !found || acc.Deleted {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "account not found"))
	}

	payload := struct {
		Name     *string `json:"name"`
		ParentID *string `json:"parent_id"`
	}{in.Name, in.ParentID}

	return c.emitOne(ac, emitter.Request{
		TenantID:      ac.entry.TenantID,
		EventType:     aggregate.EventAccountUpdated,
		AggregateType: aggregate.AggregateTypeAccount,
		AggregateID:   in.AccountID,
		IdempotencyKey: idempotencyKey("account.update", struct {
			TenantID int64   `json:"tenant_id"`
			AccountID string `json:"account_id"`
			Seq      int64   `json:"next_seq"`
		}{ac.entry.TenantID, in.AccountID, acc.LastEventSequence + 1}),
		Payload:    payload,
		Origin:     OriginHuman,
		OccurredAt: time.Now(),
	})
}

// DeleteAccount emits account.deleted for an existing, not-yet-deleted
// account. It does not check the account's posted balance: an account with
// a non-zero balance is deleted like any other.
func (c *Commander) DeleteAccount(ctx context.Context, actor policy.Actor, accountID string) Result {
	ac, err := c.resolve(ctx, actor, "account", "delete")
	if err != nil {
		return fail(err)
	}
	loader, err := c.loader(ac.entry)
	if err != nil {
		return fail(err)
	}
	var acc aggregate.Account
	found, err := loader.Load(ac.ctx, ac.entry.TenantID, aggregate.AggregateTypeAccount, accountID, &acc)
	if err != nil {
		return fail(err)
	}
	if !found || acc.Deleted {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "account not found"))
	}

	return c.emitOne(ac, emitter.Request{
		TenantID:      ac.entry.TenantID,
		EventType:     aggregate.EventAccountDeleted,
		AggregateType: aggregate.AggregateTypeAccount,
		AggregateID:   accountID,
		IdempotencyKey: idempotencyKey("account.delete", struct {
			TenantID  int64  `json:"tenant_id"`
			AccountID string `json:"account_id"`
		}{ac.entry.TenantID, accountID}),
		Payload:    map[string]interface{}{},
		Origin:     OriginHuman,
		OccurredAt: time.Now(),
	})
}
