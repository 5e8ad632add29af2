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

// CreateDimensionTypeInput is the typed input for CreateDimensionType.
type CreateDimensionTypeInput struct {
	Code string
	Name string
}

// CreateDimensionType emits dimension_type.created (e.g. "department", "project").
func (c *Commander) CreateDimensionType(ctx context.Context, actor policy.Actor, in CreateDimensionTypeInput) Result {
	ac, err := c.resolve(ctx, actor, "dimension", "manage")
	if err != nil {
		return fail(err)
	}
	if in.Code == "" {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "dimension type requires a code"))
	}

	typeID := uuid.New().String()
	payload := struct {
		Code string `json:"code"`
		Name string `json:"name"`
	}{in.Code, in.Name}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventDimensionTypeCreated,
		AggregateType: aggregate.AggregateTypeDimensionType, AggregateID: typeID,
		IdempotencyKey: idempotencyKey("dimension_type.create", struct {
			TenantID int64  `json:"tenant_id"`
			Code     string `json:"code"`
		}{ac.entry.TenantID, in.Code}),
		Payload: payload, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// CreateDimensionValueInput is the typed input for CreateDimensionValue.
type CreateDimensionValueInput struct {
	DimensionTypeID string
	Code            string
	Name            string
}

// CreateDimensionValue emits dimension_value.created (e.g. department "Eng").
func (c *Commander) CreateDimensionValue(ctx context.Context, actor policy.Actor, in CreateDimensionValueInput) Result {
	ac, err := c.resolve(ctx, actor, "dimension", "manage")
	if err != nil {
		return fail(err)
	}
	if in.DimensionTypeID == "" || in.Code == "" {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "dimension value requires a dimension_type_id and a code"))
	}
	loader, err := c.loader(ac.entry)
	if err != nil {
		return fail(err)
	}
	var dt aggregate.DimensionType
	found, err := loader.Load(ac.ctx, ac.entry.TenantID, aggregate.AggregateTypeDimensionType, in.DimensionTypeID, &dt)
	if err != nil {
		return fail(err)
	}
	if !found {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "dimension type not found"))
	}

	valueID := uuid.New().String()
	payload := struct {
		DimensionTypeID string `json:"dimension_type_id"`
		Code            string `json:"code"`
		Name            string `json:"name"`
	}{in.DimensionTypeID, in.Code, in.Name}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventDimensionValueCreated,
		AggregateType: aggregate.AggregateTypeDimensionValue, AggregateID: valueID,
		IdempotencyKey: idempotencyKey("dimension_value.create", struct {
			TenantID        int64  `json:"tenant_id"`
			DimensionTypeID string `json:"dimension_type_id"`
			Code            string `json:"code"`
		}{ac.entry.TenantID, in.DimensionTypeID, in.Code}),
		Payload: payload, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// RetireDimensionValue emits dimension_value.retired. A retired value may
// still be referenced by historical journal lines; it is only hidden from
// new line entry, a workflow rule enforced at the HTTP edge's value picker,
// not here.
func (c *Commander) RetireDimensionValue(ctx context.Context, actor policy.Actor, valueID string) Result {
	ac, err := c.resolve(ctx, actor, "dimension", "manage")
	if err != nil {
		return fail(err)
	}
	loader, err := c.loader(ac.entry)
	if err != nil {
		return fail(err)
	}
	var v aggregate.DimensionValue
	found, err := loader.Load(ac.ctx, ac.entry.TenantID, aggregate.AggregateTypeDimensionValue, valueID, &v)
	if err != nil {
		return fail(err)
	}
	if !found || !v.Active {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "dimension value not found or already retired"))
	}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventDimensionValueRetired,
		AggregateType: aggregate.AggregateTypeDimensionValue, AggregateID: valueID,
		IdempotencyKey: idempotencyKey("dimension_value.retire", struct {
			TenantID int64  `json:"tenant_id"`
			ValueID  string `json:"value_id"`
		}{ac.entry.TenantID, valueID}),
		Payload: map[string]interface{}{}, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}

// MapCrosswalkInput is the typed input for MapCrosswalk.
type MapCrosswalkInput struct {
	ExternalSource     string
	ExternalID         string
	InternalEntityType string
	InternalEntityID   string
}

// MapCrosswalk emits crosswalk.mapped, recording a stable mapping from an
// external system's identifier to an internal entity (account, dimension
// value, ...) so repeated imports from that system resolve consistently.
func (c *Commander) MapCrosswalk(ctx context.Context, actor policy.Actor, in MapCrosswalkInput) Result {
	ac, err := c.resolve(ctx, actor, "crosswalk", "manage")
	if err != nil {
		return fail(err)
	}
	if in.ExternalSource == "" || in.ExternalID == "" {
		return fail(apperrors.New(apperrors.CategoryInvariantViolation, "crosswalk mapping requires external_source and external_id"))
	}

	crosswalkID := uuid.New().String()
	payload := struct {
		ExternalSource     string `json:"external_source"`
		ExternalID         string `json:"external_id"`
		InternalEntityType string `json:"internal_entity_type"`
		InternalEntityID   string `json:"internal_entity_id"`
	}{in.ExternalSource, in.ExternalID, in.InternalEntityType, in.InternalEntityID}

	return c.emitOne(ac, emitter.Request{
		TenantID: ac.entry.TenantID, EventType: aggregate.EventCrosswalkMapped,
		AggregateType: aggregate.AggregateTypeCrosswalk, AggregateID: crosswalkID,
		IdempotencyKey: idempotencyKey("crosswalk.map", struct {
			TenantID       int64  `json:"tenant_id"`
			ExternalSource string `json:"external_source"`
			ExternalID     string `json:"external_id"`
		}{ac.entry.TenantID, in.ExternalSource, in.ExternalID}),
		Payload: payload, Origin: OriginHuman, OccurredAt: time.Now(),
	})
}
