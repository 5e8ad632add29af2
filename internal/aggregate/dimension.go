// Ledgerd - Multi-Tenant Event-Sourced Accounting Engine
// Copyright 2026 Nxentra Ledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nxentra/ledgerd

package aggregate

import "github.com/nxentra/ledgerd/internal/eventstore"

const (
	EventDimensionTypeCreated  = "dimension_type.created"
	EventDimensionValueCreated = "dimension_value.created"
	EventDimensionValueRetired = "dimension_value.retired"

	AggregateTypeDimensionType  = "dimension_type"
	AggregateTypeDimensionValue = "dimension_value"

	EventCrosswalkMapped = "crosswalk.mapped"

	AggregateTypeCrosswalk = "identity_crosswalk"
)

type dimensionTypeCreatedPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DimensionType is the dimension_type aggregate's folded state (e.g.
// "department", "project", "cost center").
type DimensionType struct {
	ID      string
	Code    string
	Name    string
	Retired bool

	LastEventID       string
	LastEventSequence int64
}

// Apply implements Snapshot.
func (d *DimensionType) Apply(event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case EventDimensionTypeCreated:
		var p dimensionTypeCreatedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		d.ID = event.AggregateID
		d.Code = p.Code
		d.Name = p.Name
	default:
		return nil
	}
	d.LastEventID = event.ID.String()
	d.LastEventSequence = event.AggregateSequence
	return nil
}

type dimensionValueCreatedPayload struct {
	DimensionTypeID string `json:"dimension_type_id"`
	Code            string `json:"code"`
	Name            string `json:"name"`
}

// DimensionValue is one value within a DimensionType (e.g. department "Eng").
type DimensionValue struct {
	ID              string
	DimensionTypeID string
	Code            string
	Name            string
	Active          bool

	LastEventID       string
	LastEventSequence int64
}

// Apply implements Snapshot.
func (v *DimensionValue) Apply(event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case EventDimensionValueCreated:
		var p dimensionValueCreatedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		v.ID = event.AggregateID
		v.DimensionTypeID = p.DimensionTypeID
		v.Code = p.Code
		v.Name = p.Name
		v.Active = true
	case EventDimensionValueRetired:
		v.Active = false
	default:
		return nil
	}
	v.LastEventID = event.ID.String()
	v.LastEventSequence = event.AggregateSequence
	return nil
}

type crosswalkMappedPayload struct {
	ExternalSource     string `json:"external_source"`
	ExternalID         string `json:"external_id"`
	InternalEntityType string `json:"internal_entity_type"`
	InternalEntityID   string `json:"internal_entity_id"`
}

// Crosswalk is the identity_crosswalk aggregate's folded state: a mapping
// from one external system's identifier to an internal entity.
type Crosswalk struct {
	ID                 string
	ExternalSource     string
	ExternalID         string
	InternalEntityType string
	InternalEntityID   string

	LastEventID       string
	LastEventSequence int64
}

// Apply implements Snapshot.
func (c *Crosswalk) Apply(event eventstore.BusinessEvent, payloadData []byte) error {
	switch event.EventType {
	case EventCrosswalkMapped:
		var p crosswalkMappedPayload
		if err := decodeInto(payloadData, &p); err != nil {
			return err
		}
		c.ID = event.AggregateID
		c.ExternalSource = p.ExternalSource
		c.ExternalID = p.ExternalID
		c.InternalEntityType = p.InternalEntityType
		c.InternalEntityID = p.InternalEntityID
	default:
		return nil
	}
	c.LastEventID = event.ID.String()
	c.LastEventSequence = event.AggregateSequence
	return nil
}
