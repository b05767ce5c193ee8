package models

import (
	"encoding/json"
	"time"
)

// HistoryEvent is one scan/checkpoint reported by a carrier, or a
// transition synthesized by the reconciliation pipeline. Timestamps are
// always absolute instants; carrier-local wall clock times are resolved
// against the configured carrier zone before they get here.
type HistoryEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Status      string    `json:"status"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// NormalizedShipment is the canonical record a carrier parser produces from
// one raw API payload. It is a value, not a persisted entity: the refresher
// merges it into the stored Shipment.
type NormalizedShipment struct {
	Provider           string
	OriginalTrackingID string
	Status             string
	Location           string
	EstimatedDelivery  *time.Time
	Origin             string
	Destination        string
	History            []HistoryEvent

	// AdditionalInfo carries carrier-specific extras (pieces, weight,
	// service level). Opaque passthrough, never interpreted.
	AdditionalInfo map[string]any

	// RawResponse keeps the untouched carrier payload for auditing.
	RawResponse json.RawMessage
}

// Shipment is the persisted tracking record.
type Shipment struct {
	ID                 uint64
	TrackingID         string
	OriginalTrackingID string
	Provider           string
	Status             string
	Location           string
	EstimatedDelivery  *time.Time
	Origin             string
	Destination        string
	History            []HistoryEvent
	AdditionalInfo     map[string]any
	RawResponse        json.RawMessage
	LastError          *string
	LastFetched        *time.Time
	LastUpdated        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type ShipmentCreateInput struct {
	// TrackingID is optional; generated when empty.
	TrackingID         string
	Provider           string
	OriginalTrackingID string
}
