// Package messages holds the wire types published on the broker.
package messages

import "time"

// ShipmentDelivered is published exactly once when a shipment transitions
// into a terminal delivered state.
type ShipmentDelivered struct {
	ShipmentID         uint64    `json:"shipment_id"`
	TrackingID         string    `json:"tracking_id"`
	Provider           string    `json:"provider"`
	OriginalTrackingID string    `json:"original_tracking_id"`
	Status             string    `json:"status"`
	Location           string    `json:"location,omitempty"`
	DeliveredAt        time.Time `json:"delivered_at"`
}
