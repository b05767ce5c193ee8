// Package notify turns the refresher's delivery transition signal into a
// broker message.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/trackfleet/trackfleet/internal/broker/messages"
	"github.com/trackfleet/trackfleet/internal/models"
	"github.com/trackfleet/trackfleet/internal/services/refresher"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// DeliveredHook returns a NotificationHook that publishes a
// ShipmentDelivered message keyed by tracking id.
func DeliveredHook(producer Producer, topic string) refresher.NotificationHook {
	return func(ctx context.Context, sh *models.Shipment) error {
		msg := messages.ShipmentDelivered{
			ShipmentID:         sh.ID,
			TrackingID:         sh.TrackingID,
			Provider:           sh.Provider,
			OriginalTrackingID: sh.OriginalTrackingID,
			Status:             sh.Status,
			Location:           sh.Location,
			DeliveredAt:        time.Now().UTC(),
		}
		if sh.LastUpdated != nil {
			msg.DeliveredAt = *sh.LastUpdated
		}

		b, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "marshal delivered msg")
		}
		if err := producer.Publish(ctx, topic, []byte(sh.TrackingID), b); err != nil {
			return errors.Wrap(err, "publish delivered msg")
		}
		return nil
	}
}
