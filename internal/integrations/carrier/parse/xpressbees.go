package parse

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/trackfleet/trackfleet/internal/models"
)

// XpressBees wraps the shipment in {status: bool, data: {...}} with history
// timestamps split into event_date (DD-MM-YYYY) and event_time (HHMM)
// fields, composed here in the carrier zone. History is native order,
// newest first.
func parseXpressBees(raw []byte, sh models.NormalizedShipment, opts Options) models.NormalizedShipment {
	root := gjson.ParseBytes(raw)
	data := root.Get("data")
	if !root.Get("status").Bool() || !data.Exists() {
		sh.Status = StatusNoDataFound
		sh.Location = "Unknown"
		return sh
	}

	sh.Status = firstNonEmpty(
		cleanText(data.Get("current_status").String()),
		cleanText(data.Get("status").String()),
	)
	sh.Location = firstNonEmpty(cleanText(data.Get("current_location").String()), "Unknown")
	sh.Origin = cleanText(data.Get("origin").String())
	sh.Destination = cleanText(data.Get("destination").String())
	if t, ok := parseCarrierTime(data.Get("expected_delivery_date").String(), opts.zone()); ok {
		sh.EstimatedDelivery = &t
	}

	history := data.Get("history")
	for _, item := range history.Array() {
		ts, ok := composeDateTime(item.Get("event_date").String(), item.Get("event_time").String(), opts.zone())
		if !ok {
			ts = time.Now().UTC()
		}
		text := cleanText(item.Get("status").String())
		sh.History = append(sh.History, models.HistoryEvent{
			Timestamp:   ts,
			Status:      text,
			Location:    cleanText(item.Get("location").String()),
			Description: firstNonEmpty(cleanText(item.Get("remark").String()), text),
		})
	}

	if sh.Status == "" && len(sh.History) == 0 {
		sh.Status = StatusNoTrackingInfo
	}
	return sh
}
