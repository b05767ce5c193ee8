package parse

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/trackfleet/trackfleet/internal/models"
)

// Delhivery's unified-tracking API nests one shipment under data[0]:
// a current {status, statusDateTime, statusLocation} block plus
// trackingStates[].scans[] checkpoint groups. statusDateTime carries no
// zone indicator and is local to the carrier zone. Scans are kept in
// native order (newest group first as observed).
func parseDelhivery(raw []byte, sh models.NormalizedShipment, opts Options) models.NormalizedShipment {
	root := gjson.ParseBytes(raw)
	data := root.Get("data")
	if !data.IsArray() || len(data.Array()) == 0 {
		sh.Status = StatusNoDataFound
		sh.Location = "Unknown"
		return sh
	}
	pkg := data.Array()[0]

	current := pkg.Get("status")
	sh.Status = firstNonEmpty(cleanText(current.Get("status").String()), "In Transit")
	sh.Location = firstNonEmpty(cleanText(current.Get("statusLocation").String()), "Unknown")
	sh.Origin = cleanText(pkg.Get("origin").String())
	sh.Destination = cleanText(pkg.Get("destination").String())
	if t, ok := parseCarrierTime(pkg.Get("estimatedDate").String(), opts.zone()); ok {
		sh.EstimatedDelivery = &t
	}

	pkg.Get("trackingStates").ForEach(func(_, state gjson.Result) bool {
		state.Get("scans").ForEach(func(_, scan gjson.Result) bool {
			ts, ok := parseCarrierTime(scan.Get("scanDateTime").String(), opts.zone())
			if !ok {
				ts = time.Now().UTC()
			}
			text := firstNonEmpty(
				cleanText(scan.Get("scan").String()),
				cleanText(scan.Get("scanType").String()),
			)
			sh.History = append(sh.History, models.HistoryEvent{
				Timestamp:   ts,
				Status:      text,
				Location:    cleanText(scan.Get("cityLocation").String()),
				Description: firstNonEmpty(cleanText(scan.Get("scanNslRemark").String()), text),
			})
			return true
		})
		return true
	})

	if sh.Status == "In Transit" && len(sh.History) == 0 && !current.Exists() {
		sh.Status = StatusNoTrackingInfo
	}
	return sh
}
