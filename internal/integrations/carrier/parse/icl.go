package parse

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/trackfleet/trackfleet/internal/models"
)

// ICL answers with {ConsignmentDetails_Traking: {...}, Sheet_History: [...]}
// (sic, the typo is the carrier's). History arrives oldest-first and is
// re-sorted newest-first; remark fields embed tracking-page markup and
// links and are stripped.
func parseICL(raw []byte, sh models.NormalizedShipment, opts Options) models.NormalizedShipment {
	root := gjson.ParseBytes(raw)
	consignment := root.Get("ConsignmentDetails_Traking")
	history := root.Get("Sheet_History")

	if !consignment.Exists() && (!history.IsArray() || len(history.Array()) == 0) {
		sh.Status = StatusNoTrackingInfo
		sh.Location = "Unknown"
		return sh
	}

	sh.Status = firstNonEmpty(cleanText(consignment.Get("current_status_name").String()), "In Transit")
	sh.Location = firstNonEmpty(cleanText(consignment.Get("current_location_name").String()), "Unknown")
	sh.Origin = cleanText(consignment.Get("origin_name").String())
	sh.Destination = cleanText(consignment.Get("dest_name").String())
	if t, ok := parseCarrierTime(consignment.Get("ExpectedDeliveryDate").String(), opts.zone()); ok {
		sh.EstimatedDelivery = &t
	}

	for _, item := range history.Array() {
		ts, ok := parseCarrierTime(item.Get("status_date").String(), opts.zone())
		if !ok {
			ts = time.Now().UTC()
		}
		statusText := firstNonEmpty(cleanText(item.Get("status").String()), "Update")
		sh.History = append(sh.History, models.HistoryEvent{
			Timestamp:   ts,
			Status:      statusText,
			Location:    cleanText(item.Get("dispatch_location_name").String()),
			Description: firstNonEmpty(cleanText(item.Get("Remarks").String()), statusText),
		})
	}
	sortHistoryDesc(sh.History)

	sh.AdditionalInfo = iclAdditionalInfo(consignment)
	return sh
}

func iclAdditionalInfo(consignment gjson.Result) map[string]any {
	fields := map[string]string{
		"consignmentNo":   "consignment_no",
		"consignmentDate": "date_of_booking",
		"pieces":          "no_of_pieces",
		"weight":          "actual_weight",
		"service":         "service_name",
		"carrier":         "carrier_name",
	}
	info := make(map[string]any)
	for key, path := range fields {
		if v := consignment.Get(path); v.Exists() && v.Type != gjson.Null {
			info[key] = v.Value()
		}
	}
	if len(info) == 0 {
		return nil
	}
	return info
}
