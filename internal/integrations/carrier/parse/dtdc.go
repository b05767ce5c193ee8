package parse

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/trackfleet/trackfleet/internal/models"
)

// DTDC wraps everything in {statusCode, statuses: [...]} with the newest
// scan first; history is kept in that native order. Scan timestamps come
// either as a single field or split into DD/MM/YYYY + HHMM action fields.
func parseDTDC(raw []byte, sh models.NormalizedShipment, opts Options) models.NormalizedShipment {
	root := gjson.ParseBytes(raw)

	if root.Get("statusCode").Int() != 200 || !root.Get("statuses").IsArray() {
		sh.Status = firstNonEmpty(cleanText(root.Get("statusDescription").String()), StatusNoDataFound)
		sh.Location = "Unknown"
		return sh
	}

	statuses := root.Get("statuses").Array()
	if len(statuses) == 0 {
		sh.Status = firstNonEmpty(cleanText(root.Get("statusDescription").String()), StatusNoTrackingInfo)
		sh.Location = "Unknown"
		return sh
	}

	latest := statuses[0]
	sh.Status = firstNonEmpty(
		cleanText(latest.Get("statusDescription").String()),
		cleanText(latest.Get("status").String()),
		"In Transit",
	)
	sh.Location = firstNonEmpty(
		cleanText(latest.Get("actBranchCode").String()),
		cleanText(latest.Get("location").String()),
	)

	for _, s := range statuses {
		text := firstNonEmpty(
			cleanText(s.Get("statusDescription").String()),
			cleanText(s.Get("status").String()),
		)
		sh.History = append(sh.History, models.HistoryEvent{
			Timestamp: dtdcEventTime(s, opts.zone()),
			Status:    text,
			Location: firstNonEmpty(
				cleanText(s.Get("actBranchCode").String()),
				cleanText(s.Get("location").String()),
			),
			Description: firstNonEmpty(cleanText(s.Get("remarks").String()), text),
		})
	}
	return sh
}

func dtdcEventTime(s gjson.Result, zone *time.Location) time.Time {
	if t, ok := parseCarrierTime(s.Get("statusTimestamp").String(), zone); ok {
		return t
	}
	if t, ok := composeDateTime(s.Get("strActionDate").String(), s.Get("strActionTime").String(), zone); ok {
		return t
	}
	if t, ok := parseCarrierTime(s.Get("date").String(), zone); ok {
		return t
	}
	return time.Now().UTC()
}
