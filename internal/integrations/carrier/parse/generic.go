package parse

import (
	"time"

	"github.com/tidwall/gjson"

	"github.com/trackfleet/trackfleet/internal/models"
)

// maxProbeDepth bounds the nested search so pathological payloads cannot
// recurse unboundedly.
const maxProbeDepth = 8

// Prioritized field names probed by the generic parser, in order.
var genericFields = struct {
	status, location, eta, origin, destination, history []string
}{
	status:      []string{"status", "shipmentStatus", "trackingStatus", "deliveryStatus"},
	location:    []string{"location", "currentLocation", "lastLocation"},
	eta:         []string{"estimatedDelivery", "expectedDelivery", "eta", "deliveryDate"},
	origin:      []string{"origin", "originLocation", "pickupLocation"},
	destination: []string{"destination", "destinationLocation", "toLocation"},
	history:     []string{"history", "events", "trackingHistory", "shipmentHistory", "scans"},
}

// parseGeneric heuristically probes unknown payload shapes for common field
// names, taking the first hit per field. Events stay in native order.
func parseGeneric(raw []byte, sh models.NormalizedShipment, opts Options) models.NormalizedShipment {
	root := gjson.ParseBytes(raw)
	if !root.IsObject() && !root.IsArray() {
		sh.Status = StatusNoDataFound
		sh.Location = "Unknown"
		return sh
	}

	statusVal, statusOK := probeScalar(root, genericFields.status)
	sh.Status = cleanText(statusVal)
	if v, ok := probeScalar(root, genericFields.location); ok {
		sh.Location = cleanText(v)
	}
	if v, ok := probeScalar(root, genericFields.eta); ok {
		if t, tok := parseCarrierTime(v, opts.zone()); tok {
			sh.EstimatedDelivery = &t
		}
	}
	if v, ok := probeScalar(root, genericFields.origin); ok {
		sh.Origin = cleanText(v)
	}
	if v, ok := probeScalar(root, genericFields.destination); ok {
		sh.Destination = cleanText(v)
	}

	if events, ok := probeArray(root, genericFields.history); ok {
		for _, ev := range events.Array() {
			ts, tok := parseCarrierTime(firstNonEmpty(
				ev.Get("timestamp").String(),
				ev.Get("date").String(),
			), opts.zone())
			if !tok {
				ts = time.Now().UTC()
			}
			text := firstNonEmpty(
				cleanText(ev.Get("status").String()),
				cleanText(ev.Get("description").String()),
				"Update",
			)
			sh.History = append(sh.History, models.HistoryEvent{
				Timestamp: ts,
				Status:    text,
				Location:  cleanText(ev.Get("location").String()),
				Description: firstNonEmpty(
					cleanText(ev.Get("description").String()),
					cleanText(ev.Get("remarks").String()),
					text,
				),
			})
		}
	}

	if !statusOK {
		if len(sh.History) > 0 {
			// Real events with no status-like field is not "no data"; the
			// guard rewrites Unknown to In Transit.
			sh.Status = "Unknown"
		} else {
			sh.Status = StatusNoTrackingInfo
		}
	}
	return sh
}

// probeScalar tries each field name in order, first as a direct key and
// then via depth-first search, returning the first scalar hit.
func probeScalar(root gjson.Result, fields []string) (string, bool) {
	for _, f := range fields {
		if r, ok := searchNested(root, f, 0); ok && isScalar(r) {
			return r.String(), true
		}
	}
	return "", false
}

func probeArray(root gjson.Result, fields []string) (gjson.Result, bool) {
	for _, f := range fields {
		if r, ok := searchNested(root, f, 0); ok && r.IsArray() {
			return r, true
		}
	}
	return gjson.Result{}, false
}

// searchNested is an explicit depth-first traversal over the JSON value
// tree: direct key first, then children in document order, bounded by
// maxProbeDepth.
func searchNested(v gjson.Result, field string, depth int) (found gjson.Result, ok bool) {
	if depth > maxProbeDepth {
		return gjson.Result{}, false
	}
	if v.IsObject() {
		if r := v.Get(field); r.Exists() && r.Type != gjson.Null {
			return r, true
		}
	}
	v.ForEach(func(_, child gjson.Result) bool {
		if child.IsObject() || child.IsArray() {
			if r, o := searchNested(child, field, depth+1); o {
				found, ok = r, true
				return false
			}
		}
		return true
	})
	return found, ok
}

func isScalar(r gjson.Result) bool {
	return !r.IsObject() && !r.IsArray() && r.Type != gjson.Null
}
