package refresher

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/trackfleet/trackfleet/internal/models"
	"github.com/trackfleet/trackfleet/internal/status"
)

// Outcome is the reconciled state to persist after one fetch. Discarded
// means the parsed result was rejected wholesale and the previous record
// must stay untouched.
type Outcome struct {
	Status            string
	Location          string
	EstimatedDelivery *time.Time
	Origin            string
	Destination       string
	History           []models.HistoryEvent
	AdditionalInfo    map[string]any
	RawResponse       json.RawMessage

	StatusChanged bool
	Discarded     bool
}

// Reconcile merges a parsed carrier result into the previously stored
// shipment, enforcing the terminal-state rules:
//
//  1. a parsed status of "unknown" is rewritten to In Transit;
//  2. a real delivery event buried in history takes precedence over the
//     top-level status (carriers report "POD Uploaded" after the true
//     delivery event);
//  3. whenever such an event exists, POD upload/update entries are dropped
//     from the stored history;
//  4. an empty/unknown/"no data found" result never overwrites an already
//     terminal-delivered record unless forced;
//  5. otherwise parsed fields overwrite, absent fields carry over, and a
//     transition event is appended whenever the status changed.
func Reconcile(prev *models.Shipment, parsed models.NormalizedShipment, force bool, now time.Time) Outcome {
	rawStatus := strings.TrimSpace(parsed.Status)

	text := rawStatus
	if strings.EqualFold(text, "unknown") {
		text = status.InTransit
	}
	final := status.Normalize(text)

	deliveredInHistory := false
	for _, ev := range parsed.History {
		if !status.IsDeliveryEvent(ev.Status) {
			continue
		}
		deliveredInHistory = true
		final = status.Normalize(ev.Status)
		break
	}

	prevTerminal := prev != nil && status.IsTerminalDelivered(prev.Status)
	if prevTerminal && !force {
		switch strings.ToLower(rawStatus) {
		case "", "unknown", "no data found":
			return Outcome{Discarded: true}
		}
		// Terminal status is monotonic: a weaker status never replaces it.
		if !status.IsTerminalDelivered(final) {
			final = prev.Status
		}
	}

	out := Outcome{
		Status:      final,
		RawResponse: parsed.RawResponse,
	}

	out.Location = parsed.Location
	if out.Location == "" || out.Location == "Unknown" {
		if prev != nil && prev.Location != "" {
			out.Location = prev.Location
		}
	}
	if out.Location == "" {
		out.Location = "Unknown"
	}

	out.EstimatedDelivery = parsed.EstimatedDelivery
	out.Origin = parsed.Origin
	out.Destination = parsed.Destination
	out.AdditionalInfo = parsed.AdditionalInfo
	if prev != nil {
		if out.EstimatedDelivery == nil {
			out.EstimatedDelivery = prev.EstimatedDelivery
		}
		if out.Origin == "" {
			out.Origin = prev.Origin
		}
		if out.Destination == "" {
			out.Destination = prev.Destination
		}
		if out.AdditionalInfo == nil {
			out.AdditionalInfo = prev.AdditionalInfo
		}
	}

	hist := parsed.History
	if len(hist) == 0 && prev != nil {
		hist = prev.History
	}
	out.History = make([]models.HistoryEvent, 0, len(hist)+1)
	for _, ev := range hist {
		if deliveredInHistory && status.IsPODNoise(ev.Status) {
			continue
		}
		out.History = append(out.History, ev)
	}

	prevStatus := ""
	if prev != nil {
		prevStatus = prev.Status
	}
	if final != prevStatus {
		out.StatusChanged = true
		out.History = append(out.History, models.HistoryEvent{
			Timestamp:   now,
			Status:      final,
			Location:    out.Location,
			Description: "Status updated to " + final,
		})
	}

	return out
}
