// Package status owns the canonical status vocabulary and the free-text
// canonicalization rules shared by the parsers and the refresher.
package status

import (
	"strings"
	"unicode"
)

// Canonical statuses.
const (
	Delivered      = "Delivered"
	InTransit      = "In Transit"
	OutForDelivery = "Out for Delivery"
	Pending        = "Pending"
	Exception      = "Exception"
)

// Normalize maps free-text carrier status into the canonical vocabulary.
// Matching is case-insensitive substring, first match wins. Unrecognized
// text is title-cased rather than discarded. Empty input means "no signal",
// which we treat as still moving.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return InTransit
	}

	switch {
	case strings.Contains(s, "delivered"):
		return Delivered
	case strings.Contains(s, "transit"):
		return InTransit
	case strings.Contains(s, "out for delivery"):
		return OutForDelivery
	case containsAny(s, "pickup", "booked", "pending"):
		return Pending
	case containsAny(s, "exception", "delay", "failed", "issue"):
		return Exception
	}

	return titleCase(s)
}

// IsTerminalDelivered reports whether s is a confirmed terminal delivery.
// Delivery-adjacent qualifiers ("out for delivery", "delivery scheduled",
// "delivery attempt") are not terminal.
func IsTerminalDelivered(s string) bool {
	l := strings.ToLower(s)
	if !strings.Contains(l, "deliver") {
		return false
	}
	return !containsAny(l, "out for", "schedul", "attempt")
}

// IsDeliveryEvent reports whether a history event's text describes the
// actual delivery, as opposed to a qualified delivery-adjacent state.
// Used to promote a delivery buried in history over a weaker top-level
// status (carriers report "POD Uploaded" after the real delivery event).
func IsDeliveryEvent(s string) bool {
	l := strings.ToLower(s)
	if !strings.Contains(l, "deliver") {
		return false
	}
	return !containsAny(l, "attempt", "out for", "schedule", "expected", "fail", "return")
}

// IsPODNoise reports whether a history event is post-delivery
// proof-of-delivery churn.
func IsPODNoise(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "pod upload") || strings.Contains(l, "pod update")
}

// IsProblem reports whether s describes an unresolved issue that warrants
// more frequent refreshes.
func IsProblem(s string) bool {
	l := strings.ToLower(s)
	return strings.Contains(l, "exception") || strings.Contains(l, "delay")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// titleCase lowercases the input and uppercases the first letter of every
// word, preserving all other characters.
func titleCase(s string) string {
	out := []rune(strings.ToLower(s))
	prevLetter := false
	for i, r := range out {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if !prevLetter {
				out[i] = unicode.ToUpper(r)
			}
			prevLetter = true
		} else {
			prevLetter = false
		}
	}
	return string(out)
}
