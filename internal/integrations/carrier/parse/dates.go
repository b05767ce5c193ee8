package parse

import (
	"strings"
	"time"
)

// Layouts that carry an explicit zone indicator are parsed as-is; everything
// else is interpreted as carrier-local wall clock time in the configured
// zone.
var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-07:00",
}

var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02-01-2006 15:04:05",
	"02-01-2006 15:04",
	"02/01/2006",
	"02-01-2006",
	"02 Jan 2006 15:04",
	"02 Jan 2006",
}

// parseCarrierTime resolves a carrier date string to an absolute instant.
// Strings without a zone indicator are taken as local to zone, never UTC.
func parseCarrierTime(s string, zone *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, zone); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// composeDateTime joins split carrier fields, date as DD/MM/YYYY (or
// DD-MM-YYYY) and time as HHMM or HH:MM, into one absolute instant in zone.
func composeDateTime(date, clock string, zone *time.Location) (time.Time, bool) {
	date = strings.TrimSpace(strings.ReplaceAll(date, "-", "/"))
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, false
	}

	if clock == "" {
		return parseCarrierTime(date, zone)
	}
	if !strings.Contains(clock, ":") && len(clock) == 4 {
		clock = clock[:2] + ":" + clock[2:]
	}

	if t, err := time.ParseInLocation("02/01/2006 15:04:05", date+" "+clock, zone); err == nil {
		return t.UTC(), true
	}
	if t, err := time.ParseInLocation("02/01/2006 15:04", date+" "+clock, zone); err == nil {
		return t.UTC(), true
	}
	return parseCarrierTime(date, zone)
}
