// Package parse converts heterogeneous carrier API payloads into one
// canonical NormalizedShipment. Parsers are total functions: malformed or
// unexpected payloads produce a degraded-but-valid result, never an error
// and never a panic.
package parse

import (
	"fmt"
	"strings"
	"time"

	"github.com/trackfleet/trackfleet/internal/models"
)

// Degraded/empty-payload status strings. "No tracking info" means the
// carrier answered but reported nothing; "No data found" means the payload
// itself carried no usable shipment. Transport failures never reach the
// parser, so neither marks a failed request.
const (
	StatusNoTrackingInfo = "No tracking info"
	StatusNoDataFound    = "No data found"
)

// Kind enumerates known carrier payload shapes.
type Kind int

const (
	KindGeneric Kind = iota
	KindDTDC
	KindICL
	KindDelhivery
	KindXpressBees
)

func (k Kind) String() string {
	switch k {
	case KindDTDC:
		return "dtdc"
	case KindICL:
		return "icl"
	case KindDelhivery:
		return "delhivery"
	case KindXpressBees:
		return "xpressbees"
	default:
		return "generic"
	}
}

// KindFor maps a provider identity to a payload shape. Matching is
// case-insensitive substring so that "DTDC Express" and "dtdc" route to the
// same parser.
func KindFor(providerName string) Kind {
	n := strings.ToLower(providerName)
	switch {
	case strings.Contains(n, "dtdc"):
		return KindDTDC
	case strings.Contains(n, "icl"):
		return KindICL
	case strings.Contains(n, "delhivery"):
		return KindDelhivery
	case strings.Contains(n, "xpressbees"):
		return KindXpressBees
	default:
		return KindGeneric
	}
}

// DefaultZone is the carriers' home timezone, applied to timestamps that
// lack an explicit zone indicator. The carriers in question are regionally
// scoped; assuming UTC would silently shift every event by hours.
var DefaultZone = time.FixedZone("UTC+05:30", 5*3600+30*60)

// Options carries per-call parsing configuration.
type Options struct {
	// Zone resolves carrier-local timestamps. Defaults to DefaultZone.
	Zone *time.Location

	// HistoryOrder overrides the carrier's default event ordering when set
	// to providers.HistoryOrderDesc ("desc"). Empty keeps the per-carrier
	// convention.
	HistoryOrder string
}

func (o Options) zone() *time.Location {
	if o.Zone != nil {
		return o.Zone
	}
	return DefaultZone
}

type parseFunc func(raw []byte, sh models.NormalizedShipment, opts Options) models.NormalizedShipment

var parsers = map[Kind]parseFunc{
	KindDTDC:       parseDTDC,
	KindICL:        parseICL,
	KindDelhivery:  parseDelhivery,
	KindXpressBees: parseXpressBees,
	KindGeneric:    parseGeneric,
}

// Parse dispatches by provider identity and normalizes the payload. On any
// internal failure it returns a result whose status marks the parse as
// degraded; callers must treat that as a valid (if empty) result.
func Parse(raw []byte, providerName, originalTrackingID string, opts Options) (sh models.NormalizedShipment) {
	sh = models.NormalizedShipment{
		Provider:           providerName,
		OriginalTrackingID: originalTrackingID,
		Location:           "Unknown",
		RawResponse:        raw,
	}

	defer func() {
		if r := recover(); r != nil {
			sh = models.NormalizedShipment{
				Provider:           providerName,
				OriginalTrackingID: originalTrackingID,
				Status:             fmt.Sprintf("Error parsing %s response", providerName),
				Location:           "Unknown",
				RawResponse:        raw,
			}
		}
	}()

	fn := parsers[KindFor(providerName)]
	sh = fn(raw, sh, opts)

	if sh.Status == "" {
		sh.Status = StatusNoDataFound
	}
	if sh.Location == "" {
		sh.Location = "Unknown"
	}
	if opts.HistoryOrder == "desc" {
		sortHistoryDesc(sh.History)
	}
	return sh
}
