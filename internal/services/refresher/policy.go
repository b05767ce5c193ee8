package refresher

import (
	"time"

	"github.com/trackfleet/trackfleet/internal/models"
	"github.com/trackfleet/trackfleet/internal/status"
)

// Policy decides whether a stored shipment is stale enough to warrant a new
// carrier fetch. TTL selection is a pure function of the current status text.
type Policy struct {
	// DefaultTTL is the staleness window for ordinary statuses.
	DefaultTTL time.Duration
	// ProblemTTL is the shortened window for exception/delay statuses;
	// unresolved problems get checked more often.
	ProblemTTL time.Duration
}

func NewPolicy(defaultTTL, problemTTL time.Duration) Policy {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	if problemTTL <= 0 {
		problemTTL = 30 * time.Minute
	}
	return Policy{DefaultTTL: defaultTTL, ProblemTTL: problemTTL}
}

func (p Policy) ttlFor(statusText string) time.Duration {
	if status.IsProblem(statusText) {
		return p.ProblemTTL
	}
	return p.DefaultTTL
}

// NeedsRefresh reports whether sh warrants a remote fetch at now. A forced
// refresh bypasses this entirely.
func (p Policy) NeedsRefresh(sh *models.Shipment, now time.Time) bool {
	if sh.LastUpdated == nil {
		return true
	}
	if status.IsTerminalDelivered(sh.Status) {
		return false
	}
	return now.Sub(*sh.LastUpdated) >= p.ttlFor(sh.Status)
}
