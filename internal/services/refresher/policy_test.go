package refresher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trackfleet/trackfleet/internal/models"
)

func TestPolicy_NeedsRefresh(t *testing.T) {
	p := NewPolicy(time.Hour, 30*time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	cases := []struct {
		name        string
		status      string
		lastUpdated *time.Time
		want        bool
	}{
		{"never fetched", "Pending", nil, true},
		{"terminal delivered never refreshes", "Delivered", ago(10 * time.Hour), false},
		{"delivery completed never refreshes", "Delivery completed", ago(10 * time.Hour), false},
		{"out for delivery is not terminal", "Out for Delivery", ago(2 * time.Hour), true},
		{"fresh in transit", "In Transit", ago(45 * time.Minute), false},
		{"stale in transit", "In Transit", ago(61 * time.Minute), true},
		{"problem status uses short ttl", "Exception - Address Issue", ago(45 * time.Minute), true},
		{"problem status under short ttl", "Delayed in customs", ago(20 * time.Minute), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sh := &models.Shipment{Status: c.status, LastUpdated: c.lastUpdated}
			require.Equal(t, c.want, p.NeedsRefresh(sh, now))
		})
	}
}

func TestNewPolicy_Defaults(t *testing.T) {
	p := NewPolicy(0, 0)
	require.Equal(t, time.Hour, p.DefaultTTL)
	require.Equal(t, 30*time.Minute, p.ProblemTTL)
}
