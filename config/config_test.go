package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(p, []byte(`
database:
  host: "localhost"
  port: 5432
  username: "u"
  password: "p"
  name: "db"
kafka:
  host: "localhost"
  port: 9092
  delivered_topic_name: "shipments.delivered"
redis:
  host: "localhost"
  port: 6379
trackfleet:
  http_addr: ":8080"
  worker_http_addr: ":8081"
  current_status_ttl_seconds: 600
  refresh_ttl_seconds: 3600
  problem_refresh_ttl_seconds: 1800
  fleet_pacing_ms: 500
  carrier_timeout_seconds: 30
  default_utc_offset: "+05:30"
providers:
  - name: DTDC
    endpoint: "https://dtdc.example/api/{trackingId}"
    method: POST
    headers:
      Content-Type: application/json
    body_template: '{"trkType":"cnno","strcnno":"{trackingId}"}'
    insecure_tls: true
  - name: ICL
    endpoint: "https://icl.example/track"
    history_order: desc
`), 0o600))

	cfg, err := LoadConfig(p)
	require.NoError(t, err)
	require.Equal(t, "u", cfg.Database.Username)
	require.Equal(t, "shipments.delivered", cfg.Kafka.DeliveredTopicName)
	require.Equal(t, 6379, cfg.Redis.Port)
	require.Equal(t, ":8080", cfg.TrackFleet.HTTPAddr)
	require.Equal(t, 3600, cfg.TrackFleet.RefreshTTLSeconds)
	require.Equal(t, 500, cfg.TrackFleet.FleetPacingMillis)
	require.Equal(t, "+05:30", cfg.TrackFleet.DefaultUTCOffset)

	require.Len(t, cfg.Providers, 2)
	require.Equal(t, "DTDC", cfg.Providers[0].Name)
	require.True(t, cfg.Providers[0].InsecureTLS)
	require.Equal(t, `{"trkType":"cnno","strcnno":"{trackingId}"}`, cfg.Providers[0].BodyTemplate)
	require.Equal(t, "application/json", cfg.Providers[0].Headers["Content-Type"])
	require.Equal(t, "desc", cfg.Providers[1].HistoryOrder)
}

func TestParseUTCOffset(t *testing.T) {
	z, err := ParseUTCOffset("+05:30")
	require.NoError(t, err)
	_, secs := time.Date(2025, 1, 1, 0, 0, 0, 0, z).Zone()
	require.Equal(t, 5*3600+30*60, secs)

	z, err = ParseUTCOffset("-03:00")
	require.NoError(t, err)
	_, secs = time.Date(2025, 1, 1, 0, 0, 0, 0, z).Zone()
	require.Equal(t, -3*3600, secs)

	for _, bad := range []string{"", "05:30", "+99:00", "+ab:cd"} {
		_, err := ParseUTCOffset(bad)
		require.Error(t, err, "offset %q", bad)
	}
}
