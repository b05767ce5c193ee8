package parse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseICL_FullConsignment(t *testing.T) {
	raw := []byte(`{
		"ConsignmentDetails_Traking": {
			"current_status_name": "Shipment Delivered",
			"current_location_name": "Chennai",
			"ExpectedDeliveryDate": "2025-03-05",
			"origin_name": "Mumbai",
			"dest_name": "Chennai",
			"consignment_no": "ICL9988",
			"no_of_pieces": 2,
			"actual_weight": "1.5",
			"service_name": "Express"
		},
		"Sheet_History": [
			{"status_date": "2025-03-01 10:00:00", "status": "Booked", "dispatch_location_name": "Mumbai"},
			{"status_date": "2025-03-04 18:20:00", "status": "Delivered", "dispatch_location_name": "Chennai", "Remarks": "Delivered. <a href=\"https://track.example/x\">Track here</a>"}
		]
	}`)

	sh := Parse(raw, "ICL International", "ICL9988", Options{})
	require.Equal(t, "Shipment Delivered", sh.Status)
	require.Equal(t, "Chennai", sh.Location)
	require.Equal(t, "Mumbai", sh.Origin)
	require.Equal(t, "Chennai", sh.Destination)

	require.NotNil(t, sh.EstimatedDelivery)
	// Midnight at UTC+05:30 on the 5th is 18:30 UTC on the 4th.
	require.Equal(t, time.Date(2025, 3, 4, 18, 30, 0, 0, time.UTC), *sh.EstimatedDelivery)

	// Sorted newest first regardless of carrier order.
	require.Len(t, sh.History, 2)
	require.Equal(t, "Delivered", sh.History[0].Status)
	require.Equal(t, "Booked", sh.History[1].Status)

	// Markup and URLs stripped from remarks.
	require.Equal(t, "Delivered. Track here", sh.History[0].Description)

	require.Equal(t, "ICL9988", sh.AdditionalInfo["consignmentNo"])
	require.Equal(t, float64(2), sh.AdditionalInfo["pieces"])
	require.Equal(t, "Express", sh.AdditionalInfo["service"])
}

func TestParseICL_EmptyPayload(t *testing.T) {
	sh := Parse([]byte(`{}`), "ICL Domestic", "X", Options{})
	require.Equal(t, StatusNoTrackingInfo, sh.Status)
	require.Equal(t, "Unknown", sh.Location)
	require.Nil(t, sh.AdditionalInfo)
}

func TestParseICL_HistoryOnly(t *testing.T) {
	raw := []byte(`{
		"ConsignmentDetails_Traking": {},
		"Sheet_History": [
			{"status_date": "2025-03-01 10:00:00", "status": "In Transit"}
		]
	}`)
	sh := Parse(raw, "ICL", "X", Options{})
	require.Equal(t, "In Transit", sh.Status)
	require.Len(t, sh.History, 1)
}
