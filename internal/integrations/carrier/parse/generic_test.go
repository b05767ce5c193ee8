package parse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/stretchr/testify/require"
)

func TestParseGeneric_DirectFields(t *testing.T) {
	raw := []byte(`{
		"status": "In Transit",
		"currentLocation": "Nagpur",
		"eta": "2025-05-01",
		"origin": "Kolkata",
		"toLocation": "Nagpur",
		"events": [
			{"date": "2025-04-28 10:00", "status": "Picked up", "location": "Kolkata"},
			{"date": "2025-04-29 22:00", "description": "Linehaul departed", "remarks": "On schedule"}
		]
	}`)

	sh := Parse(raw, "Bluedart", "BD1", Options{})
	require.Equal(t, "In Transit", sh.Status)
	require.Equal(t, "Nagpur", sh.Location)
	require.Equal(t, "Kolkata", sh.Origin)
	require.Equal(t, "Nagpur", sh.Destination)
	require.NotNil(t, sh.EstimatedDelivery)

	require.Len(t, sh.History, 2)
	require.Equal(t, "Picked up", sh.History[0].Status)
	require.Equal(t, "Linehaul departed", sh.History[1].Status)
	require.Equal(t, "Linehaul departed", sh.History[1].Description)
}

func TestParseGeneric_NestedSearch(t *testing.T) {
	raw := []byte(`{
		"meta": {"requestId": "abc"},
		"result": {
			"shipment": {
				"trackingStatus": "Delivered",
				"details": {"lastLocation": "Ahmedabad"}
			}
		}
	}`)
	sh := Parse(raw, "SomeNewCarrier", "X", Options{})
	require.Equal(t, "Delivered", sh.Status)
	require.Equal(t, "Ahmedabad", sh.Location)
}

func TestParseGeneric_FieldPriorityOrder(t *testing.T) {
	// "status" outranks "shipmentStatus" even when the latter is shallower.
	raw := []byte(`{
		"shipmentStatus": "Pending",
		"wrapper": {"status": "In Transit"}
	}`)
	sh := Parse(raw, "Whatever", "X", Options{})
	require.Equal(t, "In Transit", sh.Status)
}

func TestParseGeneric_SkipsNonScalarStatus(t *testing.T) {
	raw := []byte(`{
		"status": {"code": 1},
		"trackingStatus": "Pending"
	}`)
	sh := Parse(raw, "Whatever", "X", Options{})
	require.Equal(t, "Pending", sh.Status)
}

func TestParseGeneric_EventsWithoutStatusFieldAreNotNoData(t *testing.T) {
	raw := []byte(`{
		"events": [
			{"timestamp": "2025-04-28 10:00", "description": "Reached hub"}
		]
	}`)
	sh := Parse(raw, "Mystery", "X", Options{})
	require.Equal(t, "Unknown", sh.Status)
	require.Len(t, sh.History, 1)
	require.Equal(t, "Reached hub", sh.History[0].Status)
}

func TestParseGeneric_NoSignal(t *testing.T) {
	sh := Parse([]byte(`{"foo": "bar"}`), "Mystery", "X", Options{})
	require.Equal(t, StatusNoTrackingInfo, sh.Status)
	require.Equal(t, "Unknown", sh.Location)
}

func TestSearchNested_DepthBounded(t *testing.T) {
	// Build a payload nested beyond the probe depth; the target must not be
	// found and the search must terminate.
	inner := `{"status": "Buried"}`
	for i := 0; i < maxProbeDepth+3; i++ {
		inner = fmt.Sprintf(`{"level%d": %s}`, i, inner)
	}
	require.Greater(t, strings.Count(inner, "{"), maxProbeDepth)

	_, ok := searchNested(gjson.Parse(inner), "status", 0)
	require.False(t, ok)
}

func TestSearchNested_TraversesArrays(t *testing.T) {
	raw := `{"packages": [{"info": {"deliveryStatus": "Out for Delivery"}}]}`
	r, ok := searchNested(gjson.Parse(raw), "deliveryStatus", 0)
	require.True(t, ok)
	require.Equal(t, "Out for Delivery", r.String())
}
