package refresher

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trackfleet/trackfleet/internal/integrations/carrier"
	"github.com/trackfleet/trackfleet/internal/models"
	"github.com/trackfleet/trackfleet/internal/providers"
	"github.com/trackfleet/trackfleet/internal/status"
	"github.com/trackfleet/trackfleet/internal/storage/pgshipments"
)

type fakeStore struct {
	shipments []*models.Shipment
	applied   []pgshipments.RefreshUpdate
	runs      []pgshipments.RefreshRun
}

func (f *fakeStore) FindByTrackingID(_ context.Context, trackingID string) (*models.Shipment, error) {
	for _, sh := range f.shipments {
		if strings.EqualFold(sh.TrackingID, trackingID) {
			return sh, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindActive(context.Context) ([]*models.Shipment, error) {
	var out []*models.Shipment
	for _, sh := range f.shipments {
		if !status.IsTerminalDelivered(sh.Status) {
			out = append(out, sh)
		}
	}
	return out, nil
}

func (f *fakeStore) FindAll(context.Context) ([]*models.Shipment, error) {
	return f.shipments, nil
}

func (f *fakeStore) ApplyRefresh(_ context.Context, upd pgshipments.RefreshUpdate) error {
	f.applied = append(f.applied, upd)
	for _, sh := range f.shipments {
		if sh.ID != upd.ID {
			continue
		}
		at := upd.FetchedAt
		if upd.Error != nil && *upd.Error != "" {
			sh.LastError = upd.Error
			sh.LastFetched = &at
			return nil
		}
		sh.Status = upd.Status
		sh.Location = upd.Location
		sh.EstimatedDelivery = upd.EstimatedDelivery
		sh.Origin = upd.Origin
		sh.Destination = upd.Destination
		sh.History = upd.History
		sh.AdditionalInfo = upd.AdditionalInfo
		sh.RawResponse = upd.RawResponse
		sh.LastError = nil
		sh.LastFetched = &at
		sh.LastUpdated = &at
		return nil
	}
	return nil
}

func (f *fakeStore) RecordRun(_ context.Context, run pgshipments.RefreshRun) error {
	f.runs = append(f.runs, run)
	return nil
}

type fetchReply struct {
	res carrier.Result
	err error
}

type fakeFetcher struct {
	replies map[string]fetchReply
	calls   int
	onFetch func()
}

func (f *fakeFetcher) Fetch(_ context.Context, prov providers.Provider, trackingID string) (carrier.Result, error) {
	f.calls++
	if f.onFetch != nil {
		f.onFetch()
	}
	r, ok := f.replies[trackingID]
	if !ok {
		return carrier.Result{}, carrier.ErrNetwork
	}
	return r.res, r.err
}

func testRegistry() *providers.Registry {
	return providers.NewRegistry([]providers.Provider{
		{Name: "Acme", Endpoint: "https://acme.example/track/{trackingId}", Method: "GET"},
	})
}

func staleShipment(id uint64, trackingID, original, st string) *models.Shipment {
	past := time.Now().UTC().Add(-2 * time.Hour)
	return &models.Shipment{
		ID:                 id,
		TrackingID:         trackingID,
		OriginalTrackingID: original,
		Provider:           "Acme",
		Status:             st,
		LastFetched:        &past,
		LastUpdated:        &past,
	}
}

func newTestRefresher(store *fakeStore, fetcher *fakeFetcher) *Refresher {
	return New(store, testRegistry(), fetcher, NewPolicy(time.Hour, 30*time.Minute)).
		WithPacing(time.Millisecond)
}

func TestRefreshOne_TerminalSkipsCarrierCall(t *testing.T) {
	store := &fakeStore{shipments: []*models.Shipment{
		staleShipment(1, "TF-A1", "D1", "Delivered"),
	}}
	fetcher := &fakeFetcher{}
	r := newTestRefresher(store, fetcher)

	sh, itemLog, err := r.RefreshOne(context.Background(), "TF-A1", false)
	require.NoError(t, err)
	require.Equal(t, "Delivered", sh.Status)
	require.True(t, itemLog.Skipped)
	require.Zero(t, fetcher.calls)
	require.Empty(t, store.applied)
}

func TestRefreshOne_UpdatesFromCarrier(t *testing.T) {
	store := &fakeStore{shipments: []*models.Shipment{
		staleShipment(1, "TF-A1", "D1", "Pending"),
	}}
	fetcher := &fakeFetcher{replies: map[string]fetchReply{
		"D1": {res: carrier.Result{
			Body:       []byte(`{"status":"In Transit","location":"Delhi"}`),
			RequestURL: "https://acme.example/track/D1",
			HTTPStatus: 200,
		}},
	}}
	r := newTestRefresher(store, fetcher)

	sh, itemLog, err := r.RefreshOne(context.Background(), "tf-a1", false)
	require.NoError(t, err)
	require.Equal(t, "In Transit", sh.Status)
	require.Equal(t, "Delhi", sh.Location)
	require.NotNil(t, sh.LastUpdated)

	require.Equal(t, "TF-A1", itemLog.TrackingID)
	require.Equal(t, "https://acme.example/track/D1", itemLog.RequestURL)
	require.Equal(t, 200, itemLog.HTTPStatus)
	require.Equal(t, "In Transit", itemLog.NewStatus)

	require.Len(t, store.applied, 1)
	require.Equal(t, "In Transit", store.applied[0].Status)
	// The status transition is recorded in history.
	last := store.applied[0].History[len(store.applied[0].History)-1]
	require.Equal(t, "Status updated to In Transit", last.Description)
}

func TestRefreshOne_NotFound(t *testing.T) {
	r := newTestRefresher(&fakeStore{}, &fakeFetcher{})

	_, _, err := r.RefreshOne(context.Background(), "TF-NOPE", false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshOne_FetchFailureKeepsStoredData(t *testing.T) {
	store := &fakeStore{shipments: []*models.Shipment{
		staleShipment(1, "TF-A1", "D1", "In Transit"),
	}}
	fetcher := &fakeFetcher{} // no reply configured, every fetch fails
	r := newTestRefresher(store, fetcher)

	sh, itemLog, err := r.RefreshOne(context.Background(), "TF-A1", false)
	require.ErrorIs(t, err, carrier.ErrNetwork)
	require.Equal(t, "In Transit", sh.Status)
	require.NotEmpty(t, itemLog.Error)

	// The attempt is recorded without touching shipment data.
	require.Len(t, store.applied, 1)
	require.NotNil(t, store.applied[0].Error)
	require.Equal(t, "In Transit", store.shipments[0].Status)
	require.NotNil(t, store.shipments[0].LastError)
}

func TestRefreshOne_UnknownProviderIsConfigError(t *testing.T) {
	sh := staleShipment(1, "TF-A1", "D1", "Pending")
	sh.Provider = "Nobody"
	store := &fakeStore{shipments: []*models.Shipment{sh}}
	fetcher := &fakeFetcher{}
	r := newTestRefresher(store, fetcher)

	_, itemLog, err := r.RefreshOne(context.Background(), "TF-A1", false)
	require.ErrorIs(t, err, carrier.ErrProviderConfig)
	require.NotEmpty(t, itemLog.Error)
	require.Zero(t, fetcher.calls)
}

func TestRefreshOne_ForceBypassesPolicy(t *testing.T) {
	now := time.Now().UTC()
	sh := staleShipment(1, "TF-A1", "D1", "In Transit")
	sh.LastUpdated = &now // fresh, policy would skip
	store := &fakeStore{shipments: []*models.Shipment{sh}}
	fetcher := &fakeFetcher{replies: map[string]fetchReply{
		"D1": {res: carrier.Result{Body: []byte(`{"status":"Out for Delivery"}`), HTTPStatus: 200}},
	}}
	r := newTestRefresher(store, fetcher)

	got, _, err := r.RefreshOne(context.Background(), "TF-A1", true)
	require.NoError(t, err)
	require.Equal(t, "Out for Delivery", got.Status)
	require.Equal(t, 1, fetcher.calls)
}

func TestRefreshFleet_PartialFailure(t *testing.T) {
	store := &fakeStore{shipments: []*models.Shipment{
		staleShipment(1, "TF-A1", "D1", "Pending"),
		staleShipment(2, "TF-A2", "D2", "In Transit"),
		staleShipment(3, "TF-A3", "D3", "Pending"),
	}}
	fetcher := &fakeFetcher{replies: map[string]fetchReply{
		"D1": {res: carrier.Result{Body: []byte(`{"status":"In Transit"}`), HTTPStatus: 200}},
		// D2 missing: fails with a network error.
		"D3": {res: carrier.Result{Body: []byte(`{"status":"Delivered"}`), HTTPStatus: 200}},
	}}
	r := newTestRefresher(store, fetcher)

	res, err := r.RefreshFleet(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 3, res.Total)
	require.Equal(t, 2, res.Updated)
	require.Equal(t, 1, res.Failed)
	require.Zero(t, res.Skipped)
	require.Len(t, res.Logs, 3)

	// The failure did not abort the batch: the third shipment got updated.
	require.Equal(t, "Delivered", store.shipments[2].Status)
}

func TestRefreshFleet_ExcludesDeliveredUnlessForced(t *testing.T) {
	store := &fakeStore{shipments: []*models.Shipment{
		staleShipment(1, "TF-A1", "D1", "Delivered"),
		staleShipment(2, "TF-A2", "D2", "In Transit"),
	}}
	fetcher := &fakeFetcher{replies: map[string]fetchReply{
		"D1": {res: carrier.Result{Body: []byte(`{"status":"Delivered"}`), HTTPStatus: 200}},
		"D2": {res: carrier.Result{Body: []byte(`{"status":"In Transit"}`), HTTPStatus: 200}},
	}}
	r := newTestRefresher(store, fetcher)

	res, err := r.RefreshFleet(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)

	forced, err := r.RefreshFleet(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 2, forced.Total)
}

func TestRefreshFleet_NotificationExactlyOnce(t *testing.T) {
	store := &fakeStore{shipments: []*models.Shipment{
		staleShipment(1, "TF-A1", "D1", "Out for Delivery"),
	}}
	fetcher := &fakeFetcher{replies: map[string]fetchReply{
		"D1": {res: carrier.Result{Body: []byte(`{"status":"Delivered"}`), HTTPStatus: 200}},
	}}

	notified := 0
	r := newTestRefresher(store, fetcher).
		WithNotificationHook(func(_ context.Context, sh *models.Shipment) error {
			notified++
			require.Equal(t, "Delivered", sh.Status)
			return nil
		})

	_, err := r.RefreshFleet(context.Background(), false)
	require.NoError(t, err)
	require.Equal(t, 1, notified)

	// Second run: the record is terminal now, no candidates, no second signal.
	res, err := r.RefreshFleet(context.Background(), false)
	require.NoError(t, err)
	require.Zero(t, res.Total)
	require.Equal(t, 1, notified)

	// Even a forced re-fetch of an already delivered record stays silent.
	_, err = r.RefreshFleet(context.Background(), true)
	require.NoError(t, err)
	require.Equal(t, 1, notified)
}

func TestRefreshFleet_CancellationStopsBetweenItems(t *testing.T) {
	store := &fakeStore{shipments: []*models.Shipment{
		staleShipment(1, "TF-A1", "D1", "Pending"),
		staleShipment(2, "TF-A2", "D2", "Pending"),
		staleShipment(3, "TF-A3", "D3", "Pending"),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &fakeFetcher{
		replies: map[string]fetchReply{
			"D1": {res: carrier.Result{Body: []byte(`{"status":"In Transit"}`), HTTPStatus: 200}},
		},
		onFetch: func() { cancel() },
	}
	r := newTestRefresher(store, fetcher)

	res, err := r.RefreshFleet(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
	// The first item completed and was persisted; the rest never ran.
	require.Len(t, res.Logs, 1)
	require.Equal(t, 1, res.Updated)
	require.Equal(t, "In Transit", store.shipments[0].Status)
}

func TestRefreshFleet_RecordsRun(t *testing.T) {
	store := &fakeStore{shipments: []*models.Shipment{
		staleShipment(1, "TF-A1", "D1", "Pending"),
	}}
	fetcher := &fakeFetcher{replies: map[string]fetchReply{
		"D1": {res: carrier.Result{Body: []byte(`{"status":"In Transit"}`), HTTPStatus: 200}},
	}}
	r := newTestRefresher(store, fetcher).WithRunLog(store)

	_, err := r.RefreshFleet(context.Background(), false)
	require.NoError(t, err)
	require.Len(t, store.runs, 1)
	require.Equal(t, 1, store.runs[0].Total)
	require.Equal(t, 1, store.runs[0].Updated)
	require.NotEmpty(t, store.runs[0].Logs)
}
