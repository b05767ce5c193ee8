// Package refresher drives carrier reconciliation: it decides when stored
// shipments are stale, fetches and parses fresh carrier data, enforces the
// terminal-state rules and persists the merged result, one shipment at a
// time.
package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/trackfleet/trackfleet/internal/integrations/carrier"
	"github.com/trackfleet/trackfleet/internal/integrations/carrier/parse"
	"github.com/trackfleet/trackfleet/internal/models"
	"github.com/trackfleet/trackfleet/internal/providers"
	"github.com/trackfleet/trackfleet/internal/status"
	"github.com/trackfleet/trackfleet/internal/storage/pgshipments"
)

var ErrNotFound = errors.New("shipment not found")

type Store interface {
	FindByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error)
	FindActive(ctx context.Context) ([]*models.Shipment, error)
	FindAll(ctx context.Context) ([]*models.Shipment, error)
	ApplyRefresh(ctx context.Context, upd pgshipments.RefreshUpdate) error
}

type Fetcher interface {
	Fetch(ctx context.Context, prov providers.Provider, trackingID string) (carrier.Result, error)
}

// NotificationHook is invoked exactly once when a shipment transitions from
// non-terminal to terminal-delivered within a single refresh.
type NotificationHook func(ctx context.Context, sh *models.Shipment) error

// RunLog persists the audit record of one fleet run.
type RunLog interface {
	RecordRun(ctx context.Context, run pgshipments.RefreshRun) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// ItemLog is the per-shipment outcome of one refresh attempt.
type ItemLog struct {
	TrackingID string `json:"trackingId"`
	Provider   string `json:"provider"`
	RequestURL string `json:"requestUrl,omitempty"`
	HTTPStatus int    `json:"httpStatus,omitempty"`
	NewStatus  string `json:"newStatus,omitempty"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FleetResult aggregates one fleet reconciliation run.
type FleetResult struct {
	Total   int       `json:"total"`
	Updated int       `json:"updated"`
	Failed  int       `json:"failed"`
	Skipped int       `json:"skipped"`
	Logs    []ItemLog `json:"logs"`
}

type Refresher struct {
	store    Store
	registry *providers.Registry
	fetcher  Fetcher
	policy   Policy

	zone   *time.Location
	pacing time.Duration

	hook   NotificationHook
	runLog RunLog

	rl                 RateLimiter
	rateLimitPerMinute int64
}

func New(store Store, registry *providers.Registry, fetcher Fetcher, policy Policy) *Refresher {
	return &Refresher{
		store:    store,
		registry: registry,
		fetcher:  fetcher,
		policy:   policy,
		zone:     parse.DefaultZone,
		pacing:   500 * time.Millisecond,
	}
}

func (r *Refresher) WithPacing(d time.Duration) *Refresher {
	if d > 0 {
		r.pacing = d
	}
	return r
}

func (r *Refresher) WithZone(zone *time.Location) *Refresher {
	if zone != nil {
		r.zone = zone
	}
	return r
}

func (r *Refresher) WithNotificationHook(h NotificationHook) *Refresher {
	r.hook = h
	return r
}

func (r *Refresher) WithRunLog(l RunLog) *Refresher {
	r.runLog = l
	return r
}

func (r *Refresher) WithRateLimiter(rl RateLimiter, perMinute int64) *Refresher {
	r.rl = rl
	if perMinute > 0 {
		r.rateLimitPerMinute = perMinute
	}
	return r
}

// RefreshOne reconciles a single shipment against its carrier. Without
// force, fresh and terminal-delivered records are returned as-is with no
// carrier call.
func (r *Refresher) RefreshOne(ctx context.Context, trackingID string, force bool) (*models.Shipment, ItemLog, error) {
	sh, err := r.store.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, ItemLog{TrackingID: trackingID}, err
	}
	if sh == nil {
		return nil, ItemLog{TrackingID: trackingID}, errors.Wrap(ErrNotFound, trackingID)
	}
	return r.refreshShipment(ctx, sh, force)
}

func (r *Refresher) refreshShipment(ctx context.Context, sh *models.Shipment, force bool) (*models.Shipment, ItemLog, error) {
	now := time.Now().UTC()
	log := ItemLog{TrackingID: sh.TrackingID, Provider: sh.Provider}

	if !force && !r.policy.NeedsRefresh(sh, now) {
		log.Skipped = true
		log.NewStatus = sh.Status
		return sh, log, nil
	}

	prov, ok := r.registry.Get(sh.Provider)
	if !ok {
		log.Error = fmt.Sprintf("provider %q is not configured", sh.Provider)
		return sh, log, errors.Wrap(carrier.ErrProviderConfig, sh.Provider)
	}

	r.waitRateLimit(ctx, prov.Name, now)

	res, err := r.fetcher.Fetch(ctx, prov, sh.OriginalTrackingID)
	log.RequestURL = res.RequestURL
	log.HTTPStatus = res.HTTPStatus
	if err != nil {
		errText := err.Error()
		log.Error = errText
		if errors.Is(err, carrier.ErrProviderConfig) || errors.Is(err, carrier.ErrRequestSetup) {
			return sh, log, err
		}
		// Record the failed attempt; the stored shipment data stays as-is.
		if aerr := r.store.ApplyRefresh(ctx, pgshipments.RefreshUpdate{
			ID:        sh.ID,
			FetchedAt: now,
			Error:     &errText,
		}); aerr != nil {
			return sh, log, aerr
		}
		return sh, log, err
	}

	parsed := parse.Parse(res.Body, prov.Name, sh.OriginalTrackingID, parse.Options{
		Zone:         r.zone,
		HistoryOrder: prov.HistoryOrder,
	})

	out := Reconcile(sh, parsed, force, now)
	if out.Discarded {
		log.Skipped = true
		log.NewStatus = sh.Status
		return sh, log, nil
	}

	wasTerminal := status.IsTerminalDelivered(sh.Status)

	if err := r.store.ApplyRefresh(ctx, pgshipments.RefreshUpdate{
		ID:                sh.ID,
		FetchedAt:         now,
		Status:            out.Status,
		Location:          out.Location,
		EstimatedDelivery: out.EstimatedDelivery,
		Origin:            out.Origin,
		Destination:       out.Destination,
		History:           out.History,
		AdditionalInfo:    out.AdditionalInfo,
		RawResponse:       out.RawResponse,
	}); err != nil {
		return sh, log, err
	}

	updated := *sh
	updated.Status = out.Status
	updated.Location = out.Location
	updated.EstimatedDelivery = out.EstimatedDelivery
	updated.Origin = out.Origin
	updated.Destination = out.Destination
	updated.History = out.History
	updated.AdditionalInfo = out.AdditionalInfo
	updated.RawResponse = out.RawResponse
	updated.LastError = nil
	updated.LastFetched = &now
	updated.LastUpdated = &now

	log.NewStatus = out.Status

	if r.hook != nil && !wasTerminal && status.IsTerminalDelivered(out.Status) {
		// Delivery notification is best-effort; a hook failure must not
		// fail the refresh that already persisted.
		if herr := r.hook(ctx, &updated); herr != nil {
			slog.Error("delivered notification", "tracking_id", updated.TrackingID, "error", herr.Error())
		}
	}

	return &updated, log, nil
}

// RefreshFleet reconciles every candidate shipment sequentially with a fixed
// pacing delay between items. One item's failure never aborts the batch;
// cancellation stops processing between items and leaves already persisted
// records in place.
func (r *Refresher) RefreshFleet(ctx context.Context, force bool) (FleetResult, error) {
	started := time.Now().UTC()

	var (
		candidates []*models.Shipment
		err        error
	)
	if force {
		candidates, err = r.store.FindAll(ctx)
	} else {
		candidates, err = r.store.FindActive(ctx)
	}
	if err != nil {
		return FleetResult{}, err
	}

	res := FleetResult{Total: len(candidates)}
	var runErr error

	for i, sh := range candidates {
		if i > 0 {
			if err := r.pause(ctx); err != nil {
				runErr = err
				break
			}
		}

		_, itemLog, err := r.refreshShipment(ctx, sh, force)
		res.Logs = append(res.Logs, itemLog)

		switch {
		case err == nil && itemLog.Skipped:
			res.Skipped++
		case err == nil:
			res.Updated++
		case errors.Is(err, carrier.ErrProviderConfig):
			res.Skipped++
			slog.Warn("skip shipment", "tracking_id", sh.TrackingID, "error", err.Error())
		default:
			res.Failed++
			slog.Error("refresh shipment", "tracking_id", sh.TrackingID, "error", err.Error())
		}

		if ctx.Err() != nil {
			runErr = ctx.Err()
			break
		}
	}

	finished := time.Now().UTC()
	slog.Info("fleet refresh done",
		"total", res.Total,
		"updated", res.Updated,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"forced", force,
		"duration", finished.Sub(started).String(),
	)

	if r.runLog != nil {
		logsJSON, _ := json.Marshal(res.Logs)
		if err := r.runLog.RecordRun(ctx, pgshipments.RefreshRun{
			StartedAt:  started,
			FinishedAt: finished,
			Forced:     force,
			Total:      res.Total,
			Updated:    res.Updated,
			Failed:     res.Failed,
			Skipped:    res.Skipped,
			Logs:       logsJSON,
		}); err != nil {
			slog.Error("record refresh run", "error", err.Error())
		}
	}

	return res, runErr
}

func (r *Refresher) pause(ctx context.Context) error {
	t := time.NewTimer(r.pacing)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (r *Refresher) waitRateLimit(ctx context.Context, providerName string, now time.Time) {
	if r.rl == nil || r.rateLimitPerMinute <= 0 {
		return
	}
	minuteKey := fmt.Sprintf("rl:provider:%s:%s", providerName, now.Format("200601021504"))
	allowed, n, err := r.rl.Allow(ctx, minuteKey, r.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("rate limiter unavailable", "provider", providerName, "error", err.Error())
		return
	}
	if !allowed {
		slog.Warn("rate limit exceeded", "provider", providerName, "count", n)
		time.Sleep(500 * time.Millisecond)
	}
}
