// Package shipments is the registration and read path. Reads are
// staleness-aware: a stale record triggers an inline reconciliation attempt
// and falls back to the stored data when the carrier is unreachable.
package shipments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trackfleet/trackfleet/internal/cache"
	"github.com/trackfleet/trackfleet/internal/models"
	"github.com/trackfleet/trackfleet/internal/providers"
	"github.com/trackfleet/trackfleet/internal/services/refresher"
	"github.com/trackfleet/trackfleet/internal/storage/pgshipments"
)

var ErrNotFound = errors.New("shipment not found")

type Repository interface {
	CreateShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error)
	FindByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error)
	FindAll(ctx context.Context) ([]*models.Shipment, error)
}

type Reconciler interface {
	RefreshOne(ctx context.Context, trackingID string, force bool) (*models.Shipment, refresher.ItemLog, error)
	RefreshFleet(ctx context.Context, force bool) (refresher.FleetResult, error)
}

// RunsRepository reads the fleet run audit log.
type RunsRepository interface {
	ListRuns(ctx context.Context, limit int) ([]*pgshipments.RefreshRun, error)
}

type Service struct {
	repo       Repository
	registry   *providers.Registry
	reconciler Reconciler
	policy     refresher.Policy
	runs       RunsRepository

	cache      cache.BytesCache
	currentTTL time.Duration
}

func New(repo Repository, registry *providers.Registry, reconciler Reconciler, policy refresher.Policy) *Service {
	return &Service{
		repo:       repo,
		registry:   registry,
		reconciler: reconciler,
		policy:     policy,
	}
}

func (s *Service) WithCache(c cache.BytesCache, currentTTL time.Duration) *Service {
	s.cache = c
	s.currentTTL = currentTTL
	return s
}

func (s *Service) WithRuns(r RunsRepository) *Service {
	s.runs = r
	return s
}

// Register creates shipments, generating a tracking id when the caller did
// not supply one. Duplicate tracking ids within one call collapse to the
// first occurrence.
func (s *Service) Register(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error) {
	if len(items) == 0 {
		return nil, errors.New("items is empty")
	}
	if len(items) > 10_000 {
		return nil, errors.New("too many items (max 10000)")
	}

	clean := make([]models.ShipmentCreateInput, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if it.Provider == "" {
			return nil, errors.New("provider is required")
		}
		if it.OriginalTrackingID == "" {
			return nil, errors.New("originalTrackingId is required")
		}
		if _, ok := s.registry.Get(it.Provider); !ok {
			return nil, errors.Errorf("provider %q is not configured", it.Provider)
		}
		if it.TrackingID == "" {
			it.TrackingID = newTrackingID()
		}
		k := strings.ToLower(it.TrackingID)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		clean = append(clean, it)
	}

	return s.repo.CreateShipments(ctx, clean)
}

// Get returns the current shipment state. A cached copy short-circuits; a
// stale stored record triggers an inline refresh, falling back to the stored
// data when the refresh fails.
func (s *Service) Get(ctx context.Context, trackingID string) (*models.Shipment, error) {
	if trackingID == "" {
		return nil, errors.New("trackingId is required")
	}

	if s.cache != nil && s.currentTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, currentKey(trackingID)); err == nil && ok {
			var sh models.Shipment
			if json.Unmarshal(b, &sh) == nil {
				return &sh, nil
			}
		}
	}

	sh, err := s.repo.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, errors.Wrap(ErrNotFound, trackingID)
	}

	if s.policy.NeedsRefresh(sh, time.Now().UTC()) {
		refreshed, _, err := s.reconciler.RefreshOne(ctx, sh.TrackingID, false)
		if err != nil {
			// Serve the stored data; the next scheduled cycle retries.
			slog.Warn("inline refresh failed", "tracking_id", sh.TrackingID, "error", err.Error())
		} else {
			sh = refreshed
		}
	}

	s.primeCache(ctx, sh)
	return sh, nil
}

// History returns the stored event history without touching the carrier.
func (s *Service) History(ctx context.Context, trackingID string) ([]models.HistoryEvent, error) {
	sh, err := s.repo.FindByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}
	if sh == nil {
		return nil, errors.Wrap(ErrNotFound, trackingID)
	}
	return sh.History, nil
}

func (s *Service) List(ctx context.Context) ([]*models.Shipment, error) {
	return s.repo.FindAll(ctx)
}

// Refresh reconciles one shipment on demand. The cached copy is invalidated
// up front so a failed refresh never keeps serving pre-refresh state, then
// re-primed on success.
func (s *Service) Refresh(ctx context.Context, trackingID string, force bool) (*models.Shipment, refresher.ItemLog, error) {
	s.invalidateCache(ctx, trackingID)
	sh, itemLog, err := s.reconciler.RefreshOne(ctx, trackingID, force)
	if err != nil {
		return sh, itemLog, err
	}
	s.primeCache(ctx, sh)
	return sh, itemLog, nil
}

func (s *Service) RefreshFleet(ctx context.Context, force bool) (refresher.FleetResult, error) {
	return s.reconciler.RefreshFleet(ctx, force)
}

// ListRuns returns recent fleet run audit records, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*pgshipments.RefreshRun, error) {
	if s.runs == nil {
		return nil, errors.New("run history is not available")
	}
	return s.runs.ListRuns(ctx, limit)
}

func (s *Service) invalidateCache(ctx context.Context, trackingID string) {
	if s.cache == nil || trackingID == "" {
		return
	}
	_ = s.cache.Delete(ctx, currentKey(trackingID))
}

func (s *Service) primeCache(ctx context.Context, sh *models.Shipment) {
	if s.cache == nil || s.currentTTL <= 0 || sh == nil {
		return
	}
	b, err := json.Marshal(sh)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, currentKey(sh.TrackingID), b, s.currentTTL)
}

func currentKey(trackingID string) string {
	return fmt.Sprintf("shipment:%s:current", strings.ToLower(trackingID))
}

func newTrackingID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "TF-" + id[:10]
}
