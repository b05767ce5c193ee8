package pgshipments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/trackfleet/trackfleet/internal/models"
)

const defaultInitialStatus = "Pending"

const shipmentColumns = `
  id, tracking_id, original_tracking_id, provider,
  status, location, estimated_delivery, origin, destination,
  history, additional_info, raw_response,
  last_error, last_fetched, last_updated,
  created_at, updated_at`

// RefreshUpdate is one reconciled refresh outcome applied atomically to a
// shipment row. When Error is set only the fetch attempt is recorded and the
// previously stored shipment data stays untouched.
type RefreshUpdate struct {
	ID        uint64
	FetchedAt time.Time

	Status            string
	Location          string
	EstimatedDelivery *time.Time
	Origin            string
	Destination       string
	History           []models.HistoryEvent
	AdditionalInfo    map[string]any
	RawResponse       json.RawMessage

	Error *string
}

func (s *Storage) CreateShipments(ctx context.Context, items []models.ShipmentCreateInput) ([]*models.Shipment, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]uint64, 0, len(items))
	for _, it := range items {
		var id uint64
		err := tx.QueryRow(ctx, `
INSERT INTO shipments (
  tracking_id, original_tracking_id, provider, status, history, created_at, updated_at
)
VALUES ($1,$2,$3,$4,'[]'::jsonb,$5,$5)
ON CONFLICT (LOWER(tracking_id))
DO UPDATE SET updated_at = shipments.updated_at
RETURNING id
`, it.TrackingID, it.OriginalTrackingID, it.Provider, defaultInitialStatus, now).Scan(&id)
		if err != nil {
			return nil, errors.Wrap(err, "insert shipment")
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetShipmentsByIDs(ctx, ids)
}

func (s *Storage) GetShipmentsByIDs(ctx context.Context, ids []uint64) ([]*models.Shipment, error) {
	if len(ids) == 0 {
		return []*models.Shipment{}, nil
	}

	rows, err := s.db.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE id = ANY($1)
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	return collectShipments(rows)
}

// FindByTrackingID resolves a shipment by its public tracking id,
// case-insensitively. Returns nil without error when no row matches.
func (s *Storage) FindByTrackingID(ctx context.Context, trackingID string) (*models.Shipment, error) {
	row := s.db.QueryRow(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE LOWER(tracking_id) = LOWER($1)
`, trackingID)

	sh, err := scanShipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select shipment")
	}
	return sh, nil
}

// FindActive returns shipments whose status is not a confirmed terminal
// delivery. Delivery-adjacent qualifiers (out for delivery, scheduled,
// attempted) are still active.
func (s *Storage) FindActive(ctx context.Context) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
WHERE NOT (
  status ILIKE '%deliver%'
  AND status NOT ILIKE '%out for%'
  AND status NOT ILIKE '%schedul%'
  AND status NOT ILIKE '%attempt%'
)
ORDER BY id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select active shipments")
	}
	defer rows.Close()

	return collectShipments(rows)
}

func (s *Storage) FindAll(ctx context.Context) ([]*models.Shipment, error) {
	rows, err := s.db.Query(ctx, `SELECT`+shipmentColumns+`
FROM shipments
ORDER BY id
`)
	if err != nil {
		return nil, errors.Wrap(err, "select shipments")
	}
	defer rows.Close()

	return collectShipments(rows)
}

func (s *Storage) ApplyRefresh(ctx context.Context, upd RefreshUpdate) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if upd.Error != nil && *upd.Error != "" {
		_, err := tx.Exec(ctx, `
UPDATE shipments
SET
  last_fetched = $2,
  last_error = $3,
  updated_at = now()
WHERE id = $1
`, upd.ID, upd.FetchedAt.UTC(), *upd.Error)
		if err != nil {
			return errors.Wrap(err, "update shipment (error)")
		}
	} else {
		historyJSON, err := json.Marshal(upd.History)
		if err != nil {
			return errors.Wrap(err, "marshal history")
		}
		if upd.History == nil {
			historyJSON = []byte("[]")
		}

		var additional any
		if upd.AdditionalInfo != nil {
			b, err := json.Marshal(upd.AdditionalInfo)
			if err != nil {
				return errors.Wrap(err, "marshal additional info")
			}
			additional = b
		}

		var raw *string
		if len(upd.RawResponse) > 0 {
			s := string(upd.RawResponse)
			raw = &s
		}

		_, err = tx.Exec(ctx, `
UPDATE shipments
SET
  status = $3,
  location = $4,
  estimated_delivery = $5,
  origin = $6,
  destination = $7,
  history = $8,
  additional_info = $9,
  raw_response = $10,
  last_error = NULL,
  last_fetched = $2,
  last_updated = $2,
  updated_at = now()
WHERE id = $1
`, upd.ID, upd.FetchedAt.UTC(),
			upd.Status, upd.Location, upd.EstimatedDelivery,
			upd.Origin, upd.Destination, historyJSON, additional, raw)
		if err != nil {
			return errors.Wrap(err, "update shipment (ok)")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShipment(row rowScanner) (*models.Shipment, error) {
	var sh models.Shipment
	var estimatedDelivery *time.Time
	var historyJSON []byte
	var additionalJSON []byte
	var raw *string
	var lastError *string
	var lastFetched, lastUpdated *time.Time

	if err := row.Scan(
		&sh.ID, &sh.TrackingID, &sh.OriginalTrackingID, &sh.Provider,
		&sh.Status, &sh.Location, &estimatedDelivery, &sh.Origin, &sh.Destination,
		&historyJSON, &additionalJSON, &raw,
		&lastError, &lastFetched, &lastUpdated,
		&sh.CreatedAt, &sh.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if len(historyJSON) > 0 {
		if err := json.Unmarshal(historyJSON, &sh.History); err != nil {
			return nil, errors.Wrap(err, "unmarshal history")
		}
	}
	if len(additionalJSON) > 0 {
		if err := json.Unmarshal(additionalJSON, &sh.AdditionalInfo); err != nil {
			return nil, errors.Wrap(err, "unmarshal additional info")
		}
	}
	if raw != nil {
		sh.RawResponse = json.RawMessage(*raw)
	}
	sh.EstimatedDelivery = estimatedDelivery
	sh.LastError = lastError
	sh.LastFetched = lastFetched
	sh.LastUpdated = lastUpdated
	return &sh, nil
}

func collectShipments(rows pgx.Rows) ([]*models.Shipment, error) {
	var out []*models.Shipment
	for rows.Next() {
		sh, err := scanShipment(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan shipment")
		}
		out = append(out, sh)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
