package pgshipments

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS shipments (
  id BIGSERIAL PRIMARY KEY,
  tracking_id TEXT NOT NULL,
  original_tracking_id TEXT NOT NULL,
  provider TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT '',
  location TEXT NOT NULL DEFAULT '',
  estimated_delivery TIMESTAMPTZ NULL,
  origin TEXT NOT NULL DEFAULT '',
  destination TEXT NOT NULL DEFAULT '',
  history JSONB NOT NULL DEFAULT '[]'::jsonb,
  additional_info JSONB NULL,
  raw_response TEXT NULL,
  last_error TEXT NULL,
  last_fetched TIMESTAMPTZ NULL,
  last_updated TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		// Tracking ids are hand-typed; lookups must be case-insensitive and
		// unique regardless of casing.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_shipments_tracking_id_ci ON shipments(LOWER(tracking_id))`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_last_updated ON shipments(last_updated)`,
		`
CREATE TABLE IF NOT EXISTS refresh_runs (
  id BIGSERIAL PRIMARY KEY,
  started_at TIMESTAMPTZ NOT NULL,
  finished_at TIMESTAMPTZ NOT NULL,
  forced BOOLEAN NOT NULL DEFAULT FALSE,
  total INT NOT NULL,
  updated INT NOT NULL,
  failed INT NOT NULL,
  skipped INT NOT NULL,
  logs JSONB NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_runs_started_at ON refresh_runs(started_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
