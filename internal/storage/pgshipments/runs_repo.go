package pgshipments

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// RefreshRun is the persisted audit record of one fleet reconciliation run.
type RefreshRun struct {
	ID         uint64          `json:"id"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Forced     bool            `json:"forced"`
	Total      int             `json:"total"`
	Updated    int             `json:"updated"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Logs       json.RawMessage `json:"logs,omitempty"`
}

func (s *Storage) RecordRun(ctx context.Context, run RefreshRun) error {
	var logs any
	if len(run.Logs) > 0 {
		logs = []byte(run.Logs)
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO refresh_runs (started_at, finished_at, forced, total, updated, failed, skipped, logs)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Forced,
		run.Total, run.Updated, run.Failed, run.Skipped, logs)
	return errors.Wrap(err, "insert refresh run")
}

func (s *Storage) ListRuns(ctx context.Context, limit int) ([]*RefreshRun, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := s.db.Query(ctx, `
SELECT id, started_at, finished_at, forced, total, updated, failed, skipped, logs
FROM refresh_runs
ORDER BY started_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select refresh runs")
	}
	defer rows.Close()

	var out []*RefreshRun
	for rows.Next() {
		var r RefreshRun
		var logs []byte
		if err := rows.Scan(
			&r.ID, &r.StartedAt, &r.FinishedAt, &r.Forced,
			&r.Total, &r.Updated, &r.Failed, &r.Skipped, &logs,
		); err != nil {
			return nil, errors.Wrap(err, "scan refresh run")
		}
		if len(logs) > 0 {
			r.Logs = json.RawMessage(logs)
		}
		out = append(out, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
