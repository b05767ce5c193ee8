package refresher

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Worker runs fleet reconciliation on a fixed interval. Trigger forces an
// extra cycle between ticks.
type Worker struct {
	refr     *Refresher
	interval time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalCycles         atomic.Int64
	totalShipments      atomic.Int64
	totalUpdated        atomic.Int64
	totalFailed         atomic.Int64
	totalSkipped        atomic.Int64
	inCycle             atomic.Bool
	lastErrorMu         sync.Mutex
	lastError           string
}

func NewWorker(refr *Refresher, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Worker{
		refr:              refr,
		interval:          interval,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// Trigger forces an immediate fleet cycle (best-effort, non-blocking).
func (w *Worker) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type WorkerStats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalCycles    int64      `json:"totalCycles"`
	TotalShipments int64      `json:"totalShipments"`
	TotalUpdated   int64      `json:"totalUpdated"`
	TotalFailed    int64      `json:"totalFailed"`
	TotalSkipped   int64      `json:"totalSkipped"`
	InCycle        bool       `json:"inCycle"`
	LastError      string     `json:"lastError,omitempty"`
}

func (w *Worker) Stats() WorkerStats {
	st := WorkerStats{
		StartedAt:      time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalCycles:    w.totalCycles.Load(),
		TotalShipments: w.totalShipments.Load(),
		TotalUpdated:   w.totalUpdated.Load(),
		TotalFailed:    w.totalFailed.Load(),
		TotalSkipped:   w.totalSkipped.Load(),
		InCycle:        w.inCycle.Load(),
	}
	if n := w.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.runOnce(ctx)
		case <-w.triggerCh:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	w.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())
	w.inCycle.Store(true)
	defer w.inCycle.Store(false)

	res, err := w.refr.RefreshFleet(ctx, false)
	w.totalCycles.Add(1)
	w.totalShipments.Add(int64(res.Total))
	w.totalUpdated.Add(int64(res.Updated))
	w.totalFailed.Add(int64(res.Failed))
	w.totalSkipped.Add(int64(res.Skipped))

	if err != nil && ctx.Err() == nil {
		slog.Error("fleet cycle", "error", err.Error())
		w.lastErrorMu.Lock()
		w.lastError = err.Error()
		w.lastErrorMu.Unlock()
	}
}
