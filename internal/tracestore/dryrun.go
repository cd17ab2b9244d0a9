package tracestore

import (
	"context"
	"sync"

	"github.com/ppiankov/truckeval/internal/model"
)

// DryRun reads from an underlying store but keeps writes in memory
type DryRun struct {
	store   Store
	mu      sync.Mutex
	written []model.Score
}

// NewDryRun wraps store so that WriteScore never reaches it
func NewDryRun(store Store) *DryRun {
	return &DryRun{store: store}
}

// ListTraces implements Store
func (d *DryRun) ListTraces(ctx context.Context, limit int) ([]model.Trace, error) {
	return d.store.ListTraces(ctx, limit)
}

// WriteScore records score without forwarding it
func (d *DryRun) WriteScore(ctx context.Context, score model.Score) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.written = append(d.written, score)
	return nil
}

// TraceScores returns the underlying store's scores, when it can answer,
// followed by the recorded writes
func (d *DryRun) TraceScores(ctx context.Context, traceID string) ([]model.Score, error) {
	var scores []model.Score
	if checker, ok := d.store.(ScoreChecker); ok {
		stored, err := checker.TraceScores(ctx, traceID)
		if err != nil {
			return nil, err
		}
		scores = stored
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.written {
		if s.TraceID == traceID {
			scores = append(scores, s)
		}
	}
	return scores, nil
}

// Written returns the scores that would have been written
func (d *DryRun) Written() []model.Score {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Score(nil), d.written...)
}
