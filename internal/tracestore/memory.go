package tracestore

import (
	"context"
	"sync"

	"github.com/ppiankov/truckeval/internal/model"
)

// MemoryStore keeps traces and scores in process. Written scores become
// visible on the trace they target, as they would in a real store. Writes
// with an ID already present replace the earlier record.
type MemoryStore struct {
	mu     sync.Mutex
	traces []model.Trace
	scores []model.Score
}

// NewMemoryStore creates a store holding traces in listing order
func NewMemoryStore(traces ...model.Trace) *MemoryStore {
	return &MemoryStore{traces: append([]model.Trace(nil), traces...)}
}

// ListTraces implements Store
func (m *MemoryStore) ListTraces(ctx context.Context, limit int) ([]model.Trace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.traces)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]model.Trace, n)
	for i := 0; i < n; i++ {
		t := m.traces[i]
		t.Scores = append([]model.Score(nil), t.Scores...)
		for _, s := range m.scores {
			if s.TraceID == t.ID {
				t.Scores = append(t.Scores, s)
			}
		}
		out[i] = t
	}
	return out, nil
}

// WriteScore implements Store
func (m *MemoryStore) WriteScore(ctx context.Context, score model.Score) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if score.ID != "" {
		for i, s := range m.scores {
			if s.ID == score.ID {
				m.scores[i] = score
				return nil
			}
		}
	}
	m.scores = append(m.scores, score)
	return nil
}

// TraceScores implements ScoreChecker
func (m *MemoryStore) TraceScores(ctx context.Context, traceID string) ([]model.Score, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var scores []model.Score
	for _, t := range m.traces {
		if t.ID == traceID {
			scores = append(scores, t.Scores...)
			break
		}
	}
	for _, s := range m.scores {
		if s.TraceID == traceID {
			scores = append(scores, s)
		}
	}
	return scores, nil
}

// Scores returns every score written so far, in write order
func (m *MemoryStore) Scores() []model.Score {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Score(nil), m.scores...)
}
