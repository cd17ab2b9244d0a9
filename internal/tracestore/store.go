// Package tracestore is the boundary to the external trace store. The
// auto-scorer only sees the Store interface; a Langfuse-compatible HTTP
// client, an in-memory store and a dry-run wrapper implement it.
package tracestore

import (
	"context"
	"errors"

	"github.com/ppiankov/truckeval/internal/model"
)

// ErrUnavailable wraps transport failures that persisted after retries
var ErrUnavailable = errors.New("trace store unavailable")

// Store lists recorded traces and accepts new score records
type Store interface {
	// ListTraces returns up to limit of the most recent traces, each with
	// its observations and attached scores
	ListTraces(ctx context.Context, limit int) ([]model.Trace, error)

	// WriteScore attaches a score record to a trace
	WriteScore(ctx context.Context, score model.Score) error
}

// ScoreChecker is implemented by stores that can return, fresh, the scores
// a trace currently carries
type ScoreChecker interface {
	TraceScores(ctx context.Context, traceID string) ([]model.Score, error)
}
