// Package autoscore assigns validity scores to stored traces that have none.
//
// Each trace moves through Unscored → Evaluating → Scored. Only the last
// transition writes to the trace store, and it is guarded three ways: an
// atomic claim in the local ledger, a fresh re-check against the store right
// before the first write, and deterministic score IDs so a store that upserts
// collapses any duplicate that slips through. The IDs also let a later run
// tell its own records from foreign scores and finish a partially written
// trace.
package autoscore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/ppiankov/truckeval/internal/cache"
	"github.com/ppiankov/truckeval/internal/grade"
	"github.com/ppiankov/truckeval/internal/model"
	"github.com/ppiankov/truckeval/internal/tracestore"
	"github.com/ppiankov/truckeval/internal/worker"
)

// Defaults applied to zero Options fields
const (
	DefaultLimit   = 50
	DefaultWorkers = 4
)

// State is the position of a trace in the scoring lifecycle
type State int

const (
	Unscored State = iota
	Evaluating
	Scored
)

func (s State) String() string {
	switch s {
	case Unscored:
		return "unscored"
	case Evaluating:
		return "evaluating"
	case Scored:
		return "scored"
	default:
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
}

// Outcome classifies what happened to one trace during a run
type Outcome string

const (
	OutcomeScored        Outcome = "scored"         // Records written
	OutcomeNoSignal      Outcome = "no_signal"      // No generation carried a validity marker
	OutcomeAlreadyScored Outcome = "already_scored" // Trace carried foreign scores, or all of ours, when listed or on re-check
	OutcomeClaimed       Outcome = "claimed"        // Ledger already held the trace
	OutcomeMalformed     Outcome = "malformed"      // Missing id or observations
	OutcomeFailed        Outcome = "failed"         // Store or ledger failure
	OutcomeCancelled     Outcome = "cancelled"      // Run stopped before the trace finished
)

// Options configures a Scorer
type Options struct {
	Limit     int           // Traces fetched per run
	Workers   int           // Traces processed concurrently
	ScoreName string        // Name of emitted score records
	LedgerTTL time.Duration // How long a claim is kept; 0 uses the ledger default
	Metrics   *Metrics      // Optional
}

// Summary reports the outcome counts of one run
type Summary struct {
	Listed        int           `json:"listed"`
	Scored        int           `json:"scored"`
	NoSignal      int           `json:"no_signal"`
	AlreadyScored int           `json:"already_scored"`
	Claimed       int           `json:"claimed"`
	Malformed     int           `json:"malformed"`
	Failed        int           `json:"failed"`
	Cancelled     int           `json:"cancelled"`
	Records       []model.Score `json:"records,omitempty"` // Every record written, in completion order
}

// Flagged counts records with value 0
func (s Summary) Flagged() int {
	n := 0
	for _, r := range s.Records {
		if r.Value == 0 {
			n++
		}
	}
	return n
}

// Approved counts records with value 1
func (s Summary) Approved() int {
	return len(s.Records) - s.Flagged()
}

func (s *Summary) add(r *traceResult) {
	switch r.outcome {
	case OutcomeScored:
		s.Scored++
	case OutcomeNoSignal:
		s.NoSignal++
	case OutcomeAlreadyScored:
		s.AlreadyScored++
	case OutcomeClaimed:
		s.Claimed++
	case OutcomeMalformed:
		s.Malformed++
	case OutcomeFailed:
		s.Failed++
	case OutcomeCancelled:
		s.Cancelled++
	}
	s.Records = append(s.Records, r.written...)
}

// Scorer runs the validity classifier over stored traces
type Scorer struct {
	store      tracestore.Store
	classifier *grade.Validity
	ledger     cache.Cache
	opts       Options
}

// New creates a Scorer. The ledger records claimed traces; pass a fresh
// memory cache when no persistent ledger is configured.
func New(store tracestore.Store, classifier *grade.Validity, ledger cache.Cache, opts Options) *Scorer {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.ScoreName == "" {
		opts.ScoreName = model.DefaultAutoScoreName
	}
	return &Scorer{
		store:      store,
		classifier: classifier,
		ledger:     ledger,
		opts:       opts,
	}
}

// traceResult is the worker.Result of one trace
type traceResult struct {
	traceID string
	state   State
	outcome Outcome
	written []model.Score
	err     error
}

func (r *traceResult) GetError() error { return r.err }

// abort returns the trace to Unscored. Failures caused by the run being
// cancelled are reported as cancellations, not errors.
func (r *traceResult) abort(ctx context.Context, err error) *traceResult {
	r.state = Unscored
	if ctx.Err() != nil {
		r.outcome = OutcomeCancelled
		return r
	}
	r.outcome = OutcomeFailed
	r.err = err
	return r
}

// Run lists recent traces once and scores every eligible one. A listing
// failure, or any write failure, is returned; after a write failure the
// remaining traces are cancelled. Malformed traces are skipped with a
// warning. The summary is valid even when an error is returned.
func (s *Scorer) Run(ctx context.Context) (Summary, error) {
	log := clog.FromContext(ctx)

	traces, err := s.store.ListTraces(ctx, s.opts.Limit)
	if err != nil {
		s.opts.Metrics.observeError()
		return Summary{}, fmt.Errorf("list traces: %w", err)
	}

	summary := Summary{Listed: len(traces)}
	log.With("traces", len(traces)).With("workers", s.opts.Workers).Info("Auto-scoring traces")

	pool := worker.NewPool(ctx, s.opts.Workers)
	pool.Start()

	for _, trace := range traces {
		queued := pool.Submit(worker.JobFunc(func(ctx context.Context) worker.Result {
			r := s.scoreTrace(ctx, trace)
			if r.err != nil {
				// A failed write aborts the batch
				pool.Cancel()
			}
			return r
		}))
		if !queued {
			break
		}
	}

	var errs []error
	results := pool.Wait()
	for _, res := range results {
		r := res.(*traceResult)
		log.With("trace", r.traceID).With("state", r.state.String()).With("outcome", string(r.outcome)).Debug("Trace finished")
		summary.add(r)
		s.opts.Metrics.observeTrace(r.outcome)
		for _, rec := range r.written {
			s.opts.Metrics.observeRecord(rec.Value)
		}
		if r.err != nil {
			s.opts.Metrics.observeError()
			errs = append(errs, r.err)
		}
	}

	// Traces never picked up by a worker
	summary.Cancelled += len(traces) - len(results)

	if err := errors.Join(errs...); err != nil {
		return summary, err
	}
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	s.opts.Metrics.observeRun()
	return summary, nil
}

// scoreTrace drives one trace through the lifecycle
func (s *Scorer) scoreTrace(ctx context.Context, trace model.Trace) *traceResult {
	r := &traceResult{traceID: trace.ID, state: Unscored}
	log := clog.FromContext(ctx).With("trace", trace.ID)

	if err := trace.Validate(); err != nil {
		log.With("error", err.Error()).Warn("Skipping malformed trace")
		r.outcome = OutcomeMalformed
		return r
	}

	// Unscored → Evaluating
	r.state = Evaluating
	records := s.Evaluate(trace)
	todo, ok := pending(records, trace.Scores)
	if !ok || (trace.IsScored() && len(todo) == 0) {
		r.state = Unscored
		r.outcome = OutcomeAlreadyScored
		return r
	}
	if len(todo) == 0 {
		r.state = Unscored
		r.outcome = OutcomeNoSignal
		return r
	}
	if len(todo) < len(records) {
		log.With("missing", len(todo)).Info("Resuming partially scored trace")
	}

	if ctx.Err() != nil {
		r.state = Unscored
		r.outcome = OutcomeCancelled
		return r
	}

	key := cache.CacheKey(trace.ID, s.opts.ScoreName)
	claim := []byte(time.Now().UTC().Format(time.RFC3339))
	if err := s.ledger.Add(key, claim, s.opts.LedgerTTL); err != nil {
		r.state = Unscored
		if errors.Is(err, cache.ErrExists) {
			log.Debug("Trace already claimed, skipping")
			r.outcome = OutcomeClaimed
			return r
		}
		return r.abort(ctx, fmt.Errorf("claim trace %s: %w", trace.ID, err))
	}

	release := func() {
		if err := s.ledger.Delete(key); err != nil {
			log.With("error", err.Error()).Warn("Failed to release ledger claim")
		}
	}

	if checker, ok := s.store.(tracestore.ScoreChecker); ok {
		current, err := checker.TraceScores(ctx, trace.ID)
		if err != nil {
			release()
			return r.abort(ctx, fmt.Errorf("re-check trace %s: %w", trace.ID, err))
		}
		var ours bool
		todo, ours = pending(records, current)
		if !ours || len(todo) == 0 {
			release()
			r.state = Unscored
			r.outcome = OutcomeAlreadyScored
			return r
		}
	}

	// Evaluating → Scored
	for _, rec := range todo {
		if err := s.store.WriteScore(ctx, rec); err != nil {
			release()
			return r.abort(ctx, fmt.Errorf("write score for trace %s: %w", trace.ID, err))
		}
		r.written = append(r.written, rec)
	}

	r.state = Scored
	r.outcome = OutcomeScored
	log.With("records", len(r.written)).Info("Scored trace")
	return r
}

// Evaluate classifies every GENERATION observation of trace and returns the
// score records to write, in observation order. Generations without a
// validity marker produce nothing.
func (s *Scorer) Evaluate(trace model.Trace) []model.Score {
	var records []model.Score
	for i, obs := range trace.Observations {
		if obs.Type != model.ObservationGeneration {
			continue
		}
		verdict, ok := s.classifier.Classify(obs.Output)
		if !ok {
			continue
		}
		records = append(records, model.Score{
			ID:            model.ScoreID(trace.ID, s.opts.ScoreName, obs.ID, i),
			TraceID:       trace.ID,
			ObservationID: obs.ID,
			Name:          s.opts.ScoreName,
			Value:         verdict.Score,
			Comment:       verdict.Reason,
		})
	}
	return records
}

// pending drops the records existing already holds. ok is false when
// existing carries a score that is not one of records.
func pending(records, existing []model.Score) (todo []model.Score, ok bool) {
	own := make(map[string]bool, len(records))
	for _, rec := range records {
		own[rec.ID] = true
	}
	have := make(map[string]bool, len(existing))
	for _, sc := range existing {
		if !own[sc.ID] {
			return nil, false
		}
		have[sc.ID] = true
	}
	for _, rec := range records {
		if !have[rec.ID] {
			todo = append(todo, rec)
		}
	}
	return todo, true
}
