package model

import (
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ObservationType classifies a step within a trace
type ObservationType string

const (
	ObservationGeneration ObservationType = "GENERATION" // Model call with input/output text
	ObservationSpan       ObservationType = "SPAN"       // Timed unit of work
	ObservationEvent      ObservationType = "EVENT"      // Point-in-time event
)

// Trace is a recorded interaction session owned by the trace store.
// The core never mutates a trace; it only appends Score records.
type Trace struct {
	ID           string        `json:"id"`
	Name         string        `json:"name,omitempty"`
	Timestamp    time.Time     `json:"timestamp,omitempty"`
	Observations []Observation `json:"observations"` // nil when the store omitted the field
	Scores       []Score       `json:"scores"`
}

// Observation is a single step of a trace
type Observation struct {
	ID     string          `json:"id,omitempty"`
	Type   ObservationType `json:"type"`
	Output string          `json:"output,omitempty"` // Flattened output text; empty when null
}

// Score is a quality judgment attached to a trace
type Score struct {
	ID            string  `json:"id,omitempty"` // Deterministic record ID for store-side deduplication
	TraceID       string  `json:"traceId"`
	ObservationID string  `json:"observationId,omitempty"`
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	Comment       string  `json:"comment,omitempty"`
}

var (
	// ErrMissingTraceID reports a trace without an identifier
	ErrMissingTraceID = errors.New("trace has no id")
	// ErrMissingObservations reports a trace whose observations list is absent
	ErrMissingObservations = errors.New("trace has no observations list")
)

// Validate checks that the trace carries the fields the auto-scorer needs
func (t Trace) Validate() error {
	if t.ID == "" {
		return ErrMissingTraceID
	}
	if t.Observations == nil {
		return ErrMissingObservations
	}
	return nil
}

// IsScored reports whether any score is already attached
func (t Trace) IsScored() bool {
	return len(t.Scores) > 0
}

// Generations returns the GENERATION observations in trace order
func (t Trace) Generations() []Observation {
	var gens []Observation
	for _, obs := range t.Observations {
		if obs.Type == ObservationGeneration {
			gens = append(gens, obs)
		}
	}
	return gens
}

// scoreNamespace seeds the deterministic score IDs
var scoreNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/truckeval/autoscore"))

// ScoreID derives the stable record ID for one observation's score.
// Observations without an ID are keyed by their position in the trace.
func ScoreID(traceID, scoreName, observationID string, index int) string {
	if observationID == "" {
		observationID = "#" + strconv.Itoa(index)
	}
	name := traceID + "\x00" + scoreName + "\x00" + observationID
	return uuid.NewSHA1(scoreNamespace, []byte(name)).String()
}
