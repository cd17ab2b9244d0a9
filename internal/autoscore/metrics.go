package autoscore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts auto-scorer activity
type Metrics struct {
	traces  *prometheus.CounterVec
	records *prometheus.CounterVec
	errors  prometheus.Counter
	runs    prometheus.Counter
}

// NewMetrics registers the auto-scorer metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		traces: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truckeval_autoscore_traces_total",
				Help: "Traces processed by the auto-scorer, by outcome",
			},
			[]string{"outcome"},
		),
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "truckeval_autoscore_records_total",
				Help: "Score records written by the auto-scorer, by verdict",
			},
			[]string{"verdict"},
		),
		errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "truckeval_autoscore_errors_total",
			Help: "Trace store or ledger failures that aborted a trace",
		}),
		runs: factory.NewCounter(prometheus.CounterOpts{
			Name: "truckeval_autoscore_runs_total",
			Help: "Completed auto-scoring runs",
		}),
	}
}

func (m *Metrics) observeTrace(o Outcome) {
	if m == nil {
		return
	}
	m.traces.WithLabelValues(string(o)).Inc()
}

func (m *Metrics) observeRecord(value float64) {
	if m == nil {
		return
	}
	verdict := "approved"
	if value == 0 {
		verdict = "flagged"
	}
	m.records.WithLabelValues(verdict).Inc()
}

func (m *Metrics) observeError() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

func (m *Metrics) observeRun() {
	if m == nil {
		return
	}
	m.runs.Inc()
}
