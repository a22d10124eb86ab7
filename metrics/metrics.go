// Package metrics defines the Prometheus collectors a query engine reports to.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes used as the outcome label of QueriesTotal.
const (
	OutcomeOK           = "ok"
	OutcomeUnknownTable = "unknown_table"
	OutcomeStrict       = "strict"
	OutcomeError        = "error"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// QueriesTotal counts query runs by outcome.
	QueriesTotal *prometheus.CounterVec
	// QueryDuration is the wall time of a run, simulated latency included.
	QueryDuration prometheus.Histogram
	// ResultRows is the number of rows a successful run returned.
	ResultRows prometheus.Histogram
	// FailOpenPredicates counts predicates that passed a row because they
	// could not be evaluated.
	FailOpenPredicates prometheus.Counter
	// DroppedStages counts pipeline stages that matched no operation.
	DroppedStages prometheus.Counter
}

// New registers the collectors with reg. Passing prometheus.NewRegistry()
// keeps tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueriesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kqlmock_queries_total",
				Help: "Total number of queries run, by outcome",
			},
			[]string{"outcome"},
		),
		QueryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kqlmock_query_duration_seconds",
			Help:    "Query latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ResultRows: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "kqlmock_result_rows",
			Help:    "Rows returned per query",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		FailOpenPredicates: f.NewCounter(prometheus.CounterOpts{
			Name: "kqlmock_failopen_predicates_total",
			Help: "Predicates treated as satisfied because they could not be evaluated",
		}),
		DroppedStages: f.NewCounter(prometheus.CounterOpts{
			Name: "kqlmock_dropped_stages_total",
			Help: "Pipeline stages dropped because no operation matched",
		}),
	}
}

// ObserveQuery records one finished run.
func (m *Metrics) ObserveQuery(outcome string, elapsed time.Duration, rows int) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.QueryDuration.Observe(elapsed.Seconds())
	if outcome == OutcomeOK {
		m.ResultRows.Observe(float64(rows))
	}
}

// AddFailOpen adds n fail-open predicate evaluations.
func (m *Metrics) AddFailOpen(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.FailOpenPredicates.Add(float64(n))
}

// AddDropped adds n dropped stages.
func (m *Metrics) AddDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DroppedStages.Add(float64(n))
}
