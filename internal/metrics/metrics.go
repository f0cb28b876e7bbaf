// Package metrics holds the Prometheus instruments of the card engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apperrors "github.com/conorfennell/knolarchive/internal/errors"
)

// Metrics groups the engine's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	operations      *prometheus.CounterVec   // by operation and outcome
	conflicts       *prometheus.CounterVec   // by operation
	batchItems      *prometheus.CounterVec   // by operation and outcome
	publishFailures prometheus.Counter
	queryDuration   *prometheus.HistogramVec // by operation
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knolarchive",
			Subsystem: "cards",
			Name:      "operations_total",
			Help:      "Card operations by outcome (ok or error kind)",
		}, []string{"operation", "outcome"}),

		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knolarchive",
			Subsystem: "cards",
			Name:      "version_conflicts_total",
			Help:      "Writes rejected because the card version moved",
		}, []string{"operation"}),

		batchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knolarchive",
			Subsystem: "batch",
			Name:      "items_total",
			Help:      "Batch items processed by outcome",
		}, []string{"operation", "outcome"}),

		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "knolarchive",
			Subsystem: "events",
			Name:      "publish_failures_total",
			Help:      "Domain events that could not be published",
		}),

		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "knolarchive",
			Subsystem: "deckquery",
			Name:      "duration_seconds",
			Help:      "DeckQuery evaluation time",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"operation"}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.conflicts, m.batchItems, m.publishFailures, m.queryDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperrors.KindOf(err).String()
}

// Operation counts one finished operation.
func (m *Metrics) Operation(op string, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, outcome(err)).Inc()
	if apperrors.IsConflict(err) {
		m.conflicts.WithLabelValues(op).Inc()
	}
}

// BatchItem counts one batch item.
func (m *Metrics) BatchItem(op string, err error) {
	if m == nil {
		return
	}
	m.batchItems.WithLabelValues(op, outcome(err)).Inc()
}

// PublishFailed counts an event that was not delivered.
func (m *Metrics) PublishFailed(n int) {
	if m == nil {
		return
	}
	m.publishFailures.Add(float64(n))
}

// ObserveQuery records how long a query took.
func (m *Metrics) ObserveQuery(op string, start time.Time) {
	if m == nil {
		return
	}
	m.queryDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
