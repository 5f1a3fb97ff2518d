package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AppliesTotal counts every request dispatched through the Apply Engine,
	// labeled by op and by outcome.
	AppliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coordinator_applies_total",
			Help: "Total number of applied update requests by op and outcome",
		},
		[]string{"op", "outcome"},
	)

	// ApplyDuration records how long one Engine.Apply call takes, labeled by
	// op so the RemoveExecutor ordering exception's extra work is visible
	// separately from the common path.
	ApplyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coordinator_apply_duration_seconds",
			Help:    "Time taken to apply one update request, by op",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// UnassignedTasks mirrors the size of the unassigned_tasks reverse index.
	UnassignedTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_unassigned_tasks",
			Help: "Current number of tasks awaiting assignment",
		},
	)

	// UnprocessedStateChanges mirrors the size of the
	// unprocessed_state_changes reverse index.
	UnprocessedStateChanges = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coordinator_unprocessed_state_changes",
			Help: "Current number of state changes not yet marked processed",
		},
	)
)

func init() {
	prometheus.MustRegister(AppliesTotal)
	prometheus.MustRegister(ApplyDuration)
	prometheus.MustRegister(UnassignedTasks)
	prometheus.MustRegister(UnprocessedStateChanges)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// RecordApply observes one Engine.Apply outcome: timer's elapsed duration
// goes to ApplyDuration regardless of outcome, and AppliesTotal is
// incremented with outcome "ok" or "error".
func RecordApply(op string, timer *Timer, applyErr error) {
	timer.ObserveDurationVec(ApplyDuration, op)
	outcome := "ok"
	if applyErr != nil {
		outcome = "error"
	}
	AppliesTotal.WithLabelValues(op, outcome).Inc()
}
