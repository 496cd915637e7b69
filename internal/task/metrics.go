package task

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/phrazzld/shannon/internal/events"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors fed by task lifecycle events.
type Metrics struct {
	submitted *prometheus.CounterVec
	finished  *prometheus.CounterVec
	running   prometheus.Gauge
	duration  *prometheus.HistogramVec
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the metrics registered with the global Prometheus
// registry. Collectors are created once so repeated runners do not panic on
// duplicate registration.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs Metrics registered with reg. Registration errors panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shannon",
			Subsystem: "tasks",
			Name:      "submitted_total",
			Help:      "Number of tasks accepted by the runner.",
		}, []string{"type"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shannon",
			Subsystem: "tasks",
			Name:      "finished_total",
			Help:      "Number of tasks that reached a terminal state.",
		}, []string{"type", "status"}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shannon",
			Subsystem: "tasks",
			Name:      "running",
			Help:      "Number of tasks currently executing.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shannon",
			Subsystem: "tasks",
			Name:      "duration_seconds",
			Help:      "Execution time of finished tasks.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"type", "status"}),
	}

	reg.MustRegister(m.submitted, m.finished, m.running, m.duration)
	return m
}

// HandleEvent implements events.EventHandler.
func (m *Metrics) HandleEvent(ctx context.Context, event *events.Event) error {
	var payload TaskEventPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return errors.New("metrics: malformed task event payload")
	}

	switch event.Type {
	case events.TypeTaskCreated:
		m.submitted.WithLabelValues(payload.TaskType).Inc()
	case events.TypeTaskRunning:
		m.running.Inc()
	case events.TypeTaskCompleted, events.TypeTaskFailed:
		// Tasks rejected at submission or drained on shutdown never ran
		if payload.Started {
			m.running.Dec()
		}
		status := string(payload.Status)
		m.finished.WithLabelValues(payload.TaskType, status).Inc()
		m.duration.WithLabelValues(payload.TaskType, status).
			Observe((time.Duration(payload.DurationMS) * time.Millisecond).Seconds())
	}

	return nil
}

// Ensure Metrics implements events.EventHandler
var _ events.EventHandler = (*Metrics)(nil)
