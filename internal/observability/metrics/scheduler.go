// Package metrics exposes Prometheus instrumentation for the API and the
// analysis worker. Each process owns its own registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SchedulerMetrics tracks the prioritized analysis pool and the classifier
// lifecycle. Both processes run an analysis pool, so the service label comes
// from the constructor, not a constant.
type SchedulerMetrics struct {
	registry *prometheus.Registry
	service  string

	tasksEnqueued *prometheus.CounterVec
	tasksDone     *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	tasksInFlight prometheus.Gauge

	escalations *prometheus.CounterVec

	retrainTotal    *prometheus.CounterVec
	retrainDuration prometheus.Histogram
	corpusSize      prometheus.Gauge
}

func NewSchedulerMetrics(service string) *SchedulerMetrics {
	registry := prometheus.NewRegistry()

	tasksEnqueued := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sortmeister",
			Subsystem: "analysis",
			Name:      "tasks_enqueued_total",
			Help:      "Analysis tasks accepted into the priority queue.",
		},
		[]string{"service", "priority"},
	)
	tasksDone := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sortmeister",
			Subsystem: "analysis",
			Name:      "tasks_completed_total",
			Help:      "Finished analysis tasks by priority and status.",
		},
		[]string{"service", "priority", "status"},
	)
	taskDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sortmeister",
			Subsystem: "analysis",
			Name:      "task_duration_seconds",
			Help:      "Analysis task duration in seconds by priority.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "priority"},
	)
	tasksInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sortmeister",
			Subsystem: "analysis",
			Name:      "tasks_in_flight",
			Help:      "Analysis tasks currently being computed.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	escalations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sortmeister",
			Subsystem: "suggest",
			Name:      "escalations_total",
			Help:      "External reasoning escalations by outcome.",
		},
		[]string{"service", "outcome"},
	)
	retrainTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sortmeister",
			Subsystem: "classifier",
			Name:      "retrain_total",
			Help:      "Classifier retraining runs by status.",
		},
		[]string{"service", "status"},
	)
	retrainDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "sortmeister",
			Subsystem: "classifier",
			Name:      "retrain_duration_seconds",
			Help:      "Classifier retraining duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	corpusSize := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "sortmeister",
			Subsystem: "classifier",
			Name:      "corpus_size",
			Help:      "Number of history records the classifier was last fitted on.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(tasksEnqueued, tasksDone, taskDuration, tasksInFlight, escalations, retrainTotal, retrainDuration, corpusSize)

	return &SchedulerMetrics{
		registry:        registry,
		service:         service,
		tasksEnqueued:   tasksEnqueued,
		tasksDone:       tasksDone,
		taskDuration:    taskDuration,
		tasksInFlight:   tasksInFlight,
		escalations:     escalations,
		retrainTotal:    retrainTotal,
		retrainDuration: retrainDuration,
		corpusSize:      corpusSize,
	}
}

func (m *SchedulerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SchedulerMetrics) TaskEnqueued(priority string) {
	m.tasksEnqueued.WithLabelValues(m.service, priority).Inc()
	m.tasksInFlight.Inc()
}

func (m *SchedulerMetrics) TaskCompleted(priority string, duration time.Duration, err error) {
	m.tasksInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.tasksDone.WithLabelValues(m.service, priority, status).Inc()
	m.taskDuration.WithLabelValues(m.service, priority).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) RecordEscalation(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.escalations.WithLabelValues(m.service, outcome).Inc()
}

func (m *SchedulerMetrics) RetrainFinished(duration time.Duration, corpusSize int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.retrainTotal.WithLabelValues(m.service, status).Inc()
	if err == nil {
		m.retrainDuration.Observe(duration.Seconds())
		m.corpusSize.Set(float64(corpusSize))
	}
}
