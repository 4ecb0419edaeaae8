// Package metrics counts task decisions of a run and writes them as a
// Prometheus textfile next to the task cache.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"carbonweaver/internal/trace"
)

// TextfileName is the metrics file written into the task cache directory.
const TextfileName = "metrics.prom"

// Recorder is a trace.Sink that feeds a private Prometheus registry.
type Recorder struct {
	registry *prometheus.Registry
	tasks    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New builds a Recorder whose series carry the given run ID as a constant label.
func New(runID string) *Recorder {
	labels := prometheus.Labels{"run_id": runID}
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "carbonweaver_tasks_total",
			Help:        "Tasks by terminal decision.",
			ConstLabels: labels,
		}, []string{"state"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "carbonweaver_task_duration_seconds",
			Help:        "Wall time of executed tasks by operation.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"op"}),
	}
	r.registry.MustRegister(r.tasks, r.duration)
	return r
}

// Record implements trace.Sink.
func (r *Recorder) Record(ev trace.TraceEvent) {
	switch ev.Kind {
	case trace.EventTaskExecuted:
		r.tasks.WithLabelValues("completed").Inc()
		r.duration.WithLabelValues(ev.Op).Observe(ev.Elapsed.Seconds())
	case trace.EventTaskCached:
		r.tasks.WithLabelValues("cached").Inc()
	case trace.EventTaskFailed:
		r.tasks.WithLabelValues("failed").Inc()
	case trace.EventTaskSkipped:
		r.tasks.WithLabelValues("skipped").Inc()
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// WriteTextfile writes every series to path in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
