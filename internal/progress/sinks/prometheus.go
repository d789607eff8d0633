package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/belingud/mao-nav/internal/progress"
)

// PrometheusSink exports icon run metrics. Labels stay low-cardinality: no
// per-site labels, since a directory can hold thousands of sites.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   prometheus.Histogram

	tasks         *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	iconBytes     prometheus.Counter
	iconConverted prometheus.Counter

	fetchRequests *prometheus.CounterVec
	fetchErrors   *prometheus.CounterVec
	fetchBytes    prometheus.Counter
	fetchDuration *prometheus.HistogramVec

	textfile string
	gatherer prometheus.Gatherer
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitelogo_runs_started_total",
			Help: "Icon batch runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitelogo_runs_completed_total",
			Help: "Icon batch runs finished, partitioned by result.",
		}, []string{"result"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "sitelogo_run_duration_seconds",
			Help:    "Wall time per icon batch run.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitelogo_tasks_total",
			Help: "Icon tasks finished, partitioned by status and failure kind.",
		}, []string{"status", "kind"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitelogo_task_duration_seconds",
			Help:    "Time spent per icon task.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"status"}),
		iconBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitelogo_icon_bytes_total",
			Help: "Bytes of icon data written to the sink.",
		}),
		iconConverted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitelogo_icons_converted_total",
			Help: "Icons re-encoded from PNG.",
		}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitelogo_fetch_requests_total",
			Help: "Completed HTTP fetches partitioned by status class.",
		}, []string{"status_class"}),
		fetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sitelogo_fetch_errors_total",
			Help: "HTTP fetches that failed before a response arrived.",
		}, []string{"kind"}),
		fetchBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sitelogo_fetch_bytes_total",
			Help: "Response bytes downloaded.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sitelogo_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"status_class"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runDuration,
		s.tasks,
		s.taskDuration,
		s.iconBytes,
		s.iconConverted,
		s.fetchRequests,
		s.fetchErrors,
		s.fetchBytes,
		s.fetchDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// WithTextfile makes Close write the gathered metrics to path in the node
// exporter textfile format.
func (s *PrometheusSink) WithTextfile(path string, gatherer prometheus.Gatherer) *PrometheusSink {
	s.textfile = path
	s.gatherer = gatherer
	return s
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
	case progress.StageRunDone:
		s.finishRun(evt, "completed")
	case progress.StageRunAborted:
		s.finishRun(evt, "aborted")
	case progress.StageTaskDone:
		s.finishTask(evt, "succeeded")
		s.iconBytes.Add(float64(evt.Bytes))
		if evt.Converted {
			s.iconConverted.Inc()
		}
	case progress.StageTaskSkipped:
		s.finishTask(evt, "skipped")
	case progress.StageTaskFailed:
		s.finishTask(evt, "failed")
	case progress.StageFetchDone:
		class := string(evt.StatusClass)
		s.fetchRequests.WithLabelValues(class).Inc()
		if evt.Bytes > 0 {
			s.fetchBytes.Add(float64(evt.Bytes))
		}
		if evt.Dur > 0 {
			s.fetchDuration.WithLabelValues(class).Observe(evt.Dur.Seconds())
		}
	case progress.StageFetchError:
		s.fetchErrors.WithLabelValues(kindLabel(evt.Note)).Inc()
	}
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) finishTask(evt progress.Event, status string) {
	kind := ""
	if status == "failed" {
		kind = kindLabel(evt.Note)
	}
	s.tasks.WithLabelValues(status, kind).Inc()
	if evt.Dur > 0 {
		s.taskDuration.WithLabelValues(status).Observe(evt.Dur.Seconds())
	}
}

// Close writes the textfile export when configured.
func (s *PrometheusSink) Close(context.Context) error {
	if s.textfile == "" || s.gatherer == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(s.textfile, s.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func kindLabel(note string) string {
	if note == "" {
		return "unknown"
	}
	return note
}
