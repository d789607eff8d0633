package sinks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/belingud/mao-nav/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.NewRunID()
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart},
		{
			RunID:       runID,
			TS:          now,
			Stage:       progress.StageFetchDone,
			URL:         "https://example.com/favicon.ico",
			Bytes:       1024,
			StatusClass: progress.Status2xx,
			Dur:         200 * time.Millisecond,
		},
		{RunID: runID, TS: now, Stage: progress.StageFetchError, URL: "https://down.example", Note: "transport"},
		{RunID: runID, TS: now, Stage: progress.StageTaskDone, Domain: "example.com", Bytes: 600, Converted: true, Dur: time.Second},
		{RunID: runID, TS: now, Stage: progress.StageTaskSkipped, Domain: "cached.example"},
		{RunID: runID, TS: now, Stage: progress.StageTaskFailed, Domain: "down.example", Note: "not_found"},
		{RunID: runID, TS: now, Stage: progress.StageRunDone, Dur: 15 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("completed")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("aborted")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasks.WithLabelValues("succeeded", "")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasks.WithLabelValues("skipped", "")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasks.WithLabelValues("failed", "not_found")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.iconConverted))
	require.InDelta(t, 600.0, testutil.ToFloat64(sink.iconBytes), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.fetchRequests.WithLabelValues("2xx")), 1e-9)
	require.InDelta(t, 1.0, testutil.ToFloat64(sink.fetchErrors.WithLabelValues("transport")), 1e-9)
	require.InDelta(t, 1024.0, testutil.ToFloat64(sink.fetchBytes), 1e-9)
	require.Equal(t, 1, testutil.CollectAndCount(sink.fetchDuration, "sitelogo_fetch_duration_seconds"))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration, "sitelogo_run_duration_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}

func TestPrometheusSinkWritesTextfile(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "sitelogo.prom")
	sink.WithTextfile(path, reg)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.NewRunID(), TS: time.Now(), Stage: progress.StageRunStart},
	}))
	require.NoError(t, sink.Close(context.Background()))

	// #nosec G304 -- test reads from the controlled temp directory.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "sitelogo_runs_started_total 1")
}

func TestLogSinkConsume(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.NewRunID(), TS: time.Now(), Stage: progress.StageTaskFailed, Domain: "x.example", Note: "transport"},
	}))
	require.NoError(t, sink.Close(context.Background()))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "TASK_FAILED", fields["stage"])
	require.Equal(t, "x.example", fields["domain"])
	require.Equal(t, "transport", fields["note"])
}
