package progress

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/belingud/mao-nav/internal/favicon"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureEmitter) Emit(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *captureEmitter) stages() []Stage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Stage, 0, len(c.events))
	for _, evt := range c.events {
		out = append(out, evt.Stage)
	}
	return out
}

func TestTaskObserverEmitsLifecycle(t *testing.T) {
	t.Parallel()

	capture := &captureEmitter{}
	runID := NewRunID()
	obs := NewTaskObserver(runID, capture)
	clock := time.Unix(100, 0)
	obs.now = func() time.Time { return clock }

	task := favicon.IconTask{DomainKey: "example.com", SourceURL: "https://example.com"}
	obs.RunStarted(3)
	obs.TaskFinished(1, 3, favicon.Outcome{Task: task, Status: favicon.StatusSucceeded, Bytes: 120, Converted: true})
	obs.TaskFinished(2, 3, favicon.Outcome{Task: task, Status: favicon.StatusSkipped})
	obs.TaskFinished(3, 3, favicon.Outcome{Task: task, Status: favicon.StatusFailed, Err: favicon.ErrNotFound})
	clock = clock.Add(2 * time.Second)
	obs.RunFinished(favicon.BatchResult{Total: 3})

	require.Equal(t, []Stage{
		StageRunStart, StageTaskDone, StageTaskSkipped, StageTaskFailed, StageRunDone,
	}, capture.stages())
	for _, evt := range capture.events {
		require.NoError(t, evt.Validate())
		assert.Equal(t, runID, evt.RunID)
	}
	assert.True(t, capture.events[1].Converted)
	assert.Equal(t, "not_found", capture.events[3].Note)
	assert.Equal(t, 2*time.Second, capture.events[4].Dur)
}

func TestTaskObserverReportsAbortedRun(t *testing.T) {
	t.Parallel()

	capture := &captureEmitter{}
	obs := NewTaskObserver(NewRunID(), capture)
	obs.RunStarted(1)
	obs.RunFinished(favicon.BatchResult{Total: 1, Interrupted: true})
	assert.Equal(t, []Stage{StageRunStart, StageRunAborted}, capture.stages())
}

type fetchFunc func(context.Context, favicon.FetchRequest) (favicon.FetchResponse, error)

func (f fetchFunc) Fetch(ctx context.Context, req favicon.FetchRequest) (favicon.FetchResponse, error) {
	return f(ctx, req)
}

func TestInstrumentFetcher(t *testing.T) {
	t.Parallel()

	capture := &captureEmitter{}
	fetcher := InstrumentFetcher(fetchFunc(func(_ context.Context, req favicon.FetchRequest) (favicon.FetchResponse, error) {
		if req.URL == "https://down.example/favicon.ico" {
			return favicon.FetchResponse{}, favicon.ErrTransport
		}
		return favicon.FetchResponse{URL: req.URL, StatusCode: http.StatusNotFound, Body: []byte("nope")}, nil
	}), NewRunID(), capture)

	resp, err := fetcher.Fetch(context.Background(), favicon.FetchRequest{URL: "https://up.example/favicon.ico"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, err = fetcher.Fetch(context.Background(), favicon.FetchRequest{URL: "https://down.example/favicon.ico"})
	require.True(t, errors.Is(err, favicon.ErrTransport))

	require.Equal(t, []Stage{StageFetchStart, StageFetchDone, StageFetchStart, StageFetchError}, capture.stages())
	assert.Equal(t, Status4xx, capture.events[1].StatusClass)
	assert.Equal(t, int64(4), capture.events[1].Bytes)
	assert.Equal(t, "transport", capture.events[3].Note)
	for _, evt := range capture.events {
		require.NoError(t, evt.Validate())
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	id := NewRunID()
	now := time.Now()
	assert.Error(t, Event{TS: now, Stage: StageRunStart}.Validate())
	assert.Error(t, Event{RunID: id, Stage: StageRunStart}.Validate())
	assert.Error(t, Event{RunID: id, TS: now, Stage: "BOGUS"}.Validate())
	assert.Error(t, Event{RunID: id, TS: now, Stage: StageTaskDone}.Validate())
	assert.Error(t, Event{RunID: id, TS: now, Stage: StageFetchDone, URL: "https://x"}.Validate())
	assert.Error(t, Event{RunID: id, TS: now, Stage: StageRunDone, Dur: -1}.Validate())
	assert.NoError(t, Event{RunID: id, TS: now, Stage: StageFetchDone, URL: "https://x", StatusClass: Status2xx}.Validate())
}

func TestClassifyStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Status2xx, ClassifyStatus(204))
	assert.Equal(t, Status3xx, ClassifyStatus(301))
	assert.Equal(t, Status4xx, ClassifyStatus(404))
	assert.Equal(t, Status5xx, ClassifyStatus(503))
	assert.Equal(t, StatusOther, ClassifyStatus(0))
}
