package progress

import (
	"context"
	"time"

	"github.com/belingud/mao-nav/internal/favicon"
)

// TaskObserver turns Runner callbacks into progress events for one run.
type TaskObserver struct {
	runID   [16]byte
	emitter Emitter
	now     func() time.Time
	started time.Time
}

// NewTaskObserver binds an observer to a run.
func NewTaskObserver(runID [16]byte, emitter Emitter) *TaskObserver {
	if emitter == nil {
		emitter = Discard
	}
	return &TaskObserver{runID: runID, emitter: emitter, now: time.Now}
}

// RunStarted emits RUN_START.
func (o *TaskObserver) RunStarted(total int) {
	o.started = o.now()
	o.emitter.Emit(Event{RunID: o.runID, TS: o.started, Stage: StageRunStart, Bytes: int64(total)})
}

// RunFinished emits RUN_DONE, or RUN_ABORTED when the run was interrupted.
func (o *TaskObserver) RunFinished(result favicon.BatchResult) {
	stage := StageRunDone
	if result.Interrupted {
		stage = StageRunAborted
	}
	now := o.now()
	var dur time.Duration
	if !o.started.IsZero() {
		dur = now.Sub(o.started)
	}
	o.emitter.Emit(Event{RunID: o.runID, TS: now, Stage: stage, Dur: dur})
}

// TaskStarted implements favicon.Observer.
func (o *TaskObserver) TaskStarted(int, int, favicon.IconTask) {}

// TaskFinished implements favicon.Observer.
func (o *TaskObserver) TaskFinished(_, _ int, outcome favicon.Outcome) {
	evt := Event{
		RunID:  o.runID,
		TS:     o.now(),
		Domain: outcome.Task.DomainKey,
		URL:    outcome.IconURL,
		Bytes:  int64(outcome.Bytes),
		Dur:    outcome.Duration,
	}
	switch outcome.Status {
	case favicon.StatusSucceeded:
		evt.Stage = StageTaskDone
		evt.Converted = outcome.Converted
	case favicon.StatusSkipped:
		evt.Stage = StageTaskSkipped
	default:
		evt.Stage = StageTaskFailed
		evt.Note = favicon.Kind(outcome.Err)
	}
	o.emitter.Emit(evt)
}

// InstrumentFetcher wraps next so every request emits FETCH_START followed by
// FETCH_DONE or FETCH_ERROR.
func InstrumentFetcher(next favicon.Fetcher, runID [16]byte, emitter Emitter) favicon.Fetcher {
	if emitter == nil {
		emitter = Discard
	}
	return &instrumentedFetcher{next: next, runID: runID, emitter: emitter}
}

type instrumentedFetcher struct {
	next    favicon.Fetcher
	runID   [16]byte
	emitter Emitter
}

func (f *instrumentedFetcher) Fetch(ctx context.Context, request favicon.FetchRequest) (favicon.FetchResponse, error) {
	start := time.Now()
	f.emitter.Emit(Event{RunID: f.runID, TS: start, Stage: StageFetchStart, URL: request.URL})
	resp, err := f.next.Fetch(ctx, request)
	if err != nil {
		f.emitter.Emit(Event{
			RunID: f.runID,
			TS:    time.Now(),
			Stage: StageFetchError,
			URL:   request.URL,
			Dur:   time.Since(start),
			Note:  favicon.Kind(err),
		})
		return resp, err
	}
	f.emitter.Emit(Event{
		RunID:       f.runID,
		TS:          time.Now(),
		Stage:       StageFetchDone,
		URL:         request.URL,
		Bytes:       int64(len(resp.Body)),
		StatusClass: ClassifyStatus(resp.StatusCode),
		Dur:         time.Since(start),
	})
	return resp, nil
}
