package progress

import (
	"context"
	"fmt"
	"time"
)

type exampleCountingSink struct {
	total int
}

func (s *exampleCountingSink) Consume(_ context.Context, batch []Event) error {
	s.total += len(batch)
	return nil
}

func (s *exampleCountingSink) Close(context.Context) error {
	return nil
}

// ExampleHub_Emit demonstrates emitting an event and flushing via Close.
func ExampleHub_Emit() {
	sink := &exampleCountingSink{}
	hub := NewHub(Config{MaxBatchEvents: 1, MaxBatchWait: time.Second}, sink)

	hub.Emit(Event{RunID: NewRunID(), TS: time.Unix(0, 0), Stage: StageRunStart})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("events forwarded: %d\n", sink.total)
	// Output:
	// events forwarded: 1
}

// ExampleSink implements a custom Sink that totals icon bytes written.
func ExampleSink() {
	var written int64
	capture := sinkFunc(func(_ context.Context, batch []Event) error {
		for _, evt := range batch {
			if evt.Stage == StageTaskDone {
				written += evt.Bytes
			}
		}
		return nil
	})
	hub := NewHub(Config{MaxBatchEvents: 1, MaxBatchWait: time.Second}, capture)

	hub.Emit(Event{
		RunID:  NewRunID(),
		TS:     time.Unix(0, 0),
		Stage:  StageTaskDone,
		Domain: "example.com",
		Bytes:  512,
	})
	if err := hub.Close(context.Background()); err != nil {
		panic(err)
	}

	fmt.Printf("icon bytes written: %d\n", written)
	// Output:
	// icon bytes written: 512
}

type sinkFunc func(context.Context, []Event) error

func (f sinkFunc) Consume(ctx context.Context, batch []Event) error {
	return f(ctx, batch)
}

func (sinkFunc) Close(context.Context) error {
	return nil
}
