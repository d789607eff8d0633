package progress

import "context"

// Sink consumes batches of progress events. Consume is only ever called from
// the Hub's goroutine; Close is called once after the final batch.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub satisfies it, and a nil Emitter is
// never passed around: use Discard instead.
type Emitter interface {
	Emit(evt Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit implements Emitter.
func (f EmitterFunc) Emit(evt Event) { f(evt) }

// Discard drops every event.
var Discard Emitter = EmitterFunc(func(Event) {})
