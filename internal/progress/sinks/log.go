package sinks

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/belingud/mao-nav/internal/progress"
)

// LogSink writes every event as a debug log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", uuid.UUID(evt.RunID).String()),
			zap.String("stage", string(evt.Stage)),
		}
		if evt.Domain != "" {
			fields = append(fields, zap.String("domain", evt.Domain))
		}
		if evt.URL != "" {
			fields = append(fields, zap.String("url", evt.URL))
		}
		if evt.StatusClass != "" {
			fields = append(fields, zap.String("status_class", string(evt.StatusClass)))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		fields = append(fields, zap.Int64("bytes", evt.Bytes), zap.Duration("dur", evt.Dur))
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
