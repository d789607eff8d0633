package favicon

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Runner processes tasks one at a time, in order.
type Runner struct {
	processor Processor
	logger    *zap.Logger
	observers []Observer
}

// NewRunner wires a Runner.
func NewRunner(processor Processor, logger *zap.Logger, observers ...Observer) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{processor: processor, logger: logger, observers: observers}
}

// Run processes every task and aggregates the outcomes. The only error it
// returns is the context error when the run is interrupted; the partial result
// is still returned in that case with Interrupted set.
func (r *Runner) Run(ctx context.Context, tasks []IconTask) (BatchResult, error) {
	result := BatchResult{Total: len(tasks), FailedURLs: []string{}}
	for i, task := range tasks {
		if err := ctx.Err(); err != nil {
			return r.interrupted(result, err)
		}
		index := i + 1
		for _, o := range r.observers {
			o.TaskStarted(index, len(tasks), task)
		}
		outcome := r.processor.Process(ctx, task)
		if outcome.Status == StatusFailed && ctx.Err() != nil {
			// The failure is the interrupt itself, not the site.
			return r.interrupted(result, ctx.Err())
		}
		switch outcome.Status {
		case StatusSucceeded:
			result.Succeeded++
		case StatusSkipped:
			result.Succeeded++
			result.Skipped++
		default:
			result.Failed++
			result.FailedURLs = append(result.FailedURLs, task.SourceURL)
		}
		for _, o := range r.observers {
			o.TaskFinished(index, len(tasks), outcome)
		}
	}
	r.logger.Info("icon batch finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (r *Runner) interrupted(result BatchResult, err error) (BatchResult, error) {
	result.Interrupted = true
	r.logger.Warn("icon batch interrupted",
		zap.Int("processed", result.Processed()),
		zap.Int("total", result.Total),
	)
	return result, fmt.Errorf("icon batch interrupted: %w", err)
}
