package favicon

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const iconContentType = "image/x-icon"

// Downloader runs one resolve, fetch, convert and persist cycle per task.
type Downloader struct {
	locator   IconLocator
	fetcher   Fetcher
	converter Converter
	sink      Sink
	headers   http.Header
	logger    *zap.Logger
	now       func() time.Time
}

// NewDownloader wires a Downloader.
func NewDownloader(
	locator IconLocator,
	fetcher Fetcher,
	converter Converter,
	sink Sink,
	headers http.Header,
	logger *zap.Logger,
) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		locator:   locator,
		fetcher:   fetcher,
		converter: converter,
		sink:      sink,
		headers:   headers,
		logger:    logger,
		now:       time.Now,
	}
}

// Process implements Processor. It never panics and never returns an error;
// every failure is folded into a failed Outcome.
func (d *Downloader) Process(ctx context.Context, task IconTask) (outcome Outcome) {
	start := d.now()
	outcome = Outcome{Task: task}
	defer func() {
		if r := recover(); r != nil {
			outcome = d.fail(task, fmt.Errorf("unexpected panic: %v", r))
		}
		outcome.Duration = d.now().Sub(start)
	}()

	exists, err := d.sink.ObjectExists(ctx, task.TargetFilename)
	if err != nil {
		return d.fail(task, fmt.Errorf("%w: check %s: %w", ErrPersistence, task.TargetFilename, err))
	}
	if exists {
		d.logger.Debug("icon already present", zap.String("file", task.TargetFilename))
		outcome.Status = StatusSkipped
		return outcome
	}

	candidate, err := d.locator.Locate(ctx, task.SourceURL)
	if err != nil {
		return d.fail(task, err)
	}
	outcome.IconURL = candidate.URL

	resp, err := d.fetcher.Fetch(ctx, FetchRequest{URL: candidate.URL, Headers: d.headers.Clone()})
	if err != nil {
		return d.failWith(outcome, err)
	}
	if !resp.IsSuccess() {
		return d.failWith(outcome, fmt.Errorf("%w: icon %s returned status %d", ErrTransport, candidate.URL, resp.StatusCode))
	}

	payload, converted, err := d.converter.Adapt(resp.Body, resp.ContentType())
	if err != nil {
		return d.failWith(outcome, err)
	}
	outcome.Converted = converted

	uri, err := d.sink.PutObject(ctx, task.TargetFilename, iconContentType, bytes.NewReader(payload))
	if err != nil {
		return d.failWith(outcome, fmt.Errorf("%w: write %s: %w", ErrPersistence, task.TargetFilename, err))
	}

	outcome.Status = StatusSucceeded
	outcome.URI = uri
	outcome.Bytes = len(payload)
	d.logger.Debug("icon saved",
		zap.String("source", task.SourceURL),
		zap.String("icon", candidate.URL),
		zap.String("uri", uri),
		zap.Bool("converted", converted),
	)
	return outcome
}

func (d *Downloader) fail(task IconTask, err error) Outcome {
	return d.failWith(Outcome{Task: task}, err)
}

func (d *Downloader) failWith(outcome Outcome, err error) Outcome {
	outcome.Status = StatusFailed
	outcome.Err = err
	outcome.Reason = reasonFor(err)
	d.logger.Debug("icon task failed",
		zap.String("source", outcome.Task.SourceURL),
		zap.String("kind", Kind(err)),
		zap.Error(err),
	)
	return outcome
}
