package favicon

import (
	"context"
	"io"
)

// Fetcher issues a single GET and returns the full response. Implementations
// return an error wrapping ErrTransport for network faults; non-2xx statuses
// are not errors.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// IconLocator resolves the icon URL for a site.
type IconLocator interface {
	Locate(ctx context.Context, siteURL string) (IconCandidate, error)
}

// Converter normalizes a payload into the icon container format. The boolean
// reports whether the bytes were re-encoded.
type Converter interface {
	Adapt(raw []byte, contentType string) ([]byte, bool, error)
}

// Sink persists icons by name.
type Sink interface {
	ObjectExists(ctx context.Context, path string) (bool, error)
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
	ListObjects(ctx context.Context) ([]ObjectInfo, error)
	Location() string
}

// Processor handles one task end to end.
type Processor interface {
	Process(ctx context.Context, task IconTask) Outcome
}

// Observer is notified as the Runner moves through the task list. Index is
// 1-based.
type Observer interface {
	TaskStarted(index, total int, task IconTask)
	TaskFinished(index, total int, outcome Outcome)
}
