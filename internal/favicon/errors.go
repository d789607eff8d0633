package favicon

import (
	"context"
	"errors"
)

// Error kinds. Per-task errors wrap one of these so callers can tell them apart
// with errors.Is even though the batch treats them all as a failed task.
var (
	ErrInvalidURL             = errors.New("invalid url")
	ErrNotFound               = errors.New("no icon found")
	ErrConversionFailed       = errors.New("conversion error")
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrTransport              = errors.New("transport error")
	ErrPersistence            = errors.New("persistence error")
)

// errRejected marks a response that arrived fine but failed validation.
var errRejected = errors.New("candidate rejected")

// Kind returns a short label for err, suitable for metrics and log fields.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConversionFailed):
		return "conversion_failed"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrTransport):
		return "transport"
	default:
		return "unknown"
	}
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotFound.Error()
	case errors.Is(err, ErrConversionFailed):
		return ErrConversionFailed.Error()
	default:
		return err.Error()
	}
}
