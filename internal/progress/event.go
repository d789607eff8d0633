package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageRunAborted  Stage = "RUN_ABORTED"
	StageTaskDone    Stage = "TASK_DONE"
	StageTaskSkipped Stage = "TASK_SKIPPED"
	StageTaskFailed  Stage = "TASK_FAILED"
	StageFetchStart  Stage = "FETCH_START"
	StageFetchDone   Stage = "FETCH_DONE"
	StageFetchError  Stage = "FETCH_ERROR"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single step of an icon run.
type Event struct {
	// RunID identifies the batch run in 16-byte UUID form.
	RunID [16]byte
	TS    time.Time
	Stage Stage
	// Domain is the task's domain key; empty for run events.
	Domain string
	URL    string
	Bytes  int64
	// Converted marks a TASK_DONE whose payload was re-encoded from PNG.
	Converted   bool
	StatusClass StatusClass
	Dur         time.Duration
	// Note carries the error kind or failure reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunAborted:
	case StageTaskDone, StageTaskSkipped, StageTaskFailed:
		if e.Domain == "" {
			return fmt.Errorf("%s requires domain", e.Stage)
		}
	case StageFetchStart, StageFetchError:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	case StageFetchDone:
		if e.URL == "" {
			return errors.New("fetch done requires url")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID back to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// NewRunID returns a time-ordered run identifier.
func NewRunID() [16]byte {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return [16]byte(id)
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
