package favicon

import (
	"net/http"
	"time"
)

// SiteEntry is one (name, url) pair flattened out of the site directory.
type SiteEntry struct {
	Name string
	URL  string
}

// IconTask is a single unit of work. TargetFilename is derived from SourceURL
// alone, so identical source URLs always map to the same file.
type IconTask struct {
	SourceURL      string
	DomainKey      string
	TargetFilename string
	DisplayName    string
}

// IconCandidate is a resolved icon address plus the response that validated it.
type IconCandidate struct {
	URL         string
	StatusCode  int
	ContentType string
	Size        int
	Body        []byte
}

// Status is the terminal state of a task.
type Status string

// Task status values reported by the Downloader.
const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome describes what happened to a single task.
type Outcome struct {
	Task      IconTask
	Status    Status
	IconURL   string
	URI       string
	Bytes     int
	Converted bool
	Reason    string
	Err       error
	Duration  time.Duration
}

// BatchResult aggregates outcomes for a full run. Succeeded includes skipped
// tasks; Skipped is the subset that was already present in the sink.
type BatchResult struct {
	Total       int
	Succeeded   int
	Skipped     int
	Failed      int
	FailedURLs  []string
	Interrupted bool
}

// Processed returns how many tasks reached a terminal outcome.
func (r BatchResult) Processed() int {
	return r.Succeeded + r.Failed
}

// Written returns how many icons were newly persisted during the run.
func (r BatchResult) Written() int {
	return r.Succeeded - r.Skipped
}

// BatchSummary is the notification payload published after a run.
type BatchSummary struct {
	RunID      string   `json:"run_id"`
	Total      int      `json:"total"`
	Succeeded  int      `json:"succeeded"`
	Skipped    int      `json:"skipped"`
	Written    int      `json:"written"`
	Failed     int      `json:"failed"`
	FailedURLs []string `json:"failed_urls"`
	Location   string   `json:"location"`
}

// Summary converts the result into a BatchSummary.
func (r BatchResult) Summary(runID, location string) BatchSummary {
	return BatchSummary{
		RunID:      runID,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Skipped:    r.Skipped,
		Written:    r.Written(),
		Failed:     r.Failed,
		FailedURLs: append([]string(nil), r.FailedURLs...),
		Location:   location,
	}
}

// FetchRequest captures everything needed to issue one GET.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the declared Content-Type header.
func (r FetchResponse) ContentType() string {
	return r.Headers.Get("Content-Type")
}

// IsSuccess reports whether the status code is in the 2xx range.
func (r FetchResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ObjectInfo describes a persisted icon.
type ObjectInfo struct {
	Name string
	Size int64
	URI  string
}
