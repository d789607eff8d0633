package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/belingud/mao-nav/internal/app"
	"github.com/belingud/mao-nav/internal/favicon"
)

// consoleObserver prints one progress line per task.
type consoleObserver struct {
	mu  sync.Mutex
	out io.Writer
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out}
}

func (o *consoleObserver) TaskStarted(index, total int, task favicon.IconTask) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintf(o.out, "[%d/%d] %s (%s)\n", index, total, task.DisplayName, task.TargetFilename)
}

func (o *consoleObserver) TaskFinished(_, _ int, outcome favicon.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch outcome.Status {
	case favicon.StatusSkipped:
		fmt.Fprintf(o.out, "  skipped, already present: %s\n", outcome.Task.TargetFilename)
	case favicon.StatusSucceeded:
		note := ""
		if outcome.Converted {
			note = ", converted from png"
		}
		fmt.Fprintf(o.out, "  saved %s (%d bytes%s)\n", outcome.Task.TargetFilename, outcome.Bytes, note)
	default:
		fmt.Fprintf(o.out, "  failed: %s: %s\n", outcome.Task.SourceURL, outcome.Reason)
	}
}

func printSummary(out io.Writer, report app.Report) {
	res := report.Result
	fmt.Fprintln(out)
	if res.Interrupted {
		fmt.Fprintf(out, "Interrupted after %d of %d tasks.\n", res.Processed(), res.Total)
	} else {
		fmt.Fprintln(out, "Done.")
	}
	fmt.Fprintf(out, "Succeeded: %d (skipped %d)\n", res.Succeeded, res.Skipped)
	fmt.Fprintf(out, "Failed: %d\n", res.Failed)
	if len(res.FailedURLs) > 0 {
		fmt.Fprintln(out, "Failed URLs:")
		for _, u := range res.FailedURLs {
			fmt.Fprintf(out, "  - %s\n", u)
		}
	}
	fmt.Fprintf(out, "Icons stored in: %s\n", report.Location)
}

func printListing(out io.Writer, location string, objects []favicon.ObjectInfo) {
	var total int64
	for _, obj := range objects {
		fmt.Fprintf(out, "%8d  %s\n", obj.Size, obj.Name)
		total += obj.Size
	}
	fmt.Fprintf(out, "%d icons, %d bytes in %s\n", len(objects), total, location)
}
