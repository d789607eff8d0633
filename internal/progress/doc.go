// Package progress reports icon batch progress. Emitters push Events into a
// non-blocking Hub, which batches them on a background goroutine and fans
// them out to sinks such as structured logs or Prometheus collectors.
package progress
