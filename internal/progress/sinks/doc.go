// Package sinks implements progress consumers: structured logging and
// Prometheus collectors with optional textfile export. Each sink satisfies
// progress.Sink.
package sinks
