// Package metrics is the backend-agnostic metrics facade used by the
// pipeline. Stages call the package-level helpers; the CLI selects a backend
// (Datadog, Prometheus Pushgateway, or none) once at startup.
package metrics

import (
	"sync"
	"time"
)

// Metric names. Backends translate them to their own naming schemes.
const (
	StepTotal           = "etl_step_total"
	StepDurationSeconds = "etl_step_duration_seconds"
	RecordsTotal        = "etl_records_total"
	SnapshotRows        = "etl_snapshot_rows"
)

// Step statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives every metric event.
//
// Implementations must be safe for concurrent use and should ignore metric
// names they do not know.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nop struct{}

func (nop) IncCounter(string, float64, Labels)       {}
func (nop) ObserveHistogram(string, float64, Labels) {}
func (nop) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nop{}
)

// SetBackend installs b for all later calls. A nil b disables metrics.
func SetBackend(b Backend) {
	if b == nil {
		b = nop{}
	}
	mu.Lock()
	backend = b
	mu.Unlock()
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// Flush flushes the current backend.
func Flush() error { return current().Flush() }

// RecordStep counts one finished pipeline stage and observes its duration.
func RecordStep(step, status string, d time.Duration) {
	l := Labels{"step": step, "status": status}
	b := current()
	b.IncCounter(StepTotal, 1, l)
	b.ObserveHistogram(StepDurationSeconds, d.Seconds(), l)
}

// RecordRecords adds n to the record counter of kind, e.g. "loaded",
// "dropped_invalid_reference_id" or "opted_out".
func RecordRecords(kind string, n int) {
	if n <= 0 {
		return
	}
	current().IncCounter(RecordsTotal, float64(n), Labels{"kind": kind})
}

// RecordSnapshot observes the row count of a saved snapshot.
func RecordSnapshot(name string, rows int) {
	current().ObserveHistogram(SnapshotRows, float64(rows), Labels{"snapshot": name})
}
