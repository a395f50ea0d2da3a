// Package metrics is a small, backend-agnostic layer for the operational
// metrics of an ingest run.
//
// Callers depend only on the package-level Record* helpers. The installed
// Backend defaults to a no-op, so instrumentation is always safe to call;
// cmd/isbnetl installs a Pushgateway or DogStatsD backend when configured.
package metrics

import "time"

// Metric names shared by every backend.
const (
	StepTotal       = "ingest_step_total"
	StepDuration    = "ingest_step_duration_seconds"
	RecordsTotal    = "ingest_records_total"
	BatchesTotal    = "ingest_batches_total"
	BytesReadTotal  = "ingest_input_bytes_total"
	ResidentBytes   = "ingest_resident_memory_bytes"
	WriteRetryTotal = "ingest_write_retries_total"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// SetGauge sets a point-in-time value.
	SetGauge(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) SetGauge(string, float64, Labels)         {}
func (nopBackend) Flush() error                             { return nil }

var backend Backend = nopBackend{}

// SetBackend installs a concrete backend. Passing nil keeps the existing backend.
func SetBackend(b Backend) {
	if b == nil {
		return
	}
	backend = b
}

// Flush delegates to the current backend.
func Flush() error {
	return backend.Flush()
}

// RecordStep counts one execution of a pipeline step ("decode", "write",
// "schema", "run") and observes its duration.
func RecordStep(job, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}

	lbls := Labels{
		"job":    job,
		"step":   step,
		"status": status,
	}

	backend.IncCounter(StepTotal, 1, lbls)
	backend.ObserveHistogram(StepDuration, d.Seconds(), lbls)
}

// RecordRow increments a record-level counter for the given job and kind.
//
// Kinds mirror the run summary:
//   - "lines"
//   - "parse_errors"
//   - "other"
//   - "title_dropped"
//   - "isbn_dropped"
//   - "title_rows"
//   - "holdings_rows"
func RecordRow(job, kind string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(RecordsTotal, float64(delta), Labels{
		"job":  job,
		"kind": kind,
	})
}

// RecordBatches increments the committed-batch counter.
func RecordBatches(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BatchesTotal, float64(delta), Labels{
		"job": job,
	})
}

// RecordRetry counts one retried write transaction.
func RecordRetry(job string) {
	backend.IncCounter(WriteRetryTotal, 1, Labels{"job": job})
}

// RecordBytesRead adds compressed input bytes consumed.
func RecordBytesRead(job string, delta int64) {
	if delta <= 0 {
		return
	}
	backend.IncCounter(BytesReadTotal, float64(delta), Labels{"job": job})
}

// RecordResidentMemory reports the process RSS sampled at a milestone.
func RecordResidentMemory(job string, rss uint64) {
	backend.SetGauge(ResidentBytes, float64(rss), Labels{"job": job})
}
