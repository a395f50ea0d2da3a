package storage

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"isbnetl/internal/domain"
	"isbnetl/internal/metrics"
)

// WriterOptions tune a Writer.
type WriterOptions struct {
	// Job labels metrics.
	Job string
	// Retries is the number of extra attempts for a failed batch
	// transaction. Zero fails on the first error.
	Retries int
	// Logger receives retry notices; nil uses log.Default().
	Logger *log.Logger
	// NewBackOff overrides the retry schedule (tests).
	NewBackOff func() backoff.BackOff
}

// Totals are the cumulative writer counts.
type Totals struct {
	Batches      int64
	TitleRows    int64
	HoldingsRows int64
	Inserted     int64
	Retries      int64
}

// Writer is the single serialization point in front of a Repository: one
// batch transaction is open at any instant, whichever worker submits it.
type Writer struct {
	mu   sync.Mutex
	repo Repository
	opts WriterOptions

	batches, titleRows, holdingsRows, inserted, retries atomic.Int64
}

// NewWriter wraps repo.
func NewWriter(repo Repository, opts WriterOptions) *Writer {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			b.MaxElapsedTime = 0
			return b
		}
	}
	return &Writer{repo: repo, opts: opts}
}

// Write persists rows as one transaction. Empty batches are skipped. With
// Retries > 0 a failed transaction is replayed in full; insert-if-absent makes
// the replay safe.
func (w *Writer) Write(ctx context.Context, rows domain.Rows) error {
	if rows.Empty() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	var res WriteResult
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		r, err := w.repo.WriteBatch(ctx, rows)
		if err != nil {
			return err
		}
		res = r
		return nil
	}

	var err error
	if w.opts.Retries == 0 {
		err = op()
	} else {
		b := backoff.WithContext(backoff.WithMaxRetries(w.opts.NewBackOff(), uint64(w.opts.Retries)), ctx)
		err = backoff.RetryNotify(op, b, func(err error, next time.Duration) {
			w.retries.Add(1)
			metrics.RecordRetry(w.opts.Job)
			w.opts.Logger.Printf("write: batch of %d rows failed, retrying in %s: %v", rows.Len(), next, err)
		})
	}
	metrics.RecordStep(w.opts.Job, "write", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("write batch (%d titles, %d holdings): %w", len(rows.Titles), len(rows.Holdings), err)
	}

	w.batches.Add(1)
	w.titleRows.Add(res.TitleRows)
	w.holdingsRows.Add(res.HoldingsRows)
	w.inserted.Add(res.Inserted)
	metrics.RecordBatches(w.opts.Job, 1)
	metrics.RecordRow(w.opts.Job, "title_rows", res.TitleRows)
	metrics.RecordRow(w.opts.Job, "holdings_rows", res.HoldingsRows)
	return nil
}

// Totals returns the cumulative counts of committed batches.
func (w *Writer) Totals() Totals {
	return Totals{
		Batches:      w.batches.Load(),
		TitleRows:    w.titleRows.Load(),
		HoldingsRows: w.holdingsRows.Load(),
		Inserted:     w.inserted.Load(),
		Retries:      w.retries.Load(),
	}
}
