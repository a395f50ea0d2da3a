// Package etl runs the ingest pipeline over a decoded NDJSON stream.
//
//	StreamBatches (1 producer)
//	     → bounded queue of line batches (QueueCapacity)
//	     → N workers: count, parse, transform one whole batch
//	     → BatchWriter (one transaction per batch, serialized)
//
// Per-line failures are logged and counted, never fatal. A read, decode or
// write failure cancels the run and is returned by Run.
package etl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"isbnetl/internal/domain"
	"isbnetl/internal/memstat"
	"isbnetl/internal/metrics"
	"isbnetl/internal/parser/ndjson"
	"isbnetl/internal/transformer"
)

// BatchWriter persists the rows of one batch atomically. It must be safe for
// concurrent use; storage.Writer is the production implementation.
type BatchWriter interface {
	Write(ctx context.Context, rows domain.Rows) error
}

// Options size the pipeline. Zero values take the defaults noted.
type Options struct {
	Workers       int // default runtime.NumCPU()
	BatchSize     int // default 10,000
	QueueCapacity int // default 4 * Workers
	Milestone     int // default 1,000,000
	ErrorSamples  int // default 10
	Job           string
	Transform     transformer.Options
}

// RejectSink receives every rejected line. skiplog.Log implements it.
type RejectSink interface {
	Add(reason string, line uint64, msg, raw string)
}

// Deps are the collaborators of a run.
type Deps struct {
	Writer BatchWriter
	// Log receives diagnostics (stderr); Out receives milestones (stdout).
	Log *log.Logger
	Out *log.Logger
	// Memory is sampled at milestones.
	Memory memstat.Probe
	// Rejects is optional; it must be safe for concurrent use.
	Rejects RejectSink
}

const (
	defaultBatchSize    = 10_000
	defaultMilestone    = 1_000_000
	defaultErrorSamples = 10
)

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 4 * o.Workers
	}
	if o.Milestone <= 0 {
		o.Milestone = defaultMilestone
	}
	if o.ErrorSamples <= 0 {
		o.ErrorSamples = defaultErrorSamples
	}
	return o
}

// Run drains r through the pipeline and returns the run summary. The summary
// is populated even when an error is returned.
func Run(ctx context.Context, r io.Reader, opts Options, deps Deps) (Summary, error) {
	if deps.Writer == nil {
		return Summary{}, errors.New("etl: nil writer")
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, err
	}
	opts = opts.withDefaults()
	if deps.Log == nil {
		deps.Log = log.Default()
	}
	if deps.Out == nil {
		deps.Out = log.Default()
	}
	if deps.Memory == nil {
		deps.Memory = memstat.ResidentBytes
	}

	var (
		start     = time.Now()
		c         = &counters{}
		parseAgg  = newErrAgg(opts.ErrorSamples)
		titleAgg  = newErrAgg(opts.ErrorSamples)
		milestone = newMilestoneCounter(opts, deps.Out, deps.Memory)
		queue     = make(chan ndjson.Batch, opts.QueueCapacity)
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		_, err := ndjson.StreamBatches(gctx, r, opts.BatchSize, queue)
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
		return nil
	})

	reject := func(rj transformer.Reject) {
		msg := fmt.Sprintf("line %d: %v", rj.Line, rj.Err)
		switch rj.Kind {
		case transformer.RejectParse:
			deps.Log.Printf("parse error at %s", msg)
			parseAgg.add(msg)
		default:
			deps.Log.Printf("title dropped at %s", msg)
			titleAgg.add(msg)
		}
		if deps.Rejects != nil {
			deps.Rejects.Add(rj.Kind, rj.Line, rj.Err.Error(), rj.Raw)
		}
	}

	for i := 0; i < opts.Workers; i++ {
		g.Go(func() error {
			w := transformer.NewWorker(opts.Transform, reject)
			for {
				select {
				case <-gctx.Done():
					return nil
				case b, ok := <-queue:
					if !ok {
						return nil
					}
					if err := processBatch(gctx, w, b, opts.Job, milestone, deps.Writer, c); err != nil {
						return err
					}
				}
			}
		})
	}

	err := g.Wait()
	if err != nil && ctx.Err() != nil && errors.Is(err, ndjson.ErrNoConsumers) {
		err = ctx.Err()
	}

	sum := c.summary()
	sum.Elapsed = time.Since(start)
	sum.ParseErrorSamples = parseAgg.samples()
	sum.TitleDropSamples = titleAgg.samples()
	metrics.RecordStep(opts.Job, "run", err, sum.Elapsed)
	return sum, err
}

func processBatch(
	ctx context.Context,
	w *transformer.Worker,
	b ndjson.Batch,
	job string,
	milestone *milestoneCounter,
	writer BatchWriter,
	c *counters,
) error {
	milestone.add(len(b.Lines))

	start := time.Now()
	rows, st := w.Transform(b)
	metrics.RecordStep(job, "transform", nil, time.Since(start))

	c.add(st)
	metrics.RecordRow(job, "lines", st.Lines)
	metrics.RecordRow(job, "parse_errors", st.ParseErrors)
	metrics.RecordRow(job, "other", st.Other)
	metrics.RecordRow(job, "title_dropped", st.TitlesDropped)
	metrics.RecordRow(job, "isbn_dropped", st.ISBNsDropped)

	if err := writer.Write(ctx, rows); err != nil {
		return fmt.Errorf("batch at line %d: %w", b.Seq, err)
	}
	c.batches.Add(1)
	c.titleRows.Add(int64(len(rows.Titles)))
	c.holdingsRows.Add(int64(len(rows.Holdings)))
	return nil
}
