package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/dustin/go-humanize"

	"isbnetl/internal/config"
	"isbnetl/internal/datasource"
	"isbnetl/internal/datasource/file"
	"isbnetl/internal/datasource/progress"
	"isbnetl/internal/decompress"
	"isbnetl/internal/etl"
	"isbnetl/internal/memstat"
	"isbnetl/internal/metrics"
	"isbnetl/internal/skiplog"
	"isbnetl/internal/storage"
	"isbnetl/internal/transformer"
)

// Function variables used to introduce test seams.
var (
	newRepositoryFn = storage.New
	newSourceFn     = func(path string) datasource.Source { return file.NewLocal(path) }
	memoryFn        = memstat.ResidentBytes
)

// run opens the input, prepares storage and drives etl.Run. Diagnostics and
// decompression progress go to stderr, record milestones to stdout.
func run(ctx context.Context, cfg *config.Config, stderr, stdout io.Writer) (etl.Summary, error) {
	errLog := log.New(stderr, "", log.LstdFlags)
	outLog := log.New(stdout, "", 0)

	codec := decompress.Resolve(decompress.Codec(cfg.Codec), cfg.Input)
	errLog.Printf("isbnetl: input=%s codec=%s storage=%s workers=%d batch=%d queue=%d",
		cfg.Input, codec, cfg.Storage, cfg.Workers, cfg.BatchSize, cfg.QueueCapacity())

	raw, size, err := newSourceFn(cfg.Input).Open(ctx)
	if err != nil {
		return etl.Summary{}, fmt.Errorf("open input: %w", err)
	}
	defer raw.Close()

	pr := progress.NewReader(raw, size, errLog, progress.WithInterval(cfg.ProgressInterval))
	dec, err := decompress.NewReader(pr, codec)
	if err != nil {
		return etl.Summary{}, fmt.Errorf("open decoder: %w", err)
	}
	// The zstd decoder reads ahead on its own goroutine; closeDecoder stops it
	// before the byte count and fingerprint are read.
	decClosed := false
	closeDecoder := func() {
		if !decClosed {
			decClosed = true
			_ = dec.Close()
		}
	}
	defer closeDecoder()

	if cfg.Verbose {
		errLog.Printf("storage: kind=%s dsn=%s", cfg.Storage, cfg.DSN)
	}
	repo, err := newRepositoryFn(ctx, storage.Config{Kind: cfg.Storage, DSN: cfg.DSN})
	if err != nil {
		return etl.Summary{}, fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := repo.Close(); cerr != nil {
			errLog.Printf("storage: close: %v", cerr)
		}
	}()

	start := time.Now()
	err = repo.EnsureSchema(ctx)
	metrics.RecordStep(cfg.Job, "schema", err, time.Since(start))
	if err != nil {
		return etl.Summary{}, fmt.Errorf("ensure schema: %w", err)
	}

	var rejects etl.RejectSink
	if cfg.RejectFile != "" {
		sl, err := skiplog.Open(cfg.RejectFile)
		if err != nil {
			return etl.Summary{}, err
		}
		defer func() {
			if cerr := sl.Close(); cerr != nil {
				errLog.Printf("skiplog: close: %v", cerr)
			}
		}()
		rejects = sl
	}

	writer := storage.NewWriter(repo, storage.WriterOptions{
		Job:     cfg.Job,
		Retries: cfg.WriteRetries,
		Logger:  errLog,
	})

	sum, err := etl.Run(ctx, dec, etl.Options{
		Workers:       cfg.Workers,
		BatchSize:     cfg.BatchSize,
		QueueCapacity: cfg.QueueCapacity(),
		Milestone:     cfg.Milestone,
		Job:           cfg.Job,
		Transform:     transformer.Options{NFC: cfg.NFC},
	}, etl.Deps{
		Writer:  writer,
		Log:     errLog,
		Out:     outLog,
		Memory:  memoryFn,
		Rejects: rejects,
	})
	closeDecoder()
	metrics.RecordBytesRead(cfg.Job, pr.BytesRead())
	sum.Log(errLog)
	if err != nil {
		return sum, err
	}

	tot := writer.Totals()
	errLog.Printf("done: read %s of %s, inserted=%d (of %d title + %d holdings statements), retries=%d, input xxh3=%016x",
		humanize.IBytes(uint64(pr.BytesRead())), humanize.IBytes(uint64(size)),
		tot.Inserted, tot.TitleRows, tot.HoldingsRows, tot.Retries, pr.Fingerprint())
	return sum, nil
}
