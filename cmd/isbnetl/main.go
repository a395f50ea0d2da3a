// Command isbnetl loads an OCLC/WorldCat metadata dump (zstd-compressed
// NDJSON) into the isbn_data and holdings_data tables.
//
//	isbnetl [flags] annas_archive_meta__aacid__worldcat.jsonl.seekable.zst
//
// Every flag has an environment fallback; run with -help for the list.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"isbnetl/internal/config"
	"isbnetl/internal/metrics"
	"isbnetl/internal/metrics/datadog"
	"isbnetl/internal/metrics/prompush"

	// register all backends with the storage factory.
	_ "isbnetl/internal/storage/all"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v\nusage: isbnetl [flags] <dump.jsonl.zst>", err)
	}
	if err := cfg.Validate(); err != nil {
		fatalf("%v", err)
	}

	flush := setupMetrics(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	_, err = run(ctx, cfg, os.Stderr, os.Stdout)
	stop()
	flush()

	if err != nil {
		fatalf("isbnetl: %v", err)
	}
}

// setupMetrics installs the configured backend and returns its flush hook.
// A backend that fails to initialize leaves metrics disabled.
func setupMetrics(cfg *config.Config) (flush func()) {
	flush = func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}

	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend(cfg.Job, cfg.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", cfg.PushgatewayURL, cfg.MetricsBackend, cfg.Job)
		metrics.SetBackend(b)

	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       cfg.DatadogAddr,
			Namespace:  "isbnetl.",
			GlobalTags: []string{"job:" + cfg.Job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: addr=%v, backend=%v", cfg.DatadogAddr, cfg.MetricsBackend)
		metrics.SetBackend(b)

	case "", "none":
		if cfg.Verbose {
			log.Printf("metrics: disabled (backend=%q)", cfg.MetricsBackend)
		}
		return func() {}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", cfg.MetricsBackend)
		return func() {}
	}
	return flush
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
