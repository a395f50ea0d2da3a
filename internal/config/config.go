// Package config centralizes process configuration for the isbnetl binary.
// All tunables are command-line flags whose defaults are seeded from
// environment variables (12-factor friendly), so `-help` lists every knob.
//
// Typical usage:
//
//	cfg, err := config.Load() // reads os.Args and os.Environ
//
// For tests, prefer LoadFromArgs to keep them hermetic:
//
//	fs := flag.NewFlagSet("test", flag.ContinueOnError)
//	getenv := func(k string) string { return testEnv[k] }
//	cfg, err := config.LoadFromArgs(fs, getenv, []string{"-workers=4", "dump.jsonl.zst"})
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// ErrMissingInput is returned when no input path was given.
var ErrMissingInput = errors.New("config: missing input file argument")

// DefaultDSN is the well-known location of the SQLite store, relative to the
// working directory of the run.
const DefaultDSN = "data/library_holding_data.sqlite3"

// Known decompression codec names; "auto" picks by file extension.
var codecs = map[string]bool{"auto": true, "zstd": true, "gzip": true, "xz": true, "none": true}

// Config holds all process configuration derived from flags and environment
// variables. It is plain data and safe to share read-only across goroutines.
type Config struct {
	// Input is the compressed NDJSON dump (the single positional argument).
	Input string
	Codec string

	// Storage selects the registered backend ("sqlite", "postgres", "mssql",
	// "mysql") and its connection string.
	Storage string
	DSN     string

	// Throughput tunables.
	Workers     int // parse/transform goroutines
	BatchSize   int // lines per batch and per write transaction
	QueueFactor int // queue capacity = QueueFactor * Workers
	Milestone   int // emit a record-count line every Milestone records

	ProgressInterval time.Duration
	WriteRetries     int
	NFC              bool
	RejectFile       string // CSV of rejected lines; empty disables

	// Observability.
	Job            string
	MetricsBackend string
	PushgatewayURL string
	DatadogAddr    string
	Verbose        bool
}

// QueueCapacity returns the bounded work queue capacity.
func (c *Config) QueueCapacity() int { return c.QueueFactor * c.Workers }

// LoadFromArgs builds a Config by defining flags on fs, seeding each default
// from getenv, and then parsing args. The first positional argument after the
// flags is the input path.
//
// Precedence:
//  1. Environment values seed each flag's default.
//  2. Explicit CLI flags (in args) override the seeded defaults.
func LoadFromArgs(fs *flag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	cfg := &Config{}

	envOrDefaultFn := func(k, d string) string {
		if v := getenv(k); v != "" {
			return v
		}
		return d
	}
	intEnvOrDefaultFn := func(k string, d int) int {
		if v := getenv(k); v != "" {
			if i, err := strconv.Atoi(v); err == nil {
				return i
			}
		}
		return d
	}
	boolEnvOrDefaultFn := func(k string, d bool) bool {
		if v := strings.ToLower(getenv(k)); v != "" {
			switch v {
			case "1", "true", "yes", "on":
				return true
			case "0", "false", "no", "off":
				return false
			}
		}
		return d
	}
	durationEnvOrDefaultFn := func(k string, d time.Duration) time.Duration {
		if v := getenv(k); v != "" {
			if dur, err := time.ParseDuration(v); err == nil {
				return dur
			}
		}
		return d
	}

	fs.StringVar(&cfg.Codec, "codec", envOrDefaultFn("ETL_CODEC", "auto"), "Input compression: auto, zstd, gzip, xz or none")

	fs.StringVar(&cfg.Storage, "storage", envOrDefaultFn("ETL_STORAGE", "sqlite"), "Storage backend: sqlite, postgres, mssql or mysql")
	fs.StringVar(&cfg.DSN, "dsn", envOrDefaultFn("ETL_DSN", DefaultDSN), "Storage DSN (file path for sqlite)")

	fs.IntVar(&cfg.Workers, "workers", intEnvOrDefaultFn("ETL_WORKERS", runtime.NumCPU()), "Number of parse/transform workers")
	fs.IntVar(&cfg.BatchSize, "batch-size", intEnvOrDefaultFn("ETL_BATCH_SIZE", 10000), "Lines per batch and per write transaction")
	fs.IntVar(&cfg.QueueFactor, "queue-factor", intEnvOrDefaultFn("ETL_QUEUE_FACTOR", 4), "Work queue capacity as a multiple of workers")
	fs.IntVar(&cfg.Milestone, "milestone", intEnvOrDefaultFn("ETL_MILESTONE", 1_000_000), "Log record count and memory every N records")

	fs.DurationVar(&cfg.ProgressInterval, "progress-interval", durationEnvOrDefaultFn("ETL_PROGRESS_INTERVAL", time.Second), "Minimum interval between decompression progress lines")
	fs.IntVar(&cfg.WriteRetries, "write-retries", intEnvOrDefaultFn("ETL_WRITE_RETRIES", 0), "Retries per failed batch transaction (0 = fail on first error)")
	fs.StringVar(&cfg.RejectFile, "reject-file", envOrDefaultFn("ETL_REJECT_FILE", ""), "Write rejected lines to this CSV file")
	fs.BoolVar(&cfg.NFC, "nfc", boolEnvOrDefaultFn("ETL_NFC", false), "Normalize title and creator to Unicode NFC")

	fs.StringVar(&cfg.Job, "job", envOrDefaultFn("ETL_JOB", "isbnetl"), "Job name used for metrics")
	fs.StringVar(&cfg.MetricsBackend, "metrics-backend", envOrDefaultFn("METRICS_BACKEND", "none"), "Metrics backend: none, pushgateway or datadog")
	fs.StringVar(&cfg.PushgatewayURL, "pushgateway-url", envOrDefaultFn("PUSHGATEWAY_URL", "http://localhost:9091"), "Pushgateway base URL")
	fs.StringVar(&cfg.DatadogAddr, "datadog-addr", envOrDefaultFn("DATADOG_ADDR", "127.0.0.1:8125"), "DogStatsD address")
	fs.BoolVar(&cfg.Verbose, "v", boolEnvOrDefaultFn("ETL_VERBOSE", false), "Verbose logs")

	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() < 1 {
		return nil, ErrMissingInput
	}
	cfg.Input = fs.Arg(0)
	return cfg, nil
}

// Load is the production entry point. It parses os.Args[1:] against the
// process flag set with os.Getenv as the environment source.
func Load() (*Config, error) {
	return LoadFromArgs(flag.CommandLine, os.Getenv, os.Args[1:])
}

// Validate reports the first configuration problem found, if any.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Input) == "":
		return ErrMissingInput
	case c.Workers <= 0:
		return fmt.Errorf("config: workers must be > 0 (got %d)", c.Workers)
	case c.BatchSize <= 0:
		return fmt.Errorf("config: batch-size must be > 0 (got %d)", c.BatchSize)
	case c.QueueFactor <= 0:
		return fmt.Errorf("config: queue-factor must be > 0 (got %d)", c.QueueFactor)
	case c.Milestone <= 0:
		return fmt.Errorf("config: milestone must be > 0 (got %d)", c.Milestone)
	case c.WriteRetries < 0:
		return fmt.Errorf("config: write-retries must be >= 0 (got %d)", c.WriteRetries)
	case strings.TrimSpace(c.Storage) == "":
		return fmt.Errorf("config: storage must not be empty")
	case !codecs[strings.ToLower(c.Codec)]:
		return fmt.Errorf("config: unknown codec %q", c.Codec)
	}
	return nil
}
