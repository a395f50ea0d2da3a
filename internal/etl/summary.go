package etl

import (
	"log"
	"time"

	"isbnetl/internal/transformer"
)

// Summary describes a finished (or aborted) run.
type Summary struct {
	transformer.Stats

	Batches      int64
	TitleRows    int64
	HoldingsRows int64
	Elapsed      time.Duration

	ParseErrorSamples []string
	TitleDropSamples  []string
}

// Log prints the summary and the error samples.
func (s Summary) Log(l *log.Logger) {
	l.Printf(
		"summary: lines=%d titles=%d holdings=%d other=%d parse_errors=%d title_dropped=%d isbn_dropped=%d title_rows=%d holdings_rows=%d batches=%d elapsed=%s",
		s.Lines, s.Titles, s.Holdings, s.Other, s.ParseErrors, s.TitlesDropped, s.ISBNsDropped,
		s.TitleRows, s.HoldingsRows, s.Batches, s.Elapsed.Truncate(time.Millisecond),
	)
	logSamples(l, "parse errors", s.ParseErrors, s.ParseErrorSamples)
	logSamples(l, "dropped titles", s.TitlesDropped, s.TitleDropSamples)

	if accounted := s.ParseErrors + s.Titles + s.Holdings + s.Other; accounted != s.Lines {
		l.Printf("WARNING: line accounting mismatch: lines=%d accounted=%d", s.Lines, accounted)
	}
}

func logSamples(l *log.Logger, what string, total int64, samples []string) {
	if total == 0 {
		return
	}
	l.Printf("%s: %d (showing first %d)", what, total, len(samples))
	for i, s := range samples {
		l.Printf("  #%03d: %s", i+1, s)
	}
}
