// Package skiplog records rejected input lines to a CSV file so they can be
// inspected or replayed after a run.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Header is the first row of every skip log.
var Header = []string{"reason", "line_number", "error", "raw_line"}

// Log is safe for concurrent use.
type Log struct {
	mu      sync.Mutex
	w       *csv.Writer
	c       io.Closer
	reasons map[string]int
}

// Open creates (or truncates) path and writes the header row.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("skiplog: create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("skiplog: open %s: %w", path, err)
	}
	l := New(f)
	l.c = f
	return l, nil
}

// New writes to w. Close flushes but does not close w.
func New(w io.Writer) *Log {
	cw := csv.NewWriter(w)
	_ = cw.Write(Header)
	return &Log{w: cw, reasons: make(map[string]int)}
}

func (l *Log) Add(reason string, line uint64, msg, raw string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reasons[reason]++
	_ = l.w.Write([]string{reason, strconv.FormatUint(line, 10), msg, raw})
}

// Counts returns a copy of the per-reason totals.
func (l *Log) Counts() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]int, len(l.reasons))
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	err := l.w.Error()
	if l.c != nil {
		if cerr := l.c.Close(); err == nil {
			err = cerr
		}
		l.c = nil
	}
	return err
}
