// Package progress wraps the raw input stream with byte accounting and
// periodic throughput reporting.
//
// The wrapper is purely observational: it forwards every Read unchanged and
// propagates the underlying error as-is. It also feeds the bytes through an
// xxh3 hasher so the run summary can print a fingerprint of the exact input
// that was ingested.
package progress

import (
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/zeebo/xxh3"
)

// Reader counts bytes read from the wrapped reader and, at most once per
// interval, logs bytes read, total size, percentage and throughput.
type Reader struct {
	r     io.Reader
	total int64

	read     atomic.Int64
	lastRead int64
	last     time.Time

	interval time.Duration
	logger   *log.Logger
	now      func() time.Time
	hash     *xxh3.Hasher
}

// Option customizes a Reader.
type Option func(*Reader)

// WithInterval sets the minimum time between two status lines.
func WithInterval(d time.Duration) Option {
	return func(p *Reader) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithClock replaces time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(p *Reader) {
		if now != nil {
			p.now = now
		}
	}
}

// NewReader wraps r, whose full length is total bytes. Status lines go to
// logger (typically a stderr logger).
func NewReader(r io.Reader, total int64, logger *log.Logger, opts ...Option) *Reader {
	p := &Reader{
		r:        r,
		total:    total,
		interval: time.Second,
		logger:   logger,
		now:      time.Now,
		hash:     xxh3.New(),
	}
	for _, o := range opts {
		o(p)
	}
	p.last = p.now()
	return p
}

// Read implements io.Reader.
func (p *Reader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		_, _ = p.hash.Write(b[:n])
		p.read.Add(int64(n))
	}

	now := p.now()
	if elapsed := now.Sub(p.last); elapsed >= p.interval {
		p.report(elapsed)
		p.last = now
		p.lastRead = p.read.Load()
	}
	return n, err
}

// BytesRead returns the running byte count.
func (p *Reader) BytesRead() int64 { return p.read.Load() }

// Total returns the size passed to NewReader.
func (p *Reader) Total() int64 { return p.total }

// Fingerprint returns the xxh3 hash of every byte read so far. It is only
// meaningful once the stream has been fully consumed.
func (p *Reader) Fingerprint() uint64 { return p.hash.Sum64() }

func (p *Reader) report(elapsed time.Duration) {
	if p.logger == nil {
		return
	}
	read := p.read.Load()

	var pct float64
	if p.total > 0 {
		pct = float64(read) / float64(p.total) * 100
	}

	secs := uint64(elapsed / time.Second)
	if secs == 0 {
		p.logger.Printf("read %s / %s (%.2f%%)",
			humanize.IBytes(uint64(read)), humanize.IBytes(uint64(p.total)), pct)
		return
	}
	rate := uint64(read-p.lastRead) / secs
	p.logger.Printf("read %s / %s (%.2f%%, %s/s)",
		humanize.IBytes(uint64(read)), humanize.IBytes(uint64(p.total)), pct, humanize.IBytes(rate))
}
