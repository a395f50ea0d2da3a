package etl

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/dustin/go-humanize"

	"isbnetl/internal/memstat"
	"isbnetl/internal/metrics"
	"isbnetl/internal/transformer"
)

// counters holds cross-goroutine statistics for a run. All fields are
// updated atomically.
type counters struct {
	lines         atomic.Int64
	parseErrors   atomic.Int64
	other         atomic.Int64
	titles        atomic.Int64
	holdings      atomic.Int64
	titlesDropped atomic.Int64
	isbnsDropped  atomic.Int64

	batches      atomic.Int64 // batches handed to the writer successfully
	titleRows    atomic.Int64
	holdingsRows atomic.Int64
}

func (c *counters) add(st transformer.Stats) {
	c.lines.Add(st.Lines)
	c.parseErrors.Add(st.ParseErrors)
	c.other.Add(st.Other)
	c.titles.Add(st.Titles)
	c.holdings.Add(st.Holdings)
	c.titlesDropped.Add(st.TitlesDropped)
	c.isbnsDropped.Add(st.ISBNsDropped)
}

func (c *counters) summary() Summary {
	return Summary{
		Stats: transformer.Stats{
			Lines:         c.lines.Load(),
			ParseErrors:   c.parseErrors.Load(),
			Other:         c.other.Load(),
			Titles:        c.titles.Load(),
			Holdings:      c.holdings.Load(),
			TitlesDropped: c.titlesDropped.Load(),
			ISBNsDropped:  c.isbnsDropped.Load(),
		},
		Batches:      c.batches.Load(),
		TitleRows:    c.titleRows.Load(),
		HoldingsRows: c.holdingsRows.Load(),
	}
}

// milestoneCounter is the shared running total of records seen. Whenever a
// batch moves the total into the first batchSize records past a multiple of
// the milestone, it logs the total with the resident memory.
type milestoneCounter struct {
	total     atomic.Uint64
	milestone uint64
	batchSize uint64
	job       string
	out       *log.Logger
	mem       memstat.Probe
}

func newMilestoneCounter(o Options, out *log.Logger, mem memstat.Probe) *milestoneCounter {
	return &milestoneCounter{
		milestone: uint64(o.Milestone),
		batchSize: uint64(o.BatchSize),
		job:       o.Job,
		out:       out,
		mem:       mem,
	}
}

// add returns the new total.
func (m *milestoneCounter) add(n int) uint64 {
	total := m.total.Add(uint64(n))
	if total%m.milestone < m.batchSize {
		rss := m.mem()
		m.out.Printf("%d records... { memory: %s }", total, humanize.IBytes(rss))
		metrics.RecordResidentMemory(m.job, rss)
	}
	return total
}

// errAgg keeps the first limit messages and a total count.
type errAgg struct {
	mu    sync.Mutex
	limit int
	count int
	first []string
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) samples() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.first...)
}
