package transformer

import (
	"isbnetl/internal/domain"
	"isbnetl/internal/parser/metadata"
	"isbnetl/internal/parser/ndjson"
)

// Reject kinds reported to the reject callback.
const (
	RejectParse = "parse" // line is not JSON or its record does not conform
	RejectTitle = "title" // title record dropped (bad OCLC number)
)

// Reject describes one dropped line or record.
type Reject struct {
	Kind string
	Line uint64 // 1-based line number in the decoded input
	Err  error
	Raw  string // the offending input line
}

// Stats are the per-batch counts folded into the run summary.
type Stats struct {
	Lines         int64
	ParseErrors   int64
	Other         int64
	Titles        int64
	Holdings      int64
	TitlesDropped int64
	ISBNsDropped  int64
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.ParseErrors += o.ParseErrors
	s.Other += o.Other
	s.Titles += o.Titles
	s.Holdings += o.Holdings
	s.TitlesDropped += o.TitlesDropped
	s.ISBNsDropped += o.ISBNsDropped
}

// Worker converts batches of lines into rows. A Worker owns a JSON parser and
// must not be shared between goroutines.
type Worker struct {
	parser metadata.Parser
	opts   Options
	reject func(Reject)
}

// NewWorker returns a Worker. reject may be nil.
func NewWorker(opts Options, reject func(Reject)) *Worker {
	if reject == nil {
		reject = func(Reject) {}
	}
	return &Worker{opts: opts, reject: reject}
}

// Transform parses every line of b and collects the rows of the whole batch.
// Per-line failures are reported and skipped; they never fail the batch.
func (w *Worker) Transform(b ndjson.Batch) (domain.Rows, Stats) {
	var (
		rows domain.Rows
		st   = Stats{Lines: int64(len(b.Lines))}
	)

	for i, line := range b.Lines {
		md, err := w.parser.Parse(line)
		if err != nil {
			st.ParseErrors++
			w.reject(Reject{Kind: RejectParse, Line: b.LineNo(i), Err: err, Raw: line})
			continue
		}

		switch md.Kind {
		case domain.KindTitle:
			st.Titles++
			var dropped int
			rows.Titles, dropped, err = TitleRows(rows.Titles, md.Title, w.opts)
			if err != nil {
				st.TitlesDropped++
				w.reject(Reject{Kind: RejectTitle, Line: b.LineNo(i), Err: err, Raw: line})
				continue
			}
			st.ISBNsDropped += int64(dropped)

		case domain.KindHoldings:
			st.Holdings++
			rows.Holdings = append(rows.Holdings, HoldingsRow(md.Holdings))

		default:
			st.Other++
		}
	}
	return rows, st
}
