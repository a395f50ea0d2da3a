// Package ndjson splits a decoded newline-delimited stream into fixed-size
// batches of lines and hands them to a bounded queue.
//
// StreamBatches is the pipeline's only producer. A full queue blocks it,
// which bounds memory to roughly cap(out) * batchSize lines in flight plus
// whatever the workers hold.
package ndjson

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidEncoding is returned for a line that is not valid UTF-8.
	ErrInvalidEncoding = errors.New("ndjson: invalid UTF-8 in line")

	// ErrNoConsumers is returned when a batch cannot be handed off because
	// the consuming side has shut down.
	ErrNoConsumers = errors.New("ndjson: no consumers left for batch")
)

// readBufSize is the bufio buffer in front of the decoder.
const readBufSize = 1 << 20

// Batch is a group of consecutive input lines.
type Batch struct {
	// Seq is the 1-based line number of Lines[0] in the decoded stream.
	Seq   uint64
	Lines []string
}

// LineNo returns the 1-based stream line number of Lines[i].
func (b Batch) LineNo(i int) uint64 { return b.Seq + uint64(i) }

// StreamBatches reads r line by line, groups lines into batches of batchSize
// and sends each batch on out. The final partial batch, if non-empty, is sent
// as well. It does not close out.
//
// Line terminators ("\n" or "\r\n") are stripped; a last line without a
// terminator is kept. Empty lines are forwarded so line numbers stay aligned
// with the input.
//
// A read error or invalid UTF-8 aborts with an error. If ctx is done while a
// send is blocked, StreamBatches returns an error wrapping ErrNoConsumers.
// It returns the number of lines read.
func StreamBatches(ctx context.Context, r io.Reader, batchSize int, out chan<- Batch) (uint64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("ndjson: batchSize must be > 0")
	}

	br := bufio.NewReaderSize(r, readBufSize)
	var (
		lineNo uint64
		batch  = Batch{Seq: 1, Lines: make([]string, 0, batchSize)}
	)

	send := func() error {
		select {
		case out <- batch:
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrNoConsumers, ctx.Err())
		}
		batch = Batch{Seq: lineNo + 1, Lines: make([]string, 0, batchSize)}
		return nil
	}

	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			line = trimEOL(line)
			lineNo++
			if !utf8.ValidString(line) {
				return lineNo, fmt.Errorf("line %d: %w", lineNo, ErrInvalidEncoding)
			}
			batch.Lines = append(batch.Lines, line)
			if len(batch.Lines) >= batchSize {
				if serr := send(); serr != nil {
					return lineNo, serr
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return lineNo, fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
	}

	if len(batch.Lines) > 0 {
		if err := send(); err != nil {
			return lineNo, err
		}
	}
	return lineNo, nil
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
