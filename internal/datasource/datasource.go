// Package datasource defines how the pipeline obtains its raw input bytes.
package datasource

import (
	"context"
	"io"
)

// Source opens the raw (still compressed) input. Size is the total length in
// bytes when known, or 0.
type Source interface {
	Open(ctx context.Context) (rc io.ReadCloser, size int64, err error)
}
