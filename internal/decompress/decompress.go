// Package decompress turns the raw input stream into a forward-only decoded
// byte stream.
//
// The decoders read through their source and never seek, so they can sit on
// top of progress.Reader. Corrupt input surfaces as an error from Read and is
// fatal to the run; there is no resume.
package decompress

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Codec names a supported compression format.
type Codec string

const (
	Auto Codec = "auto"
	Zstd Codec = "zstd"
	Gzip Codec = "gzip"
	XZ   Codec = "xz"
	None Codec = "none"
)

// ErrUnknownCodec is returned for codec names NewReader does not handle.
var ErrUnknownCodec = errors.New("decompress: unknown codec")

// zstd windows in the metadata dumps can be large; allow up to 2 GiB.
const zstdMaxWindow = 1 << 31

// CodecFromPath picks a codec by file extension. Unknown extensions fall back
// to zstd, the format of the upstream dumps.
func CodecFromPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return Gzip
	case ".xz":
		return XZ
	case ".json", ".jsonl", ".ndjson":
		return None
	default:
		return Zstd
	}
}

// Resolve maps Auto to a concrete codec using path.
func Resolve(c Codec, path string) Codec {
	c = Codec(strings.ToLower(string(c)))
	if c == Auto || c == "" {
		return CodecFromPath(path)
	}
	return c
}

// NewReader wraps r with the decoder for codec. Closing the returned reader
// releases decoder resources but does not close r.
func NewReader(r io.Reader, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case Zstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderMaxWindow(zstdMaxWindow))
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return zstdReadCloser{dec}, nil

	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return gz, nil

	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		return io.NopCloser(xr), nil

	case None:
		return io.NopCloser(r), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, codec)
	}
}

// zstdReadCloser adapts *zstd.Decoder, whose Close has no error result.
type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}
