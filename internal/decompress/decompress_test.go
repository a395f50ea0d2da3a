package decompress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

const payload = `{"metadata":{"type":"title_json","record":{"oclcNumber":"42"}}}
{"metadata":{"type":"other"}}
`

func compress(t *testing.T, codec Codec, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch codec {
	case Zstd:
		w, err = zstd.NewWriter(&buf)
	case Gzip:
		w = gzip.NewWriter(&buf)
	case XZ:
		w, err = xz.NewWriter(&buf)
	case None:
		return []byte(data)
	}
	if err != nil {
		t.Fatalf("new %s writer: %v", codec, err)
	}
	if _, err := io.WriteString(w, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	return buf.Bytes()
}

func TestNewReader_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, codec := range []Codec{Zstd, Gzip, XZ, None} {
		codec := codec
		t.Run(string(codec), func(t *testing.T) {
			t.Parallel()
			rc, err := NewReader(bytes.NewReader(compress(t, codec, payload)), codec)
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if string(got) != payload {
				t.Fatalf("got %q, want %q", got, payload)
			}
		})
	}
}

func TestNewReader_CorruptZstdIsAnError(t *testing.T) {
	t.Parallel()

	good := compress(t, Zstd, strings.Repeat(payload, 100))
	bad := append([]byte(nil), good...)
	for i := len(bad) / 2; i < len(bad); i++ {
		bad[i] ^= 0xFF
	}

	rc, err := NewReader(bytes.NewReader(bad), Zstd)
	if err != nil {
		// Some corruptions are caught while reading the frame header.
		return
	}
	defer rc.Close()
	if _, err := io.ReadAll(rc); err == nil {
		t.Fatalf("expected a decode error for corrupt input")
	}
}

func TestNewReader_Unknown(t *testing.T) {
	t.Parallel()

	if _, err := NewReader(strings.NewReader(""), Codec("lz4")); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("err = %v, want ErrUnknownCodec", err)
	}
}

func TestCodecFromPathAndResolve(t *testing.T) {
	t.Parallel()

	cases := map[string]Codec{
		"annas_archive_meta__aacid__worldcat.jsonl.seekable.zst": Zstd,
		"dump.zstd":         Zstd,
		"aarecords.json.gz": Gzip,
		"dump.XZ":           XZ,
		"plain.jsonl":       None,
		"noext":             Zstd,
	}
	for path, want := range cases {
		if got := CodecFromPath(path); got != want {
			t.Errorf("CodecFromPath(%q) = %q, want %q", path, got, want)
		}
		if got := Resolve(Auto, path); got != want {
			t.Errorf("Resolve(auto, %q) = %q, want %q", path, got, want)
		}
	}
	if got := Resolve("GZIP", "x.zst"); got != Gzip {
		t.Errorf("explicit codec must win, got %q", got)
	}
}
