// Package metadata decodes one NDJSON line of the metadata dump into a
// domain.Metadata.
//
// Decoding is two-step: the line is parsed once with fastjson, the
// metadata.type discriminator is classified, and only then are the fields of
// the matching variant extracted. Lines whose shape is not recognized decode
// to domain.KindOther without error; lines that are not JSON, or whose
// recognized variant does not conform, return an error.
package metadata

import (
	"errors"
	"fmt"
	"math"

	"github.com/valyala/fastjson"

	"isbnetl/internal/domain"
)

// ErrSyntax wraps JSON syntax errors.
var ErrSyntax = errors.New("metadata: invalid JSON")

// Parser decodes lines. It reuses internal buffers and is not safe for
// concurrent use; give each worker its own Parser.
type Parser struct {
	p fastjson.Parser
}

// Parse decodes line.
func (p *Parser) Parse(line string) (domain.Metadata, error) {
	v, err := p.p.Parse(line)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("%w: %v", ErrSyntax, err)
	}

	md := v.Get("metadata")
	if md == nil || md.Type() != fastjson.TypeObject {
		return domain.Metadata{Kind: domain.KindOther}, nil
	}

	switch string(md.GetStringBytes("type")) {
	case domain.TypeTitle:
		rec, err := record(md)
		if err != nil {
			return domain.Metadata{}, err
		}
		t, err := decodeTitle(rec)
		if err != nil {
			return domain.Metadata{}, fmt.Errorf("%s: %w", domain.TypeTitle, err)
		}
		return domain.Metadata{Kind: domain.KindTitle, Title: t}, nil

	case domain.TypeHoldings:
		rec, err := record(md)
		if err != nil {
			return domain.Metadata{}, err
		}
		h, err := decodeHoldings(rec)
		if err != nil {
			return domain.Metadata{}, fmt.Errorf("%s: %w", domain.TypeHoldings, err)
		}
		return domain.Metadata{Kind: domain.KindHoldings, Holdings: h}, nil

	default:
		return domain.Metadata{Kind: domain.KindOther}, nil
	}
}

func record(md *fastjson.Value) (*fastjson.Value, error) {
	rec := md.Get("record")
	if rec == nil || rec.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("metadata: %q has no record object", md.GetStringBytes("type"))
	}
	return rec, nil
}

func decodeTitle(rec *fastjson.Value) (*domain.Title, error) {
	oclc, err := requiredString(rec, "oclcNumber")
	if err != nil {
		return nil, err
	}
	t := &domain.Title{OCLCNumber: oclc}

	if t.Title, err = optionalString(rec, "title"); err != nil {
		return nil, err
	}
	if t.Creator, err = optionalString(rec, "creator"); err != nil {
		return nil, err
	}
	if t.MachineReadableDate, err = optionalString(rec, "machineReadableDate"); err != nil {
		return nil, err
	}
	if t.PublicationDate, err = optionalString(rec, "publicationDate"); err != nil {
		return nil, err
	}
	if t.Date, err = optionalString(rec, "date"); err != nil {
		return nil, err
	}

	isbns := rec.Get("isbns")
	if isbns == nil {
		return nil, fmt.Errorf("missing field %q", "isbns")
	}
	arr, err := isbns.Array()
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", "isbns", err)
	}
	t.ISBNs = make([]string, 0, len(arr))
	for i, el := range arr {
		b, err := el.StringBytes()
		if err != nil {
			return nil, fmt.Errorf("field %q[%d]: %w", "isbns", i, err)
		}
		t.ISBNs = append(t.ISBNs, string(b))
	}
	return t, nil
}

func decodeHoldings(rec *fastjson.Value) (*domain.Holdings, error) {
	oclc, err := requiredUint(rec, "oclc_number", math.MaxInt64)
	if err != nil {
		return nil, err
	}
	holdings, err := requiredUint(rec, "total_holding_count", math.MaxUint32)
	if err != nil {
		return nil, err
	}
	editions, err := requiredUint(rec, "total_editions", math.MaxUint32)
	if err != nil {
		return nil, err
	}
	return &domain.Holdings{
		OCLCNumber:        oclc,
		TotalHoldingCount: uint32(holdings),
		TotalEditions:     uint32(editions),
	}, nil
}

func requiredString(v *fastjson.Value, key string) (string, error) {
	f := v.Get(key)
	if f == nil {
		return "", fmt.Errorf("missing field %q", key)
	}
	b, err := f.StringBytes()
	if err != nil {
		return "", fmt.Errorf("field %q: %w", key, err)
	}
	return string(b), nil
}

// optionalString returns nil for an absent or null field.
func optionalString(v *fastjson.Value, key string) (*string, error) {
	f := v.Get(key)
	if f == nil || f.Type() == fastjson.TypeNull {
		return nil, nil
	}
	b, err := f.StringBytes()
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", key, err)
	}
	s := string(b)
	return &s, nil
}

func requiredUint(v *fastjson.Value, key string, max uint64) (uint64, error) {
	f := v.Get(key)
	if f == nil {
		return 0, fmt.Errorf("missing field %q", key)
	}
	n, err := f.Uint64()
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", key, err)
	}
	if n > max {
		return 0, fmt.Errorf("field %q: %d out of range", key, n)
	}
	return n, nil
}
