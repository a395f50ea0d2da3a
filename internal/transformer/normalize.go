// Package transformer turns decoded metadata into the rows persisted by
// storage. It holds the per-field normalization rules (OCLC number, ISBN-13
// range, publication year) and the per-batch loop run by each worker.
package transformer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"golang.org/x/text/unicode/norm"

	"isbnetl/internal/domain"
)

// ISBN-13 values accepted for persistence: prefixes 978 and 979.
const (
	ISBNMin int64 = 9780000000000
	ISBNMax int64 = 9800000000000 // exclusive
)

// ErrInvalidOCLC is returned when a title's OCLC number is not a decimal
// integer that fits the storage key.
var ErrInvalidOCLC = errors.New("transformer: invalid OCLC number")

var yearRe = regexp.MustCompile(`\b([12]\d{3})\b`)

// Options tune the row construction.
type Options struct {
	// NFC normalizes title and creator to Unicode NFC.
	NFC bool
}

// ParseISBN13 reports the numeric ISBN and whether s is an integer in
// [ISBNMin, ISBNMax).
func ParseISBN13(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < ISBNMin || n >= ISBNMax {
		return 0, false
	}
	return n, true
}

// ExtractYear returns the first standalone 4-digit token starting with 1 or 2.
func ExtractYear(s string) (int64, bool) {
	m := yearRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	y, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return y, true
}

// PublicationYear tries machineReadableDate, publicationDate and date in
// that order and returns the year of the first field that yields one.
func PublicationYear(t *domain.Title) *int64 {
	for _, field := range []*string{t.MachineReadableDate, t.PublicationDate, t.Date} {
		if field == nil {
			continue
		}
		if y, ok := ExtractYear(*field); ok {
			return &y
		}
	}
	return nil
}

// ParseOCLC converts a title's decimal OCLC string. Values above MaxInt64 are
// rejected since every supported store keys on a signed 64-bit column.
func ParseOCLC(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidOCLC, s)
	}
	return n, nil
}

// TitleRows appends one row per valid ISBN of t to dst. It returns the
// extended slice and the number of ISBN strings dropped. A bad OCLC number
// drops the whole record and returns ErrInvalidOCLC.
func TitleRows(dst []domain.TitleRow, t *domain.Title, opts Options) ([]domain.TitleRow, int, error) {
	oclc, err := ParseOCLC(t.OCLCNumber)
	if err != nil {
		return dst, 0, err
	}

	year := PublicationYear(t)
	title, creator := t.Title, t.Creator
	if opts.NFC {
		title, creator = nfc(title), nfc(creator)
	}

	dropped := 0
	for _, s := range t.ISBNs {
		isbn, ok := ParseISBN13(s)
		if !ok {
			dropped++
			continue
		}
		dst = append(dst, domain.TitleRow{
			OCLCNumber:      oclc,
			ISBN13:          isbn,
			PublicationYear: year,
			Title:           title,
			Creator:         creator,
		})
	}
	return dst, dropped, nil
}

// HoldingsRow maps a holdings record one to one.
func HoldingsRow(h *domain.Holdings) domain.HoldingsRow {
	return domain.HoldingsRow{
		OCLCNumber:   h.OCLCNumber,
		HoldingCount: h.TotalHoldingCount,
		EditionCount: h.TotalEditions,
	}
}

func nfc(s *string) *string {
	if s == nil || norm.NFC.IsNormalString(*s) {
		return s
	}
	out := norm.NFC.String(*s)
	return &out
}
