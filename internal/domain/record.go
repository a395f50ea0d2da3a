// Package domain holds the business objects that flow through the ingestion
// pipeline: the raw metadata variants decoded from one input line and the
// normalized rows handed to storage.
package domain

// Kind discriminates the metadata variants found under the "metadata" wrapper
// of an input line.
type Kind uint8

const (
	// KindOther covers every shape the pipeline does not ingest.
	KindOther Kind = iota
	KindTitle
	KindHoldings
)

// Discriminator values of metadata.type.
const (
	TypeTitle    = "title_json"
	TypeHoldings = "search_holdings_summary_all_editions"
)

func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindHoldings:
		return "holdings"
	default:
		return "other"
	}
}

// Title mirrors a title_json record. Pointer fields are NULL-able.
type Title struct {
	OCLCNumber          string
	Title               *string
	Creator             *string
	ISBNs               []string
	MachineReadableDate *string
	PublicationDate     *string
	Date                *string
}

// Holdings mirrors a search_holdings_summary_all_editions record.
type Holdings struct {
	OCLCNumber        uint64
	TotalHoldingCount uint32
	TotalEditions     uint32
}

// Metadata is the decoded tagged union of one line. Exactly one of Title and
// Holdings is set, according to Kind; both are nil for KindOther.
type Metadata struct {
	Kind     Kind
	Title    *Title
	Holdings *Holdings
}

// TitleRow is one persisted isbn_data row. Identity is (OCLCNumber, ISBN13).
type TitleRow struct {
	OCLCNumber      uint64
	ISBN13          int64
	PublicationYear *int64
	Title           *string
	Creator         *string
}

// HoldingsRow is one persisted holdings_data row. Identity is OCLCNumber.
type HoldingsRow struct {
	OCLCNumber   uint64
	HoldingCount uint32
	EditionCount uint32
}

// Rows is everything produced from one input batch. It is the unit of
// transactional atomicity for the writer.
type Rows struct {
	Titles   []TitleRow
	Holdings []HoldingsRow
}

// Len returns the total number of rows.
func (r Rows) Len() int { return len(r.Titles) + len(r.Holdings) }

// Empty reports whether there is nothing to persist.
func (r Rows) Empty() bool { return r.Len() == 0 }
