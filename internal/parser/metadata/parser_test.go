package metadata

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"isbnetl/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestParse_Title(t *testing.T) {
	t.Parallel()

	var p Parser
	line := `{"metadata":{"type":"title_json","record":{"oclcNumber":"42","title":"Cosmos","creator":null,` +
		`"isbns":["9780306406157","123"],"machineReadableDate":"2001","extra":{"ignored":true}}}}`

	got, err := p.Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := domain.Metadata{
		Kind: domain.KindTitle,
		Title: &domain.Title{
			OCLCNumber:          "42",
			Title:               strPtr("Cosmos"),
			ISBNs:               []string{"9780306406157", "123"},
			MachineReadableDate: strPtr("2001"),
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Holdings(t *testing.T) {
	t.Parallel()

	var p Parser
	line := `{"metadata":{"type":"search_holdings_summary_all_editions","oclc_number":"42","from_filenames":[],` +
		`"record":{"oclc_number":42,"total_holding_count":5,"total_editions":2}}}`

	got, err := p.Parse(line)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := domain.Metadata{
		Kind:     domain.KindHoldings,
		Holdings: &domain.Holdings{OCLCNumber: 42, TotalHoldingCount: 5, TotalEditions: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Other(t *testing.T) {
	t.Parallel()

	var p Parser
	for _, line := range []string{
		`{"metadata":{"type":"legacy_search_holdings_summary","record":{}}}`,
		`{"metadata":{"record":{"oclcNumber":"1"}}}`,
		`{"metadata":"not an object"}`,
		`{"aacid":"aacid__worldcat__x"}`,
		`[1,2,3]`,
	} {
		got, err := p.Parse(line)
		if err != nil {
			t.Errorf("Parse(%s): unexpected error %v", line, err)
			continue
		}
		if got.Kind != domain.KindOther || got.Title != nil || got.Holdings != nil {
			t.Errorf("Parse(%s) = %+v, want KindOther", line, got)
		}
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		syntax bool
	}{
		{"not json", `{"metadata":`, true},
		{"empty line", ``, true},
		{"title without record", `{"metadata":{"type":"title_json"}}`, false},
		{"title numeric oclc", `{"metadata":{"type":"title_json","record":{"oclcNumber":42,"isbns":[]}}}`, false},
		{"title missing isbns", `{"metadata":{"type":"title_json","record":{"oclcNumber":"42"}}}`, false},
		{"title non-string isbn", `{"metadata":{"type":"title_json","record":{"oclcNumber":"42","isbns":[9780306406157]}}}`, false},
		{"title numeric title", `{"metadata":{"type":"title_json","record":{"oclcNumber":"42","isbns":[],"title":7}}}`, false},
		{"holdings string oclc", `{"metadata":{"type":"search_holdings_summary_all_editions","record":{"oclc_number":"42","total_holding_count":1,"total_editions":1}}}`, false},
		{"holdings negative", `{"metadata":{"type":"search_holdings_summary_all_editions","record":{"oclc_number":42,"total_holding_count":-1,"total_editions":1}}}`, false},
		{"holdings overflow u32", `{"metadata":{"type":"search_holdings_summary_all_editions","record":{"oclc_number":42,"total_holding_count":4294967296,"total_editions":1}}}`, false},
		{"holdings missing editions", `{"metadata":{"type":"search_holdings_summary_all_editions","record":{"oclc_number":42,"total_holding_count":1}}}`, false},
	}

	var p Parser
	for _, tt := range tests {
		_, err := p.Parse(tt.line)
		if err == nil {
			t.Errorf("%s: expected error", tt.name)
			continue
		}
		if got := errors.Is(err, ErrSyntax); got != tt.syntax {
			t.Errorf("%s: errors.Is(ErrSyntax) = %v, want %v (err=%v)", tt.name, got, tt.syntax, err)
		}
	}
}

// TestParse_ReuseDoesNotAlias guards against returning strings that point
// into the parser's reusable buffer.
func TestParse_ReuseDoesNotAlias(t *testing.T) {
	t.Parallel()

	var p Parser
	first, err := p.Parse(`{"metadata":{"type":"title_json","record":{"oclcNumber":"111","title":"First","isbns":["9780000000001"]}}}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, err := p.Parse(`{"metadata":{"type":"title_json","record":{"oclcNumber":"222","title":"Other","isbns":["9790000000002"]}}}`); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if first.Title.OCLCNumber != "111" || *first.Title.Title != "First" || first.Title.ISBNs[0] != "9780000000001" {
		t.Fatalf("first result was overwritten: %+v", first.Title)
	}
}
