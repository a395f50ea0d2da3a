package domain

import "testing"

func TestKind_String(t *testing.T) {
	t.Parallel()

	cases := map[Kind]string{
		KindOther:    "other",
		KindTitle:    "title",
		KindHoldings: "holdings",
		Kind(42):     "other",
	}
	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestRows_LenEmpty(t *testing.T) {
	t.Parallel()

	var r Rows
	if !r.Empty() || r.Len() != 0 {
		t.Fatalf("zero Rows: Len=%d Empty=%v", r.Len(), r.Empty())
	}

	r.Titles = append(r.Titles, TitleRow{OCLCNumber: 1, ISBN13: 9780306406157})
	r.Holdings = append(r.Holdings, HoldingsRow{OCLCNumber: 1}, HoldingsRow{OCLCNumber: 2})
	if r.Empty() {
		t.Fatalf("Rows with data reported Empty")
	}
	if got := r.Len(); got != 3 {
		t.Fatalf("Len() = %d, want 3", got)
	}
}
