package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"isbnetl/internal/domain"
	"isbnetl/internal/storage"
	"isbnetl/internal/storage/sqldb"
)

func i64(n int64) *int64   { return &n }
func str(s string) *string { return &s }

func openTemp(t *testing.T) *sqldb.Repository {
	t.Helper()
	repo, err := NewRepository(context.Background(), filepath.Join(t.TempDir(), "nested", "holdings.sqlite3"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return repo
}

type titleRecord struct {
	OCLC    int64
	ISBN    int64
	Year    sql.NullInt64
	Title   sql.NullString
	Creator sql.NullString
}

func readTitles(t *testing.T, db *sql.DB) []titleRecord {
	t.Helper()
	rows, err := db.Query(`SELECT oclc_number, isbn13, publication_date, title, creator FROM isbn_data ORDER BY oclc_number, isbn13`)
	if err != nil {
		t.Fatalf("query isbn_data: %v", err)
	}
	defer rows.Close()
	var out []titleRecord
	for rows.Next() {
		var r titleRecord
		if err := rows.Scan(&r.OCLC, &r.ISBN, &r.Year, &r.Title, &r.Creator); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	return out
}

func readHoldings(t *testing.T, db *sql.DB) [][3]int64 {
	t.Helper()
	rows, err := db.Query(`SELECT oclc_number, holding_count, edition_count FROM holdings_data ORDER BY oclc_number`)
	if err != nil {
		t.Fatalf("query holdings_data: %v", err)
	}
	defer rows.Close()
	var out [][3]int64
	for rows.Next() {
		var r [3]int64
		if err := rows.Scan(&r[0], &r[1], &r[2]); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := openTemp(t)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("second EnsureSchema: %v", err)
	}

	var mode string
	if err := repo.DB().QueryRow(`PRAGMA journal_mode`).Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("journal_mode = %q, want wal", mode)
	}

	var idx int
	if err := repo.DB().QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='index' AND name='isbn_oclc_number'`).Scan(&idx); err != nil {
		t.Fatalf("index lookup: %v", err)
	}
	if idx != 1 {
		t.Fatalf("isbn_oclc_number index count = %d, want 1", idx)
	}
}

func TestWriteBatch_FirstWriteWins(t *testing.T) {
	t.Parallel()

	repo := openTemp(t)
	ctx := context.Background()

	first := domain.Rows{
		Titles: []domain.TitleRow{
			{OCLCNumber: 42, ISBN13: 9780306406157, PublicationYear: i64(2001)},
			{OCLCNumber: 42, ISBN13: 9791234567896, PublicationYear: i64(2001), Title: str("Cosmos")},
		},
		Holdings: []domain.HoldingsRow{{OCLCNumber: 42, HoldingCount: 5, EditionCount: 2}},
	}
	res, err := repo.WriteBatch(ctx, first)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if diff := cmp.Diff(storage.WriteResult{TitleRows: 2, HoldingsRows: 1, Inserted: 3}, res); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}

	second := domain.Rows{
		Titles: []domain.TitleRow{
			{OCLCNumber: 42, ISBN13: 9780306406157, PublicationYear: i64(1999), Title: str("Changed")},
			{OCLCNumber: 7, ISBN13: 9780000000000},
		},
		Holdings: []domain.HoldingsRow{{OCLCNumber: 42, HoldingCount: 99, EditionCount: 99}},
	}
	res, err = repo.WriteBatch(ctx, second)
	if err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	if res.Inserted != 1 {
		t.Fatalf("Inserted = %d, want 1 (only the new key)", res.Inserted)
	}

	want := []titleRecord{
		{OCLC: 7, ISBN: 9780000000000},
		{OCLC: 42, ISBN: 9780306406157, Year: sql.NullInt64{Int64: 2001, Valid: true}},
		{OCLC: 42, ISBN: 9791234567896, Year: sql.NullInt64{Int64: 2001, Valid: true}, Title: sql.NullString{String: "Cosmos", Valid: true}},
	}
	if diff := cmp.Diff(want, readTitles(t, repo.DB())); diff != "" {
		t.Fatalf("isbn_data mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][3]int64{{42, 5, 2}}, readHoldings(t, repo.DB())); diff != "" {
		t.Fatalf("holdings_data mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteBatch_ReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := openTemp(t)
	ctx := context.Background()
	rows := domain.Rows{
		Titles:   []domain.TitleRow{{OCLCNumber: 1, ISBN13: 9780306406157}},
		Holdings: []domain.HoldingsRow{{OCLCNumber: 1, HoldingCount: 1, EditionCount: 1}},
	}
	for i := 0; i < 3; i++ {
		if _, err := repo.WriteBatch(ctx, rows); err != nil {
			t.Fatalf("WriteBatch #%d: %v", i, err)
		}
	}
	if got := len(readTitles(t, repo.DB())); got != 1 {
		t.Fatalf("isbn_data rows = %d, want 1", got)
	}
	if got := len(readHoldings(t, repo.DB())); got != 1 {
		t.Fatalf("holdings_data rows = %d, want 1", got)
	}
}

func TestWriteBatch_FailureRollsBack(t *testing.T) {
	t.Parallel()

	repo := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.WriteBatch(ctx, domain.Rows{Titles: []domain.TitleRow{{OCLCNumber: 1, ISBN13: 9780306406157}}})
	if err == nil {
		t.Fatal("WriteBatch with canceled context: expected error")
	}
	if got := len(readTitles(t, repo.DB())); got != 0 {
		t.Fatalf("isbn_data rows = %d after failed batch, want 0", got)
	}
}

func TestRegistrationUsesHook(t *testing.T) {
	orig := newRepository
	defer func() { newRepository = orig }()

	var gotDSN string
	boom := errors.New("boom")
	newRepository = func(_ context.Context, dsn string) (*sqldb.Repository, error) {
		gotDSN = dsn
		return nil, boom
	}

	_, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "data/x.sqlite3"})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if gotDSN != "data/x.sqlite3" {
		t.Fatalf("dsn = %q", gotDSN)
	}
}

func TestIsPlainPath(t *testing.T) {
	t.Parallel()

	for dsn, want := range map[string]bool{
		"data/library_holding_data.sqlite3": true,
		"x.db":                              true,
		":memory:":                          false,
		"file:x.db?cache=shared":            false,
		"":                                  false,
	} {
		if got := isPlainPath(dsn); got != want {
			t.Errorf("isPlainPath(%q) = %v, want %v", dsn, got, want)
		}
	}
}
