// Package sqlite is the default storage backend: a single SQLite file opened
// with modernc.org/sqlite and tuned for one bulk writer.
package sqlite

import (
	"context"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"isbnetl/internal/storage"
	"isbnetl/internal/storage/sqldb"
)

// Dialect is the SQLite SQL.
var Dialect = sqldb.Dialect{
	Name: "sqlite",
	Tuning: []string{
		"PRAGMA synchronous = OFF",
		"PRAGMA journal_mode = WAL",
		"PRAGMA cache_size = 100000",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA mmap_size = 30000000000",
	},
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS isbn_data (
			oclc_number INTEGER NOT NULL,
			isbn13 INTEGER NOT NULL,
			publication_date INTEGER,
			title TEXT,
			creator TEXT,
			PRIMARY KEY (oclc_number, isbn13)
		)`,
		`CREATE INDEX IF NOT EXISTS isbn_oclc_number ON isbn_data (isbn13)`,
		`CREATE TABLE IF NOT EXISTS holdings_data (
			oclc_number INTEGER PRIMARY KEY,
			holding_count INTEGER NOT NULL,
			edition_count INTEGER NOT NULL
		)`,
	},
	InsertTitle: `INSERT OR IGNORE INTO isbn_data (oclc_number, isbn13, publication_date, title, creator)
		VALUES (?, ?, ?, ?, ?)`,
	InsertHoldings: `INSERT OR IGNORE INTO holdings_data (oclc_number, holding_count, edition_count)
		VALUES (?, ?, ?)`,
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository opens (creating if needed) the database file at dsn. The
// parent directory is created for plain file paths.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Repository, error) {
	if dir := filepath.Dir(dsn); isPlainPath(dsn) && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return sqldb.Open(ctx, "sqlite", dsn, Dialect)
}

func isPlainPath(dsn string) bool {
	if dsn == "" || dsn == ":memory:" {
		return false
	}
	return len(dsn) < 5 || dsn[:5] != "file:"
}

func init() {
	storage.Register("sqlite", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
