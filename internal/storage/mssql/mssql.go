// Package mssql stores rows in Microsoft SQL Server through go-mssqldb.
// Insert-if-absent is an INSERT ... SELECT guarded by NOT EXISTS under
// UPDLOCK/HOLDLOCK.
package mssql

import (
	"context"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"isbnetl/internal/storage"
	"isbnetl/internal/storage/sqldb"
)

// Dialect is the T-SQL.
var Dialect = sqldb.Dialect{
	Name: "mssql",
	Tuning: []string{
		"SET DEADLOCK_PRIORITY LOW",
		"SET LOCK_TIMEOUT 60000",
	},
	Schema: []string{
		`IF OBJECT_ID(N'isbn_data', N'U') IS NULL
		CREATE TABLE isbn_data (
			oclc_number BIGINT NOT NULL,
			isbn13 BIGINT NOT NULL,
			publication_date BIGINT NULL,
			title NVARCHAR(MAX) NULL,
			creator NVARCHAR(MAX) NULL,
			CONSTRAINT pk_isbn_data PRIMARY KEY (oclc_number, isbn13)
		)`,
		`IF NOT EXISTS (SELECT 1 FROM sys.indexes WHERE name = N'isbn_oclc_number' AND object_id = OBJECT_ID(N'isbn_data'))
		CREATE INDEX isbn_oclc_number ON isbn_data (isbn13)`,
		`IF OBJECT_ID(N'holdings_data', N'U') IS NULL
		CREATE TABLE holdings_data (
			oclc_number BIGINT NOT NULL CONSTRAINT pk_holdings_data PRIMARY KEY,
			holding_count BIGINT NOT NULL,
			edition_count BIGINT NOT NULL
		)`,
	},
	InsertTitle: `INSERT INTO isbn_data (oclc_number, isbn13, publication_date, title, creator)
		SELECT @p1, @p2, @p3, @p4, @p5
		WHERE NOT EXISTS (SELECT 1 FROM isbn_data WITH (UPDLOCK, HOLDLOCK) WHERE oclc_number = @p1 AND isbn13 = @p2)`,
	InsertHoldings: `INSERT INTO holdings_data (oclc_number, holding_count, edition_count)
		SELECT @p1, @p2, @p3
		WHERE NOT EXISTS (SELECT 1 FROM holdings_data WITH (UPDLOCK, HOLDLOCK) WHERE oclc_number = @p1)`,
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository validates dsn and connects.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Repository, error) {
	if _, err := msdsn.Parse(dsn); err != nil {
		return nil, fmt.Errorf("mssql dsn: %w", err)
	}
	return sqldb.Open(ctx, "sqlserver", dsn, Dialect)
}

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
