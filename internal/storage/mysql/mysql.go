// Package mysql stores rows in MySQL or MariaDB through go-sql-driver/mysql
// using INSERT IGNORE.
package mysql

import (
	"context"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"isbnetl/internal/storage"
	"isbnetl/internal/storage/sqldb"
)

// Dialect is the MySQL SQL. MySQL has no CREATE INDEX IF NOT EXISTS, so the
// ISBN index is declared inline.
var Dialect = sqldb.Dialect{
	Name: "mysql",
	Tuning: []string{
		"SET SESSION sql_mode = CONCAT(@@sql_mode, ',STRICT_TRANS_TABLES')",
	},
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS isbn_data (
			oclc_number BIGINT NOT NULL,
			isbn13 BIGINT NOT NULL,
			publication_date BIGINT NULL,
			title LONGTEXT NULL,
			creator LONGTEXT NULL,
			PRIMARY KEY (oclc_number, isbn13),
			KEY isbn_oclc_number (isbn13)
		) CHARACTER SET utf8mb4`,
		`CREATE TABLE IF NOT EXISTS holdings_data (
			oclc_number BIGINT NOT NULL PRIMARY KEY,
			holding_count BIGINT NOT NULL,
			edition_count BIGINT NOT NULL
		)`,
	},
	InsertTitle: `INSERT IGNORE INTO isbn_data (oclc_number, isbn13, publication_date, title, creator)
		VALUES (?, ?, ?, ?, ?)`,
	InsertHoldings: `INSERT IGNORE INTO holdings_data (oclc_number, holding_count, edition_count)
		VALUES (?, ?, ?)`,
}

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository parses dsn (user:pass@tcp(host:3306)/db) and connects.
func NewRepository(ctx context.Context, dsn string) (*sqldb.Repository, error) {
	cfg, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	return sqldb.Open(ctx, "mysql", cfg.FormatDSN(), Dialect)
}

// ParseDSN validates dsn and forces the options the writer relies on.
func ParseDSN(dsn string) (*mysql.Config, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql dsn: %w", err)
	}
	if cfg.DBName == "" {
		return nil, fmt.Errorf("mysql dsn: database name is required")
	}
	if cfg.Params == nil {
		cfg.Params = map[string]string{}
	}
	if _, ok := cfg.Params["charset"]; !ok {
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg, nil
}

func init() {
	storage.Register("mysql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
