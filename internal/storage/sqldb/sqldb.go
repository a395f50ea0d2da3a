// Package sqldb is the database/sql engine shared by the sqlite, mssql and
// mysql backends. A Dialect supplies the SQL; Repository runs it.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"isbnetl/internal/domain"
	"isbnetl/internal/storage"
)

// Dialect is the backend-specific SQL.
type Dialect struct {
	// Name prefixes errors, e.g. "sqlite".
	Name string
	// Tuning statements run once per connection before the schema.
	Tuning []string
	// Schema statements must be idempotent.
	Schema []string
	// InsertTitle takes (oclc_number, isbn13, publication_date, title, creator).
	InsertTitle string
	// InsertHoldings takes (oclc_number, holding_count, edition_count).
	InsertHoldings string
}

// Repository implements storage.Repository over a single database/sql
// connection.
type Repository struct {
	db *sql.DB
	d  Dialect
}

var _ storage.Repository = (*Repository)(nil)

// Open connects with driver and dsn and pins the pool to one connection, so
// per-session tuning holds for every transaction.
func Open(ctx context.Context, driver, dsn string, d Dialect) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s: DSN must not be empty", d.Name)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", d.Name, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", d.Name, err)
	}
	return New(db, d), nil
}

// New wraps an already-open handle.
func New(db *sql.DB, d Dialect) *Repository {
	return &Repository{db: db, d: d}
}

// DB exposes the handle for tests and diagnostics.
func (r *Repository) DB() *sql.DB { return r.db }

// EnsureSchema applies the tuning statements and then the schema.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, q := range r.d.Tuning {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%s: tuning %q: %w", r.d.Name, q, err)
		}
	}
	for _, q := range r.d.Schema {
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("%s: schema: %w", r.d.Name, err)
		}
	}
	return nil
}

// WriteBatch inserts rows in one transaction with prepared statements.
func (r *Repository) WriteBatch(ctx context.Context, rows domain.Rows) (res storage.WriteResult, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("%s: begin tx: %w", r.d.Name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if len(rows.Titles) > 0 {
		stmt, err := tx.PrepareContext(ctx, r.d.InsertTitle)
		if err != nil {
			return res, fmt.Errorf("%s: prepare title insert: %w", r.d.Name, err)
		}
		defer stmt.Close()
		for _, row := range rows.Titles {
			n, err := exec(ctx, stmt, TitleArgs(row)...)
			if err != nil {
				return res, fmt.Errorf("%s: insert isbn_data (%d, %d): %w", r.d.Name, row.OCLCNumber, row.ISBN13, err)
			}
			res.TitleRows++
			res.Inserted += n
		}
	}

	if len(rows.Holdings) > 0 {
		stmt, err := tx.PrepareContext(ctx, r.d.InsertHoldings)
		if err != nil {
			return res, fmt.Errorf("%s: prepare holdings insert: %w", r.d.Name, err)
		}
		defer stmt.Close()
		for _, row := range rows.Holdings {
			n, err := exec(ctx, stmt, HoldingsArgs(row)...)
			if err != nil {
				return res, fmt.Errorf("%s: insert holdings_data (%d): %w", r.d.Name, row.OCLCNumber, err)
			}
			res.HoldingsRows++
			res.Inserted += n
		}
	}

	if err = tx.Commit(); err != nil {
		return res, fmt.Errorf("%s: commit: %w", r.d.Name, err)
	}
	return res, nil
}

// Close closes the handle.
func (r *Repository) Close() error { return r.db.Close() }

func exec(ctx context.Context, stmt *sql.Stmt, args ...any) (int64, error) {
	out, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, err
	}
	n, err := out.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// TitleArgs flattens a title row into driver values in InsertTitle order.
func TitleArgs(row domain.TitleRow) []any {
	return []any{
		int64(row.OCLCNumber),
		row.ISBN13,
		nullInt(row.PublicationYear),
		nullString(row.Title),
		nullString(row.Creator),
	}
}

// HoldingsArgs flattens a holdings row into driver values in InsertHoldings
// order.
func HoldingsArgs(row domain.HoldingsRow) []any {
	return []any{
		int64(row.OCLCNumber),
		int64(row.HoldingCount),
		int64(row.EditionCount),
	}
}

func nullInt(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
