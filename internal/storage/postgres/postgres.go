// Package postgres stores rows in PostgreSQL over a single pgx connection.
// Each batch is queued as a pgx.Batch of INSERT ... ON CONFLICT DO NOTHING
// inside one transaction, so a batch costs one round trip.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"isbnetl/internal/domain"
	"isbnetl/internal/storage"
	"isbnetl/internal/storage/sqldb"
)

var tuning = []string{
	"SET synchronous_commit = off",
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS isbn_data (
		oclc_number BIGINT NOT NULL,
		isbn13 BIGINT NOT NULL,
		publication_date BIGINT,
		title TEXT,
		creator TEXT,
		PRIMARY KEY (oclc_number, isbn13)
	)`,
	`CREATE INDEX IF NOT EXISTS isbn_oclc_number ON isbn_data (isbn13)`,
	`CREATE TABLE IF NOT EXISTS holdings_data (
		oclc_number BIGINT PRIMARY KEY,
		holding_count BIGINT NOT NULL,
		edition_count BIGINT NOT NULL
	)`,
}

const (
	insertTitle = `INSERT INTO isbn_data (oclc_number, isbn13, publication_date, title, creator)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (oclc_number, isbn13) DO NOTHING`
	insertHoldings = `INSERT INTO holdings_data (oclc_number, holding_count, edition_count)
		VALUES ($1, $2, $3) ON CONFLICT (oclc_number) DO NOTHING`
)

// conn is the subset of *pgx.Conn the repository uses.
type conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Close(ctx context.Context) error
}

// Repository implements storage.Repository for PostgreSQL.
type Repository struct {
	conn conn
}

var _ storage.Repository = (*Repository)(nil)

// newRepository is a test hook that points to NewRepository by default.
var newRepository = NewRepository

// NewRepository connects with a libpq-style DSN or postgres:// URL.
func NewRepository(ctx context.Context, dsn string) (*Repository, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	c, err := pgx.ConnectConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Repository{conn: c}, nil
}

// EnsureSchema applies session tuning and creates tables and index.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, q := range tuning {
		if _, err := r.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: tuning %q: %w", q, err)
		}
	}
	for _, q := range schema {
		if _, err := r.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("postgres: schema: %w", err)
		}
	}
	return nil
}

// WriteBatch sends every insert of rows as one pgx.Batch in a transaction.
func (r *Repository) WriteBatch(ctx context.Context, rows domain.Rows) (res storage.WriteResult, err error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return res, fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	b := queueBatch(rows)
	br := tx.SendBatch(ctx, b)
	for i := 0; i < b.Len(); i++ {
		tag, execErr := br.Exec()
		if execErr != nil {
			_ = br.Close()
			return res, fmt.Errorf("postgres: batch statement %d: %w", i, execErr)
		}
		res.Inserted += tag.RowsAffected()
	}
	if err = br.Close(); err != nil {
		return res, fmt.Errorf("postgres: close batch: %w", err)
	}
	res.TitleRows = int64(len(rows.Titles))
	res.HoldingsRows = int64(len(rows.Holdings))

	if err = tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("postgres: commit: %w", err)
	}
	return res, nil
}

// Close closes the connection.
func (r *Repository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.conn.Close(ctx)
}

func queueBatch(rows domain.Rows) *pgx.Batch {
	b := &pgx.Batch{}
	for _, row := range rows.Titles {
		b.Queue(insertTitle, sqldb.TitleArgs(row)...)
	}
	for _, row := range rows.Holdings {
		b.Queue(insertHoldings, sqldb.HoldingsArgs(row)...)
	}
	return b
}

func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, err := newRepository(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
}
