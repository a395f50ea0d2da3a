// Package storage holds the storage-agnostic persistence contract and the
// backend registry. Concrete backends (sqlite, postgres, mssql, mysql) live in
// subpackages and register themselves in init; import storage/all to enable
// every built-in backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"isbnetl/internal/domain"
)

// ErrUnknownStorage is returned by New for a kind nobody registered.
var ErrUnknownStorage = errors.New("storage: unknown backend")

// Config selects and addresses a backend.
type Config struct {
	Kind string // "sqlite", "postgres", "mssql", "mysql"
	DSN  string
}

// WriteResult reports what one batch transaction did.
type WriteResult struct {
	TitleRows    int64 // title insert statements executed
	HoldingsRows int64 // holdings insert statements executed
	Inserted     int64 // rows actually created; ignored duplicates excluded
}

// Repository persists normalized rows. Implementations are not required to be
// safe for concurrent use; Writer serializes access.
type Repository interface {
	// EnsureSchema idempotently creates tables and indexes and applies
	// bulk-load tuning.
	EnsureSchema(ctx context.Context) error
	// WriteBatch inserts every row of rows in a single transaction using
	// insert-if-absent semantics. Nothing is committed on error.
	WriteBatch(ctx context.Context, rows domain.Rows) (WriteResult, error)
	Close() error
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// Kinds lists the registered backend kinds in sorted order.
func Kinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New opens the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (registered: %v)", ErrUnknownStorage, cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}
