// Package store defines the persistence contract for accepted transactions.
// Identity uniqueness is enforced here, at the storage layer, so concurrent
// ingestion calls cannot race a duplicate past the pipeline's own check.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/sales-ledger/internal/ledger"
)

const (
	// DefaultPageSize is used when a list request does not name one.
	DefaultPageSize = 50
	// MaxPageSize bounds the resource cost of a single list request.
	MaxPageSize = 200
)

// ListFilter selects and pages a transaction listing. Filters are
// conjunctive. Page is 1-based.
type ListFilter struct {
	CustomerID *uuid.UUID
	ProductID  *uuid.UUID
	Page       int
	PageSize   int
}

// Offset returns the 0-based row offset for the filter's page, after
// clamping Page and PageSize to valid bounds.
func (f *ListFilter) Offset() int {
	f.Clamp()
	return (f.Page - 1) * f.PageSize
}

// Clamp normalizes Page and PageSize in place.
func (f *ListFilter) Clamp() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

// ScanFilter selects transactions for an aggregation fold. Zero-value times
// mean unbounded; From and To are inclusive at the boundary timestamps.
type ScanFilter struct {
	CustomerID *uuid.UUID
	ProductID  *uuid.UUID
	From       time.Time
	To         time.Time
}

// Matches reports whether t passes every set condition of the filter.
func (f *ScanFilter) Matches(t *ledger.Transaction) bool {
	if f.CustomerID != nil && t.CustomerID != *f.CustomerID {
		return false
	}
	if f.ProductID != nil && t.ProductID != *f.ProductID {
		return false
	}
	if !f.From.IsZero() && t.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.Timestamp.After(f.To) {
		return false
	}
	return true
}

// TransactionStore persists accepted transactions. Implementations must make
// InsertBatch insert-if-absent per id and atomic per row: a concurrent insert
// of the same id commits exactly one copy, and the loser sees a duplicate.
// Scan must present snapshot-at-start semantics: the fold sees exactly the
// transactions committed before the scan began.
type TransactionStore interface {
	// InsertBatch inserts every transaction whose id is not already present
	// and returns the number inserted plus the ids that were skipped as
	// duplicates, in input order.
	InsertBatch(ctx context.Context, txs []ledger.Transaction) (inserted int, duplicates []uuid.UUID, err error)

	// Get returns the transaction with the given id, or ledger.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error)

	// List returns one page of transactions ordered by timestamp descending
	// then id ascending, plus the total count matching the filter.
	List(ctx context.Context, f ListFilter) ([]ledger.Transaction, int, error)

	// Scan streams every matching transaction through fn in a single pass.
	// A non-nil error from fn aborts the scan and is returned unwrapped.
	Scan(ctx context.Context, f ScanFilter, fn func(ledger.Transaction) error) error
}
