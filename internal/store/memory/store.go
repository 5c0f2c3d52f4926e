// Package memory is the reference TransactionStore: a mutex-guarded map with
// sorted reads. It is the default backend in local configurations and the
// fixture the pipeline and report tests run against.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/store"
)

// Store is safe for concurrent use. The write lock is the single
// serialization point: duplicate checks and inserts happen under it, so the
// check-then-insert race cannot admit two rows with one id.
type Store struct {
	mu  sync.RWMutex
	txs map[uuid.UUID]ledger.Transaction
}

// NewStore creates an empty in-memory transaction store.
func NewStore() *Store {
	return &Store{txs: make(map[uuid.UUID]ledger.Transaction)}
}

// InsertBatch implements store.TransactionStore.
func (s *Store) InsertBatch(ctx context.Context, txs []ledger.Transaction) (int, []uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	var duplicates []uuid.UUID
	for _, t := range txs {
		if _, exists := s.txs[t.ID]; exists {
			duplicates = append(duplicates, t.ID)
			continue
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		s.txs[t.ID] = t
		inserted++
	}
	return inserted, duplicates, nil
}

// Get implements store.TransactionStore.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	t, ok := s.txs[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &t, nil
}

// List implements store.TransactionStore.
func (s *Store) List(ctx context.Context, f store.ListFilter) ([]ledger.Transaction, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	f.Clamp()

	matched := s.snapshot(store.ScanFilter{CustomerID: f.CustomerID, ProductID: f.ProductID})
	total := len(matched)

	offset := f.Offset()
	if offset >= total {
		return []ledger.Transaction{}, total, nil
	}
	end := offset + f.PageSize
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// Scan implements store.TransactionStore. The snapshot is copied under the
// read lock and the fold runs lock-free, so a long aggregation neither blocks
// nor observes concurrent ingestion.
func (s *Store) Scan(ctx context.Context, f store.ScanFilter, fn func(ledger.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, t := range s.snapshot(f) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

// snapshot copies every matching transaction under the read lock and returns
// it in stable listing order: timestamp descending, then id ascending.
func (s *Store) snapshot(f store.ScanFilter) []ledger.Transaction {
	s.mu.RLock()
	matched := make([]ledger.Transaction, 0, len(s.txs))
	for _, t := range s.txs {
		if f.Matches(&t) {
			matched = append(matched, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})
	return matched
}

// Len reports the number of stored transactions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.txs)
}

var _ store.TransactionStore = (*Store)(nil)
