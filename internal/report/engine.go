// Package report computes customer and product summaries over stored
// transactions. Each summary is a single store scan folded through the
// currency converter, so it reflects exactly the transactions committed
// before the scan began.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sales-ledger/internal/currency"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/store"
)

// Range restricts a summary to transactions with From <= timestamp <= To.
// Zero-value bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

// Engine derives summaries from a TransactionStore.
type Engine struct {
	store store.TransactionStore
}

// NewEngine creates an aggregation engine over st.
func NewEngine(st store.TransactionStore) *Engine {
	return &Engine{store: st}
}

// CustomerSummary folds every transaction of the customer within r into total
// PLN spend, distinct product count and latest transaction time. A customer
// with no matching transactions yields ledger.ErrNotFound: no purchase
// history means there is no entity to summarize, which is different from a
// zero-valued summary.
func (e *Engine) CustomerSummary(ctx context.Context, customerID uuid.UUID, r Range) (*ledger.CustomerSummary, error) {
	var (
		total    decimal.Decimal
		products = make(map[uuid.UUID]struct{})
		last     time.Time
		matched  int
	)

	filter := store.ScanFilter{CustomerID: &customerID, From: r.From, To: r.To}
	err := e.store.Scan(ctx, filter, func(t ledger.Transaction) error {
		// Raw converted values are summed; the total is rounded once at the
		// end. Per-row rounding drifts from the true total at scale.
		pln, err := currency.Convert(t.Amount, t.Currency)
		if err != nil {
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		total = total.Add(pln)
		products[t.ProductID] = struct{}{}
		if t.Timestamp.After(last) {
			last = t.Timestamp
		}
		matched++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, ledger.ErrNotFound
	}

	return &ledger.CustomerSummary{
		CustomerID:        customerID,
		TotalSpentPLN:     currency.RoundPLN(total),
		DistinctProducts:  len(products),
		LastTransactionAt: last,
	}, nil
}

// ProductSummary folds every sale of the product within r into quantity sold,
// total PLN revenue and distinct customer count. Duplicate purchases by one
// customer count once toward the distinct set but contribute to every total.
func (e *Engine) ProductSummary(ctx context.Context, productID uuid.UUID, r Range) (*ledger.ProductSummary, error) {
	var (
		revenue   decimal.Decimal
		quantity  int64
		customers = make(map[uuid.UUID]struct{})
		matched   int
	)

	filter := store.ScanFilter{ProductID: &productID, From: r.From, To: r.To}
	err := e.store.Scan(ctx, filter, func(t ledger.Transaction) error {
		pln, err := currency.Convert(t.Amount, t.Currency)
		if err != nil {
			return fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		revenue = revenue.Add(pln)
		quantity += t.Quantity
		customers[t.CustomerID] = struct{}{}
		matched++
		return nil
	})
	if err != nil {
		return nil, err
	}
	if matched == 0 {
		return nil, ledger.ErrNotFound
	}

	return &ledger.ProductSummary{
		ProductID:         productID,
		TotalQuantitySold: quantity,
		TotalRevenuePLN:   currency.RoundPLN(revenue),
		DistinctCustomers: len(customers),
	}, nil
}
