package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/store/memory"
)

func seqID(n int) uuid.UUID {
	return uuid.MustParse(fmt.Sprintf("b1f8a6a0-0000-4000-8000-%012d", n))
}

func seed(t *testing.T, st *memory.Store, txs ...ledger.Transaction) {
	t.Helper()
	_, _, err := st.InsertBatch(context.Background(), txs)
	require.NoError(t, err)
}

func mkTx(n int, customer, product uuid.UUID, amount string, c ledger.Currency, qty int64, ts time.Time) ledger.Transaction {
	return ledger.Transaction{
		ID:         seqID(n),
		Timestamp:  ts,
		Amount:     decimal.RequireFromString(amount),
		Currency:   c,
		CustomerID: customer,
		ProductID:  product,
		Quantity:   qty,
	}
}

func TestCustomerSummaryMixedCurrencies(t *testing.T) {
	st := memory.NewStore()
	engine := NewEngine(st)
	customer := seqID(100)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	seed(t, st,
		mkTx(1, customer, seqID(300), "100.00", ledger.PLN, 1, base),
		mkTx(2, customer, seqID(301), "10.00", ledger.EUR, 1, base.Add(time.Hour)),
		mkTx(3, customer, seqID(301), "5.00", ledger.USD, 1, base.Add(2*time.Hour)),
	)

	summary, err := engine.CustomerSummary(context.Background(), customer, Range{})
	require.NoError(t, err)

	// 100 + 10*4.3 + 5*4.0 = 163.00 PLN
	assert.Equal(t, "163.00", summary.TotalSpentPLN.StringFixed(2))
	assert.Equal(t, 2, summary.DistinctProducts)
	assert.Equal(t, base.Add(2*time.Hour), summary.LastTransactionAt)
}

func TestCustomerSummaryNotFound(t *testing.T) {
	st := memory.NewStore()
	engine := NewEngine(st)

	_, err := engine.CustomerSummary(context.Background(), seqID(404), Range{})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestCustomerSummaryZeroTotalIsNotNotFound(t *testing.T) {
	st := memory.NewStore()
	engine := NewEngine(st)
	customer := seqID(100)

	seed(t, st, mkTx(1, customer, seqID(300), "0.00", ledger.PLN, 1,
		time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))

	summary, err := engine.CustomerSummary(context.Background(), customer, Range{})
	require.NoError(t, err)
	assert.Equal(t, "0.00", summary.TotalSpentPLN.StringFixed(2))
	assert.Equal(t, 1, summary.DistinctProducts)
}

func TestCustomerSummaryInclusiveRange(t *testing.T) {
	st := memory.NewStore()
	engine := NewEngine(st)
	customer := seqID(100)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	seed(t, st,
		mkTx(1, customer, seqID(300), "1.00", ledger.PLN, 1, base.Add(-time.Second)),
		mkTx(2, customer, seqID(300), "2.00", ledger.PLN, 1, base),
		mkTx(3, customer, seqID(300), "4.00", ledger.PLN, 1, base.Add(48*time.Hour)),
		mkTx(4, customer, seqID(300), "8.00", ledger.PLN, 1, base.Add(48*time.Hour+time.Second)),
	)

	summary, err := engine.CustomerSummary(context.Background(), customer, Range{
		From: base,
		To:   base.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	// Only the boundary-inclusive rows count: 2.00 + 4.00.
	assert.Equal(t, "6.00", summary.TotalSpentPLN.StringFixed(2))
}

func TestCustomerSummaryRangeWithNoMatches(t *testing.T) {
	st := memory.NewStore()
	engine := NewEngine(st)
	customer := seqID(100)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	seed(t, st, mkTx(1, customer, seqID(300), "1.00", ledger.PLN, 1, base))

	_, err := engine.CustomerSummary(context.Background(), customer, Range{
		From: base.Add(24 * time.Hour),
	})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestProductSummary(t *testing.T) {
	st := memory.NewStore()
	engine := NewEngine(st)
	product := seqID(300)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	seed(t, st,
		mkTx(1, seqID(100), product, "10.00", ledger.PLN, 2, base),
		mkTx(2, seqID(100), product, "10.00", ledger.EUR, 3, base.Add(time.Hour)),
		mkTx(3, seqID(200), product, "5.00", ledger.USD, 1, base.Add(2*time.Hour)),
		mkTx(4, seqID(200), seqID(999), "50.00", ledger.PLN, 9, base),
	)

	summary, err := engine.ProductSummary(context.Background(), product, Range{})
	require.NoError(t, err)

	// 10 + 43 + 20 = 73.00 PLN; repeat buyer counts once.
	assert.Equal(t, "73.00", summary.TotalRevenuePLN.StringFixed(2))
	assert.Equal(t, int64(6), summary.TotalQuantitySold)
	assert.Equal(t, 2, summary.DistinctCustomers)
}

func TestProductSummaryNotFound(t *testing.T) {
	st := memory.NewStore()
	engine := NewEngine(st)

	_, err := engine.ProductSummary(context.Background(), seqID(404), Range{})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// The total is rounded once over the raw converted sum, not per row.
func TestSummaryRoundsOnce(t *testing.T) {
	st := memory.NewStore()
	engine := NewEngine(st)
	customer := seqID(100)
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	txs := make([]ledger.Transaction, 5)
	for i := range txs {
		txs[i] = mkTx(i+1, customer, seqID(300), "0.01", ledger.EUR, 1, base)
	}
	seed(t, st, txs...)

	summary, err := engine.CustomerSummary(context.Background(), customer, Range{})
	require.NoError(t, err)
	// 5 * 0.043 = 0.215 rounds half up to 0.22; per-row rounding would give 0.20.
	assert.Equal(t, "0.22", summary.TotalSpentPLN.StringFixed(2))
}
