package ingest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/logger"
	"github.com/dvloznov/sales-ledger/internal/store"
	"github.com/dvloznov/sales-ledger/internal/store/memory"
)

const csvHeader = "transaction_id,timestamp,amount,currency,customer_id,product_id,quantity"

func rowID(n int) string {
	return fmt.Sprintf("b1f8a6a0-0000-4000-8000-%012d", n)
}

func csvRow(n int, amount, currency string) string {
	return fmt.Sprintf("%s,2024-03-01T12:00:00Z,%s,%s,%s,%s,1",
		rowID(n), amount, currency, rowID(9000+n), rowID(8000+n))
}

func batch(rows ...string) string {
	return csvHeader + "\n" + strings.Join(rows, "\n") + "\n"
}

func TestIngestAllValid(t *testing.T) {
	st := memory.NewStore()
	p := NewPipeline(st, 0, logger.NewWithWriter(&strings.Builder{}))

	input := batch(
		csvRow(1, "10.00", "PLN"),
		csvRow(2, "20.00", "EUR"),
		csvRow(3, "30.00", "USD"),
	)
	result, err := p.Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Accepted)
	assert.Equal(t, 3, result.Processed)
	assert.Empty(t, result.Rejected)
	assert.Empty(t, result.Duplicates)
	assert.Equal(t, 3, st.Len())
}

func TestIngestReingestIsIdempotent(t *testing.T) {
	st := memory.NewStore()
	p := NewPipeline(st, 0, logger.NewWithWriter(&strings.Builder{}))

	input := batch(csvRow(1, "10.00", "PLN"), csvRow(2, "20.00", "PLN"))

	first, err := p.Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, 2, first.Accepted)

	second, err := p.Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 0, second.Accepted)
	assert.Len(t, second.Duplicates, 2)
	assert.Equal(t, 2, st.Len())
}

func TestIngestRejectsInvalidRowsAndKeepsValidOnes(t *testing.T) {
	st := memory.NewStore()
	p := NewPipeline(st, 0, logger.NewWithWriter(&strings.Builder{}))

	input := batch(
		csvRow(1, "10.00", "PLN"),
		csvRow(2, "-5.00", "PLN"),
		csvRow(3, "20.00", "XXX"),
		csvRow(4, "30.00", "EUR"),
	)
	result, err := p.Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 4, result.Processed)
	require.Len(t, result.Rejected, 2)
	assert.Equal(t, 2, result.Rejected[0].Row)
	assert.Equal(t, ledger.ReasonInvalidAmount, result.Rejected[0].Reason)
	assert.Equal(t, 3, result.Rejected[1].Row)
	assert.Equal(t, ledger.ReasonUnsupportedCurrency, result.Rejected[1].Reason)
	assert.Equal(t, 2, st.Len())
}

func TestIngestInBatchDuplicateKeptOnce(t *testing.T) {
	st := memory.NewStore()
	p := NewPipeline(st, 0, logger.NewWithWriter(&strings.Builder{}))

	input := batch(
		csvRow(1, "10.00", "PLN"),
		csvRow(1, "99.00", "PLN"),
		csvRow(1, "42.00", "PLN"),
	)
	result, err := p.Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Accepted)
	assert.Len(t, result.Duplicates, 2)
	assert.Equal(t, 1, st.Len())

	// First occurrence wins.
	tx, err := st.Get(context.Background(), uuid.MustParse(rowID(1)))
	require.NoError(t, err)
	assert.Equal(t, "10", tx.Amount.String())
}

func TestIngestHeaderRejections(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty input", input: ""},
		{name: "misspelled column", input: "transaction_id,time,amount,currency,customer_id,product_id,quantity\n"},
		{name: "missing column", input: "transaction_id,timestamp,amount,currency,customer_id,product_id\n"},
		{name: "reordered columns", input: "timestamp,transaction_id,amount,currency,customer_id,product_id,quantity\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.NewStore()
			p := NewPipeline(st, 0, logger.NewWithWriter(&strings.Builder{}))

			_, err := p.Ingest(context.Background(), strings.NewReader(tt.input))
			assert.ErrorIs(t, err, ledger.ErrMalformedBatch)
			assert.Equal(t, 0, st.Len())
		})
	}
}

func TestIngestHeaderWithBOM(t *testing.T) {
	st := memory.NewStore()
	p := NewPipeline(st, 0, logger.NewWithWriter(&strings.Builder{}))

	input := "\ufeff" + batch(csvRow(1, "10.00", "PLN"))
	result, err := p.Ingest(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Accepted)
}

// A framing failure mid-stream fails the batch, but flushes committed before
// the failure stay committed.
func TestIngestMidStreamFrameErrorKeepsCommittedFlushes(t *testing.T) {
	st := memory.NewStore()
	p := NewPipeline(st, 1, logger.NewWithWriter(&strings.Builder{}))

	input := batch(
		csvRow(1, "10.00", "PLN"),
		csvRow(2, "20.00", "PLN"),
		`bad"quote,2024-03-01T12:00:00Z,1.00,PLN,x,y,1`,
		csvRow(3, "30.00", "PLN"),
	)
	result, err := p.Ingest(context.Background(), strings.NewReader(input))
	require.ErrorIs(t, err, ledger.ErrMalformedBatch)

	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 2, st.Len())
}

// cancellingStore cancels the shared context after the first successful flush.
type cancellingStore struct {
	store.TransactionStore
	cancel  context.CancelFunc
	flushes int
}

func (c *cancellingStore) InsertBatch(ctx context.Context, txs []ledger.Transaction) (int, []uuid.UUID, error) {
	inserted, dups, err := c.TransactionStore.InsertBatch(ctx, txs)
	c.flushes++
	if c.flushes == 1 {
		c.cancel()
	}
	return inserted, dups, err
}

func TestIngestCancellationReturnsPartialResult(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mem := memory.NewStore()
	st := &cancellingStore{TransactionStore: mem, cancel: cancel}
	p := NewPipeline(st, 2, logger.NewWithWriter(&strings.Builder{}))

	input := batch(
		csvRow(1, "10.00", "PLN"),
		csvRow(2, "20.00", "PLN"),
		csvRow(3, "30.00", "PLN"),
		csvRow(4, "40.00", "PLN"),
	)
	result, err := p.Ingest(ctx, strings.NewReader(input))
	require.ErrorIs(t, err, context.Canceled)

	// The first flush of two rows committed before cancellation.
	assert.Equal(t, 2, result.Accepted)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 2, mem.Len())
}

func TestIngestFlushWindows(t *testing.T) {
	st := memory.NewStore()
	p := NewPipeline(st, 2, logger.NewWithWriter(&strings.Builder{}))

	rows := make([]string, 5)
	for i := range rows {
		rows[i] = csvRow(i+1, "1.00", "PLN")
	}
	result, err := p.Ingest(context.Background(), strings.NewReader(batch(rows...)))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Accepted)
	assert.Equal(t, 5, st.Len())
}
