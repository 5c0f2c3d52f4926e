// Package bigquery implements the durable TransactionStore on a BigQuery
// table. Identity uniqueness is enforced in the MERGE statement, so two
// concurrent inserts of one id commit exactly one row. Every read is a single
// query, which gives aggregation scans snapshot-at-start semantics for free.
package bigquery

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/store"
)

// transactionRow maps one ledger.Transaction onto the transactions table
// schema (see migrations/bigquery).
type transactionRow struct {
	TransactionID string    `bigquery:"transaction_id"` // REQUIRED STRING
	Timestamp     time.Time `bigquery:"timestamp"`      // REQUIRED TIMESTAMP
	Amount        *big.Rat  `bigquery:"amount"`         // REQUIRED NUMERIC
	Currency      string    `bigquery:"currency"`       // REQUIRED STRING
	CustomerID    string    `bigquery:"customer_id"`    // REQUIRED STRING
	ProductID     string    `bigquery:"product_id"`     // REQUIRED STRING
	Quantity      int64     `bigquery:"quantity"`       // REQUIRED INT64
	CreatedAt     time.Time `bigquery:"created_at"`     // REQUIRED TIMESTAMP
}

// Store is a BigQuery-backed TransactionStore. It holds a shared client;
// Close releases it when the store is no longer needed.
type Store struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewStore creates a store with its own BigQuery client.
func NewStore(ctx context.Context, project, dataset, table string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewStore: bigquery client: %w", err)
	}
	return NewStoreWithClient(client, dataset, table), nil
}

// NewStoreWithClient creates a store over an existing client.
func NewStoreWithClient(client *bigquery.Client, dataset, table string) *Store {
	return &Store{client: client, dataset: dataset, table: table}
}

// Close closes the BigQuery client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) qualifiedTable() string {
	return fmt.Sprintf("`%s.%s`", s.dataset, s.table)
}

// InsertBatch implements store.TransactionStore. The MERGE makes the insert
// atomic per id; the preceding lookup only decides which ids to report back
// as duplicates, it is not what prevents double inserts.
func (s *Store) InsertBatch(ctx context.Context, txs []ledger.Transaction) (int, []uuid.UUID, error) {
	if len(txs) == 0 {
		return 0, nil, nil
	}

	existing, err := s.existingIDs(ctx, txs)
	if err != nil {
		return 0, nil, err
	}

	var duplicates []uuid.UUID
	seen := make(map[uuid.UUID]struct{}, len(txs))
	rows := make([]transactionRow, 0, len(txs))
	now := time.Now().UTC()
	for _, t := range txs {
		if _, dup := seen[t.ID]; dup {
			duplicates = append(duplicates, t.ID)
			continue
		}
		seen[t.ID] = struct{}{}
		if _, dup := existing[t.ID]; dup {
			duplicates = append(duplicates, t.ID)
			continue
		}
		created := t.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows = append(rows, transactionRow{
			TransactionID: t.ID.String(),
			Timestamp:     t.Timestamp.UTC(),
			Amount:        t.Amount.Rat(),
			Currency:      string(t.Currency),
			CustomerID:    t.CustomerID.String(),
			ProductID:     t.ProductID.String(),
			Quantity:      t.Quantity,
			CreatedAt:     created,
		})
	}
	if len(rows) == 0 {
		return 0, duplicates, nil
	}

	q := s.client.Query(fmt.Sprintf(`
		MERGE %s t
		USING UNNEST(@rows) r
		ON t.transaction_id = r.transaction_id
		WHEN NOT MATCHED THEN INSERT (
			transaction_id, timestamp, amount, currency,
			customer_id, product_id, quantity, created_at
		)
		VALUES (
			r.transaction_id, r.timestamp, r.amount, r.currency,
			r.customer_id, r.product_id, r.quantity, r.created_at
		)
	`, s.qualifiedTable()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "rows", Value: rows},
	}

	job, err := q.Run(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("InsertBatch: running merge: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("InsertBatch: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, nil, fmt.Errorf("InsertBatch: job error: %w", err)
	}

	return len(rows), duplicates, nil
}

// existingIDs returns the subset of the batch's ids already present.
func (s *Store) existingIDs(ctx context.Context, txs []ledger.Transaction) (map[uuid.UUID]struct{}, error) {
	ids := make([]string, 0, len(txs))
	for _, t := range txs {
		ids = append(ids, t.ID.String())
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id
		FROM %s
		WHERE transaction_id IN UNNEST(@ids)
	`, s.qualifiedTable()))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "ids", Value: ids},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("existingIDs: query read: %w", err)
	}

	existing := make(map[uuid.UUID]struct{})
	for {
		var row struct {
			TransactionID string `bigquery:"transaction_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("existingIDs: iter next: %w", err)
		}
		id, err := uuid.Parse(row.TransactionID)
		if err != nil {
			return nil, fmt.Errorf("existingIDs: stored id %q: %w", row.TransactionID, err)
		}
		existing[id] = struct{}{}
	}
	return existing, nil
}

// Get implements store.TransactionStore.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, timestamp, amount, currency,
		       customer_id, product_id, quantity, created_at
		FROM %s
		WHERE transaction_id = @id
		LIMIT 1
	`, s.qualifiedTable()))
	q.Parameters = []bigquery.QueryParameter{{Name: "id", Value: id.String()}}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("Get: query read: %w", err)
	}

	var row transactionRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, ledger.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("Get: iter next: %w", err)
	}

	tx, err := row.toTransaction()
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return tx, nil
}

// List implements store.TransactionStore: a count query plus a page query,
// ordered by timestamp descending then id.
func (s *Store) List(ctx context.Context, f store.ListFilter) ([]ledger.Transaction, int, error) {
	f.Clamp()

	where, params := listConditions(f.CustomerID, f.ProductID, time.Time{}, time.Time{})

	countQ := s.client.Query(fmt.Sprintf(`SELECT COUNT(*) AS n FROM %s%s`, s.qualifiedTable(), where))
	countQ.Parameters = params
	it, err := countQ.Read(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("List: count read: %w", err)
	}
	var count struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&count); err != nil && err != iterator.Done {
		return nil, 0, fmt.Errorf("List: count next: %w", err)
	}

	dataQ := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, timestamp, amount, currency,
		       customer_id, product_id, quantity, created_at
		FROM %s%s
		ORDER BY timestamp DESC, transaction_id
		LIMIT @page_size OFFSET @page_offset
	`, s.qualifiedTable(), where))
	dataQ.Parameters = append(params,
		bigquery.QueryParameter{Name: "page_size", Value: int64(f.PageSize)},
		bigquery.QueryParameter{Name: "page_offset", Value: int64(f.Offset())},
	)

	rows, err := s.readRows(ctx, dataQ)
	if err != nil {
		return nil, 0, fmt.Errorf("List: %w", err)
	}
	return rows, int(count.N), nil
}

// Scan implements store.TransactionStore as a single streamed query.
func (s *Store) Scan(ctx context.Context, f store.ScanFilter, fn func(ledger.Transaction) error) error {
	where, params := listConditions(f.CustomerID, f.ProductID, f.From, f.To)

	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, timestamp, amount, currency,
		       customer_id, product_id, quantity, created_at
		FROM %s%s
		ORDER BY timestamp, transaction_id
	`, s.qualifiedTable(), where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return fmt.Errorf("Scan: query read: %w", err)
	}
	for {
		var row transactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("Scan: iter next: %w", err)
		}
		tx, err := row.toTransaction()
		if err != nil {
			return fmt.Errorf("Scan: %w", err)
		}
		if err := fn(*tx); err != nil {
			return err
		}
	}
}

// listConditions builds the WHERE clause shared by List and Scan. The date
// bounds are inclusive on both ends.
func listConditions(customerID, productID *uuid.UUID, from, to time.Time) (string, []bigquery.QueryParameter) {
	var conds []string
	var params []bigquery.QueryParameter
	if customerID != nil {
		conds = append(conds, "customer_id = @customer_id")
		params = append(params, bigquery.QueryParameter{Name: "customer_id", Value: customerID.String()})
	}
	if productID != nil {
		conds = append(conds, "product_id = @product_id")
		params = append(params, bigquery.QueryParameter{Name: "product_id", Value: productID.String()})
	}
	if !from.IsZero() {
		conds = append(conds, "timestamp >= @from_ts")
		params = append(params, bigquery.QueryParameter{Name: "from_ts", Value: from.UTC()})
	}
	if !to.IsZero() {
		conds = append(conds, "timestamp <= @to_ts")
		params = append(params, bigquery.QueryParameter{Name: "to_ts", Value: to.UTC()})
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), params
}

func (s *Store) readRows(ctx context.Context, q *bigquery.Query) ([]ledger.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}
	var out []ledger.Transaction
	for {
		var row transactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		tx, err := row.toTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, *tx)
	}
	return out, nil
}

func (r *transactionRow) toTransaction() (*ledger.Transaction, error) {
	id, err := uuid.Parse(r.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("stored transaction_id %q: %w", r.TransactionID, err)
	}
	customerID, err := uuid.Parse(r.CustomerID)
	if err != nil {
		return nil, fmt.Errorf("stored customer_id %q: %w", r.CustomerID, err)
	}
	productID, err := uuid.Parse(r.ProductID)
	if err != nil {
		return nil, fmt.Errorf("stored product_id %q: %w", r.ProductID, err)
	}
	currency, err := ledger.ParseCurrency(r.Currency)
	if err != nil {
		return nil, fmt.Errorf("stored currency: %w", err)
	}
	// Amounts are stored with at most 2 decimal places, so this string
	// round-trip is exact.
	amount, err := decimal.NewFromString(r.Amount.FloatString(2))
	if err != nil {
		return nil, fmt.Errorf("stored amount: %w", err)
	}

	return &ledger.Transaction{
		ID:         id,
		Timestamp:  r.Timestamp.UTC(),
		Amount:     amount,
		Currency:   currency,
		CustomerID: customerID,
		ProductID:  productID,
		Quantity:   r.Quantity,
		CreatedAt:  r.CreatedAt.UTC(),
	}, nil
}

var _ store.TransactionStore = (*Store)(nil)
