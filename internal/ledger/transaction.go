package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is one of the supported transaction currencies. PLN is the
// canonical currency all monetary totals are normalized to.
type Currency string

const (
	PLN Currency = "PLN"
	EUR Currency = "EUR"
	USD Currency = "USD"
)

// Currencies lists every supported currency code.
var Currencies = []Currency{PLN, EUR, USD}

// ParseCurrency parses a currency code, case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Currencies {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unsupported currency %q", s)
}

// Transaction is one accepted sales record. It is created only by successful
// validation during ingestion and never mutated after it is stored.
type Transaction struct {
	ID         uuid.UUID       `json:"transaction_id"`
	Timestamp  time.Time       `json:"timestamp"` // normalized to UTC
	Amount     decimal.Decimal `json:"amount"`    // finite, >= 0, at most 2 decimal places
	Currency   Currency        `json:"currency"`
	CustomerID uuid.UUID       `json:"customer_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   int64           `json:"quantity"` // > 0
	CreatedAt  time.Time       `json:"created_at"`
}

// CustomerSummary is the aggregated purchase history of one customer.
// It is derived from stored transactions and never persisted.
type CustomerSummary struct {
	CustomerID        uuid.UUID       `json:"customer_id"`
	TotalSpentPLN     decimal.Decimal `json:"total_spent_pln"`
	DistinctProducts  int             `json:"distinct_products"`
	LastTransactionAt time.Time       `json:"last_transaction_at"`
}

// ProductSummary is the aggregated sales history of one product.
type ProductSummary struct {
	ProductID         uuid.UUID       `json:"product_id"`
	TotalQuantitySold int64           `json:"total_quantity_sold"`
	TotalRevenuePLN   decimal.Decimal `json:"total_revenue_pln"`
	DistinctCustomers int             `json:"distinct_customers"`
}

// IngestResult reports the outcome of one ingestion call. Rejected rows keep
// their original batch order. Duplicates lists ids that were already present
// in the store or repeated within the same batch; resubmitting a file is
// idempotent, not an error.
type IngestResult struct {
	Accepted   int         `json:"accepted"`
	Rejected   []RowError  `json:"rejected"`
	Duplicates []uuid.UUID `json:"duplicates"`

	// Processed counts the data rows consumed before the call finished or was
	// canceled. Rows committed before a cancellation stay committed.
	Processed int `json:"processed"`
}
