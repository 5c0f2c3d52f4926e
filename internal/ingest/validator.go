package ingest

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/sales-ledger/internal/ledger"
)

// Header is the required CSV header, in order.
var Header = []string{
	"transaction_id",
	"timestamp",
	"amount",
	"currency",
	"customer_id",
	"product_id",
	"quantity",
}

// Column indexes within a data row.
const (
	colTransactionID = iota
	colTimestamp
	colAmount
	colCurrency
	colCustomerID
	colProductID
	colQuantity
	columnCount
)

// Timestamp layouts accepted on input. Values without an offset are read as
// UTC; everything is stored UTC-normalized.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ValidateRow checks one raw CSV row and either produces a well-formed
// transaction or a RowError. Checks are independent: every invalid field is
// enumerated, and the row's headline Field/Reason is the first failing column
// in CSV order. Pure function, no side effects.
func ValidateRow(fields []string, row int) (ledger.Transaction, *ledger.RowError) {
	if len(fields) != columnCount {
		return ledger.Transaction{}, &ledger.RowError{
			Row:    row,
			Field:  "row",
			Reason: ledger.ReasonMalformedRow,
		}
	}

	var tx ledger.Transaction
	var bad []ledger.FieldError
	fail := func(col int, reason ledger.Reason) {
		bad = append(bad, ledger.FieldError{Field: Header[col], Reason: reason})
	}
	value := func(col int) (string, bool) {
		v := strings.TrimSpace(fields[col])
		if v == "" {
			fail(col, ledger.ReasonMissingField)
			return "", false
		}
		return v, true
	}

	if v, ok := value(colTransactionID); ok {
		id, err := uuid.Parse(v)
		if err != nil {
			fail(colTransactionID, ledger.ReasonInvalidID)
		} else {
			tx.ID = id
		}
	}

	if v, ok := value(colTimestamp); ok {
		ts, err := parseTimestamp(v)
		if err != nil {
			fail(colTimestamp, ledger.ReasonInvalidTimestamp)
		} else {
			tx.Timestamp = ts.UTC()
		}
	}

	if v, ok := value(colAmount); ok {
		amount, err := decimal.NewFromString(v)
		switch {
		case err != nil, amount.IsNegative(), amount.Exponent() < -2:
			// Negative and over-precise amounts are rejected, never clamped.
			// Zero is a valid amount (a free item).
			fail(colAmount, ledger.ReasonInvalidAmount)
		default:
			tx.Amount = amount
		}
	}

	if v, ok := value(colCurrency); ok {
		c, err := ledger.ParseCurrency(v)
		if err != nil {
			fail(colCurrency, ledger.ReasonUnsupportedCurrency)
		} else {
			tx.Currency = c
		}
	}

	if v, ok := value(colCustomerID); ok {
		id, err := uuid.Parse(v)
		if err != nil {
			fail(colCustomerID, ledger.ReasonInvalidCustomerID)
		} else {
			tx.CustomerID = id
		}
	}

	if v, ok := value(colProductID); ok {
		id, err := uuid.Parse(v)
		if err != nil {
			fail(colProductID, ledger.ReasonInvalidProductID)
		} else {
			tx.ProductID = id
		}
	}

	if v, ok := value(colQuantity); ok {
		q, err := strconv.ParseInt(v, 10, 64)
		if err != nil || q <= 0 {
			fail(colQuantity, ledger.ReasonInvalidQuantity)
		} else {
			tx.Quantity = q
		}
	}

	if len(bad) > 0 {
		return ledger.Transaction{}, &ledger.RowError{
			Row:    row,
			Field:  bad[0].Field,
			Reason: bad[0].Reason,
			Fields: bad,
		}
	}
	return tx, nil
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		ts, err := time.Parse(layout, s)
		if err == nil {
			return ts, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
