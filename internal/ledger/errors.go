package ledger

import (
	"errors"
	"fmt"
)

// Reason identifies why a field (or a whole row) failed validation.
type Reason string

const (
	ReasonMissingField        Reason = "missing_field"
	ReasonInvalidID           Reason = "invalid_id"
	ReasonInvalidTimestamp    Reason = "invalid_timestamp"
	ReasonInvalidAmount       Reason = "invalid_amount"
	ReasonUnsupportedCurrency Reason = "unsupported_currency"
	ReasonInvalidCustomerID   Reason = "invalid_customer_id"
	ReasonInvalidProductID    Reason = "invalid_product_id"
	ReasonInvalidQuantity     Reason = "invalid_quantity"
	ReasonMalformedRow        Reason = "malformed_row"
)

// FieldError names one invalid column within a rejected row.
type FieldError struct {
	Field  string `json:"field"`
	Reason Reason `json:"reason"`
}

// RowError is the validation outcome of one rejected row. Field and Reason
// describe the first offending column (or "row" for structural problems);
// Fields enumerates every invalid column so callers can report precisely.
// Row errors are returned as data inside an IngestResult, never persisted.
type RowError struct {
	Row    int          `json:"row"` // 1-based position within the batch
	Field  string       `json:"field"`
	Reason Reason       `json:"reason"`
	Fields []FieldError `json:"fields,omitempty"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: field %s: %s", e.Row, e.Field, e.Reason)
}

var (
	// ErrNotFound is returned by lookups and summaries when the requested
	// entity has no matching records. Distinct from an empty-but-valid result.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID marks an insert attempt for an id that already exists.
	// Surfaced as data in IngestResult, not as a failure.
	ErrDuplicateID = errors.New("duplicate transaction id")

	// ErrMalformedBatch marks an input that cannot be processed at all:
	// unreadable CSV, missing or wrong header. Nothing is persisted when the
	// header is rejected.
	ErrMalformedBatch = errors.New("malformed batch")
)
