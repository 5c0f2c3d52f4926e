// Package ingest turns raw CSV batches into stored transactions. Rows are
// consumed one at a time off the reader and accepted rows are flushed to the
// store in bounded windows, so an arbitrarily large upload never lives in
// memory and a fault partway through preserves everything committed so far.
package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/store"
)

// DefaultFlushSize is how many accepted rows are buffered before a flush to
// the store.
const DefaultFlushSize = 500

// Pipeline validates, deduplicates and commits transaction batches. The same
// pipeline serves synchronous uploads and background ingest jobs; only the
// caller varies.
type Pipeline struct {
	store     store.TransactionStore
	flushSize int
	log       zerolog.Logger
}

// NewPipeline creates a pipeline writing to st. flushSize <= 0 selects
// DefaultFlushSize.
func NewPipeline(st store.TransactionStore, flushSize int, log zerolog.Logger) *Pipeline {
	if flushSize <= 0 {
		flushSize = DefaultFlushSize
	}
	return &Pipeline{store: st, flushSize: flushSize, log: log}
}

// Ingest streams one CSV batch from r. Per-row problems are returned as data
// in the IngestResult and never abort the batch; only a malformed batch as a
// whole or a storage failure returns an error. On context cancellation the
// partial result (with Processed set) is returned alongside ctx.Err();
// already-committed rows are not rolled back.
func (p *Pipeline) Ingest(ctx context.Context, r io.Reader) (*ledger.IngestResult, error) {
	cr := csv.NewReader(r)
	// Column counts are validated per row so one short row is a row-level
	// rejection, not a batch failure.
	cr.FieldsPerRecord = -1

	if err := readHeader(cr); err != nil {
		return nil, err
	}

	result := &ledger.IngestResult{}
	seen := make(map[uuid.UUID]struct{})
	pending := make([]ledger.Transaction, 0, p.flushSize)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		inserted, dups, err := p.store.InsertBatch(ctx, pending)
		if err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		result.Accepted += inserted
		result.Duplicates = append(result.Duplicates, dups...)
		pending = pending[:0]
		return nil
	}

	row := 0
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// The reader can no longer frame rows (bad quoting, encoding).
			// Rows committed by earlier flushes stay committed.
			return result, fmt.Errorf("%w: row %d: %v", ledger.ErrMalformedBatch, row+1, err)
		}
		row++
		result.Processed = row

		tx, rowErr := ValidateRow(record, row)
		if rowErr != nil {
			result.Rejected = append(result.Rejected, *rowErr)
			continue
		}

		if _, dup := seen[tx.ID]; dup {
			result.Duplicates = append(result.Duplicates, tx.ID)
			continue
		}
		seen[tx.ID] = struct{}{}

		pending = append(pending, tx)
		if len(pending) >= p.flushSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}

	if err := flush(); err != nil {
		return result, err
	}

	p.log.Info().
		Int("processed", result.Processed).
		Int("accepted", result.Accepted).
		Int("rejected", len(result.Rejected)).
		Int("duplicates", len(result.Duplicates)).
		Msg("Batch ingested")

	return result, nil
}

// readHeader consumes and checks the header row. Any mismatch fails the whole
// batch before a single data row is processed.
func readHeader(cr *csv.Reader) error {
	header, err := cr.Read()
	if err == io.EOF {
		return fmt.Errorf("%w: empty input", ledger.ErrMalformedBatch)
	}
	if err != nil {
		return fmt.Errorf("%w: reading header: %v", ledger.ErrMalformedBatch, err)
	}
	if len(header) > 0 {
		// Files exported on Windows often carry a UTF-8 BOM.
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if len(header) != len(Header) {
		return fmt.Errorf("%w: expected %d columns in header, got %d",
			ledger.ErrMalformedBatch, len(Header), len(header))
	}
	for i, want := range Header {
		if strings.TrimSpace(header[i]) != want {
			return fmt.Errorf("%w: header column %d is %q, want %q",
				ledger.ErrMalformedBatch, i+1, header[i], want)
		}
	}
	return nil
}
