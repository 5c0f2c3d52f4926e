package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/api/middleware"
	"github.com/dvloznov/sales-ledger/internal/gcs"
	"github.com/dvloznov/sales-ledger/internal/ingest"
	"github.com/dvloznov/sales-ledger/internal/jobs"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/store"
)

// TransactionsHandler handles transaction upload, listing and lookup.
type TransactionsHandler struct {
	store        store.TransactionStore
	pipeline     *ingest.Pipeline
	publisher    jobs.Publisher
	uploadBucket string
	log          zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. publisher may be
// nil when asynchronous uploads are disabled.
func NewTransactionsHandler(st store.TransactionStore, p *ingest.Pipeline, publisher jobs.Publisher, uploadBucket string, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store:        st,
		pipeline:     p,
		publisher:    publisher,
		uploadBucket: uploadBucket,
		log:          log,
	}
}

// Upload handles POST /api/transactions/upload. The body is a CSV batch,
// either raw or as the "file" field of a multipart form. With ?async=true the
// batch is staged and a job handle is returned instead of an IngestResult.
func (h *TransactionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, filename, err := uploadBody(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer body.Close()

	if r.URL.Query().Get("async") == "true" {
		h.uploadAsync(w, r, body, filename)
		return
	}

	result, err := h.pipeline.Ingest(ctx, body)
	switch {
	case errors.Is(err, ledger.ErrMalformedBatch):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		// Rows committed before the failure stay committed; tell the caller
		// how far the run got.
		h.log.Error().Err(err).Msg("Ingestion failed")
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "ingestion failed",
			"result": result,
		})
	default:
		middleware.WriteJSON(w, http.StatusOK, result)
	}
}

// uploadAsync stages the batch (GCS when a bucket is configured, a local temp
// file otherwise) and enqueues an ingest job for the background worker.
func (h *TransactionsHandler) uploadAsync(w http.ResponseWriter, r *http.Request, body io.Reader, filename string) {
	ctx := r.Context()

	if h.publisher == nil {
		middleware.WriteError(w, http.StatusNotImplemented, "Asynchronous uploads are disabled")
		return
	}

	var source string
	if h.uploadBucket != "" {
		object := fmt.Sprintf("uploads/%s/%s-%s", time.Now().Format("2006/01/02"), uuid.New().String(), filename)
		source = fmt.Sprintf("gs://%s/%s", h.uploadBucket, object)
		if err := gcs.Upload(ctx, source, body); err != nil {
			h.log.Error().Err(err).Str("source", source).Msg("Failed to stage batch to GCS")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to stage batch")
			return
		}
	} else {
		f, err := os.CreateTemp("", "sales-ledger-batch-*.csv")
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to stage batch")
			return
		}
		if _, err := io.Copy(f, body); err != nil {
			f.Close()
			os.Remove(f.Name())
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to stage batch")
			return
		}
		f.Close()
		source = f.Name()
	}

	job := &jobs.IngestJob{Source: source}
	if err := h.publisher.PublishIngest(ctx, job); err != nil {
		h.log.Error().Err(err).Msg("Failed to enqueue ingest job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue ingest job")
		return
	}

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.JobID,
		"status": string(job.Status),
	})
}

// List handles GET /api/transactions.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	filter := store.ListFilter{Page: 1, PageSize: store.DefaultPageSize}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		filter.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			middleware.WriteError(w, http.StatusBadRequest, "page_size must be a positive integer")
			return
		}
		filter.PageSize = n
	}
	var err error
	if filter.CustomerID, err = optionalUUID(q.Get("customer_id")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "customer_id must be a UUID")
		return
	}
	if filter.ProductID, err = optionalUUID(q.Get("product_id")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "product_id must be a UUID")
		return
	}
	filter.Clamp()

	items, total, err := h.store.List(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}

	totalPages := (total + filter.PageSize - 1) / filter.PageSize
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":        items,
		"total":        total,
		"page":         filter.Page,
		"page_size":    filter.PageSize,
		"total_pages":  totalPages,
		"has_next":     filter.Page < totalPages,
		"has_previous": filter.Page > 1,
	})
}

// Get handles GET /api/transactions/{id}.
func (h *TransactionsHandler) Get(w http.ResponseWriter, r *http.Request, rawID string) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "transaction id must be a UUID")
		return
	}

	tx, err := h.store.Get(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("Transaction %s not found", id))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", id.String()).Msg("Failed to get transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// uploadBody extracts the CSV stream from a request: the "file" part of a
// multipart form, or the raw body.
func uploadBody(r *http.Request) (io.ReadCloser, string, error) {
	contentType := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if strings.HasPrefix(mediaType, "multipart/") {
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("multipart upload requires a \"file\" field")
		}
		return file, header.Filename, nil
	}
	return r.Body, "batch.csv", nil
}

func optionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
