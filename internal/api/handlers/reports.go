package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/sales-ledger/internal/api/middleware"
	"github.com/dvloznov/sales-ledger/internal/ledger"
	"github.com/dvloznov/sales-ledger/internal/report"
)

// ReportsHandler serves customer and product summary endpoints.
type ReportsHandler struct {
	engine *report.Engine
	log    zerolog.Logger
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(engine *report.Engine, log zerolog.Logger) *ReportsHandler {
	return &ReportsHandler{engine: engine, log: log}
}

// CustomerSummary handles GET /api/reports/customer-summary/{id}.
func (h *ReportsHandler) CustomerSummary(w http.ResponseWriter, r *http.Request, rawID string) {
	id, rng, ok := h.summaryParams(w, r, rawID, "customer id")
	if !ok {
		return
	}

	summary, err := h.engine.CustomerSummary(r.Context(), id, rng)
	if errors.Is(err, ledger.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("Customer %s has no transactions", id))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("customer_id", id.String()).Msg("Failed to build customer summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// ProductSummary handles GET /api/reports/product-summary/{id}.
func (h *ReportsHandler) ProductSummary(w http.ResponseWriter, r *http.Request, rawID string) {
	id, rng, ok := h.summaryParams(w, r, rawID, "product id")
	if !ok {
		return
	}

	summary, err := h.engine.ProductSummary(r.Context(), id, rng)
	if errors.Is(err, ledger.ErrNotFound) {
		middleware.WriteError(w, http.StatusNotFound, fmt.Sprintf("Product %s has no transactions", id))
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("product_id", id.String()).Msg("Failed to build product summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// summaryParams parses the identity path segment and the optional inclusive
// from/to range. It writes the error response itself when parsing fails.
func (h *ReportsHandler) summaryParams(w http.ResponseWriter, r *http.Request, rawID, idName string) (uuid.UUID, report.Range, bool) {
	id, err := uuid.Parse(rawID)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, idName+" must be a UUID")
		return uuid.UUID{}, report.Range{}, false
	}

	var rng report.Range
	q := r.URL.Query()
	if rng.From, err = parseRangeBound(q.Get("from")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "from must be an ISO-8601 timestamp or date")
		return uuid.UUID{}, report.Range{}, false
	}
	if rng.To, err = parseRangeBound(q.Get("to")); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "to must be an ISO-8601 timestamp or date")
		return uuid.UUID{}, report.Range{}, false
	}
	if !rng.From.IsZero() && !rng.To.IsZero() && rng.From.After(rng.To) {
		middleware.WriteError(w, http.StatusBadRequest, "from must not be after to")
		return uuid.UUID{}, report.Range{}, false
	}
	return id, rng, true
}

// parseRangeBound accepts a full timestamp or a bare date, both read as UTC.
func parseRangeBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
