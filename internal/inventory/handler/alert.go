package handler

import (
	"net/http"
	"strconv"

	"github.com/pharmacore/pharmacore-backend/internal/inventory/service"
	"github.com/pharmacore/pharmacore-backend/pkg/auth"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// AlertHandler serves the read-only alert projections
type AlertHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.StockService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// LowStock lists batches at or under their reorder level
func (h *AlertHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.LowStock(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// NearExpiry lists batches inside their expiry alert window. An optional
// days query parameter overrides the per-batch window.
func (h *AlertHandler) NearExpiry(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.Error(w, errors.BadRequest("days must be a positive integer"))
			return
		}
		days = parsed
	}

	batches, err := h.service.NearExpiry(r.Context(), auth.OwnerID(r.Context()), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Expired lists batches past their expiry date with stock remaining
func (h *AlertHandler) Expired(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.Expired(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// OutOfStock lists batches with nothing left to sell
func (h *AlertHandler) OutOfStock(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.OutOfStock(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batches)
}

// Summary returns aggregate stock counts and value for dashboards
func (h *AlertHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.StockSummary(r.Context(), auth.OwnerID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}
