package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/service"
	"github.com/pharmacore/pharmacore-backend/pkg/auth"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// BatchHandler handles batch endpoints
type BatchHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewBatchHandler creates a new batch handler
func NewBatchHandler(svc *service.StockService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

// List lists batches with filters and pagination
func (h *BatchHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	page, perPage := httputil.ParsePagination(r)

	filter := repository.BatchFilter{
		MedicineID:      r.URL.Query().Get("medicine_id"),
		Status:          r.URL.Query().Get("status"),
		Search:          r.URL.Query().Get("search"),
		IncludeInactive: r.URL.Query().Get("include_inactive") == "true",
		Page:            page,
		PerPage:         perPage,
	}

	batches, total, err := h.service.ListBatches(r.Context(), ownerID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, batches, httputil.NewMeta(page, perPage, total))
}

// Get gets a batch by ID
func (h *BatchHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	batch, err := h.service.GetBatch(r.Context(), ownerID, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Create creates a new batch
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	userID := httputil.GetUserID(r.Context())

	var input service.CreateBatchInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.CreateBatch(r.Context(), ownerID, userID, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, batch)
}

// Update updates a batch
func (h *BatchHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	var input service.UpdateBatchInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	batch, err := h.service.UpdateBatch(r.Context(), ownerID, id, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, batch)
}

// Delete soft-deletes a batch
func (h *BatchHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteBatch(r.Context(), ownerID, id); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// Adjust applies a stock adjustment to a batch
func (h *BatchHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	var input service.AdjustInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}
	input.PerformedBy = httputil.GetUserID(r.Context())

	batch, entry, err := h.service.Adjust(r.Context(), ownerID, id, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"batch":       batch,
		"transaction": entry,
	})
}

// Transactions lists the ledger history of one batch, newest first
func (h *BatchHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")
	page, perPage := httputil.ParsePagination(r)

	filter := repository.TransactionFilter{
		BatchID: id,
		Page:    page,
		PerPage: perPage,
	}

	transactions, total, err := h.service.ListTransactions(r.Context(), ownerID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, transactions, httputil.NewMeta(page, perPage, total))
}
