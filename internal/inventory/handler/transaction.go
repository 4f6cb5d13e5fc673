package handler

import (
	"net/http"
	"time"

	"github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/service"
	"github.com/pharmacore/pharmacore-backend/pkg/auth"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// TransactionHandler serves owner-wide ledger history
type TransactionHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(svc *service.StockService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: svc,
		logger:  log,
	}
}

// List lists ledger entries for the owner, newest first
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	page, perPage := httputil.ParsePagination(r)

	filter := repository.TransactionFilter{
		BatchID:         r.URL.Query().Get("batch_id"),
		MedicineID:      r.URL.Query().Get("medicine_id"),
		TransactionType: r.URL.Query().Get("type"),
		Page:            page,
		PerPage:         perPage,
	}

	if raw := r.URL.Query().Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("from must be an RFC 3339 timestamp"))
			return
		}
		filter.From = &from
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.Error(w, errors.BadRequest("to must be an RFC 3339 timestamp"))
			return
		}
		filter.To = &to
	}

	transactions, total, err := h.service.ListTransactions(r.Context(), ownerID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, transactions, httputil.NewMeta(page, perPage, total))
}
