package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacore/pharmacore-backend/internal/sales/repository"
	"github.com/pharmacore/pharmacore-backend/internal/sales/service"
	"github.com/pharmacore/pharmacore-backend/pkg/auth"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// SaleHandler handles sale endpoints
type SaleHandler struct {
	service *service.SalesService
	logger  *logger.Logger
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(svc *service.SalesService, log *logger.Logger) *SaleHandler {
	return &SaleHandler{
		service: svc,
		logger:  log,
	}
}

// Create creates a sale
func (h *SaleHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var input service.CreateSaleInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}
	input.SoldBy = httputil.GetUserID(r.Context())

	sale, err := h.service.CreateSale(r.Context(), ownerID, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, sale)
}

// Get gets a sale by ID
func (h *SaleHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	sale, err := h.service.GetSale(r.Context(), ownerID, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sale)
}

// GetByBillNumber gets a sale by its bill number
func (h *SaleHandler) GetByBillNumber(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	billNumber := chi.URLParam(r, "billNumber")

	sale, err := h.service.GetSaleByBillNumber(r.Context(), ownerID, billNumber)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sale)
}

// List lists sales with filters and pagination
func (h *SaleHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	page, perPage := httputil.ParsePagination(r)

	filter := repository.SaleFilter{
		Status:        r.URL.Query().Get("status"),
		PaymentStatus: r.URL.Query().Get("payment_status"),
		Search:        r.URL.Query().Get("search"),
		Page:          page,
		PerPage:       perPage,
	}

	from, to, err := parseDateRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	filter.From = from
	filter.To = to

	sales, total, err := h.service.ListSales(r.Context(), ownerID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, sales, httputil.NewMeta(page, perPage, total))
}

// Summary aggregates sale totals over an optional date range
func (h *SaleHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	from, to, err := parseDateRange(r)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if from == nil && to == nil {
		if period := r.URL.Query().Get("period"); period != "" {
			start, perr := periodStart(period, time.Now())
			if perr != nil {
				httputil.Error(w, perr)
				return
			}
			from = &start
		}
	}

	summary, err := h.service.Summary(r.Context(), ownerID, from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

// Cancel cancels a sale and restores consumed stock
func (h *SaleHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	var req struct {
		Reason string `json:"reason"`
	}
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	sale, err := h.service.CancelSale(r.Context(), ownerID, id, httputil.GetUserID(r.Context()), req.Reason)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, sale)
}

// CreateReturn records a return against a sale
func (h *SaleHandler) CreateReturn(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	saleID := chi.URLParam(r, "id")

	var input service.CreateReturnInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}
	input.ProcessedBy = httputil.GetUserID(r.Context())

	ret, err := h.service.CreateReturn(r.Context(), ownerID, saleID, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, ret)
}

// ListSaleReturns lists returns recorded against one sale
func (h *SaleHandler) ListSaleReturns(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	saleID := chi.URLParam(r, "id")

	returns, err := h.service.ListReturnsBySale(r.Context(), ownerID, saleID)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, returns)
}

// GetReturn gets a return by ID
func (h *SaleHandler) GetReturn(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	ret, err := h.service.GetReturn(r.Context(), ownerID, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, ret)
}

// ListReturns lists returns for the owner
func (h *SaleHandler) ListReturns(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	page, perPage := httputil.ParsePagination(r)

	returns, total, err := h.service.ListReturns(r.Context(), ownerID, page, perPage)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, returns, httputil.NewMeta(page, perPage, total))
}

func periodStart(period string, now time.Time) (time.Time, error) {
	switch period {
	case "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	case "month":
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), nil
	case "year":
		return time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location()), nil
	default:
		return time.Time{}, errors.BadRequest("period must be today, month or year")
	}
}

func parseDateRange(r *http.Request) (*time.Time, *time.Time, error) {
	var from, to *time.Time

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, errors.BadRequest("from must be an RFC 3339 timestamp")
		}
		from = &parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, nil, errors.BadRequest("to must be an RFC 3339 timestamp")
		}
		to = &parsed
	}

	return from, to, nil
}
