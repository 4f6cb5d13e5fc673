package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacore/pharmacore-backend/internal/intake/repository"
	"github.com/pharmacore/pharmacore-backend/internal/intake/service"
	"github.com/pharmacore/pharmacore-backend/pkg/auth"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// OrderHandler handles purchase order endpoints
type OrderHandler struct {
	service *service.IntakeService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.IntakeService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  log,
	}
}

// Create creates a draft purchase order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var input service.CreateOrderInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}
	input.CreatedBy = httputil.GetUserID(r.Context())

	order, err := h.service.CreateOrder(r.Context(), ownerID, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, order)
}

// Get gets an order by ID
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	order, err := h.service.GetOrder(r.Context(), ownerID, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// List lists orders with filters and pagination
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	page, perPage := httputil.ParsePagination(r)

	filter := repository.OrderFilter{
		Status:   r.URL.Query().Get("status"),
		Supplier: r.URL.Query().Get("supplier"),
		Page:     page,
		PerPage:  perPage,
	}

	orders, total, err := h.service.ListOrders(r.Context(), ownerID, filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, httputil.NewMeta(page, perPage, total))
}

// Receive records a delivery receipt for an order
func (h *OrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	var input service.ReceiveOrderInput
	if err := httputil.DecodeJSON(r, &input); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(&input); err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.service.ReceiveOrder(r.Context(), ownerID, id, &input)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// Post posts the verified received lines of an order to stock
func (h *OrderHandler) Post(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	order, err := h.service.PostOrder(r.Context(), ownerID, id, httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// Cancel cancels an unposted order
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())
	id := chi.URLParam(r, "id")

	order, err := h.service.CancelOrder(r.Context(), ownerID, id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}
