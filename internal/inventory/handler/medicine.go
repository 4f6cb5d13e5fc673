package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pharmacore/pharmacore-backend/internal/catalog"
	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
)

// MedicineHandler serves medicine lookups backed by the catalog cache
type MedicineHandler struct {
	resolver *catalog.Resolver
	logger   *logger.Logger
}

// NewMedicineHandler creates a new medicine handler
func NewMedicineHandler(resolver *catalog.Resolver, log *logger.Logger) *MedicineHandler {
	return &MedicineHandler{
		resolver: resolver,
		logger:   log,
	}
}

// Get resolves a medicine by ID
func (h *MedicineHandler) Get(w http.ResponseWriter, r *http.Request) {
	medicine, err := h.resolver.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicine)
}

// Search searches cached medicines by name
func (h *MedicineHandler) Search(w http.ResponseWriter, r *http.Request) {
	term := r.URL.Query().Get("q")
	if term == "" {
		httputil.Error(w, errors.BadRequest("q query parameter is required"))
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			httputil.Error(w, errors.BadRequest("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	medicines, err := h.resolver.Search(r.Context(), term, limit)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, medicines)
}
