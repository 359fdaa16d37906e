package masterdata

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/apotek-erp/apotek-erp/internal/platform/httpx"
)

// Handler wires read-only HTTP endpoints for products and suppliers.
type Handler struct {
	logger        *slog.Logger
	service       *Service
	lowStockGroup singleflight.Group
}

// NewHandler constructs the masterdata handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers masterdata routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.handleListProducts)
	r.Get("/products/low-stock", h.handleLowStock)
	r.Get("/products/barcode/{barcode}", h.handleProductByBarcode)
	r.Get("/products/{id}", h.handleGetProduct)
	r.Get("/suppliers", h.handleListSuppliers)
	r.Get("/suppliers/{id}", h.handleGetSupplier)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	filters := ListFilters{Search: r.URL.Query().Get("search")}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active := raw == "true"
		filters.IsActive = &active
	}
	products, err := h.service.ListProducts(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.BadRequest(w, "invalid product id")
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleProductByBarcode(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProductByBarcode(r.Context(), chi.URLParam(r, "barcode"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

// handleLowStock serves the reorder dashboard. The aggregate scans every
// product, so concurrent refreshes share one query.
func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	result, err, _ := h.lowStockGroup.Do("low-stock", func() (any, error) {
		return h.service.ListLowStock(r.Context())
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.BadRequest(w, "invalid supplier id")
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.NotFound(w, err.Error())
		return
	}
	h.logger.Error("masterdata handler", slog.Any("error", err))
	httpx.Internal(w)
}
