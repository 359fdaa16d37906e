package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for batches and the movement ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/batches/expiring", h.handleExpiringSoon)
	r.Get("/batches/expired", h.handleExpired)
	r.Get("/batches/{id}", h.handleGetBatch)
	r.Get("/batches/{id}/movements", h.handleMovements)
	r.Get("/batches/{id}/reconcile", h.handleReconcile)
	r.Get("/products/{productID}/batches", h.handleListByProduct)
	r.Post("/allocation-preview", h.handleAllocationPreview)
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.BadRequest(w, "invalid batch id")
		return
	}
	batch, err := h.service.GetBatch(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) handleListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.BadRequest(w, "invalid product id")
		return
	}
	batches, err := h.service.ListByProduct(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batches)
}

func (h *Handler) handleExpiringSoon(w http.ResponseWriter, r *http.Request) {
	days := 30
	if raw := r.URL.Query().Get("window_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.BadRequest(w, "invalid window_days")
			return
		}
		days = parsed
	}
	batches, err := h.service.ExpiringSoon(r.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batches)
}

func (h *Handler) handleExpired(w http.ResponseWriter, r *http.Request) {
	batches, err := h.service.Expired(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batches)
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.BadRequest(w, "invalid batch id")
		return
	}
	movements, err := h.service.Movements(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.BadRequest(w, "invalid batch id")
		return
	}
	rec, err := h.service.Reconcile(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

type allocationPreviewRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int64     `json:"quantity" validate:"required,gt=0"`
}

// handleAllocationPreview computes the batch split a sale of the given
// quantity would take right now, without reserving anything.
func (h *Handler) handleAllocationPreview(w http.ResponseWriter, r *http.Request) {
	var req allocationPreviewRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	lines, err := h.service.Allocate(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, lines)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBatchNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInvalidQuantity):
		httpx.Unprocessable(w, err.Error())
	default:
		h.logger.Error("stock handler", slog.Any("error", err))
		httpx.Internal(w)
	}
}
