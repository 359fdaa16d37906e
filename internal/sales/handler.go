package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/platform/httpx"
	"github.com/apotek-erp/apotek-erp/internal/shared"
	"github.com/apotek-erp/apotek-erp/internal/stock"
)

// Handler wires HTTP endpoints for point-of-sale transactions.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Get("/number/{saleNumber}", h.handleGetByNumber)
}

type createItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int64     `json:"quantity" validate:"required,gt=0"`
	UnitPrice float64   `json:"unit_price" validate:"gte=0"`
}

type createPaymentRequest struct {
	Method    string  `json:"method" validate:"required"`
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Reference string  `json:"reference"`
}

type createRequest struct {
	Discount float64                `json:"discount" validate:"gte=0"`
	Notes    string                 `json:"notes"`
	Items    []createItemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments []createPaymentRequest `json:"payments" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, err := httpx.ActorID(r)
	if err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	input := CreateInput{
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Discount:       req.Discount,
		Notes:          req.Notes,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput{ProductID: item.ProductID, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	for _, p := range req.Payments {
		input.Payments = append(input.Payments, PaymentInput{Method: p.Method, Amount: p.Amount, Reference: p.Reference})
	}
	sale, err := h.service.Create(r.Context(), actorID, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	var filter ListFilter
	q := r.URL.Query()
	if raw := q.Get("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.BadRequest(w, "invalid from date")
			return
		}
		filter.From = from
	}
	if raw := q.Get("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.BadRequest(w, "invalid to date")
			return
		}
		filter.To = to.Add(24 * time.Hour)
	}
	list, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.BadRequest(w, "invalid id")
		return
	}
	sale, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleGetByNumber(w http.ResponseWriter, r *http.Request) {
	sale, err := h.service.GetByNumber(r.Context(), chi.URLParam(r, "saleNumber"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, ErrUnknownProduct):
		httpx.BadRequest(w, err.Error())
	case errors.Is(err, ErrInsufficientPayment), errors.Is(err, stock.ErrInsufficientStock):
		httpx.Unprocessable(w, err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict), errors.Is(err, shared.ErrConflict):
		httpx.Conflict(w, err.Error())
	default:
		h.logger.Error("sales handler", slog.Any("error", err))
		httpx.Internal(w)
	}
}
