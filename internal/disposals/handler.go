package disposals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/platform/httpx"
	"github.com/apotek-erp/apotek-erp/internal/shared"
	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/internal/workflow"
)

// Handler wires HTTP endpoints for disposals.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the disposals handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers disposal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/submit", h.handleSubmit)
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/reject", h.handleReject)
}

type createItemRequest struct {
	BatchID  uuid.UUID `json:"batch_id" validate:"required"`
	Quantity int64     `json:"quantity" validate:"required,gt=0"`
	Reason   string    `json:"reason"`
}

type createRequest struct {
	Reason string              `json:"reason" validate:"required"`
	Notes  string              `json:"notes"`
	Items  []createItemRequest `json:"items" validate:"required,min=1,dive"`
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
	input := CreateInput{Reason: req.Reason, Notes: req.Notes}
	for _, item := range req.Items {
		input.Items = append(input.Items, ItemInput{BatchID: item.BatchID, Quantity: item.Quantity, Reason: item.Reason})
	}
	created, err := h.service.Create(r.Context(), actorID, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter := workflow.ListFilter{Status: workflow.Status(r.URL.Query().Get("status"))}
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
	rec, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Submit)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

func (h *Handler) handleReject(w http.ResponseWriter, r *http.Request) {
	actorID, err := httpx.ActorID(r)
	if err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.BadRequest(w, "invalid id")
		return
	}
	var req rejectRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.BadRequest(w, "invalid json body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	rec, err := h.service.Reject(r.Context(), id, actorID, req.Reason)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id, actorID uuid.UUID) (workflow.Transaction, error)) {
	actorID, err := httpx.ActorID(r)
	if err != nil {
		httpx.BadRequest(w, err.Error())
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.BadRequest(w, "invalid id")
		return
	}
	rec, err := fn(r.Context(), id, actorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, stock.ErrBatchNotFound):
		httpx.NotFound(w, err.Error())
	case errors.Is(err, workflow.ErrInvalidTransition), errors.Is(err, shared.ErrConflict):
		httpx.Conflict(w, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, workflow.ErrValidation):
		httpx.BadRequest(w, err.Error())
	case errors.Is(err, stock.ErrInsufficientStock):
		httpx.Unprocessable(w, err.Error())
	default:
		h.logger.Error("disposals handler", slog.Any("error", err))
		httpx.Internal(w)
	}
}
