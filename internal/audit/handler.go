package audit

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/platform/httpx"
)

// Handler exposes the audit trail for inspection.
type Handler struct {
	logger   *slog.Logger
	recorder *Recorder
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, recorder *Recorder) *Handler {
	return &Handler{logger: logger, recorder: recorder}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		EntityType: q.Get("entity_type"),
		EntityID:   q.Get("entity_id"),
	}
	if raw := q.Get("actor_id"); raw != "" {
		actorID, err := uuid.Parse(raw)
		if err != nil {
			httpx.BadRequest(w, "invalid actor_id")
			return
		}
		filter.ActorID = actorID
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			httpx.BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	logs, err := h.recorder.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("audit handler", slog.Any("error", err))
		httpx.Internal(w)
		return
	}
	httpx.JSON(w, http.StatusOK, logs)
}
