package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/apotek-erp/apotek-erp/internal/adjustments"
	"github.com/apotek-erp/apotek-erp/internal/audit"
	"github.com/apotek-erp/apotek-erp/internal/disposals"
	"github.com/apotek-erp/apotek-erp/internal/masterdata"
	"github.com/apotek-erp/apotek-erp/internal/purchases"
	"github.com/apotek-erp/apotek-erp/internal/sales"
	"github.com/apotek-erp/apotek-erp/internal/stock"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	StockHandler       *stock.Handler
	PurchasesHandler   *purchases.Handler
	DisposalsHandler   *disposals.Handler
	AdjustmentsHandler *adjustments.Handler
	SalesHandler       *sales.Handler
	MasterDataHandler  *masterdata.Handler
	AuditHandler       *audit.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/stock", params.StockHandler.MountRoutes)
	r.Route("/purchases", params.PurchasesHandler.MountRoutes)
	r.Route("/disposals", params.DisposalsHandler.MountRoutes)
	r.Route("/adjustments", params.AdjustmentsHandler.MountRoutes)
	r.Route("/sales", params.SalesHandler.MountRoutes)
	r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
	if params.AuditHandler != nil {
		r.Route("/audit", params.AuditHandler.MountRoutes)
	}

	return r
}
