package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/apotek-erp/apotek-erp/internal/stock"
)

// ExpiryScanner runs TaskExpiryScan against live stock.
type ExpiryScanner struct {
	stock   *stock.Service
	logger  *slog.Logger
	printer *message.Printer
	window  time.Duration
}

// NewExpiryScanner constructs the scanner. window is the default look-ahead
// when a task carries none.
func NewExpiryScanner(stockSvc *stock.Service, logger *slog.Logger, window time.Duration) *ExpiryScanner {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &ExpiryScanner{
		stock:   stockSvc,
		logger:  logger,
		printer: message.NewPrinter(language.English),
		window:  window,
	}
}

// Handle lists batches already expired and batches expiring inside the
// window, and logs one summary per group. The scan never mutates stock;
// expired stock leaves the shelves through an explicit disposal.
func (s *ExpiryScanner) Handle(ctx context.Context, t *asynq.Task) error {
	var payload ExpiryScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	window := payload.Window
	if window <= 0 {
		window = s.window
	}

	var expired, expiring []stock.Batch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expired, err = s.stock.Expired(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		expiring, err = s.stock.ExpiringSoon(gctx, window)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	var expiredQty int64
	var expiredValue float64
	for _, b := range expired {
		expiredQty += b.Quantity
		expiredValue += float64(b.Quantity) * b.PurchasePrice
	}
	s.logger.Info("expiry scan: expired stock on hand",
		slog.Int("batches", len(expired)),
		slog.String("quantity", s.printer.Sprintf("%d", expiredQty)),
		slog.String("value", s.printer.Sprintf("%.2f", expiredValue)))
	for _, b := range expiring {
		s.logger.Warn("expiry scan: batch expiring",
			slog.String("batch_id", b.ID.String()),
			slog.String("product_id", b.ProductID.String()),
			slog.String("batch_number", b.BatchNumber),
			slog.Time("expiry_date", b.ExpiryDate),
			slog.Int64("quantity", b.Quantity))
	}
	return nil
}
