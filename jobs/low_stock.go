package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/apotek-erp/apotek-erp/internal/masterdata"
)

// LowStockChecker runs TaskLowStock against product reorder levels.
type LowStockChecker struct {
	masterdata *masterdata.Service
	logger     *slog.Logger
}

// NewLowStockChecker constructs the checker.
func NewLowStockChecker(masterdataSvc *masterdata.Service, logger *slog.Logger) *LowStockChecker {
	return &LowStockChecker{masterdata: masterdataSvc, logger: logger}
}

// Handle logs every active product at or below its reorder level.
func (c *LowStockChecker) Handle(ctx context.Context, _ *asynq.Task) error {
	items, err := c.masterdata.ListLowStock(ctx)
	if err != nil {
		return err
	}
	for _, item := range items {
		c.logger.Warn("low stock",
			slog.String("product_id", item.Product.ID.String()),
			slog.String("name", item.Product.Name),
			slog.Int64("on_hand", item.OnHand),
			slog.Int64("reorder_level", item.Product.ReorderLevel))
	}
	c.logger.Info("low stock check complete", slog.Int("flagged", len(items)))
	return nil
}
