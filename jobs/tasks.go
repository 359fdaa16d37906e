package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskExpiryScan flags batches that expired or are about to.
	TaskExpiryScan = "stock:expiry_scan"
	// TaskLowStock reports products at or below their reorder level.
	TaskLowStock = "stock:low_stock"
)

// ExpiryScanPayload carries the look-ahead window for a scan.
type ExpiryScanPayload struct {
	Window time.Duration `json:"window"`
}

// NewExpiryScanTask constructs an Asynq task for the expiry scan.
func NewExpiryScanTask(window time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(ExpiryScanPayload{Window: window})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExpiryScan, body, asynq.Queue(QueueDefault)), nil
}

// NewLowStockTask constructs an Asynq task for the low-stock check.
func NewLowStockTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskLowStock, nil, asynq.Queue(QueueDefault)), nil
}
