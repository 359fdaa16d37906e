package disposals

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/audit"
	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/internal/workflow"
)

// StockPort reads batches for creation-time validation.
type StockPort interface {
	GetBatch(ctx context.Context, id uuid.UUID) (stock.Batch, error)
}

// AuditPort records audit events, best-effort.
type AuditPort interface {
	Record(ctx context.Context, log audit.Log) error
}

// SequencerPort allocates reference numbers.
type SequencerPort interface {
	Next(ctx context.Context, typePrefix string) (string, error)
}

// Service orchestrates the disposal workflow.
type Service struct {
	engine *workflow.Engine
	stock  StockPort
	seq    SequencerPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService constructs the disposal service.
func NewService(engine *workflow.Engine, stockPort StockPort, seq SequencerPort, auditor AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, stock: stockPort, seq: seq, audit: auditor, logger: logger}
}

// Create validates each item against current stock and persists the draft.
// The write-off value is snapshotted from the batch purchase price now, not
// recomputed at approval.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (workflow.Transaction, error) {
	if len(input.Items) == 0 || input.Reason == "" || actorID == uuid.Nil {
		return workflow.Transaction{}, ErrValidation
	}

	items := make([]workflow.Item, 0, len(input.Items))
	var totalValue float64
	for _, line := range input.Items {
		if line.BatchID == uuid.Nil || line.Quantity <= 0 {
			return workflow.Transaction{}, ErrValidation
		}
		batch, err := s.stock.GetBatch(ctx, line.BatchID)
		if err != nil {
			return workflow.Transaction{}, err
		}
		if batch.Quantity < line.Quantity {
			return workflow.Transaction{}, stock.ErrInsufficientStock
		}
		reason := line.Reason
		if reason == "" {
			reason = input.Reason
		}
		itemValue := float64(line.Quantity) * batch.PurchasePrice
		totalValue += itemValue
		items = append(items, workflow.Item{
			ProductID: batch.ProductID,
			BatchID:   line.BatchID,
			Quantity:  line.Quantity,
			UnitCost:  batch.PurchasePrice,
			TotalCost: itemValue,
			Reason:    reason,
		})
	}

	refNo, err := s.seq.Next(ctx, ReferencePrefix)
	if err != nil {
		return workflow.Transaction{}, err
	}
	created, err := s.engine.Create(ctx, workflow.Transaction{
		Kind:        workflow.KindDisposal,
		ReferenceNo: refNo,
		Reason:      input.Reason,
		Notes:       input.Notes,
		TotalAmount: totalValue,
		CreatedBy:   actorID,
	}, items)
	if err != nil {
		return workflow.Transaction{}, err
	}
	s.recordAudit(ctx, actorID, "disposal.create", created.ID, map[string]any{"reference_no": created.ReferenceNo, "total_value": created.TotalAmount})
	return created, nil
}

// Submit moves a draft disposal into the approval queue.
func (s *Service) Submit(ctx context.Context, id, actorID uuid.UUID) (workflow.Transaction, error) {
	rec, err := s.engine.Submit(ctx, workflow.KindDisposal, id, actorID)
	if err != nil {
		return workflow.Transaction{}, err
	}
	s.recordAudit(ctx, actorID, "disposal.submit", id, nil)
	return rec, nil
}

// Approve decrements each batch and writes a negative DISPOSAL movement per
// item. Sufficiency is re-checked against live quantities; any shortfall
// aborts the whole approval and the disposal stays pending.
func (s *Service) Approve(ctx context.Context, id, actorID uuid.UUID) (workflow.Transaction, error) {
	rec, err := s.engine.Approve(ctx, workflow.KindDisposal, id, actorID, func(ctx context.Context, items []workflow.Item, st stock.TxStore) error {
		for _, item := range items {
			if err := st.AddQuantity(ctx, item.BatchID, -item.Quantity); err != nil {
				return err
			}
			movement := stock.Movement{
				BatchID:       item.BatchID,
				Type:          stock.MovementDisposal,
				Quantity:      -item.Quantity,
				ReferenceType: "Disposal",
				ReferenceID:   id,
				PerformedBy:   actorID,
			}
			if err := st.InsertMovement(ctx, movement); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return workflow.Transaction{}, err
	}
	s.recordAudit(ctx, actorID, "disposal.approve", id, nil)
	return rec, nil
}

// Reject finalises the disposal without stock effects.
func (s *Service) Reject(ctx context.Context, id, actorID uuid.UUID, reason string) (workflow.Transaction, error) {
	rec, err := s.engine.Reject(ctx, workflow.KindDisposal, id, actorID, reason)
	if err != nil {
		return workflow.Transaction{}, err
	}
	s.recordAudit(ctx, actorID, "disposal.reject", id, map[string]any{"reason": reason})
	return rec, nil
}

// Get loads a disposal with items and status history.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (workflow.Transaction, error) {
	return s.engine.Get(ctx, workflow.KindDisposal, id)
}

// List returns disposals, optionally filtered by status.
func (s *Service) List(ctx context.Context, filter workflow.ListFilter) ([]workflow.Transaction, error) {
	return s.engine.List(ctx, workflow.KindDisposal, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Log{ActorID: actorID, Action: action, EntityType: "Disposal", EntityID: entityID.String(), New: meta}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
