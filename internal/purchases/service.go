package purchases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/audit"
	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/internal/workflow"
)

// MasterdataPort resolves product and supplier references.
type MasterdataPort interface {
	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	SupplierExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// AuditPort records audit events, best-effort.
type AuditPort interface {
	Record(ctx context.Context, log audit.Log) error
}

// SequencerPort allocates order numbers.
type SequencerPort interface {
	Next(ctx context.Context, typePrefix string) (string, error)
}

// Service orchestrates the purchase workflow. Stock enters the system only
// through an approved purchase.
type Service struct {
	engine     *workflow.Engine
	masterdata MasterdataPort
	seq        SequencerPort
	audit      AuditPort
	logger     *slog.Logger
}

// NewService constructs the purchase service.
func NewService(engine *workflow.Engine, masterdata MasterdataPort, seq SequencerPort, auditor AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{engine: engine, masterdata: masterdata, seq: seq, audit: auditor, logger: logger}
}

// Create validates the draft and persists it in DRAFT status. No stock moves
// until approval.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (workflow.Transaction, error) {
	if len(input.Items) == 0 || input.SupplierID == uuid.Nil || actorID == uuid.Nil {
		return workflow.Transaction{}, ErrValidation
	}
	if s.masterdata != nil {
		ok, err := s.masterdata.SupplierExists(ctx, input.SupplierID)
		if err != nil {
			return workflow.Transaction{}, err
		}
		if !ok {
			return workflow.Transaction{}, ErrUnknownSupplier
		}
	}

	items := make([]workflow.Item, 0, len(input.Items))
	var total float64
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil || line.BatchNumber == "" || line.Quantity <= 0 || line.UnitPrice < 0 || line.ExpiryDate.IsZero() {
			return workflow.Transaction{}, ErrValidation
		}
		if s.masterdata != nil {
			ok, err := s.masterdata.ProductExists(ctx, line.ProductID)
			if err != nil {
				return workflow.Transaction{}, err
			}
			if !ok {
				return workflow.Transaction{}, ErrUnknownProduct
			}
		}
		lineTotal := float64(line.Quantity) * line.UnitPrice
		total += lineTotal
		items = append(items, workflow.Item{
			ProductID:   line.ProductID,
			BatchNumber: line.BatchNumber,
			ExpiryDate:  line.ExpiryDate,
			Quantity:    line.Quantity,
			UnitCost:    line.UnitPrice,
			TotalCost:   lineTotal,
		})
	}

	refNo, err := s.seq.Next(ctx, ReferencePrefix)
	if err != nil {
		return workflow.Transaction{}, err
	}
	created, err := s.engine.Create(ctx, workflow.Transaction{
		Kind:        workflow.KindPurchase,
		ReferenceNo: refNo,
		SupplierID:  input.SupplierID,
		Notes:       input.Notes,
		TotalAmount: total,
		CreatedBy:   actorID,
	}, items)
	if err != nil {
		return workflow.Transaction{}, err
	}
	s.recordAudit(ctx, actorID, "purchase.create", created.ID, map[string]any{"reference_no": created.ReferenceNo, "total_amount": created.TotalAmount})
	return created, nil
}

// Submit moves a draft purchase into the approval queue.
func (s *Service) Submit(ctx context.Context, id, actorID uuid.UUID) (workflow.Transaction, error) {
	rec, err := s.engine.Submit(ctx, workflow.KindPurchase, id, actorID)
	if err != nil {
		return workflow.Transaction{}, err
	}
	s.recordAudit(ctx, actorID, "purchase.submit", id, nil)
	return rec, nil
}

// Approve applies the purchase: each item merges into the batch keyed by
// (product, batch number) or creates it, and a positive PURCHASE movement is
// written per item. All items apply or none do.
func (s *Service) Approve(ctx context.Context, id, actorID uuid.UUID) (workflow.Transaction, error) {
	rec, err := s.engine.Approve(ctx, workflow.KindPurchase, id, actorID, func(ctx context.Context, items []workflow.Item, st stock.TxStore) error {
		for _, item := range items {
			batchID, err := s.receiveItem(ctx, item, st)
			if err != nil {
				return fmt.Errorf("purchases: receive batch %s: %w", item.BatchNumber, err)
			}
			movement := stock.Movement{
				BatchID:       batchID,
				Type:          stock.MovementPurchase,
				Quantity:      item.Quantity,
				ReferenceType: "Purchase",
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
	s.recordAudit(ctx, actorID, "purchase.approve", id, nil)
	return rec, nil
}

func (s *Service) receiveItem(ctx context.Context, item workflow.Item, st stock.TxStore) (uuid.UUID, error) {
	batch, err := st.FindBatchForUpdate(ctx, item.ProductID, item.BatchNumber)
	switch {
	case err == nil:
		if err := st.AddQuantity(ctx, batch.ID, item.Quantity); err != nil {
			return uuid.Nil, err
		}
		return batch.ID, nil
	case errors.Is(err, stock.ErrBatchNotFound):
		return st.InsertBatch(ctx, stock.Batch{
			ProductID:     item.ProductID,
			BatchNumber:   item.BatchNumber,
			ExpiryDate:    item.ExpiryDate,
			PurchasePrice: item.UnitCost,
			Quantity:      item.Quantity,
		})
	default:
		return uuid.Nil, err
	}
}

// Reject finalises the purchase without stock effects.
func (s *Service) Reject(ctx context.Context, id, actorID uuid.UUID, reason string) (workflow.Transaction, error) {
	rec, err := s.engine.Reject(ctx, workflow.KindPurchase, id, actorID, reason)
	if err != nil {
		return workflow.Transaction{}, err
	}
	s.recordAudit(ctx, actorID, "purchase.reject", id, map[string]any{"reason": reason})
	return rec, nil
}

// Get loads a purchase with items and status history.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (workflow.Transaction, error) {
	return s.engine.Get(ctx, workflow.KindPurchase, id)
}

// List returns purchases, optionally filtered by status.
func (s *Service) List(ctx context.Context, filter workflow.ListFilter) ([]workflow.Transaction, error) {
	return s.engine.List(ctx, workflow.KindPurchase, filter)
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Log{ActorID: actorID, Action: action, EntityType: "Purchase", EntityID: entityID.String(), New: meta}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
