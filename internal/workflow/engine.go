package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/stock"
)

// StorePort describes the persistence surface the engine drives.
type StorePort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	Get(ctx context.Context, kind Kind, id uuid.UUID) (Transaction, error)
	List(ctx context.Context, kind Kind, filter ListFilter) ([]Transaction, error)
}

// TxStore exposes transactional operations. Stock gives apply effects access
// to batch mutations inside the same transaction as the status write.
type TxStore interface {
	Insert(ctx context.Context, tx Transaction) error
	InsertItem(ctx context.Context, item Item) error
	GetForUpdate(ctx context.Context, kind Kind, id uuid.UUID) (Transaction, error)
	ListItems(ctx context.Context, txID uuid.UUID) ([]Item, error)
	SetStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) error
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	Stock() stock.TxStore
}

// Apply is the kind-specific stock effect executed exactly once, at approval,
// atomically with the APPROVED status write. Returning an error aborts the
// whole approval: no movement persists and the status stays PENDING_APPROVAL.
type Apply func(ctx context.Context, items []Item, st stock.TxStore) error

// Engine runs the shared Draft/Pending/Approved/Rejected lifecycle for every
// workflow transaction kind.
type Engine struct {
	store  StorePort
	logger *slog.Logger
	clock  func() time.Time
}

// NewEngine constructs the engine.
func NewEngine(store StorePort, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger, clock: func() time.Time { return time.Now().UTC() }}
}

// Create persists a transaction in DRAFT with its items and the opening
// history entry.
func (e *Engine) Create(ctx context.Context, tx Transaction, items []Item) (Transaction, error) {
	if len(items) == 0 {
		return Transaction{}, ErrValidation
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	tx.Status = StatusDraft
	tx.CreatedAt = e.clock()
	err := e.store.WithTx(ctx, func(ctx context.Context, st TxStore) error {
		if err := st.Insert(ctx, tx); err != nil {
			return err
		}
		for i := range items {
			if items[i].ID == uuid.Nil {
				items[i].ID = uuid.New()
			}
			items[i].TransactionID = tx.ID
			if err := st.InsertItem(ctx, items[i]); err != nil {
				return err
			}
		}
		return st.AppendHistory(ctx, HistoryEntry{
			TransactionID: tx.ID,
			Status:        StatusDraft,
			ChangedBy:     tx.CreatedBy,
			At:            tx.CreatedAt,
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	return e.store.Get(ctx, tx.Kind, tx.ID)
}

// Submit moves a DRAFT transaction to PENDING_APPROVAL.
func (e *Engine) Submit(ctx context.Context, kind Kind, id, actor uuid.UUID) (Transaction, error) {
	err := e.store.WithTx(ctx, func(ctx context.Context, st TxStore) error {
		rec, err := st.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if !CanTransition(rec.Status, StatusPendingApproval) {
			return ErrInvalidTransition
		}
		if err := st.SetStatus(ctx, id, StatusUpdate{Status: StatusPendingApproval}); err != nil {
			return err
		}
		return st.AppendHistory(ctx, HistoryEntry{
			TransactionID: id,
			Status:        StatusPendingApproval,
			ChangedBy:     actor,
			At:            e.clock(),
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	return e.store.Get(ctx, kind, id)
}

// Approve runs the apply effect and the APPROVED status write in one atomic
// unit. Stock sufficiency is re-validated here, not at creation time, because
// levels may have drifted while the transaction sat in the queue.
func (e *Engine) Approve(ctx context.Context, kind Kind, id, actor uuid.UUID, apply Apply) (Transaction, error) {
	now := e.clock()
	err := e.store.WithTx(ctx, func(ctx context.Context, st TxStore) error {
		rec, err := st.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if !CanTransition(rec.Status, StatusApproved) {
			return ErrInvalidTransition
		}
		if apply != nil {
			items, err := st.ListItems(ctx, id)
			if err != nil {
				return err
			}
			if err := apply(ctx, items, st.Stock()); err != nil {
				return err
			}
		}
		if err := st.SetStatus(ctx, id, StatusUpdate{Status: StatusApproved, ApprovedBy: actor, ApprovedAt: now}); err != nil {
			return err
		}
		return st.AppendHistory(ctx, HistoryEntry{
			TransactionID: id,
			Status:        StatusApproved,
			ChangedBy:     actor,
			At:            now,
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	return e.store.Get(ctx, kind, id)
}

// Reject finalises a PENDING_APPROVAL transaction without stock effects.
func (e *Engine) Reject(ctx context.Context, kind Kind, id, actor uuid.UUID, reason string) (Transaction, error) {
	now := e.clock()
	err := e.store.WithTx(ctx, func(ctx context.Context, st TxStore) error {
		rec, err := st.GetForUpdate(ctx, kind, id)
		if err != nil {
			return err
		}
		if !CanTransition(rec.Status, StatusRejected) {
			return ErrInvalidTransition
		}
		if err := st.SetStatus(ctx, id, StatusUpdate{Status: StatusRejected, RejectedAt: now, RejectionReason: reason}); err != nil {
			return err
		}
		return st.AppendHistory(ctx, HistoryEntry{
			TransactionID: id,
			Status:        StatusRejected,
			ChangedBy:     actor,
			Reason:        reason,
			At:            now,
		})
	})
	if err != nil {
		return Transaction{}, err
	}
	return e.store.Get(ctx, kind, id)
}

// Get loads a transaction with items and history.
func (e *Engine) Get(ctx context.Context, kind Kind, id uuid.UUID) (Transaction, error) {
	return e.store.Get(ctx, kind, id)
}

// List returns transactions of one kind, newest first.
func (e *Engine) List(ctx context.Context, kind Kind, filter ListFilter) ([]Transaction, error) {
	return e.store.List(ctx, kind, filter)
}
