package sales

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/audit"
	"github.com/apotek-erp/apotek-erp/internal/stock"
)

// MasterdataPort validates product references.
type MasterdataPort interface {
	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// AuditPort records audit events, best-effort.
type AuditPort interface {
	Record(ctx context.Context, log audit.Log) error
}

// SequencerPort allocates date-scoped sale numbers.
type SequencerPort interface {
	NextDated(ctx context.Context, typePrefix string, day time.Time) (string, error)
}

// IdempotencyPort deduplicates retried submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service records point-of-sale transactions.
type Service struct {
	repo        RepositoryPort
	masterdata  MasterdataPort
	seq         SequencerPort
	audit       AuditPort
	idempotency IdempotencyPort
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService constructs the sales service. idempotency may be nil when
// deduplication is not wanted.
func NewService(repo RepositoryPort, masterdata MasterdataPort, seq SequencerPort, auditor AuditPort, idempotency IdempotencyPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		masterdata:  masterdata,
		seq:         seq,
		audit:       auditor,
		idempotency: idempotency,
		logger:      logger,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Used by tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// Create records a sale. Stock is taken from non-expired batches soonest
// expiry first; the decrement, the ledger entries and the sale rows commit in
// one transaction, so a shortfall on any line leaves nothing behind.
func (s *Service) Create(ctx context.Context, actorID uuid.UUID, input CreateInput) (Sale, error) {
	if len(input.Items) == 0 || actorID == uuid.Nil || input.Discount < 0 {
		return Sale{}, ErrValidation
	}

	var totalAmount float64
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil || line.Quantity <= 0 || line.UnitPrice < 0 {
			return Sale{}, ErrValidation
		}
		ok, err := s.masterdata.ProductExists(ctx, line.ProductID)
		if err != nil {
			return Sale{}, err
		}
		if !ok {
			return Sale{}, ErrUnknownProduct
		}
		totalAmount += float64(line.Quantity) * line.UnitPrice
	}
	finalAmount := totalAmount - input.Discount
	if finalAmount < 0 {
		return Sale{}, ErrValidation
	}

	var paid float64
	for _, p := range input.Payments {
		if p.Method == "" || p.Amount <= 0 {
			return Sale{}, ErrValidation
		}
		paid += p.Amount
	}
	if paid < finalAmount {
		return Sale{}, ErrInsufficientPayment
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "sales"); err != nil {
			return Sale{}, err
		}
	}

	now := s.clock()
	saleNumber, err := s.seq.NextDated(ctx, ReferencePrefix, now)
	if err != nil {
		s.releaseKey(ctx, input.IdempotencyKey)
		return Sale{}, err
	}

	sale := Sale{
		ID:          uuid.New(),
		SaleNumber:  saleNumber,
		TotalAmount: totalAmount,
		Discount:    input.Discount,
		FinalAmount: finalAmount,
		Notes:       input.Notes,
		CreatedBy:   actorID,
		CreatedAt:   now,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		st := tx.Stock()
		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		for _, line := range input.Items {
			batches, err := st.ListEligibleForUpdate(ctx, line.ProductID, now)
			if err != nil {
				return err
			}
			allocation, err := stock.Allocate(batches, line.Quantity, now)
			if err != nil {
				return err
			}
			for _, alloc := range allocation {
				if err := st.AddQuantity(ctx, alloc.BatchID, -alloc.Quantity); err != nil {
					return err
				}
				item := Item{
					ID:        uuid.New(),
					SaleID:    sale.ID,
					ProductID: line.ProductID,
					BatchID:   alloc.BatchID,
					Quantity:  alloc.Quantity,
					UnitPrice: line.UnitPrice,
					Subtotal:  float64(alloc.Quantity) * line.UnitPrice,
				}
				if err := tx.InsertItem(ctx, item); err != nil {
					return err
				}
				sale.Items = append(sale.Items, item)
				movement := stock.Movement{
					BatchID:       alloc.BatchID,
					Type:          stock.MovementSale,
					Quantity:      -alloc.Quantity,
					ReferenceType: "Sale",
					ReferenceID:   sale.ID,
					PerformedBy:   actorID,
				}
				if err := st.InsertMovement(ctx, movement); err != nil {
					return err
				}
			}
		}
		for _, p := range input.Payments {
			payment := Payment{
				ID:        uuid.New(),
				SaleID:    sale.ID,
				Method:    p.Method,
				Amount:    p.Amount,
				Reference: p.Reference,
			}
			if err := tx.InsertPayment(ctx, payment); err != nil {
				return err
			}
			sale.Payments = append(sale.Payments, payment)
		}
		return nil
	})
	if err != nil {
		s.releaseKey(ctx, input.IdempotencyKey)
		return Sale{}, err
	}

	s.recordAudit(ctx, actorID, "sale.create", sale.ID, map[string]any{"sale_number": sale.SaleNumber, "final_amount": sale.FinalAmount})
	return sale, nil
}

// Get loads a sale with items and payments.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	return s.repo.Get(ctx, id)
}

// GetByNumber loads a sale by its number, e.g. from a printed receipt.
func (s *Service) GetByNumber(ctx context.Context, saleNumber string) (Sale, error) {
	return s.repo.GetByNumber(ctx, saleNumber)
}

// List returns sales in a created-at range, newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	return s.repo.List(ctx, filter)
}

// releaseKey frees an idempotency key after a failed attempt so the client
// can retry with the same key.
func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, actorID uuid.UUID, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, audit.Log{ActorID: actorID, Action: action, EntityType: "Sale", EntityID: entityID.String(), New: meta}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}
