package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	GetBatch(ctx context.Context, id uuid.UUID) (Batch, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]Batch, error)
	ListEligible(ctx context.Context, productID uuid.UUID, now time.Time) ([]Batch, error)
	ExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]Batch, error)
	Expired(ctx context.Context, now time.Time) ([]Batch, error)
	ListMovements(ctx context.Context, batchID uuid.UUID) ([]Movement, error)
	Reconcile(ctx context.Context, batchID uuid.UUID) (Reconciliation, error)
}

// Service exposes read-side batch operations and allocation planning. All
// mutations happen through TxStore inside the owning transaction's boundary.
type Service struct {
	repo  RepositoryPort
	clock func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, clock: func() time.Time { return time.Now().UTC() }}
}

// Allocate plans how a requested quantity would be drawn from eligible
// batches. The plan is computed over a snapshot; callers that intend to commit
// it must re-run the allocation against locked rows in their own transaction.
func (s *Service) Allocate(ctx context.Context, productID uuid.UUID, requested int64) ([]AllocationLine, error) {
	now := s.clock()
	batches, err := s.repo.ListEligible(ctx, productID, now)
	if err != nil {
		return nil, err
	}
	return Allocate(batches, requested, now)
}

// GetBatch loads one batch.
func (s *Service) GetBatch(ctx context.Context, id uuid.UUID) (Batch, error) {
	return s.repo.GetBatch(ctx, id)
}

// ListByProduct lists all batches of a product.
func (s *Service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]Batch, error) {
	return s.repo.ListByProduct(ctx, productID)
}

// ExpiringSoon lists stocked batches expiring within the window.
func (s *Service) ExpiringSoon(ctx context.Context, window time.Duration) ([]Batch, error) {
	return s.repo.ExpiringSoon(ctx, s.clock(), window)
}

// Expired lists stocked batches already past expiry.
func (s *Service) Expired(ctx context.Context) ([]Batch, error) {
	return s.repo.Expired(ctx, s.clock())
}

// Movements returns the ledger for a batch.
func (s *Service) Movements(ctx context.Context, batchID uuid.UUID) ([]Movement, error) {
	return s.repo.ListMovements(ctx, batchID)
}

// Reconcile checks the conservation invariant for a batch.
func (s *Service) Reconcile(ctx context.Context, batchID uuid.UUID) (Reconciliation, error) {
	return s.repo.Reconcile(ctx, batchID)
}
