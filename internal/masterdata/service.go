package masterdata

import (
	"context"

	"github.com/google/uuid"
)

// Service exposes read operations over products and suppliers.
type Service struct {
	repo *Repository
}

// NewService constructs the masterdata service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) GetProductByBarcode(ctx context.Context, barcode string) (Product, error) {
	return s.repo.GetProductByBarcode(ctx, barcode)
}

func (s *Service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	return s.repo.ListProducts(ctx, filters)
}

func (s *Service) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

func (s *Service) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx)
}

func (s *Service) ListLowStock(ctx context.Context) ([]LowStockProduct, error) {
	return s.repo.ListLowStock(ctx)
}
