package masterdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads products and suppliers from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const productColumns = `id, name, barcode, unit, selling_price, reorder_level, is_active, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Name, &p.Barcode, &p.Unit, &p.SellingPrice, &p.ReorderLevel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

// GetProduct loads a product by id.
func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id))
}

// GetProductByBarcode loads a product by barcode, for point-of-sale scanning.
func (r *Repository) GetProductByBarcode(ctx context.Context, barcode string) (Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE barcode=$1`, barcode))
}

// ListProducts returns products matching the filters, name ascending.
func (r *Repository) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products`
	var (
		conds []string
		args  []any
	)
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		conds = append(conds, fmt.Sprintf("(name ILIKE $%d OR barcode ILIKE $%d)", len(args), len(args)))
	}
	if filters.IsActive != nil {
		args = append(args, *filters.IsActive)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	limit := filters.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY name ASC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Barcode, &p.Unit, &p.SellingPrice, &p.ReorderLevel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ProductExists reports whether an active product with the id exists.
func (r *Repository) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id=$1 AND is_active)`, id).Scan(&exists)
	return exists, err
}

// SupplierExists reports whether an active supplier with the id exists.
func (r *Repository) SupplierExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM suppliers WHERE id=$1 AND is_active)`, id).Scan(&exists)
	return exists, err
}

// GetSupplier loads a supplier by id.
func (r *Repository) GetSupplier(ctx context.Context, id uuid.UUID) (Supplier, error) {
	var s Supplier
	err := r.pool.QueryRow(ctx, `SELECT id, name, phone, email, address, is_active, created_at, updated_at
FROM suppliers WHERE id=$1`, id).Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Supplier{}, ErrNotFound
		}
		return Supplier{}, err
	}
	return s, nil
}

// ListSuppliers returns all suppliers, name ascending.
func (r *Repository) ListSuppliers(ctx context.Context) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, email, address, is_active, created_at, updated_at
FROM suppliers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var suppliers []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Name, &s.Phone, &s.Email, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, rows.Err()
}

// ListLowStock returns active products whose summed batch quantity is at or
// below their reorder level. Products with no batches count as zero on hand.
func (r *Repository) ListLowStock(ctx context.Context) ([]LowStockProduct, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+prefixed("p", productColumns)+`, COALESCE(SUM(b.quantity), 0) AS on_hand
FROM products p
LEFT JOIN batches b ON b.product_id = p.id
WHERE p.is_active
GROUP BY p.id
HAVING COALESCE(SUM(b.quantity), 0) <= p.reorder_level
ORDER BY on_hand ASC, p.name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LowStockProduct
	for rows.Next() {
		var item LowStockProduct
		p := &item.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Barcode, &p.Unit, &p.SellingPrice, &p.ReorderLevel, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &item.OnHand); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}
