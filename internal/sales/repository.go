package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apotek-erp/apotek-erp/internal/platform/db"
	"github.com/apotek-erp/apotek-erp/internal/stock"
)

// RepositoryPort abstracts persistence for the sales service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id uuid.UUID) (Sale, error)
	GetByNumber(ctx context.Context, saleNumber string) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, error)
}

// TxRepository exposes the writes that make up one sale. Stock gives access
// to batch mutations inside the same transaction, so allocation, decrement
// and the sale record commit or roll back together.
type TxRepository interface {
	InsertSale(ctx context.Context, sale Sale) error
	InsertItem(ctx context.Context, item Item) error
	InsertPayment(ctx context.Context, payment Payment) error
	Stock() stock.TxStore
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const saleColumns = `id, sale_number, total_amount, discount, final_amount, notes, created_by, created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.SaleNumber, &s.TotalAmount, &s.Discount, &s.FinalAmount, &s.Notes, &s.CreatedBy, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrNotFound
		}
		return Sale{}, err
	}
	return s, nil
}

// Get loads a sale with its items and payments.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id=$1`, id))
	if err != nil {
		return Sale{}, err
	}
	return r.hydrate(ctx, sale)
}

// GetByNumber loads a sale by its human-readable number.
func (r *Repository) GetByNumber(ctx context.Context, saleNumber string) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE sale_number=$1`, saleNumber))
	if err != nil {
		return Sale{}, err
	}
	return r.hydrate(ctx, sale)
}

// List returns sales inside the created-at range, newest first. Items and
// payments are not loaded for listings.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales`
	var (
		conds []string
		args  []any
	)
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		var s Sale
		if err := rows.Scan(&s.ID, &s.SaleNumber, &s.TotalAmount, &s.Discount, &s.FinalAmount, &s.Notes, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

func (r *Repository) hydrate(ctx context.Context, sale Sale) (Sale, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, sale_id, product_id, batch_id, quantity, unit_price, subtotal
FROM sale_items WHERE sale_id=$1 ORDER BY id`, sale.ID)
	if err != nil {
		return Sale{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.BatchID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return Sale{}, err
		}
		sale.Items = append(sale.Items, it)
	}
	if err := rows.Err(); err != nil {
		return Sale{}, err
	}

	payRows, err := r.pool.Query(ctx, `SELECT id, sale_id, method, amount, reference
FROM sale_payments WHERE sale_id=$1 ORDER BY id`, sale.ID)
	if err != nil {
		return Sale{}, err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p Payment
		if err := payRows.Scan(&p.ID, &p.SaleID, &p.Method, &p.Amount, &p.Reference); err != nil {
			return Sale{}, err
		}
		sale.Payments = append(sale.Payments, p)
	}
	return sale, payRows.Err()
}

func (t *txRepository) InsertSale(ctx context.Context, sale Sale) error {
	createdAt := any(sale.CreatedAt)
	if sale.CreatedAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO sales (id, sale_number, total_amount, discount, final_amount, notes, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sale.ID, sale.SaleNumber, sale.TotalAmount, sale.Discount, sale.FinalAmount, sale.Notes, sale.CreatedBy, createdAt)
	return err
}

func (t *txRepository) InsertItem(ctx context.Context, item Item) error {
	id := item.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO sale_items (id, sale_id, product_id, batch_id, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, item.SaleID, item.ProductID, item.BatchID, item.Quantity, item.UnitPrice, item.Subtotal)
	return err
}

func (t *txRepository) InsertPayment(ctx context.Context, payment Payment) error {
	id := payment.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := t.tx.Exec(ctx, `INSERT INTO sale_payments (id, sale_id, method, amount, reference)
VALUES ($1, $2, $3, $4, $5)`,
		id, payment.SaleID, payment.Method, payment.Amount, payment.Reference)
	return err
}

func (t *txRepository) Stock() stock.TxStore {
	return stock.TxFrom(t.tx)
}
