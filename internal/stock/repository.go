package stock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apotek-erp/apotek-erp/internal/platform/db"
)

// Repository persists batches and stock movements in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxStore exposes the transactional operations callers compose into their own
// atomic units. Every quantity mutation goes through AddQuantity so the
// read-decide-write window never leaves the database.
type TxStore interface {
	GetBatchForUpdate(ctx context.Context, id uuid.UUID) (Batch, error)
	FindBatchForUpdate(ctx context.Context, productID uuid.UUID, batchNumber string) (Batch, error)
	InsertBatch(ctx context.Context, batch Batch) (uuid.UUID, error)
	AddQuantity(ctx context.Context, batchID uuid.UUID, delta int64) error
	ListEligibleForUpdate(ctx context.Context, productID uuid.UUID, now time.Time) ([]Batch, error)
	InsertMovement(ctx context.Context, movement Movement) error
}

type txStore struct {
	tx pgx.Tx
}

// TxFrom wraps an open pgx transaction so other modules can apply stock
// effects inside their own transaction boundary.
func TxFrom(tx pgx.Tx) TxStore {
	return &txStore{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

const batchColumns = `id, product_id, batch_number, expiry_date, purchase_price, quantity, created_at, updated_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.PurchasePrice, &b.Quantity, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, ErrBatchNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

// GetBatch loads a batch by id.
func (r *Repository) GetBatch(ctx context.Context, id uuid.UUID) (Batch, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1`, id)
	return scanBatch(row)
}

// ListByProduct returns all batches for a product ordered by expiry.
func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches WHERE product_id=$1 ORDER BY expiry_date ASC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// ListEligible returns the allocation candidates for a product: quantity above
// zero and expiry after now, soonest expiry first.
func (r *Repository) ListEligible(ctx context.Context, productID uuid.UUID, now time.Time) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches
WHERE product_id=$1 AND quantity > 0 AND expiry_date > $2 ORDER BY expiry_date ASC`, productID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// ExpiringSoon lists batches with remaining stock expiring inside the window.
func (r *Repository) ExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches
WHERE quantity > 0 AND expiry_date > $1 AND expiry_date <= $2 ORDER BY expiry_date ASC`, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// Expired lists batches that still hold stock past their expiry date.
func (r *Repository) Expired(ctx context.Context, now time.Time) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches
WHERE quantity > 0 AND expiry_date <= $1 ORDER BY expiry_date ASC`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

// ListMovements returns the ledger for one batch, oldest first.
func (r *Repository) ListMovements(ctx context.Context, batchID uuid.UUID) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, batch_id, type, quantity, reference_type, reference_id, performed_by, created_at
FROM stock_movements WHERE batch_id=$1 ORDER BY created_at ASC, id ASC`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var movements []Movement
	for rows.Next() {
		var m Movement
		var mtype string
		if err := rows.Scan(&m.ID, &m.BatchID, &mtype, &m.Quantity, &m.ReferenceType, &m.ReferenceID, &m.PerformedBy, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(mtype)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// Reconcile compares the batch quantity against the movement sum. Batches are
// born empty, so a balanced ledger sums exactly to the live quantity.
func (r *Repository) Reconcile(ctx context.Context, batchID uuid.UUID) (Reconciliation, error) {
	var rec Reconciliation
	err := r.pool.QueryRow(ctx, `SELECT b.id, b.quantity, COALESCE(SUM(m.quantity), 0)
FROM batches b LEFT JOIN stock_movements m ON m.batch_id = b.id
WHERE b.id=$1 GROUP BY b.id, b.quantity`, batchID).Scan(&rec.BatchID, &rec.Quantity, &rec.MovementSum)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Reconciliation{}, ErrBatchNotFound
		}
		return Reconciliation{}, err
	}
	rec.Balanced = rec.Quantity == rec.MovementSum
	return rec, nil
}

func collectBatches(rows pgx.Rows) ([]Batch, error) {
	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.PurchasePrice, &b.Quantity, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *txStore) GetBatchForUpdate(ctx context.Context, id uuid.UUID) (Batch, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1 FOR UPDATE`, id)
	return scanBatch(row)
}

func (s *txStore) FindBatchForUpdate(ctx context.Context, productID uuid.UUID, batchNumber string) (Batch, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches
WHERE product_id=$1 AND batch_number=$2 FOR UPDATE`, productID, batchNumber)
	return scanBatch(row)
}

func (s *txStore) InsertBatch(ctx context.Context, batch Batch) (uuid.UUID, error) {
	id := batch.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO batches (id, product_id, batch_number, expiry_date, purchase_price, quantity, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`, id, batch.ProductID, batch.BatchNumber, batch.ExpiryDate, batch.PurchasePrice, batch.Quantity)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// AddQuantity applies a signed delta guarded in SQL, so concurrent writers
// serialize on the batch row and the quantity can never drop below zero.
func (s *txStore) AddQuantity(ctx context.Context, batchID uuid.UUID, delta int64) error {
	tag, err := s.tx.Exec(ctx, `UPDATE batches SET quantity = quantity + $2, updated_at = NOW()
WHERE id=$1 AND quantity + $2 >= 0`, batchID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.tx.QueryRow(ctx, `SELECT true FROM batches WHERE id=$1`, batchID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrBatchNotFound
			}
			return err
		}
		return ErrInsufficientStock
	}
	return nil
}

func (s *txStore) ListEligibleForUpdate(ctx context.Context, productID uuid.UUID, now time.Time) ([]Batch, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+batchColumns+` FROM batches
WHERE product_id=$1 AND quantity > 0 AND expiry_date > $2 ORDER BY expiry_date ASC FOR UPDATE`, productID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBatches(rows)
}

func (s *txStore) InsertMovement(ctx context.Context, movement Movement) error {
	id := movement.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO stock_movements (id, batch_id, type, quantity, reference_type, reference_id, performed_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`, id, movement.BatchID, string(movement.Type), movement.Quantity, movement.ReferenceType, movement.ReferenceID, movement.PerformedBy)
	return err
}
