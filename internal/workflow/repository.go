package workflow

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

// Repository persists workflow transactions in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txStore struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	if r == nil {
		return errors.New("workflow repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txStore{tx: tx})
	})
}

const txColumns = `id, kind, reference_no, status, supplier_id, reason, notes, total_amount,
created_by, approved_by, approved_at, rejected_at, rejection_reason, created_at`

type txRowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row txRowScanner) (Transaction, error) {
	var t Transaction
	var kind, status string
	var supplierID, approvedBy *uuid.UUID
	var approvedAt, rejectedAt *time.Time
	err := row.Scan(&t.ID, &kind, &t.ReferenceNo, &status, &supplierID, &t.Reason, &t.Notes, &t.TotalAmount,
		&t.CreatedBy, &approvedBy, &approvedAt, &rejectedAt, &t.RejectionReason, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrNotFound
		}
		return Transaction{}, err
	}
	t.Kind = Kind(kind)
	t.Status = Status(status)
	if supplierID != nil {
		t.SupplierID = *supplierID
	}
	if approvedBy != nil {
		t.ApprovedBy = *approvedBy
	}
	if approvedAt != nil {
		t.ApprovedAt = *approvedAt
	}
	if rejectedAt != nil {
		t.RejectedAt = *rejectedAt
	}
	return t, nil
}

// Get loads a transaction with items and status history.
func (r *Repository) Get(ctx context.Context, kind Kind, id uuid.UUID) (Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM workflow_transactions WHERE kind=$1 AND id=$2`, string(kind), id)
	t, err := scanTransaction(row)
	if err != nil {
		return Transaction{}, err
	}
	if t.Items, err = listItems(ctx, r.pool, id); err != nil {
		return Transaction{}, err
	}
	if t.History, err = listHistory(ctx, r.pool, id); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

// List returns transactions of a kind, newest first.
func (r *Repository) List(ctx context.Context, kind Kind, filter ListFilter) ([]Transaction, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + txColumns + ` FROM workflow_transactions WHERE kind=$1`
	args := []any{string(kind)}
	if filter.Status != "" {
		query += ` AND status=$2`
		args = append(args, string(filter.Status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *txStore) Insert(ctx context.Context, t Transaction) error {
	var supplierID *uuid.UUID
	if t.SupplierID != uuid.Nil {
		supplierID = &t.SupplierID
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO workflow_transactions
(id, kind, reference_no, status, supplier_id, reason, notes, total_amount, created_by, rejection_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, '', $10)`,
		t.ID, string(t.Kind), t.ReferenceNo, string(t.Status), supplierID, t.Reason, t.Notes, t.TotalAmount, t.CreatedBy, t.CreatedAt)
	return err
}

func (s *txStore) InsertItem(ctx context.Context, item Item) error {
	var batchID *uuid.UUID
	if item.BatchID != uuid.Nil {
		batchID = &item.BatchID
	}
	var expiry any
	if !item.ExpiryDate.IsZero() {
		expiry = item.ExpiryDate
	}
	_, err := s.tx.Exec(ctx, `INSERT INTO workflow_items
(id, transaction_id, product_id, batch_id, batch_number, expiry_date, quantity, quantity_change, unit_cost, total_cost, reason)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID, item.TransactionID, item.ProductID, batchID, item.BatchNumber, expiry,
		item.Quantity, item.QuantityChange, item.UnitCost, item.TotalCost, item.Reason)
	return err
}

func (s *txStore) GetForUpdate(ctx context.Context, kind Kind, id uuid.UUID) (Transaction, error) {
	row := s.tx.QueryRow(ctx, `SELECT `+txColumns+` FROM workflow_transactions WHERE kind=$1 AND id=$2 FOR UPDATE`, string(kind), id)
	return scanTransaction(row)
}

func (s *txStore) ListItems(ctx context.Context, txID uuid.UUID) ([]Item, error) {
	return listItems(ctx, s.tx, txID)
}

func (s *txStore) SetStatus(ctx context.Context, id uuid.UUID, update StatusUpdate) error {
	var approvedBy *uuid.UUID
	if update.ApprovedBy != uuid.Nil {
		approvedBy = &update.ApprovedBy
	}
	var approvedAt, rejectedAt any
	if !update.ApprovedAt.IsZero() {
		approvedAt = update.ApprovedAt
	}
	if !update.RejectedAt.IsZero() {
		rejectedAt = update.RejectedAt
	}
	_, err := s.tx.Exec(ctx, `UPDATE workflow_transactions
SET status=$2, approved_by=COALESCE($3, approved_by), approved_at=COALESCE($4, approved_at),
    rejected_at=COALESCE($5, rejected_at), rejection_reason=COALESCE(NULLIF($6, ''), rejection_reason)
WHERE id=$1`, id, string(update.Status), approvedBy, approvedAt, rejectedAt, update.RejectionReason)
	return err
}

func (s *txStore) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	_, err := s.tx.Exec(ctx, `INSERT INTO workflow_status_history (transaction_id, status, changed_by, reason, created_at)
VALUES ($1, $2, $3, $4, $5)`, entry.TransactionID, string(entry.Status), entry.ChangedBy, entry.Reason, entry.At)
	return err
}

func (s *txStore) Stock() stock.TxStore {
	return stock.TxFrom(s.tx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, txID uuid.UUID) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, transaction_id, product_id, batch_id, batch_number, expiry_date,
quantity, quantity_change, unit_cost, total_cost, reason
FROM workflow_items WHERE transaction_id=$1 ORDER BY id`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		var batchID *uuid.UUID
		var expiry *time.Time
		if err := rows.Scan(&it.ID, &it.TransactionID, &it.ProductID, &batchID, &it.BatchNumber, &expiry,
			&it.Quantity, &it.QuantityChange, &it.UnitCost, &it.TotalCost, &it.Reason); err != nil {
			return nil, err
		}
		if batchID != nil {
			it.BatchID = *batchID
		}
		if expiry != nil {
			it.ExpiryDate = *expiry
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func listHistory(ctx context.Context, q querier, txID uuid.UUID) ([]HistoryEntry, error) {
	rows, err := q.Query(ctx, `SELECT id, transaction_id, status, changed_by, reason, created_at
FROM workflow_status_history WHERE transaction_id=$1 ORDER BY id`, txID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var status string
		if err := rows.Scan(&h.ID, &h.TransactionID, &status, &h.ChangedBy, &h.Reason, &h.At); err != nil {
			return nil, err
		}
		h.Status = Status(status)
		history = append(history, h)
	}
	return history, rows.Err()
}
