package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apotek-erp/apotek-erp/internal/shared"
)

// WithTx runs fn inside a RepeatableRead transaction. The transaction is
// rolled back unless fn returns nil and the commit succeeds. Errors meaning
// the operation lost a race, a duplicate key or a serialization failure, come
// back as shared.ErrConflict so callers can retry or answer 409.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return conflictMapped(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return conflictMapped(fmt.Errorf("platform/db: commit tx: %w", err))
	}
	return nil
}

// 23505 unique_violation, 40001 serialization_failure, 40P01 deadlock_detected.
func conflictMapped(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "40001", "40P01":
			return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.Message)
		}
	}
	return err
}
