package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/apotek-erp/apotek-erp/internal/shared"
	_ "github.com/apotek-erp/apotek-erp/testing"
)

func TestConflictMappedTranslatesRaceCodes(t *testing.T) {
	cases := map[string]string{
		"unique violation":      "23505",
		"serialization failure": "40001",
		"deadlock detected":     "40P01",
	}
	for name, code := range cases {
		err := conflictMapped(&pgconn.PgError{Code: code, Message: name})
		require.ErrorIs(t, err, shared.ErrConflict, name)
		require.Contains(t, err.Error(), name)
	}
}

func TestConflictMappedSeesWrappedErrors(t *testing.T) {
	inner := &pgconn.PgError{Code: "23505", Message: "duplicate key"}
	err := conflictMapped(fmt.Errorf("insert batch: %w", inner))
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestConflictMappedPassesOtherErrorsThrough(t *testing.T) {
	require.NoError(t, conflictMapped(nil))

	undefined := &pgconn.PgError{Code: "42703", Message: "column does not exist"}
	require.Equal(t, error(undefined), conflictMapped(undefined))

	plain := errors.New("connection reset")
	require.Equal(t, plain, conflictMapped(plain))
}
