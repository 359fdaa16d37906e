package stock

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	_ "github.com/apotek-erp/apotek-erp/testing"
)

func day(offset int) time.Time {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func batch(qty int64, expiry time.Time, price float64) Batch {
	return Batch{ID: uuid.New(), ProductID: uuid.New(), Quantity: qty, ExpiryDate: expiry, PurchasePrice: price}
}

func TestAllocateSoonestExpiryFirst(t *testing.T) {
	now := day(0)
	late := batch(10, day(90), 100)
	early := batch(10, day(30), 120)

	lines, err := Allocate([]Batch{late, early}, 5, now)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, early.ID, lines[0].BatchID)
	require.EqualValues(t, 5, lines[0].Quantity)
	require.Equal(t, 120.0, lines[0].UnitCost)
}

func TestAllocateSpansBatches(t *testing.T) {
	now := day(0)
	first := batch(5, day(10), 80)
	second := batch(10, day(40), 90)

	lines, err := Allocate([]Batch{second, first}, 8, now)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, first.ID, lines[0].BatchID)
	require.EqualValues(t, 5, lines[0].Quantity)
	require.Equal(t, second.ID, lines[1].BatchID)
	require.EqualValues(t, 3, lines[1].Quantity)
}

func TestAllocateSkipsExpiredAndEmpty(t *testing.T) {
	now := day(0)
	expired := batch(50, day(-1), 70)
	atBoundary := batch(50, now, 70)
	empty := batch(0, day(60), 70)
	good := batch(4, day(60), 70)

	lines, err := Allocate([]Batch{expired, atBoundary, empty, good}, 4, now)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, good.ID, lines[0].BatchID)

	_, err = Allocate([]Batch{expired, atBoundary, empty, good}, 5, now)
	require.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAllocateInsufficientProducesNoLines(t *testing.T) {
	now := day(0)
	lines, err := Allocate([]Batch{batch(2, day(30), 10), batch(2, day(60), 10)}, 10, now)
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Nil(t, lines)
}

func TestAllocateRejectsNonPositiveQuantity(t *testing.T) {
	now := day(0)
	_, err := Allocate([]Batch{batch(5, day(30), 10)}, 0, now)
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = Allocate([]Batch{batch(5, day(30), 10)}, -3, now)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestAllocateTiesKeepInputOrder(t *testing.T) {
	now := day(0)
	expiry := day(45)
	a := batch(3, expiry, 10)
	b := batch(3, expiry, 10)

	lines, err := Allocate([]Batch{a, b}, 4, now)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, a.ID, lines[0].BatchID)
	require.EqualValues(t, 3, lines[0].Quantity)
	require.Equal(t, b.ID, lines[1].BatchID)
	require.EqualValues(t, 1, lines[1].Quantity)
}
