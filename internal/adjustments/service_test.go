package adjustments_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/apotek-erp/apotek-erp/internal/adjustments"
	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/internal/stock/stocktest"
	"github.com/apotek-erp/apotek-erp/internal/workflow"
	"github.com/apotek-erp/apotek-erp/internal/workflow/workflowtest"
	_ "github.com/apotek-erp/apotek-erp/testing"
)

type stockReader struct{ m *stocktest.Memory }

func (r stockReader) GetBatch(ctx context.Context, id uuid.UUID) (stock.Batch, error) {
	return r.m.GetBatchForUpdate(ctx, id)
}

type fakeSequencer struct{ n int }

func (f *fakeSequencer) Next(_ context.Context, prefix string) (string, error) {
	f.n++
	return fmt.Sprintf("%s-%06d", prefix, f.n), nil
}

type fixture struct {
	svc   *adjustments.Service
	store *workflowtest.MemoryStore
	batch uuid.UUID
	actor uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: workflowtest.NewMemoryStore(stocktest.NewMemory()),
		actor: uuid.New(),
	}
	f.batch = f.store.Stock.Seed(stock.Batch{
		ProductID:   uuid.New(),
		BatchNumber: "B-300",
		Quantity:    10,
		ExpiryDate:  time.Now().Add(120 * 24 * time.Hour),
	})
	f.svc = adjustments.NewService(workflow.NewEngine(f.store, nil), stockReader{f.store.Stock}, &fakeSequencer{}, nil, nil)
	return f
}

func (f *fixture) create(t *testing.T, delta int64) workflow.Transaction {
	t.Helper()
	created, err := f.svc.Create(context.Background(), f.actor, adjustments.CreateInput{
		Reason: "cycle count",
		Items:  []adjustments.ItemInput{{BatchID: f.batch, QuantityChange: delta}},
	})
	require.NoError(t, err)
	return created
}

func (f *fixture) approve(t *testing.T, id uuid.UUID) workflow.Transaction {
	t.Helper()
	_, err := f.svc.Submit(context.Background(), id, f.actor)
	require.NoError(t, err)
	approved, err := f.svc.Approve(context.Background(), id, f.actor)
	require.NoError(t, err)
	return approved
}

func TestCreateRejectsZeroDelta(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.actor, adjustments.CreateInput{
		Reason: "cycle count",
		Items:  []adjustments.ItemInput{{BatchID: f.batch, QuantityChange: 0}},
	})
	require.ErrorIs(t, err, adjustments.ErrValidation)
}

func TestCreateRejectsDeltaBelowStock(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.actor, adjustments.CreateInput{
		Reason: "cycle count",
		Items:  []adjustments.ItemInput{{BatchID: f.batch, QuantityChange: -11}},
	})
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
}

func TestApprovePositiveDelta(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, 3)
	approved := f.approve(t, created.ID)

	require.Equal(t, workflow.StatusApproved, approved.Status)
	require.EqualValues(t, 13, f.store.Stock.Batches[f.batch].Quantity)
	require.Len(t, f.store.Stock.Movements, 1)
	mv := f.store.Stock.Movements[0]
	require.Equal(t, stock.MovementAdjustment, mv.Type)
	require.EqualValues(t, 3, mv.Quantity)
	require.Equal(t, "StockAdjustment", mv.ReferenceType)
}

func TestApproveNegativeDelta(t *testing.T) {
	f := newFixture(t)
	created := f.create(t, -4)
	f.approve(t, created.ID)

	require.EqualValues(t, 6, f.store.Stock.Batches[f.batch].Quantity)
	require.EqualValues(t, -4, f.store.Stock.MovementSum(f.batch))
}

func TestApproveAbortsWhenStockDrifted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.create(t, -8)
	_, err := f.svc.Submit(ctx, created.ID, f.actor)
	require.NoError(t, err)

	// The batch shrank between submit and approval; -8 no longer fits.
	require.NoError(t, f.store.Stock.AddQuantity(ctx, f.batch, -5))

	_, err = f.svc.Approve(ctx, created.ID, f.actor)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	current, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingApproval, current.Status)
	require.EqualValues(t, 5, f.store.Stock.Batches[f.batch].Quantity)
	require.Empty(t, f.store.Stock.Movements)
}

func TestAdjustmentReferenceNumbering(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, 1)
	second := f.create(t, 2)
	require.Equal(t, "ADJ-000001", first.ReferenceNo)
	require.Equal(t, "ADJ-000002", second.ReferenceNo)
}
