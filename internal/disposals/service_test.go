package disposals_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/apotek-erp/apotek-erp/internal/disposals"
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
	svc   *disposals.Service
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
		ProductID:     uuid.New(),
		BatchNumber:   "B-200",
		Quantity:      10,
		PurchasePrice: 4.0,
		ExpiryDate:    time.Now().Add(-24 * time.Hour),
	})
	f.svc = disposals.NewService(workflow.NewEngine(f.store, nil), stockReader{f.store.Stock}, &fakeSequencer{}, nil, nil)
	return f
}

func TestCreateSnapshotsWriteOffValue(t *testing.T) {
	f := newFixture(t)
	created, err := f.svc.Create(context.Background(), f.actor, disposals.CreateInput{
		Reason: "expired",
		Items:  []disposals.ItemInput{{BatchID: f.batch, Quantity: 6}},
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusDraft, created.Status)
	require.Equal(t, "DSP-000001", created.ReferenceNo)
	require.InDelta(t, 24.0, created.TotalAmount, 1e-9)
	require.Equal(t, "expired", created.Items[0].Reason)

	// Draft creation must not touch the batch.
	require.EqualValues(t, 10, f.store.Stock.Batches[f.batch].Quantity)
}

func TestCreateRejectsOverdrawnItem(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.actor, disposals.CreateInput{
		Reason: "expired",
		Items:  []disposals.ItemInput{{BatchID: f.batch, Quantity: 11}},
	})
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
}

func TestCreateRejectsUnknownBatch(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), f.actor, disposals.CreateInput{
		Reason: "expired",
		Items:  []disposals.ItemInput{{BatchID: uuid.New(), Quantity: 1}},
	})
	require.ErrorIs(t, err, stock.ErrBatchNotFound)
}

func TestApproveWritesOffStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.actor, disposals.CreateInput{
		Reason: "expired",
		Items:  []disposals.ItemInput{{BatchID: f.batch, Quantity: 6}},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, created.ID, f.actor)
	require.NoError(t, err)

	approved, err := f.svc.Approve(ctx, created.ID, f.actor)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, approved.Status)
	require.EqualValues(t, 4, f.store.Stock.Batches[f.batch].Quantity)

	require.Len(t, f.store.Stock.Movements, 1)
	mv := f.store.Stock.Movements[0]
	require.Equal(t, stock.MovementDisposal, mv.Type)
	require.EqualValues(t, -6, mv.Quantity)
	require.Equal(t, "Disposal", mv.ReferenceType)
	require.Equal(t, created.ID, mv.ReferenceID)
}

func TestApproveMultiItemAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	second := f.store.Stock.Seed(stock.Batch{
		ProductID:   uuid.New(),
		BatchNumber: "B-201",
		Quantity:    2,
		ExpiryDate:  time.Now().Add(-24 * time.Hour),
	})

	created, err := f.svc.Create(ctx, f.actor, disposals.CreateInput{
		Reason: "expired",
		Items: []disposals.ItemInput{
			{BatchID: f.batch, Quantity: 6},
			{BatchID: second, Quantity: 2},
		},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, created.ID, f.actor)
	require.NoError(t, err)

	// The second batch empties before approval; the first item must not apply
	// on its own.
	require.NoError(t, f.store.Stock.AddQuantity(ctx, second, -2))

	_, err = f.svc.Approve(ctx, created.ID, f.actor)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)
	require.EqualValues(t, 10, f.store.Stock.Batches[f.batch].Quantity)
	require.Empty(t, f.store.Stock.Movements)
}

func TestApproveAbortsWhenStockDrifted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.actor, disposals.CreateInput{
		Reason: "expired",
		Items:  []disposals.ItemInput{{BatchID: f.batch, Quantity: 6}},
	})
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, created.ID, f.actor)
	require.NoError(t, err)

	// Stock was sold down between submit and approval.
	require.NoError(t, f.store.Stock.AddQuantity(ctx, f.batch, -7))

	_, err = f.svc.Approve(ctx, created.ID, f.actor)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	current, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingApproval, current.Status)
	require.EqualValues(t, 3, f.store.Stock.Batches[f.batch].Quantity)
	require.Empty(t, f.store.Stock.Movements)
}
