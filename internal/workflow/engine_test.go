package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/internal/stock/stocktest"
	"github.com/apotek-erp/apotek-erp/internal/workflow"
	"github.com/apotek-erp/apotek-erp/internal/workflow/workflowtest"
	_ "github.com/apotek-erp/apotek-erp/testing"
)

func newEngine(t *testing.T) (*workflow.Engine, *workflowtest.MemoryStore) {
	t.Helper()
	store := workflowtest.NewMemoryStore(stocktest.NewMemory())
	return workflow.NewEngine(store, nil), store
}

func draft(t *testing.T, e *workflow.Engine, kind workflow.Kind) workflow.Transaction {
	t.Helper()
	created, err := e.Create(context.Background(), workflow.Transaction{
		Kind:        kind,
		ReferenceNo: "ADJ-000001",
		CreatedBy:   uuid.New(),
	}, []workflow.Item{{BatchID: uuid.New(), QuantityChange: 5}})
	require.NoError(t, err)
	return created
}

func TestCreateStartsInDraftWithHistory(t *testing.T) {
	e, _ := newEngine(t)
	created := draft(t, e, workflow.KindAdjustment)

	require.Equal(t, workflow.StatusDraft, created.Status)
	require.Len(t, created.Items, 1)
	require.Len(t, created.History, 1)
	require.Equal(t, workflow.StatusDraft, created.History[0].Status)
}

func TestCreateRequiresItems(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.Create(context.Background(), workflow.Transaction{Kind: workflow.KindDisposal}, nil)
	require.ErrorIs(t, err, workflow.ErrValidation)
}

func TestLifecycleTransitions(t *testing.T) {
	e, _ := newEngine(t)
	actor := uuid.New()
	created := draft(t, e, workflow.KindAdjustment)
	ctx := context.Background()

	// Approving a draft skips a state and must fail.
	_, err := e.Approve(ctx, workflow.KindAdjustment, created.ID, actor, nil)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	submitted, err := e.Submit(ctx, workflow.KindAdjustment, created.ID, actor)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingApproval, submitted.Status)

	// Re-submitting is not a legal transition.
	_, err = e.Submit(ctx, workflow.KindAdjustment, created.ID, actor)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	approved, err := e.Approve(ctx, workflow.KindAdjustment, created.ID, actor, nil)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, approved.Status)
	require.Equal(t, actor, approved.ApprovedBy)
	require.False(t, approved.ApprovedAt.IsZero())
	require.Len(t, approved.History, 3)

	// Terminal states accept nothing further.
	_, err = e.Approve(ctx, workflow.KindAdjustment, created.ID, actor, nil)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	_, err = e.Reject(ctx, workflow.KindAdjustment, created.ID, actor, "nope")
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
}

func TestRejectRecordsReason(t *testing.T) {
	e, _ := newEngine(t)
	actor := uuid.New()
	created := draft(t, e, workflow.KindAdjustment)
	ctx := context.Background()

	_, err := e.Submit(ctx, workflow.KindAdjustment, created.ID, actor)
	require.NoError(t, err)

	rejected, err := e.Reject(ctx, workflow.KindAdjustment, created.ID, actor, "count disputed")
	require.NoError(t, err)
	require.Equal(t, workflow.StatusRejected, rejected.Status)
	require.Equal(t, "count disputed", rejected.RejectionReason)
	require.False(t, rejected.RejectedAt.IsZero())
}

func TestKindsDoNotCollide(t *testing.T) {
	e, _ := newEngine(t)
	created := draft(t, e, workflow.KindAdjustment)

	_, err := e.Get(context.Background(), workflow.KindPurchase, created.ID)
	require.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestApproveAppliesStockEffectAtomically(t *testing.T) {
	e, store := newEngine(t)
	actor := uuid.New()
	ctx := context.Background()

	batchID := store.Stock.Seed(stock.Batch{
		ProductID:  uuid.New(),
		Quantity:   10,
		ExpiryDate: time.Now().Add(90 * 24 * time.Hour),
	})
	created := draft(t, e, workflow.KindAdjustment)

	_, err := e.Submit(ctx, workflow.KindAdjustment, created.ID, actor)
	require.NoError(t, err)

	approved, err := e.Approve(ctx, workflow.KindAdjustment, created.ID, actor, func(ctx context.Context, items []workflow.Item, st stock.TxStore) error {
		require.Len(t, items, 1)
		if err := st.AddQuantity(ctx, batchID, -4); err != nil {
			return err
		}
		return st.InsertMovement(ctx, stock.Movement{
			BatchID:     batchID,
			Type:        stock.MovementAdjustment,
			Quantity:    -4,
			PerformedBy: actor,
		})
	})
	require.NoError(t, err)
	require.Equal(t, workflow.StatusApproved, approved.Status)
	require.EqualValues(t, 6, store.Stock.Batches[batchID].Quantity)
	require.EqualValues(t, -4, store.Stock.MovementSum(batchID))
}

func TestApplyFailureLeavesEverythingUntouched(t *testing.T) {
	e, store := newEngine(t)
	actor := uuid.New()
	ctx := context.Background()

	batchID := store.Stock.Seed(stock.Batch{
		ProductID:  uuid.New(),
		Quantity:   3,
		ExpiryDate: time.Now().Add(90 * 24 * time.Hour),
	})
	created := draft(t, e, workflow.KindAdjustment)
	_, err := e.Submit(ctx, workflow.KindAdjustment, created.ID, actor)
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = e.Approve(ctx, workflow.KindAdjustment, created.ID, actor, func(ctx context.Context, _ []workflow.Item, st stock.TxStore) error {
		// First mutation succeeds, then the effect fails. Nothing may stick.
		require.NoError(t, st.AddQuantity(ctx, batchID, -2))
		return boom
	})
	require.ErrorIs(t, err, boom)

	current, err := e.Get(ctx, workflow.KindAdjustment, created.ID)
	require.NoError(t, err)
	require.Equal(t, workflow.StatusPendingApproval, current.Status)
	require.EqualValues(t, 3, store.Stock.Batches[batchID].Quantity)
	require.Empty(t, store.Stock.Movements)
}

func TestListFiltersByStatus(t *testing.T) {
	e, _ := newEngine(t)
	actor := uuid.New()
	ctx := context.Background()

	draft(t, e, workflow.KindAdjustment)
	second, err := e.Create(ctx, workflow.Transaction{
		Kind:        workflow.KindAdjustment,
		ReferenceNo: "ADJ-000002",
		CreatedBy:   actor,
	}, []workflow.Item{{BatchID: uuid.New(), QuantityChange: 1}})
	require.NoError(t, err)
	_, err = e.Submit(ctx, workflow.KindAdjustment, second.ID, actor)
	require.NoError(t, err)

	pending, err := e.List(ctx, workflow.KindAdjustment, workflow.ListFilter{Status: workflow.StatusPendingApproval})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, second.ID, pending[0].ID)

	all, err := e.List(ctx, workflow.KindAdjustment, workflow.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
}
