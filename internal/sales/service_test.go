package sales_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/apotek-erp/apotek-erp/internal/sales"
	"github.com/apotek-erp/apotek-erp/internal/shared"
	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/internal/stock/stocktest"
	_ "github.com/apotek-erp/apotek-erp/testing"
)

// memoryRepo implements sales.RepositoryPort over a stocktest.Memory. A
// failing transaction callback restores both the stock and the sale rows,
// mirroring the database rollback.
type memoryRepo struct {
	stock    *stocktest.Memory
	sales    map[uuid.UUID]sales.Sale
	items    []sales.Item
	payments []sales.Payment
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stock: stocktest.NewMemory(), sales: make(map[uuid.UUID]sales.Sale)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, sales.TxRepository) error) error {
	batches := make(map[uuid.UUID]stock.Batch, len(r.stock.Batches))
	for id, b := range r.stock.Batches {
		batches[id] = b
	}
	movements := append([]stock.Movement(nil), r.stock.Movements...)
	salesSnap := make(map[uuid.UUID]sales.Sale, len(r.sales))
	for id, s := range r.sales {
		salesSnap[id] = s
	}
	items, payments := len(r.items), len(r.payments)

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.stock.Batches = batches
		r.stock.Movements = movements
		r.sales = salesSnap
		r.items = r.items[:items]
		r.payments = r.payments[:payments]
		return err
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (sales.Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return sales.Sale{}, sales.ErrNotFound
	}
	return r.hydrate(s), nil
}

func (r *memoryRepo) GetByNumber(_ context.Context, saleNumber string) (sales.Sale, error) {
	for _, s := range r.sales {
		if s.SaleNumber == saleNumber {
			return r.hydrate(s), nil
		}
	}
	return sales.Sale{}, sales.ErrNotFound
}

func (r *memoryRepo) List(_ context.Context, filter sales.ListFilter) ([]sales.Sale, error) {
	out := make([]sales.Sale, 0, len(r.sales))
	for _, s := range r.sales {
		if !filter.From.IsZero() && s.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !s.CreatedAt.Before(filter.To) {
			continue
		}
		out = append(out, r.hydrate(s))
	}
	return out, nil
}

func (r *memoryRepo) hydrate(s sales.Sale) sales.Sale {
	for _, it := range r.items {
		if it.SaleID == s.ID {
			s.Items = append(s.Items, it)
		}
	}
	for _, p := range r.payments {
		if p.SaleID == s.ID {
			s.Payments = append(s.Payments, p)
		}
	}
	return s
}

type memoryTx struct{ repo *memoryRepo }

func (t *memoryTx) InsertSale(_ context.Context, sale sales.Sale) error {
	t.repo.sales[sale.ID] = sale
	return nil
}

func (t *memoryTx) InsertItem(_ context.Context, item sales.Item) error {
	t.repo.items = append(t.repo.items, item)
	return nil
}

func (t *memoryTx) InsertPayment(_ context.Context, payment sales.Payment) error {
	t.repo.payments = append(t.repo.payments, payment)
	return nil
}

func (t *memoryTx) Stock() stock.TxStore { return t.repo.stock }

type allProducts struct{}

func (allProducts) ProductExists(context.Context, uuid.UUID) (bool, error) { return true, nil }

type fakeDatedSequencer struct{ n int }

func (f *fakeDatedSequencer) NextDated(_ context.Context, prefix string, day time.Time) (string, error) {
	f.n++
	return fmt.Sprintf("%s-%s-%04d", prefix, day.Format("20060102"), f.n), nil
}

type fakeIdempotency struct{ seen map[string]bool }

func (f *fakeIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if f.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	f.seen[key] = true
	return nil
}

func (f *fakeIdempotency) Delete(_ context.Context, key string) error {
	delete(f.seen, key)
	return nil
}

type fixture struct {
	svc     *sales.Service
	repo    *memoryRepo
	keys    *fakeIdempotency
	product uuid.UUID
	actor   uuid.UUID
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    newMemoryRepo(),
		keys:    &fakeIdempotency{},
		product: uuid.New(),
		actor:   uuid.New(),
		now:     time.Date(2025, 1, 14, 10, 0, 0, 0, time.UTC),
	}
	f.svc = sales.NewService(f.repo, allProducts{}, &fakeDatedSequencer{}, nil, f.keys, nil).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) seed(qty int64, daysToExpiry int) uuid.UUID {
	return f.repo.stock.Seed(stock.Batch{
		ProductID:  f.product,
		Quantity:   qty,
		ExpiryDate: f.now.Add(time.Duration(daysToExpiry) * 24 * time.Hour),
	})
}

func cashInput(product uuid.UUID, qty int64, price, discount, paid float64) sales.CreateInput {
	return sales.CreateInput{
		Discount: discount,
		Items:    []sales.ItemInput{{ProductID: product, Quantity: qty, UnitPrice: price}},
		Payments: []sales.PaymentInput{{Method: "CASH", Amount: paid}},
	}
}

func TestCreateSellsFromSoonestExpiry(t *testing.T) {
	f := newFixture(t)
	late := f.seed(10, 300)
	early := f.seed(10, 30)

	sale, err := f.svc.Create(context.Background(), f.actor, cashInput(f.product, 4, 2.0, 0, 8.0))
	require.NoError(t, err)
	require.Equal(t, "S-20250114-0001", sale.SaleNumber)
	require.InDelta(t, 8.0, sale.FinalAmount, 1e-9)
	require.Len(t, sale.Items, 1)
	require.Equal(t, early, sale.Items[0].BatchID)
	require.EqualValues(t, 6, f.repo.stock.Batches[early].Quantity)
	require.EqualValues(t, 10, f.repo.stock.Batches[late].Quantity)
	require.EqualValues(t, -4, f.repo.stock.MovementSum(early))
	require.Equal(t, stock.MovementSale, f.repo.stock.Movements[0].Type)
}

func TestCreateSplitsAcrossBatches(t *testing.T) {
	f := newFixture(t)
	early := f.seed(5, 30)
	late := f.seed(10, 300)

	sale, err := f.svc.Create(context.Background(), f.actor, cashInput(f.product, 8, 1.0, 0, 8.0))
	require.NoError(t, err)
	require.Len(t, sale.Items, 2)
	require.Equal(t, early, sale.Items[0].BatchID)
	require.EqualValues(t, 5, sale.Items[0].Quantity)
	require.Equal(t, late, sale.Items[1].BatchID)
	require.EqualValues(t, 3, sale.Items[1].Quantity)
	require.EqualValues(t, 0, f.repo.stock.Batches[early].Quantity)
	require.EqualValues(t, 7, f.repo.stock.Batches[late].Quantity)
}

func TestCreateAppliesDiscountAndChecksPayment(t *testing.T) {
	f := newFixture(t)
	f.seed(20, 60)

	// total 16, discount 1, final 15
	sale, err := f.svc.Create(context.Background(), f.actor, cashInput(f.product, 8, 2.0, 1.0, 15.0))
	require.NoError(t, err)
	require.InDelta(t, 16.0, sale.TotalAmount, 1e-9)
	require.InDelta(t, 15.0, sale.FinalAmount, 1e-9)

	_, err = f.svc.Create(context.Background(), f.actor, cashInput(f.product, 8, 2.0, 1.0, 14.0))
	require.ErrorIs(t, err, sales.ErrInsufficientPayment)

	// A discount above the total is invalid.
	_, err = f.svc.Create(context.Background(), f.actor, cashInput(f.product, 1, 2.0, 3.0, 10.0))
	require.ErrorIs(t, err, sales.ErrValidation)
}

func TestCreateShortfallLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	batch := f.seed(3, 60)

	_, err := f.svc.Create(context.Background(), f.actor, cashInput(f.product, 5, 1.0, 0, 5.0))
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	require.EqualValues(t, 3, f.repo.stock.Batches[batch].Quantity)
	require.Empty(t, f.repo.stock.Movements)
	require.Empty(t, f.repo.sales)
	require.Empty(t, f.repo.payments)
}

func TestCreateIgnoresExpiredBatches(t *testing.T) {
	f := newFixture(t)
	expired := f.seed(50, -1)
	fresh := f.seed(5, 60)

	sale, err := f.svc.Create(context.Background(), f.actor, cashInput(f.product, 5, 1.0, 0, 5.0))
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	require.Equal(t, fresh, sale.Items[0].BatchID)
	require.EqualValues(t, 50, f.repo.stock.Batches[expired].Quantity)
}

func TestCreateIdempotencyKeyConflicts(t *testing.T) {
	f := newFixture(t)
	f.seed(20, 60)

	input := cashInput(f.product, 2, 1.0, 0, 2.0)
	input.IdempotencyKey = "req-1"
	_, err := f.svc.Create(context.Background(), f.actor, input)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), f.actor, input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
}

func TestCreateReleasesKeyOnFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(1, 60)

	input := cashInput(f.product, 5, 1.0, 0, 5.0)
	input.IdempotencyKey = "req-2"
	_, err := f.svc.Create(context.Background(), f.actor, input)
	require.ErrorIs(t, err, stock.ErrInsufficientStock)

	// The failed attempt freed the key; a corrected retry may reuse it.
	input.Items[0].Quantity = 1
	input.Payments[0].Amount = 1.0
	_, err = f.svc.Create(context.Background(), f.actor, input)
	require.NoError(t, err)
}

func TestGetByNumberAndList(t *testing.T) {
	f := newFixture(t)
	f.seed(20, 60)

	sale, err := f.svc.Create(context.Background(), f.actor, cashInput(f.product, 2, 3.0, 0, 6.0))
	require.NoError(t, err)

	byNumber, err := f.svc.GetByNumber(context.Background(), sale.SaleNumber)
	require.NoError(t, err)
	require.Equal(t, sale.ID, byNumber.ID)
	require.Len(t, byNumber.Items, 1)
	require.Len(t, byNumber.Payments, 1)

	listed, err := f.svc.List(context.Background(), sales.ListFilter{From: f.now.Add(-time.Hour), To: f.now.Add(time.Hour)})
	require.NoError(t, err)
	require.Len(t, listed, 1)

	_, err = f.svc.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, sales.ErrNotFound)
}
