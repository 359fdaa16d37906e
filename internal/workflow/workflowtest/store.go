// Package workflowtest provides an in-memory workflow store for service
// tests. Apply effects run against a stocktest.Memory; a failed callback
// rolls the whole in-memory transaction back, mirroring the database store.
package workflowtest

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/stock"
	"github.com/apotek-erp/apotek-erp/internal/stock/stocktest"
	"github.com/apotek-erp/apotek-erp/internal/workflow"
)

// MemoryStore implements workflow.StorePort.
type MemoryStore struct {
	Stock        *stocktest.Memory
	Transactions map[uuid.UUID]workflow.Transaction
	Items        map[uuid.UUID][]workflow.Item
	History      map[uuid.UUID][]workflow.HistoryEntry

	nextHistoryID int64
}

// NewMemoryStore constructs the store around a stock fake.
func NewMemoryStore(st *stocktest.Memory) *MemoryStore {
	if st == nil {
		st = stocktest.NewMemory()
	}
	return &MemoryStore{
		Stock:        st,
		Transactions: make(map[uuid.UUID]workflow.Transaction),
		Items:        make(map[uuid.UUID][]workflow.Item),
		History:      make(map[uuid.UUID][]workflow.HistoryEntry),
	}
}

type memoryTx struct {
	store *MemoryStore
}

// WithTx snapshots state, runs fn, and restores the snapshot when fn fails.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(context.Context, workflow.TxStore) error) error {
	snapshot := s.clone()
	if err := fn(ctx, &memoryTx{store: s}); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *MemoryStore) clone() *MemoryStore {
	c := NewMemoryStore(stocktest.NewMemory())
	for id, b := range s.Stock.Batches {
		c.Stock.Batches[id] = b
	}
	c.Stock.Movements = append([]stock.Movement(nil), s.Stock.Movements...)
	for id, tx := range s.Transactions {
		c.Transactions[id] = tx
	}
	for id, items := range s.Items {
		c.Items[id] = append([]workflow.Item(nil), items...)
	}
	for id, hist := range s.History {
		c.History[id] = append([]workflow.HistoryEntry(nil), hist...)
	}
	c.nextHistoryID = s.nextHistoryID
	return c
}

func (s *MemoryStore) restore(snapshot *MemoryStore) {
	s.Stock.Batches = snapshot.Stock.Batches
	s.Stock.Movements = snapshot.Stock.Movements
	s.Transactions = snapshot.Transactions
	s.Items = snapshot.Items
	s.History = snapshot.History
	s.nextHistoryID = snapshot.nextHistoryID
}

func (s *MemoryStore) Get(_ context.Context, kind workflow.Kind, id uuid.UUID) (workflow.Transaction, error) {
	tx, ok := s.Transactions[id]
	if !ok || tx.Kind != kind {
		return workflow.Transaction{}, workflow.ErrNotFound
	}
	tx.Items = append([]workflow.Item(nil), s.Items[id]...)
	tx.History = append([]workflow.HistoryEntry(nil), s.History[id]...)
	return tx, nil
}

func (s *MemoryStore) List(_ context.Context, kind workflow.Kind, filter workflow.ListFilter) ([]workflow.Transaction, error) {
	var out []workflow.Transaction
	for _, tx := range s.Transactions {
		if tx.Kind != kind {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (t *memoryTx) Insert(_ context.Context, tx workflow.Transaction) error {
	t.store.Transactions[tx.ID] = tx
	return nil
}

func (t *memoryTx) InsertItem(_ context.Context, item workflow.Item) error {
	t.store.Items[item.TransactionID] = append(t.store.Items[item.TransactionID], item)
	return nil
}

func (t *memoryTx) GetForUpdate(_ context.Context, kind workflow.Kind, id uuid.UUID) (workflow.Transaction, error) {
	tx, ok := t.store.Transactions[id]
	if !ok || tx.Kind != kind {
		return workflow.Transaction{}, workflow.ErrNotFound
	}
	return tx, nil
}

func (t *memoryTx) ListItems(_ context.Context, txID uuid.UUID) ([]workflow.Item, error) {
	return append([]workflow.Item(nil), t.store.Items[txID]...), nil
}

func (t *memoryTx) SetStatus(_ context.Context, id uuid.UUID, update workflow.StatusUpdate) error {
	tx, ok := t.store.Transactions[id]
	if !ok {
		return workflow.ErrNotFound
	}
	tx.Status = update.Status
	tx.ApprovedBy = update.ApprovedBy
	tx.ApprovedAt = update.ApprovedAt
	tx.RejectedAt = update.RejectedAt
	tx.RejectionReason = update.RejectionReason
	t.store.Transactions[id] = tx
	return nil
}

func (t *memoryTx) AppendHistory(_ context.Context, entry workflow.HistoryEntry) error {
	t.store.nextHistoryID++
	entry.ID = t.store.nextHistoryID
	t.store.History[entry.TransactionID] = append(t.store.History[entry.TransactionID], entry)
	return nil
}

func (t *memoryTx) Stock() stock.TxStore {
	return t.store.Stock
}
