// Package stocktest provides an in-memory stock store for service tests.
package stocktest

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/apotek-erp/apotek-erp/internal/stock"
)

// Memory implements stock.TxStore over maps. It is not safe for concurrent
// use; tests drive it from one goroutine.
type Memory struct {
	Batches   map[uuid.UUID]stock.Batch
	Movements []stock.Movement
}

// NewMemory constructs an empty store.
func NewMemory() *Memory {
	return &Memory{Batches: make(map[uuid.UUID]stock.Batch)}
}

// Seed adds a batch and returns its id.
func (m *Memory) Seed(b stock.Batch) uuid.UUID {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.Batches[b.ID] = b
	return b.ID
}

func (m *Memory) GetBatchForUpdate(_ context.Context, id uuid.UUID) (stock.Batch, error) {
	b, ok := m.Batches[id]
	if !ok {
		return stock.Batch{}, stock.ErrBatchNotFound
	}
	return b, nil
}

func (m *Memory) FindBatchForUpdate(_ context.Context, productID uuid.UUID, batchNumber string) (stock.Batch, error) {
	for _, b := range m.Batches {
		if b.ProductID == productID && b.BatchNumber == batchNumber {
			return b, nil
		}
	}
	return stock.Batch{}, stock.ErrBatchNotFound
}

func (m *Memory) InsertBatch(_ context.Context, b stock.Batch) (uuid.UUID, error) {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	m.Batches[b.ID] = b
	return b.ID, nil
}

func (m *Memory) AddQuantity(_ context.Context, batchID uuid.UUID, delta int64) error {
	b, ok := m.Batches[batchID]
	if !ok {
		return stock.ErrBatchNotFound
	}
	if b.Quantity+delta < 0 {
		return stock.ErrInsufficientStock
	}
	b.Quantity += delta
	m.Batches[batchID] = b
	return nil
}

func (m *Memory) ListEligibleForUpdate(_ context.Context, productID uuid.UUID, now time.Time) ([]stock.Batch, error) {
	var out []stock.Batch
	for _, b := range m.Batches {
		if b.ProductID == productID && b.Quantity > 0 && !b.Expired(now) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryDate.Before(out[j].ExpiryDate) })
	return out, nil
}

func (m *Memory) InsertMovement(_ context.Context, mv stock.Movement) error {
	if mv.ID == uuid.Nil {
		mv.ID = uuid.New()
	}
	m.Movements = append(m.Movements, mv)
	return nil
}

// MovementSum totals ledger entries for one batch.
func (m *Memory) MovementSum(batchID uuid.UUID) int64 {
	var sum int64
	for _, mv := range m.Movements {
		if mv.BatchID == batchID {
			sum += mv.Quantity
		}
	}
	return sum
}
