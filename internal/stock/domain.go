package stock

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// MovementType enumerates the causes of a ledger entry.
type MovementType string

const (
	// MovementPurchase represents stock received from an approved purchase.
	MovementPurchase MovementType = "PURCHASE"
	// MovementSale represents stock sold at the point of sale.
	MovementSale MovementType = "SALE"
	// MovementDisposal represents stock written off by an approved disposal.
	MovementDisposal MovementType = "DISPOSAL"
	// MovementAdjustment represents a signed correction.
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Batch is a lot of a product with its own expiry and remaining quantity.
// Quantity is owned exclusively by this package and never goes negative.
type Batch struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"product_id"`
	BatchNumber   string    `json:"batch_number"`
	ExpiryDate    time.Time `json:"expiry_date"`
	PurchasePrice float64   `json:"purchase_price"`
	Quantity      int64     `json:"quantity"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Expired reports whether the batch expiry is at or before the given time.
func (b Batch) Expired(at time.Time) bool {
	return !b.ExpiryDate.After(at)
}

// Movement is one immutable ledger entry. Positive quantity increases stock.
type Movement struct {
	ID            uuid.UUID    `json:"id"`
	BatchID       uuid.UUID    `json:"batch_id"`
	Type          MovementType `json:"type"`
	Quantity      int64        `json:"quantity"`
	ReferenceType string       `json:"reference_type"`
	ReferenceID   uuid.UUID    `json:"reference_id"`
	PerformedBy   uuid.UUID    `json:"performed_by"`
	CreatedAt     time.Time    `json:"created_at"`
}

// AllocationLine binds part of a requested quantity to one batch.
type AllocationLine struct {
	BatchID  uuid.UUID `json:"batch_id"`
	Quantity int64     `json:"quantity"`
	UnitCost float64   `json:"unit_cost"`
}

// Reconciliation compares a batch quantity against its movement sum.
type Reconciliation struct {
	BatchID     uuid.UUID `json:"batch_id"`
	Quantity    int64     `json:"quantity"`
	MovementSum int64     `json:"movement_sum"`
	Balanced    bool      `json:"balanced"`
}

var (
	// ErrInsufficientStock triggered when eligible quantity cannot cover a request.
	ErrInsufficientStock = errors.New("stock: insufficient stock")
	// ErrBatchNotFound indicates the batch id or number does not resolve.
	ErrBatchNotFound = errors.New("stock: batch not found")
	// ErrInvalidQuantity indicates a non-positive requested quantity.
	ErrInvalidQuantity = errors.New("stock: quantity must be positive")
)
