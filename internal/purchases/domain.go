package purchases

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReferencePrefix is used for purchase order numbers, e.g. PO-000001.
const ReferencePrefix = "PO"

// CreateInput describes a purchase order draft.
type CreateInput struct {
	SupplierID uuid.UUID
	Notes      string
	Items      []ItemInput
}

// ItemInput is one ordered line. The batch is addressed by (ProductID,
// BatchNumber); approval merges into an existing batch or creates a new one.
type ItemInput struct {
	ProductID   uuid.UUID
	BatchNumber string
	ExpiryDate  time.Time
	Quantity    int64
	UnitPrice   float64
}

var (
	// ErrValidation indicates invalid creation input.
	ErrValidation = errors.New("purchases: invalid input")
	// ErrUnknownProduct indicates a line references a product that does not exist.
	ErrUnknownProduct = errors.New("purchases: unknown product")
	// ErrUnknownSupplier indicates the supplier id does not resolve.
	ErrUnknownSupplier = errors.New("purchases: unknown supplier")
)
