package sales

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReferencePrefix is used for sale numbers, e.g. S-20250114-0001. The counter
// is scoped to the calendar day.
const ReferencePrefix = "S"

// Sale is a completed point-of-sale transaction. Sales have no approval
// lifecycle: creation allocates stock, writes the ledger and persists the
// record in one transaction.
type Sale struct {
	ID          uuid.UUID `json:"id"`
	SaleNumber  string    `json:"sale_number"`
	TotalAmount float64   `json:"total_amount"`
	Discount    float64   `json:"discount"`
	FinalAmount float64   `json:"final_amount"`
	Notes       string    `json:"notes"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	Items       []Item    `json:"items"`
	Payments    []Payment `json:"payments"`
}

// Item is one sold line bound to the batch it was taken from. A requested
// quantity that spans batches becomes multiple items.
type Item struct {
	ID        uuid.UUID `json:"id"`
	SaleID    uuid.UUID `json:"sale_id"`
	ProductID uuid.UUID `json:"product_id"`
	BatchID   uuid.UUID `json:"batch_id"`
	Quantity  int64     `json:"quantity"`
	UnitPrice float64   `json:"unit_price"`
	Subtotal  float64   `json:"subtotal"`
}

// Payment is one tender against a sale.
type Payment struct {
	ID        uuid.UUID `json:"id"`
	SaleID    uuid.UUID `json:"sale_id"`
	Method    string    `json:"method"`
	Amount    float64   `json:"amount"`
	Reference string    `json:"reference"`
}

// CreateInput describes a sale to record. Quantities are per product; batch
// selection happens inside the service. IdempotencyKey, when set, guards
// against a retried submission creating a second sale.
type CreateInput struct {
	IdempotencyKey string
	Discount       float64
	Notes          string
	Items          []ItemInput
	Payments       []PaymentInput
}

// ItemInput is one requested product line.
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int64
	UnitPrice float64
}

// PaymentInput is one tender line.
type PaymentInput struct {
	Method    string
	Amount    float64
	Reference string
}

// ListFilter narrows sale listings to a created-at range.
type ListFilter struct {
	From  time.Time
	To    time.Time
	Limit int
}

var (
	// ErrValidation indicates invalid creation input.
	ErrValidation = errors.New("sales: invalid input")
	// ErrNotFound indicates the sale does not exist.
	ErrNotFound = errors.New("sales: not found")
	// ErrInsufficientPayment indicates the payments do not cover the final amount.
	ErrInsufficientPayment = errors.New("sales: insufficient payment")
	// ErrUnknownProduct indicates a line references a product that does not exist.
	ErrUnknownProduct = errors.New("sales: unknown product")
)
