package masterdata

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Product is a sellable item. Stock lives in batches, never here.
type Product struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Barcode      string    `json:"barcode"`
	Unit         string    `json:"unit"`
	SellingPrice float64   `json:"selling_price"`
	ReorderLevel int64     `json:"reorder_level"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Supplier is a purchase counterparty.
type Supplier struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LowStockProduct pairs a product with its summed on-hand quantity when that
// quantity is at or below the reorder level.
type LowStockProduct struct {
	Product Product `json:"product"`
	OnHand  int64   `json:"on_hand"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search   string
	IsActive *bool
	Limit    int
}

var (
	// ErrNotFound indicates the record does not exist.
	ErrNotFound = errors.New("masterdata: not found")
)
