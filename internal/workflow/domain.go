package workflow

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Kind identifies which transaction type a workflow record belongs to.
type Kind string

const (
	KindPurchase   Kind = "PURCHASE"
	KindDisposal   Kind = "DISPOSAL"
	KindAdjustment Kind = "ADJUSTMENT"
)

// Status enumerates the approval lifecycle.
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
)

// Terminal reports whether no transition leaves the status.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanTransition reports whether from may move to to. DRAFT is entered only at
// creation and APPROVED/REJECTED are final.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusDraft:
		return to == StatusPendingApproval
	case StatusPendingApproval:
		return to == StatusApproved || to == StatusRejected
	default:
		return false
	}
}

// Transaction is the shape shared by purchases, disposals and adjustments.
type Transaction struct {
	ID              uuid.UUID `json:"id"`
	Kind            Kind      `json:"kind"`
	ReferenceNo     string    `json:"reference_no"`
	Status          Status    `json:"status"`
	SupplierID      uuid.UUID `json:"supplier_id"` // purchases only
	Reason          string    `json:"reason"`      // disposals and adjustments
	Notes           string    `json:"notes"`
	TotalAmount     float64   `json:"total_amount"` // purchase order total / disposal write-off value
	CreatedBy       uuid.UUID `json:"created_by"`
	ApprovedBy      uuid.UUID `json:"approved_by"`
	ApprovedAt      time.Time `json:"approved_at"`
	RejectedAt      time.Time `json:"rejected_at"`
	RejectionReason string    `json:"rejection_reason"`
	CreatedAt       time.Time `json:"created_at"`

	Items   []Item         `json:"items"`
	History []HistoryEntry `json:"history"`
}

// Item is one line of a workflow transaction. Purchases address batches by
// (ProductID, BatchNumber); disposals and adjustments reference an existing
// BatchID. Quantity holds unsigned purchase/disposal counts, QuantityChange
// the signed adjustment delta.
type Item struct {
	ID             uuid.UUID `json:"id"`
	TransactionID  uuid.UUID `json:"transaction_id"`
	ProductID      uuid.UUID `json:"product_id"`
	BatchID        uuid.UUID `json:"batch_id"`
	BatchNumber    string    `json:"batch_number"`
	ExpiryDate     time.Time `json:"expiry_date"`
	Quantity       int64     `json:"quantity"`
	QuantityChange int64     `json:"quantity_change"`
	UnitCost       float64   `json:"unit_cost"`
	TotalCost      float64   `json:"total_cost"`
	Reason         string    `json:"reason"`
}

// HistoryEntry records one status transition. Appended, never rewritten.
type HistoryEntry struct {
	ID            int64     `json:"id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        Status    `json:"status"`
	ChangedBy     uuid.UUID `json:"changed_by"`
	Reason        string    `json:"reason"`
	At            time.Time `json:"at"`
}

// StatusUpdate carries the fields written together with a transition.
type StatusUpdate struct {
	Status          Status
	ApprovedBy      uuid.UUID
	ApprovedAt      time.Time
	RejectedAt      time.Time
	RejectionReason string
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status
	Limit  int
}

var (
	// ErrNotFound indicates the transaction id does not resolve for the kind.
	ErrNotFound = errors.New("workflow: transaction not found")
	// ErrInvalidTransition occurs when an action violates the state machine.
	ErrInvalidTransition = errors.New("workflow: invalid status transition")
	// ErrValidation indicates invalid creation input.
	ErrValidation = errors.New("workflow: invalid input")
)
