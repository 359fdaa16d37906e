package adjustments

import (
	"errors"

	"github.com/google/uuid"
)

// ReferencePrefix is used for adjustment reference numbers, e.g. ADJ-000001.
const ReferencePrefix = "ADJ"

// CreateInput describes a stock correction draft.
type CreateInput struct {
	Reason string
	Notes  string
	Items  []ItemInput
}

// ItemInput corrects one batch by a signed delta.
type ItemInput struct {
	BatchID        uuid.UUID
	QuantityChange int64
	Reason         string
}

// ErrValidation indicates invalid creation input.
var ErrValidation = errors.New("adjustments: invalid input")
