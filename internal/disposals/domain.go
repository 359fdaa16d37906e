package disposals

import (
	"errors"

	"github.com/google/uuid"
)

// ReferencePrefix is used for disposal reference numbers, e.g. DSP-000001.
const ReferencePrefix = "DSP"

// CreateInput describes a write-off draft. Reason applies to every item
// unless the item carries its own.
type CreateInput struct {
	Reason string
	Notes  string
	Items  []ItemInput
}

// ItemInput disposes a quantity from one existing batch. Explicitly targeting
// an already-expired batch is allowed; that is the normal way expired stock
// leaves the shelves.
type ItemInput struct {
	BatchID  uuid.UUID
	Quantity int64
	Reason   string
}

// ErrValidation indicates invalid creation input.
var ErrValidation = errors.New("disposals: invalid input")
