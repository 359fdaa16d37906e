package shared

import "errors"

var (
	// ErrConflict indicates a duplicate unique key, typically a reference
	// number or batch number collision under concurrent creation. Callers may
	// retry the operation with a fresh number.
	ErrConflict = errors.New("conflicting duplicate entry")
)
