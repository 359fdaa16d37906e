package stock

import (
	"sort"
	"time"
)

// Allocate splits a requested quantity across eligible batches, consuming the
// soonest-to-expire batch first. Batches with zero quantity or an expiry at or
// before now are skipped. The total is prechecked so a shortfall fails before
// any line is produced.
func Allocate(batches []Batch, requested int64, now time.Time) ([]AllocationLine, error) {
	if requested <= 0 {
		return nil, ErrInvalidQuantity
	}

	eligible := make([]Batch, 0, len(batches))
	var total int64
	for _, b := range batches {
		if b.Quantity <= 0 || b.Expired(now) {
			continue
		}
		eligible = append(eligible, b)
		total += b.Quantity
	}
	if total < requested {
		return nil, ErrInsufficientStock
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].ExpiryDate.Before(eligible[j].ExpiryDate)
	})

	lines := make([]AllocationLine, 0, len(eligible))
	remaining := requested
	for _, b := range eligible {
		if remaining == 0 {
			break
		}
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		lines = append(lines, AllocationLine{BatchID: b.ID, Quantity: take, UnitCost: b.PurchasePrice})
		remaining -= take
	}
	return lines, nil
}
