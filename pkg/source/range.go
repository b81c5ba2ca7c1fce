// Package source provides IdentifierSource implementations for the enricher:
// a fixed ID range and a SQL query.
package source

import (
	"context"
	"fmt"
	"time"
)

// Range yields the IDs From..To inclusive.
type Range struct {
	From int64
	To   int64

	// PauseEvery, when > 0, sleeps for Pause after every PauseEvery IDs,
	// simulating a slow backing store.
	PauseEvery int
	Pause      time.Duration
}

// DefaultRange returns the IDs 1..99.
func DefaultRange() Range {
	return Range{From: 1, To: 99}
}

// FetchAllIDs returns the IDs of the range in ascending order.
func (r Range) FetchAllIDs(ctx context.Context) ([]int64, error) {
	if r.From < 1 {
		return nil, fmt.Errorf("range start must be >= 1 (got %d)", r.From)
	}
	if r.From > r.To {
		return nil, fmt.Errorf("range start %d is after end %d", r.From, r.To)
	}

	ids := make([]int64, 0, r.To-r.From+1)
	for id := r.From; id <= r.To; id++ {
		ids = append(ids, id)

		if r.PauseEvery > 0 && r.Pause > 0 && len(ids)%r.PauseEvery == 0 {
			timer := time.NewTimer(r.Pause)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return ids, nil
}
