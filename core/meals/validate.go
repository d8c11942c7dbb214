package meals

import (
	"fmt"

	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

// CapacityError reports a bucket holding more meals than allowed.
type CapacityError struct {
	Bucket int
	Count  int
	Limit  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%d meals at %s exceed maximum %d", e.Count, timegrid.Format(e.Bucket), e.Limit)
}

// Validate recounts every bucket of w from scratch.
func Validate(w timegrid.Window, limit int, meals []occupancy.Interval) error {
	b := NewBuckets(w)
	for _, it := range meals {
		from := max(it.Start, w.Start)
		to := min(it.End, w.End)
		for t := from; t < to; t += timegrid.Grid {
			idx := b.index(t)
			if idx < 0 || idx >= b.Len() {
				continue
			}
			b.occ[idx]++
			if b.occ[idx] > limit {
				return &CapacityError{Bucket: t, Count: b.occ[idx], Limit: limit}
			}
		}
	}
	return nil
}
