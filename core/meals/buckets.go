package meals

import "github.com/kilianp07/showplan/core/timegrid"

// Buckets counts concurrent meals per grid step of the meal window. A
// Buckets value belongs to one search frame: Apply and Undo must be paired.
type Buckets struct {
	base int
	occ  []int
}

// NewBuckets returns empty buckets covering w.
func NewBuckets(w timegrid.Window) *Buckets {
	n := 0
	if w.End > w.Start {
		n = (w.End - w.Start + timegrid.Grid - 1) / timegrid.Grid
	}
	return &Buckets{base: w.Start, occ: make([]int, n)}
}

func (b *Buckets) index(t int) int {
	return floorDiv(t-b.base, timegrid.Grid)
}

// Time returns the start minute of bucket idx.
func (b *Buckets) Time(idx int) int { return b.base + idx*timegrid.Grid }

// Len returns the number of buckets.
func (b *Buckets) Len() int { return len(b.occ) }

// Count returns the occupancy of bucket idx.
func (b *Buckets) Count(idx int) int { return b.occ[idx] }

// add adds delta to every bucket touched by [start, end) clipped to the
// window.
func (b *Buckets) add(start, end, delta int) {
	from := max(start, b.base)
	to := min(end, b.base+len(b.occ)*timegrid.Grid)
	for t := from; t < to; t += timegrid.Grid {
		if idx := b.index(t); idx >= 0 && idx < len(b.occ) {
			b.occ[idx] += delta
		}
	}
}

// Apply records a meal over [start, start+dur).
func (b *Buckets) Apply(start, dur int) { b.add(start, start+dur, 1) }

// Undo reverts a previous Apply with the same arguments.
func (b *Buckets) Undo(start, dur int) { b.add(start, start+dur, -1) }

// Fits reports whether one more meal at [start, start+dur) keeps every bucket
// within limit. Starts that leave the window never fit.
func (b *Buckets) Fits(start, dur, limit int) bool {
	for t := start; t < start+dur; t += timegrid.Grid {
		idx := b.index(t)
		if idx < 0 || idx >= len(b.occ) {
			return false
		}
		if b.occ[idx]+1 > limit {
			return false
		}
	}
	return true
}

// Load sums the bucket counts covered by [start, start+dur).
func (b *Buckets) Load(start, dur int) int {
	sum := 0
	for t := start; t < start+dur; t += timegrid.Grid {
		if idx := b.index(t); idx >= 0 && idx < len(b.occ) {
			sum += b.occ[idx]
		}
	}
	return sum
}

// Saturated returns the start minutes of buckets at or above limit that lie
// inside w, at most n of them.
func (b *Buckets) Saturated(limit int, w timegrid.Window, n int) []int {
	var out []int
	for idx, v := range b.occ {
		t := b.Time(idx)
		if v < limit || t < w.Start || t >= w.End {
			continue
		}
		out = append(out, t)
		if len(out) == n {
			break
		}
	}
	return out
}

// Clone copies the counts.
func (b *Buckets) Clone() *Buckets {
	return &Buckets{base: b.base, occ: append([]int(nil), b.occ...)}
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
