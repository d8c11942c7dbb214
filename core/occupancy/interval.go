// Package occupancy tracks which minutes of the day each entity is busy.
//
// Every entity (contestant, space, zone meal block, resource item, itinerant
// team) owns an IntervalSet ordered by start. Placement code reads and writes
// occupancy only through this package.
package occupancy

import "sort"

// Interval is a half-open [Start, End) range owned by a task.
type Interval struct {
	Start  int `json:"start"`
	End    int `json:"end"`
	TaskID int `json:"taskId"`
}

// Overlaps reports whether the interval shares a minute with [start, end).
func (it Interval) Overlaps(start, end int) bool {
	return it.Start < end && start < it.End
}

// IntervalSet is an ordered collection of intervals for a single entity.
type IntervalSet interface {
	// Insert adds the interval keeping start order. Equal starts keep
	// insertion order.
	Insert(it Interval)
	// Remove deletes every interval owned by taskID and reports whether
	// anything was removed.
	Remove(taskID int) bool
	// EarliestGap returns the first t >= earliest where [t, t+dur) fits.
	EarliestGap(earliest, dur int) int
	// EarliestGapAllowing behaves like EarliestGap but tolerates a single
	// simultaneous overlap with an interval whose owner satisfies allow.
	EarliestGapAllowing(earliest, dur int, allow func(taskID int) bool) int
	// Free reports whether [start, start+dur) is unoccupied.
	Free(start, dur int) bool
	// Overlapping returns intervals sharing a minute with [start, end).
	Overlapping(start, end int) []Interval
	// Intervals returns a copy of the ordered intervals.
	Intervals() []Interval
	Len() int
	Clone() IntervalSet
}

type sortedSet struct {
	items []Interval
}

// NewSet returns an empty IntervalSet.
func NewSet(items ...Interval) IntervalSet {
	s := &sortedSet{}
	for _, it := range items {
		s.Insert(it)
	}
	return s
}

func (s *sortedSet) Insert(it Interval) {
	idx := sort.Search(len(s.items), func(i int) bool { return s.items[i].Start > it.Start })
	s.items = append(s.items, Interval{})
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = it
}

func (s *sortedSet) Remove(taskID int) bool {
	out := s.items[:0]
	removed := false
	for _, it := range s.items {
		if it.TaskID == taskID {
			removed = true
			continue
		}
		out = append(out, it)
	}
	s.items = out
	return removed
}

func (s *sortedSet) EarliestGap(earliest, dur int) int {
	t := earliest
	for _, it := range s.items {
		if t+dur <= it.Start {
			return t
		}
		if t < it.End {
			t = it.End
		}
	}
	return t
}

func (s *sortedSet) EarliestGapAllowing(earliest, dur int, allow func(taskID int) bool) int {
	if allow == nil {
		return s.EarliestGap(earliest, dur)
	}
	t := earliest
	tolerated := make(map[int]struct{}, 1)
	for _, it := range s.items {
		if t+dur <= it.Start {
			return t
		}
		if t < it.End {
			if it.TaskID > 0 && allow(it.TaskID) {
				tolerated[it.TaskID] = struct{}{}
				if len(tolerated) <= 1 {
					continue
				}
			}
			t = it.End
			clear(tolerated)
		}
	}
	return t
}

func (s *sortedSet) Free(start, dur int) bool {
	return s.EarliestGap(start, dur) == start
}

func (s *sortedSet) Overlapping(start, end int) []Interval {
	var out []Interval
	for _, it := range s.items {
		if it.Start >= end {
			break
		}
		if it.Overlaps(start, end) {
			out = append(out, it)
		}
	}
	return out
}

func (s *sortedSet) Intervals() []Interval {
	out := make([]Interval, len(s.items))
	copy(out, s.items)
	return out
}

func (s *sortedSet) Len() int { return len(s.items) }

func (s *sortedSet) Clone() IntervalSet {
	return &sortedSet{items: s.Intervals()}
}
