package occupancy

import (
	"fmt"
	"sort"
)

// Kind identifies a family of occupancy sets.
type Kind uint8

const (
	Contestant Kind = iota
	Space
	ZoneMeal
	Resource
	Itinerant
	kindCount
)

func (k Kind) String() string {
	switch k {
	case Contestant:
		return "contestant"
	case Space:
		return "space"
	case ZoneMeal:
		return "zone_meal"
	case Resource:
		return "resource"
	case Itinerant:
		return "itinerant"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Kinds lists every occupancy kind in a stable order.
func Kinds() []Kind {
	return []Kind{Contestant, Space, ZoneMeal, Resource, Itinerant}
}

var emptySet = &sortedSet{}

// Model holds one IntervalSet per entity key for each Kind.
type Model struct {
	sets [kindCount]map[int]IntervalSet
}

// NewModel returns an empty occupancy model.
func NewModel() *Model {
	m := &Model{}
	for i := range m.sets {
		m.sets[i] = make(map[int]IntervalSet)
	}
	return m
}

// Set returns the interval set of an entity. The returned set must be
// treated as read-only; mutations go through Insert and Remove.
func (m *Model) Set(kind Kind, key int) IntervalSet {
	if s, ok := m.sets[kind][key]; ok {
		return s
	}
	return emptySet
}

// Insert records it in the set of the given entity. Keys <= 0 are ignored.
func (m *Model) Insert(kind Kind, key int, it Interval) {
	if key <= 0 {
		return
	}
	s, ok := m.sets[kind][key]
	if !ok {
		s = NewSet()
		m.sets[kind][key] = s
	}
	s.Insert(it)
}

// Remove deletes the intervals of taskID from one entity.
func (m *Model) Remove(kind Kind, key, taskID int) bool {
	s, ok := m.sets[kind][key]
	if !ok {
		return false
	}
	return s.Remove(taskID)
}

// RemoveTask deletes the intervals of taskID from every entity.
func (m *Model) RemoveTask(taskID int) {
	for k := range m.sets {
		for _, s := range m.sets[k] {
			s.Remove(taskID)
		}
	}
}

// EarliestGap is a shorthand for Set(kind, key).EarliestGap.
func (m *Model) EarliestGap(kind Kind, key, earliest, dur int) int {
	if key <= 0 {
		return earliest
	}
	return m.Set(kind, key).EarliestGap(earliest, dur)
}

// Free reports whether the entity is idle over [start, start+dur).
func (m *Model) Free(kind Kind, key, start, dur int) bool {
	if key <= 0 {
		return true
	}
	return m.Set(kind, key).Free(start, dur)
}

// Keys returns the entity keys of a kind in ascending order.
func (m *Model) Keys(kind Kind) []int {
	keys := make([]int, 0, len(m.sets[kind]))
	for k := range m.sets[kind] {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Snapshot returns a deep copy that can later be passed to Restore.
func (m *Model) Snapshot() *Model {
	out := &Model{}
	for i := range m.sets {
		out.sets[i] = make(map[int]IntervalSet, len(m.sets[i]))
		for k, s := range m.sets[i] {
			out.sets[i][k] = s.Clone()
		}
	}
	return out
}

// Restore replaces the contents of m with a previously taken snapshot.
func (m *Model) Restore(snap *Model) {
	c := snap.Snapshot()
	m.sets = c.sets
}

// Conflict describes two overlapping intervals inside one entity.
type Conflict struct {
	Kind  Kind
	Key   int
	A     Interval
	B     Interval
	Count int
}

// Conflicts scans one kind for overlapping pairs. allow may excuse a pair;
// it is called with both owners.
func (m *Model) Conflicts(kind Kind, allow func(a, b int) bool) []Conflict {
	var out []Conflict
	for _, key := range m.Keys(kind) {
		items := m.sets[kind][key].Intervals()
		for i := 0; i < len(items); i++ {
			for j := i + 1; j < len(items); j++ {
				if items[j].Start >= items[i].End {
					break
				}
				if items[i].TaskID == items[j].TaskID {
					continue
				}
				if allow != nil && allow(items[i].TaskID, items[j].TaskID) {
					continue
				}
				out = append(out, Conflict{
					Kind:  kind,
					Key:   key,
					A:     items[i],
					B:     items[j],
					Count: len(m.sets[kind][key].Overlapping(items[i].Start, items[i].End)),
				})
			}
		}
	}
	return out
}
