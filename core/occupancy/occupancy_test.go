package occupancy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarliestGap(t *testing.T) {
	s := NewSet(
		Interval{Start: 600, End: 630, TaskID: 2},
		Interval{Start: 540, End: 570, TaskID: 1},
	)
	assert.Equal(t, 570, s.EarliestGap(540, 30))
	assert.Equal(t, 630, s.EarliestGap(540, 35))
	assert.Equal(t, 500, s.EarliestGap(500, 40))
	assert.Equal(t, 630, s.EarliestGap(610, 5))
	assert.True(t, s.Free(570, 30))
	assert.False(t, s.Free(565, 10))
}

func TestInsertKeepsOrder(t *testing.T) {
	s := NewSet()
	s.Insert(Interval{Start: 600, End: 630, TaskID: 3})
	s.Insert(Interval{Start: 540, End: 570, TaskID: 1})
	s.Insert(Interval{Start: 540, End: 560, TaskID: 2})
	got := s.Intervals()
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{got[0].TaskID, got[1].TaskID, got[2].TaskID})
	assert.True(t, s.Remove(2))
	assert.False(t, s.Remove(2))
	assert.Equal(t, 2, s.Len())
}

func TestEarliestGapAllowingSingleOverlap(t *testing.T) {
	s := NewSet(
		Interval{Start: 540, End: 570, TaskID: 10},
		Interval{Start: 570, End: 600, TaskID: 11},
	)
	allowTen := func(id int) bool { return id == 10 }
	// the wrap may sit on top of task 10 but not on task 11
	assert.Equal(t, 540, s.EarliestGapAllowing(540, 30, allowTen))
	assert.Equal(t, 600, s.EarliestGapAllowing(540, 45, allowTen))

	allowBoth := func(int) bool { return true }
	// two tolerated overlaps at once are rejected
	assert.Equal(t, 600, s.EarliestGapAllowing(540, 45, allowBoth))
	assert.Equal(t, s.EarliestGap(540, 30), s.EarliestGapAllowing(540, 30, nil))
}

func TestModelSnapshotRestore(t *testing.T) {
	m := NewModel()
	m.Insert(Contestant, 1, Interval{Start: 540, End: 570, TaskID: 1})
	m.Insert(Space, 7, Interval{Start: 540, End: 570, TaskID: 1})
	m.Insert(Space, 0, Interval{Start: 540, End: 570, TaskID: 9})
	snap := m.Snapshot()

	m.Insert(Contestant, 1, Interval{Start: 600, End: 630, TaskID: 2})
	m.RemoveTask(1)
	assert.Equal(t, 1, m.Set(Contestant, 1).Len())
	assert.Equal(t, 0, m.Set(Space, 7).Len())

	m.Restore(snap)
	assert.Equal(t, 1, m.Set(Contestant, 1).Len())
	assert.Equal(t, 1, m.Set(Space, 7).Len())
	assert.Equal(t, []int{7}, m.Keys(Space))
	assert.True(t, m.Free(Resource, 3, 540, 30))
	assert.Equal(t, 570, m.EarliestGap(Space, 7, 540, 30))
}

func TestConflicts(t *testing.T) {
	m := NewModel()
	m.Insert(Resource, 4, Interval{Start: 540, End: 600, TaskID: 1})
	m.Insert(Resource, 4, Interval{Start: 570, End: 630, TaskID: 2})
	m.Insert(Resource, 5, Interval{Start: 540, End: 600, TaskID: 3})
	got := m.Conflicts(Resource, nil)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Key)
	assert.Equal(t, 1, got[0].A.TaskID)
	assert.Equal(t, 2, got[0].B.TaskID)

	none := m.Conflicts(Resource, func(a, b int) bool { return true })
	assert.Empty(t, none)
	assert.Equal(t, "resource", Resource.String())
}
