package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/showplan/core/occupancy"
)

func TestDirectorKeepsPassWithPreexistingOverlap(t *testing.T) {
	first := task(1, 1, 1, 10, 30)
	first.Status = StatusDone
	first.StartPlanned, first.EndPlanned = "09:00", "09:30"
	second := task(2, 1, 1, 10, 30)
	second.Status = StatusDone
	second.StartPlanned, second.EndPlanned = "09:15", "09:45"
	filler := task(3, 1, 1, 10, 30)

	in := newDay(first, second, filler)
	in.OptimizerMainZoneID = 1
	in.OptimizerMainZonePriorityLevel = ptr(3)

	res, err := Solve(context.Background(), in, Options{})
	require.NoError(t, err)
	_, ok := res.Warning(CodeNoIdleRolledBack)
	assert.False(t, ok, "recorded overlaps of finished tasks must not undo the pass")
	mustPlanned(t, res, 3)
}

func TestNewConflictsIgnoresKnownPairs(t *testing.T) {
	known := occupancy.Conflict{
		Kind: occupancy.Space, Key: 10,
		A: occupancy.Interval{Start: 540, End: 570, TaskID: 1},
		B: occupancy.Interval{Start: 555, End: 585, TaskID: 2},
	}
	before := conflictPairs([]occupancy.Conflict{known})

	moved := known
	moved.A, moved.B = occupancy.Interval{Start: 550, End: 580, TaskID: 2}, occupancy.Interval{Start: 560, End: 590, TaskID: 1}
	fresh := occupancy.Conflict{
		Kind: occupancy.Space, Key: 10,
		A: occupancy.Interval{Start: 570, End: 600, TaskID: 2},
		B: occupancy.Interval{Start: 580, End: 610, TaskID: 3},
	}
	otherKind := known
	otherKind.Kind = occupancy.Contestant

	got := newConflicts(before, []occupancy.Conflict{moved, fresh, otherKind})
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].B.TaskID)
	assert.Equal(t, occupancy.Contestant, got[1].Kind)
	assert.Empty(t, newConflicts(before, []occupancy.Conflict{known}))
}
