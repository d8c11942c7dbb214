package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func space(id int) *int { return &id }

// busyContestantDay has a main zone space idle between 09:30 and 10:00
// because the contestant of the next task is recording elsewhere.
func busyContestantDay() (Input, Result) {
	opener := task(1, 1, 1, 10, 30)
	elsewhere := task(2, 2, 2, 20, 30)
	elsewhere.ContestantID = 7
	elsewhere.TemplateName = "Portrait"
	closer := task(3, 3, 1, 10, 30)
	closer.ContestantID = 7

	in := newDay(opener, elsewhere, closer)
	in.OptimizerMainZoneID = 1
	res := Result{PlannedTasks: []PlannedTask{
		{TaskID: 1, StartPlanned: "09:00", EndPlanned: "09:30", AssignedSpace: space(10)},
		{TaskID: 2, StartPlanned: "09:30", EndPlanned: "10:00", AssignedSpace: space(20)},
		{TaskID: 3, StartPlanned: "10:00", EndPlanned: "10:30", AssignedSpace: space(10)},
	}}
	return in, res
}

func TestComputeMainZoneGaps(t *testing.T) {
	in, res := busyContestantDay()
	gaps, err := ComputeMainZoneGaps(in, res)
	require.NoError(t, err)
	require.Len(t, gaps, 1)
	assert.Equal(t, Gap{SpaceID: 10, Start: 570, End: 600, BeforeTaskID: 1, AfterTaskID: 3}, gaps[0])
	assert.Equal(t, 30, gaps[0].Minutes())
}

func TestExplainGapContestantBusy(t *testing.T) {
	in, res := busyContestantDay()
	gaps, err := ComputeMainZoneGaps(in, res)
	require.NoError(t, err)
	require.Len(t, gaps, 1)

	ex, err := ExplainGap(in, res, gaps[0])
	require.NoError(t, err)
	assert.Equal(t, GapContestantBusy, ex.Code)
	assert.Equal(t, 3, ex.BlockedTaskID)
	assert.Equal(t, 2, ex.BlockingTaskID)
	assert.Equal(t, "Portrait", ex.BlockingLabel)
	assert.Equal(t, "09:30", ex.BlockingStart)
	assert.Equal(t, "10:00", ex.BlockingEnd)
	assert.Equal(t, "contestant:7", ex.Entity)
	assert.True(t, ex.Replannable)
	assert.Contains(t, ex.Message, "Portrait")
}

func TestExplainGapClassification(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(in *Input)
		want   string
	}{
		{
			name: "done task",
			mutate: func(in *Input) {
				in.Tasks[2].Status = StatusDone
				in.Tasks[2].StartPlanned, in.Tasks[2].EndPlanned = "10:00", "10:30"
			},
			want: GapInProgressOrDone,
		},
		{
			name: "locked task",
			mutate: func(in *Input) {
				in.Locks = []Lock{{TaskID: 3, Kind: LockTime, LockedStart: "10:00", LockedEnd: "10:30"}}
			},
			want: GapLockedTask,
		},
		{
			name: "availability window",
			mutate: func(in *Input) {
				in.ContestantAvailabilityByID = map[int]Clock{7: {Start: "10:00", End: "18:00"}}
			},
			want: GapTimeWindow,
		},
		{
			name: "hard dependency",
			mutate: func(in *Input) {
				in.Tasks[2].DependsOnTaskIDs = []int{2}
			},
			want: GapHardDependency,
		},
		{
			name: "free contestant",
			mutate: func(in *Input) {
				in.Tasks[1].ContestantID = 8
			},
			want: GapOther,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in, res := busyContestantDay()
			tc.mutate(&in)
			gaps, err := ComputeMainZoneGaps(in, res)
			require.NoError(t, err)
			require.Len(t, gaps, 1)
			ex, err := ExplainGap(in, res, gaps[0])
			require.NoError(t, err)
			assert.Equal(t, tc.want, ex.Code)
		})
	}
}

func TestExplainGapRejectsForeignTask(t *testing.T) {
	in, res := busyContestantDay()
	res.PlannedTasks = append(res.PlannedTasks, PlannedTask{TaskID: 99, StartPlanned: "11:00", EndPlanned: "11:30"})
	_, err := ComputeMainZoneGaps(in, res)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestDirectorReportsUnclosableGap(t *testing.T) {
	first := task(1, 1, 1, 10, 30)
	first.Status = StatusDone
	first.StartPlanned, first.EndPlanned = "09:00", "09:30"
	second := task(2, 1, 1, 10, 30)
	second.Status = StatusDone
	second.StartPlanned, second.EndPlanned = "11:00", "11:30"

	in := newDay(first, second)
	in.OptimizerMainZoneID = 1
	in.OptimizerMainZonePriorityLevel = ptr(3)

	res, err := Solve(context.Background(), in, Options{})
	require.NoError(t, err)

	w, ok := res.Warning(CodeMainZoneNoIdle)
	require.True(t, ok)
	assert.Contains(t, w.Message, "90 min")

	_, ok = res.Warning(CodeGapsRemain)
	assert.True(t, ok, "strength 10 reports remaining gaps as a warning")

	ins, ok := res.Insight(InsightGapStats)
	require.True(t, ok)
	gs, ok := ins.Details.(gapStats)
	require.True(t, ok)
	assert.Equal(t, 1, gs.TotalGaps)
	assert.Equal(t, 90, gs.TotalGapMinutes)
	assert.InDelta(t, 90, gs.MeanGapMinutes, 1e-9)
	assert.Zero(t, gs.StdDevGapMinutes)
	require.Len(t, gs.GapReasons, 1)
	assert.Equal(t, GapInProgressOrDone, gs.GapReasons[0].Code)
}

func TestDirectorClosesGapWithMovableTask(t *testing.T) {
	anchor := task(1, 1, 1, 10, 30)
	anchor.Status = StatusDone
	anchor.StartPlanned, anchor.EndPlanned = "09:00", "09:30"
	late := task(2, 1, 1, 10, 30)
	late.Status = StatusDone
	late.StartPlanned, late.EndPlanned = "10:30", "11:00"
	filler := task(3, 1, 1, 10, 60)

	in := newDay(anchor, late, filler)
	in.OptimizerMainZoneID = 1
	in.OptimizerMainZonePriorityLevel = ptr(3)

	res, err := Solve(context.Background(), in, Options{})
	require.NoError(t, err)
	assertSlot(t, res, 3, "09:30", "10:30")
	_, ok := res.Warning(CodeMainZoneNoIdle)
	assert.False(t, ok)
	_, ok = res.Warning(CodeGapsRemain)
	assert.False(t, ok)
}

func TestGapStatsAvailableBelowThreshold(t *testing.T) {
	first := task(1, 1, 1, 10, 30)
	first.Status = StatusDone
	first.StartPlanned, first.EndPlanned = "09:00", "09:30"
	second := task(2, 1, 1, 10, 30)
	second.Status = StatusDone
	second.StartPlanned, second.EndPlanned = "10:00", "10:30"

	in := newDay(first, second)
	in.OptimizerMainZoneID = 1

	res, err := Solve(context.Background(), in, Options{})
	require.NoError(t, err)
	_, ok := res.Warning(CodeGapStatsAvailable)
	assert.True(t, ok)
	_, ok = res.Warning(CodeGapsRemain)
	assert.False(t, ok)
	_, ok = res.Warning(CodeMainZoneNoIdle)
	assert.False(t, ok, "the continuity pass only runs in director mode")
}
