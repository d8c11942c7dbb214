package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/showplan/core/meals"
	"github.com/kilianp07/showplan/internal/eventbus"
)

func ptr[T any](v T) *T { return &v }

func newDay(tasks ...Task) Input {
	return Input{
		PlanID:               1,
		WorkDay:              Clock{Start: "09:00", End: "18:00"},
		Meal:                 Clock{Start: "12:00", End: "14:00"},
		MealTaskTemplateName: "Meal",
		Tasks:                tasks,
	}
}

func task(id, tpl, zone, space, dur int) Task {
	return Task{
		ID:           id,
		TemplateID:   tpl,
		TemplateName: "",
		ZoneID:       zone,
		SpaceID:      space,
		DurationMin:  ptr(dur),
	}
}

func mustPlanned(t *testing.T, res Result, id int) PlannedTask {
	t.Helper()
	pt, ok := res.Planned(id)
	require.True(t, ok, "task %d not planned", id)
	return pt
}

func assertSlot(t *testing.T, res Result, id int, start, end string) {
	t.Helper()
	pt := mustPlanned(t, res, id)
	assert.Equal(t, start, pt.StartPlanned, "start of task %d", id)
	assert.Equal(t, end, pt.EndPlanned, "end of task %d", id)
}

func unplannedCode(res Result, id int) string {
	for _, u := range res.Unplanned {
		if u.TaskID == id {
			return u.Reason.Code
		}
	}
	return ""
}

func TestSolveSimplePrecedence(t *testing.T) {
	first := task(1, 1, 1, 10, 30)
	second := task(2, 2, 1, 10, 30)
	second.DependsOnTaskIDs = []int{1}

	res, err := Solve(context.Background(), newDay(first, second), Options{})
	require.NoError(t, err)
	assert.True(t, res.Feasible)
	assert.True(t, res.HardFeasible)
	assert.True(t, res.Complete)
	require.Len(t, res.PlannedTasks, 2)
	assertSlot(t, res, 1, "09:00", "09:30")
	assertSlot(t, res, 2, "09:30", "10:00")

	pt := mustPlanned(t, res, 2)
	require.NotNil(t, pt.AssignedSpace)
	assert.Equal(t, 10, *pt.AssignedSpace)
	assert.Empty(t, pt.AssignedResources)
	assert.Empty(t, res.Unplanned)
}

func TestSolveDependencyGating(t *testing.T) {
	feeder := task(1, 1, 2, 20, 60)
	gated := task(2, 2, 1, 10, 30)
	gated.DependsOnTaskIDs = []int{1}
	free := task(3, 3, 1, 10, 30)

	res, err := Solve(context.Background(), newDay(feeder, gated, free), Options{})
	require.NoError(t, err)
	assertSlot(t, res, 1, "09:00", "10:00")
	assertSlot(t, res, 2, "10:00", "10:30")
	assertSlot(t, res, 3, "09:00", "09:30")
}

func TestSolveContestantAvailability(t *testing.T) {
	long := task(1, 1, 1, 10, 60)
	long.ContestantID = 7
	short := task(2, 2, 1, 10, 30)
	short.ContestantID = 7

	in := newDay(long, short)
	in.ContestantAvailabilityByID = map[int]Clock{7: {Start: "10:00", End: "11:00"}}

	res, err := Solve(context.Background(), in, Options{})
	require.NoError(t, err)
	assertSlot(t, res, 1, "10:00", "11:00")
	assert.Equal(t, CodeContestantNotAvailable, unplannedCode(res, 2))
	assert.False(t, res.Complete)
	assert.False(t, res.Feasible)
	assert.True(t, res.HardFeasible)
	require.Len(t, res.Reasons, 1)
	assert.Equal(t, CodeContestantNotAvailable, res.Reasons[0].Code)
}

func TestSolveSoftReasons(t *testing.T) {
	noSpace := task(1, 1, 1, 0, 30)
	absent := task(2, 2, 1, 10, 30)
	absent.ContestantID = 4
	tooLong := task(3, 3, 1, 11, 600)

	in := newDay(noSpace, absent, tooLong)
	in.ContestantAvailabilityByID = map[int]Clock{4: {Start: "19:00", End: "20:00"}}

	res, err := Solve(context.Background(), in, Options{})
	require.NoError(t, err)
	assert.Equal(t, CodeMissingSpace, unplannedCode(res, 1))
	assert.Equal(t, CodeContestantNoAvailability, unplannedCode(res, 2))
	assert.Equal(t, CodeNoTime, unplannedCode(res, 3))
	assert.Empty(t, res.PlannedTasks)

	w, ok := res.Warning(CodeNoTasksPlannedSummary)
	require.True(t, ok)
	assert.Contains(t, w.Message, "3 left unplanned")
}

func TestSolveStrictRejectsUnplanned(t *testing.T) {
	ok := task(1, 1, 1, 10, 30)
	tooLong := task(2, 2, 1, 11, 600)

	res, err := Solve(context.Background(), newDay(ok, tooLong), Options{Strict: true})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInfeasible))

	var ie *InfeasibleError
	require.True(t, errors.As(err, &ie))
	assert.True(t, ie.HasCode(CodeNoTime))
	assert.False(t, res.Feasible)
	assert.Empty(t, res.PlannedTasks)
	require.Len(t, res.Reasons, 1)
}

func TestSolveMaxIter(t *testing.T) {
	ResetMetrics(prometheus.NewRegistry())

	done := task(1, 1, 1, 10, 60)
	done.Status = StatusDone
	done.StartPlanned, done.EndPlanned = "09:00", "10:00"
	next := task(2, 2, 1, 10, 30)

	res, err := Solve(context.Background(), newDay(done, next), Options{PlacementBudget: 1})
	require.NoError(t, err, "a budget overrun is not an infeasibility")
	assert.Equal(t, CodeMaxIter, unplannedCode(res, 2))
	assertSlot(t, res, 1, "09:00", "10:00")
	assert.Equal(t, float64(1), testutil.ToFloat64(placementBudgetExhausted))

	for _, u := range res.Unplanned {
		assert.Contains(t, u.Reason.Message, ErrSearchBudgetExceeded.Error())
	}
}

func TestSolveContestantMeal(t *testing.T) {
	meal := Task{ID: 1, TemplateName: "Meal", ContestantID: 7}
	shoot := task(2, 2, 1, 10, 240)
	shoot.ContestantID = 7

	res, err := Solve(context.Background(), newDay(meal, shoot), Options{})
	require.NoError(t, err)
	require.True(t, res.Complete)

	m := mustPlanned(t, res, 1)
	s := mustPlanned(t, res, 2)
	assert.GreaterOrEqual(t, m.StartPlanned, "12:00")
	assert.LessOrEqual(t, m.EndPlanned, "14:00")
	overlap := s.StartPlanned < m.EndPlanned && m.StartPlanned < s.EndPlanned
	assert.False(t, overlap, "meal %s-%s overlaps shoot %s-%s", m.StartPlanned, m.EndPlanned, s.StartPlanned, s.EndPlanned)
}

func TestSolveMealWindowTooShort(t *testing.T) {
	in := newDay(Task{ID: 1, TemplateName: "Meal", ContestantID: 7, ContestantName: "Ana"})
	in.Meal = Clock{Start: "12:00", End: "13:00"}

	res, err := Solve(context.Background(), in, Options{})
	var ie *InfeasibleError
	require.True(t, errors.As(err, &ie))
	require.True(t, ie.HasCode(CodeMealContestantNoFit))
	assert.False(t, res.Feasible)
	assert.Empty(t, res.PlannedTasks)

	d, ok := res.Reasons[0].Details.(meals.Diagnostic)
	require.True(t, ok)
	assert.Equal(t, meals.ReasonEffectiveWindow, d.FailReason)
	assert.Equal(t, 7, d.FailingContestantID)
	assert.Equal(t, "Ana", d.FailingContestantName)
	assert.Equal(t, 0, d.ViableSlotsCount)
	assert.Contains(t, res.Reasons[0].Message, "Ana")
}

func TestSolveMealCapacityImpossible(t *testing.T) {
	in := newDay(
		Task{ID: 1, TemplateName: "Meal", ContestantID: 1},
		Task{ID: 2, TemplateName: "Meal", ContestantID: 2},
		Task{ID: 3, TemplateName: "Meal", ContestantID: 3},
	)
	in.ContestantMealDurationMinutes = ptr(60)
	in.ContestantMealMaxSimultaneous = ptr(1)

	res, err := Solve(context.Background(), in, Options{})
	var ie *InfeasibleError
	require.True(t, errors.As(err, &ie))
	require.True(t, ie.HasCode(CodeMealContestantNoFit))

	d, ok := res.Reasons[0].Details.(meals.Diagnostic)
	require.True(t, ok)
	assert.True(t, d.IsCapacityImpossible)
	assert.Equal(t, 3, d.MealsNeeded)
	assert.Equal(t, 2, d.CapacityTheoretical)
}

func TestSolveZoneMealBlocksZone(t *testing.T) {
	zoneMeal := Task{ID: 1, TemplateName: "Meal", ZoneID: 1}
	shoot := task(2, 2, 1, 10, 240)

	res, err := Solve(context.Background(), newDay(zoneMeal, shoot), Options{})
	require.NoError(t, err)
	assertSlot(t, res, 1, "12:00", "13:15")
	assertSlot(t, res, 2, "13:15", "17:15")
	pt := mustPlanned(t, res, 1)
	assert.Nil(t, pt.AssignedSpace)
}

func TestSolveSpaceBreak(t *testing.T) {
	brk := Task{ID: 1, TemplateName: "Crew lunch", SpaceID: 10, BreakKind: BreakSpaceMeal}
	shoot := task(2, 2, 1, 10, 240)

	res, err := Solve(context.Background(), newDay(brk, shoot), Options{})
	require.NoError(t, err)
	assertSlot(t, res, 1, "12:00", "12:45")
	assertSlot(t, res, 2, "12:45", "16:45")
}

func TestSolveSpaceBreakNoFit(t *testing.T) {
	brk := Task{ID: 1, TemplateName: "Crew lunch", SpaceID: 10, BreakKind: BreakSpaceMeal,
		FixedWindowStart: "12:00", FixedWindowEnd: "12:30"}
	shoot := task(2, 2, 1, 10, 30)

	_, err := Solve(context.Background(), newDay(brk, shoot), Options{})
	var ie *InfeasibleError
	require.True(t, errors.As(err, &ie))
	assert.True(t, ie.HasCode(CodeSpaceBreakNoFit))
}

func TestSolveItinerantWrap(t *testing.T) {
	interview := task(1, 1, 1, 10, 30)
	interview.TemplateName = "Interview"
	interview.ContestantID = 7
	interview.Status = StatusDone
	interview.StartPlanned, interview.EndPlanned = "09:00", "09:30"

	sound := task(2, 2, 1, 10, 20)
	sound.TemplateName = "Sound"
	sound.ContestantID = 7
	sound.ItinerantTeamID = 3

	in := newDay(interview, sound)
	in.WorkDay.Start = "08:00"

	res, err := Solve(context.Background(), in, Options{})
	require.NoError(t, err)
	assertSlot(t, res, 1, "09:00", "09:30")
	assertSlot(t, res, 2, "08:50", "09:40")
	_, warned := res.Warning(CodeItinerantWrapNotFeasible)
	assert.False(t, warned)
}

func TestSolvePublishesPlacementEvents(t *testing.T) {
	bus := eventbus.NewTyped[PlacementEvent]()
	sub := bus.Subscribe()
	defer bus.Close()

	first := task(1, 1, 1, 10, 30)
	second := task(2, 2, 1, 0, 30)

	_, err := Solve(context.Background(), newDay(first, second), Options{Events: bus, RunID: "run-1"})
	require.NoError(t, err)

	got := make(map[int]PlacementEvent)
	for i := 0; i < 2; i++ {
		e := <-sub
		got[e.TaskID] = e
	}
	assert.True(t, got[1].Placed)
	assert.Equal(t, "run-1", got[1].RunID)
	assert.Equal(t, 540, got[1].Start)
	assert.Equal(t, 10, got[1].SpaceID)
	assert.False(t, got[2].Placed)
	assert.Equal(t, CodeMissingSpace, got[2].Code)
}

func TestSolveHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Solve(ctx, newDay(task(1, 1, 1, 10, 30)), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSolveRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ResetMetrics(reg)

	_, err := Solve(context.Background(), newDay(task(1, 1, 1, 10, 30)), Options{})
	require.NoError(t, err)
	_, err = Solve(context.Background(), newDay(task(1, 1, 1, 0, 30)), Options{})
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(solveRuns.WithLabelValues("complete")))
	assert.Equal(t, float64(1), testutil.ToFloat64(solveRuns.WithLabelValues("partial")))
	assert.Equal(t, float64(1), testutil.ToFloat64(unplannedTasks.WithLabelValues(CodeMissingSpace)))
	assert.Equal(t, float64(2), testutil.ToFloat64(searchCandidates))
}
