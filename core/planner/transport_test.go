package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transportDay() Input {
	var tasks []Task
	for c := 1; c <= 3; c++ {
		tasks = append(tasks,
			Task{ID: c, TemplateName: "Arrival", ZoneID: 1, ContestantID: c, DurationMin: ptr(30)},
			Task{ID: 10 + c, TemplateName: "Departure", ZoneID: 1, ContestantID: c, DurationMin: ptr(30)},
		)
	}
	in := newDay(tasks...)
	in.ArrivalTaskTemplateName = "Arrival"
	in.DepartureTaskTemplateName = "Departure"
	in.VanCapacity = 2
	in.ArrivalGroupingTarget = 2
	in.DepartureGroupingTarget = 2
	in.OptimizerWeights.ArrivalDepartureGrouping = ptr(5.0)
	in.ContestantAvailabilityByID = map[int]Clock{
		1: {Start: "09:20", End: "17:00"},
		2: {Start: "09:10", End: "18:00"},
		3: {Start: "10:00", End: "16:30"},
	}
	return in
}

func TestBatchTransport(t *testing.T) {
	in := transportDay()
	p, err := buildPlan(&in, Options{}.withDefaults())
	require.NoError(t, err)

	assert.Equal(t, map[int]int{1: 560, 2: 560, 3: 600}, p.forcedStart)
	assert.Equal(t, map[int]int{12: 1020, 11: 1020, 13: 990}, p.forcedEnd)
}

func TestBatchTransportDisabled(t *testing.T) {
	in := transportDay()
	in.OptimizerWeights.ArrivalDepartureGrouping = nil
	p, err := buildPlan(&in, Options{}.withDefaults())
	require.NoError(t, err)
	assert.Empty(t, p.forcedStart)
	assert.Empty(t, p.forcedEnd)

	in = transportDay()
	in.VanCapacity = 0
	p, err = buildPlan(&in, Options{}.withDefaults())
	require.NoError(t, err)
	assert.Empty(t, p.forcedStart)
}

func TestSolveSharesVanSlots(t *testing.T) {
	res, err := Solve(context.Background(), transportDay(), Options{})
	require.NoError(t, err)
	assert.True(t, res.Complete)

	assertSlot(t, res, 1, "09:20", "09:50")
	assertSlot(t, res, 2, "09:20", "09:50")
	assertSlot(t, res, 3, "10:00", "10:30")
	assertSlot(t, res, 11, "16:30", "17:00")
	assertSlot(t, res, 12, "16:30", "17:00")
	assertSlot(t, res, 13, "16:00", "16:30")

	pt := mustPlanned(t, res, 1)
	assert.Nil(t, pt.AssignedSpace, "vans run outside any space")
}
