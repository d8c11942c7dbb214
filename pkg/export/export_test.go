package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/showplan/core/planner"
)

func ptr[T any](v T) *T { return &v }

func sample() (planner.Input, planner.Result) {
	in := planner.Input{
		PlanID:               5,
		TaskTemplateNameByID: map[int]string{3: "Interview"},
		Tasks: []planner.Task{
			{ID: 1, TemplateName: "Makeup", ContestantID: 4, ZoneID: 1, SpaceID: 10},
			{ID: 2, TemplateID: 3, ContestantID: 4, ZoneID: 2, SpaceID: 20},
			{ID: 3, IsManualBlock: true, ManualTitle: "Setup", ZoneID: 2},
		},
	}
	res := planner.Result{
		Feasible:     true,
		HardFeasible: true,
		PlannedTasks: []planner.PlannedTask{
			{TaskID: 2, StartPlanned: "10:00", EndPlanned: "10:30", AssignedSpace: ptr(20), AssignedResources: []int{7, 9}},
			{TaskID: 1, StartPlanned: "09:00", EndPlanned: "09:30", AssignedSpace: ptr(10)},
		},
		Unplanned: []planner.Unplanned{{TaskID: 3, Reason: planner.Reason{Code: planner.CodeMissingSpace}}},
	}
	return in, res
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("CSV")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	in, res := sample()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in, res))
	want := "task_id,template,contestant_id,zone_id,space_id,status,start,end,assigned_space,assigned_resources,reason\n" +
		"1,Makeup,4,1,10,planned,09:00,09:30,10,,\n" +
		"2,Interview,4,2,20,planned,10:00,10:30,20,7;9,\n" +
		"3,Setup,,2,,unplanned,,,,,MISSING_SPACE\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteJSON(t *testing.T) {
	_, res := sample()
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, res))
	var out planner.Result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Len(t, out.PlannedTasks, 2)
	assert.Contains(t, buf.String(), "\n  \"feasible\": true")
}

func TestCBORSnapshot(t *testing.T) {
	in, res := sample()
	var a, b bytes.Buffer
	require.NoError(t, Write(&a, FormatCBOR, in, res, "run-1"))
	require.NoError(t, Write(&b, FormatCBOR, in, res, "run-1"))
	assert.Equal(t, a.Bytes(), b.Bytes(), "deterministic encoding")

	snap, err := ReadCBOR(&a)
	require.NoError(t, err)
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, 5, snap.PlanID)
	assert.Equal(t, planner.OutcomePartial, snap.Outcome)
	assert.Equal(t, map[int]string{3: planner.CodeMissingSpace}, snap.Unplanned)
	require.Len(t, snap.Planned, 2)
	assert.Equal(t, 20, *snap.Planned[0].AssignedSpace)
}

func TestSnapshotOfRejectedPlan(t *testing.T) {
	s := NewSnapshot("r", 1, planner.Result{})
	assert.Equal(t, planner.OutcomeInfeasible, s.Outcome)
	assert.Nil(t, s.Unplanned)
}
