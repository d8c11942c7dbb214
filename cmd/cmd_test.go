package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/showplan/core/planner"
	"github.com/kilianp07/showplan/core/planner/runlog"
)

const day = `planId: 3
workDay: {start: "09:00", end: "18:00"}
meal: {start: "12:00", end: "14:00"}
mealTaskTemplateName: Meal
tasks:
  - {id: 1, templateId: 1, zoneId: 1, spaceId: 10, durationOverrideMin: 30}
  - {id: 2, templateId: 2, zoneId: 1, spaceId: 10, durationOverrideMin: 30, dependsOnTaskIds: [1]}
`

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSolveThenListRuns(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHOWPLAN_RUNLOG__PATH", filepath.Join(dir, "runs.jsonl"))
	t.Setenv("SHOWPLAN_LOGGING__OUTPUT", filepath.Join(dir, "showplan.log"))
	input := filepath.Join(dir, "day.yaml")
	require.NoError(t, os.WriteFile(input, []byte(day), 0o600))
	output := filepath.Join(dir, "plan.json")

	_, err := execute(t, "solve", "-i", input, "-o", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var res planner.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.True(t, res.Complete)
	assert.Len(t, res.PlannedTasks, 2)

	out, err := execute(t, "runs", "--json", "--plan", "3")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	var rec runlog.Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, planner.OutcomeComplete, rec.Outcome)
	assert.Equal(t, 2, rec.Planned)

	out, err = execute(t, "runs", "--json=false", "--plan", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "OUTCOME")
	assert.Contains(t, out, rec.RunID)
}

func TestSolveRejectsUnknownFormat(t *testing.T) {
	t.Setenv("SHOWPLAN_RUNLOG__BACKEND", "none")
	_, err := execute(t, "solve", "-i", "missing.yaml", "-f", "xml")
	assert.Error(t, err)
}

func TestScenarioCommand(t *testing.T) {
	t.Setenv("SHOWPLAN_RUNLOG__BACKEND", "none")
	out, err := execute(t, "scenario", filepath.Join("..", "qa", "scenarios", "testdata"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "scenarios passed")
	assert.NotContains(t, out, "FAIL")
}
