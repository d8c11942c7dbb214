package scenarios

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/showplan/core/planner"
)

func TestScenario(t *testing.T) {
	all, err := LoadDir("testdata")
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for _, sc := range all {
		t.Run(sc.Name, func(t *testing.T) {
			rep := Run(context.Background(), sc, planner.Options{})
			for _, f := range rep.Failures {
				t.Error(f)
			}
		})
	}
}

func TestRunReportsMismatches(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "01_simple_precedence.yaml"))
	require.NoError(t, err)
	sc.Expected.Slots[2] = "10:00-10:30"
	sc.Expected.Error = "infeasible"

	rep := Run(context.Background(), sc, planner.Options{})
	assert.False(t, rep.Passed())
	assert.Len(t, rep.Failures, 2)
}

func TestLoadResolvesInputFile(t *testing.T) {
	sc, err := Load(filepath.Join("testdata", "06_strict_mode.yaml"))
	require.NoError(t, err)
	assert.True(t, sc.Strict)
	assert.Equal(t, 6, sc.Input.PlanID)
	assert.Len(t, sc.Input.Tasks, 2)
}

func TestLoadInvalid(t *testing.T) {
	if _, err := Load("no-file.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
	tmp, err := os.CreateTemp(t.TempDir(), "bad*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := tmp.WriteString(":"); err != nil {
		t.Fatal(err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(tmp.Name()); err == nil {
		t.Fatal("expected unmarshal error")
	}
}
