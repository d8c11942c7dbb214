package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coremetrics "github.com/kilianp07/showplan/core/metrics"
	"github.com/kilianp07/showplan/core/planner"
)

func TestPromSinkRecordsRuns(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{Outcome: "complete", Planned: 10, GapMinutes: 30, Duration: time.Second}))
	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{Outcome: "partial", Planned: 8, GapMinutes: 15}))
	require.NoError(t, sink.RecordSolve(coremetrics.SolveEvent{Outcome: "partial", Planned: 9}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sink.runs.WithLabelValues("complete")))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.runs.WithLabelValues("partial")))
	assert.Equal(t, 9.0, testutil.ToFloat64(sink.planned))
	assert.Zero(t, testutil.ToFloat64(sink.gapMinutes))
	assert.Equal(t, 2, testutil.CollectAndCount(sink.duration))
}

func TestPromSinkRecordsUnplanned(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, sink.RecordUnplanned([]coremetrics.UnplannedEvent{
		{TaskID: 1, Code: "NO_TIME"},
		{TaskID: 2, Code: "NO_TIME"},
		{TaskID: 3, Code: "DEPENDENCY_MISSING"},
	}))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.unplanned.WithLabelValues("NO_TIME")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.unplanned.WithLabelValues("DEPENDENCY_MISSING")))
}

func TestPromSinkReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
	second, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)

	require.NoError(t, second.RecordSolve(coremetrics.SolveEvent{Outcome: "error"}))
	assert.Equal(t, 1.0, testutil.ToFloat64(first.runs.WithLabelValues("error")))
	assert.Same(t, first.runs, second.runs)
}

func TestPromSinkCoexistsWithPlannerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	planner.MustRegisterMetrics(reg)
	_, err := NewPromSinkWithRegistry(reg)
	require.NoError(t, err)
}
