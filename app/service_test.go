package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/showplan/config"
	"github.com/kilianp07/showplan/core/factory"
	coremetrics "github.com/kilianp07/showplan/core/metrics"
	coremon "github.com/kilianp07/showplan/core/monitoring"
	coremqtt "github.com/kilianp07/showplan/core/mqtt"
	"github.com/kilianp07/showplan/core/planner"
	"github.com/kilianp07/showplan/core/planner/runlog"
	"github.com/kilianp07/showplan/infra/logger"
	"github.com/kilianp07/showplan/infra/mqtt"
)

type recordSink struct {
	mu        sync.Mutex
	solves    []coremetrics.SolveEvent
	unplanned []coremetrics.UnplannedEvent
	closed    bool
}

func (r *recordSink) RecordSolve(ev coremetrics.SolveEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.solves = append(r.solves, ev)
	return nil
}

func (r *recordSink) RecordUnplanned(evs []coremetrics.UnplannedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unplanned = append(r.unplanned, evs...)
	return nil
}

func (r *recordSink) Close() { r.closed = true }

type recordMonitor struct {
	mu   sync.Mutex
	errs []error
	tags []map[string]string
}

func (m *recordMonitor) CaptureException(err error, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, err)
	m.tags = append(m.tags, tags)
}
func (m *recordMonitor) RecoverPanic(any)    {}
func (m *recordMonitor) Flush(time.Duration) {}

type failingStore struct{ runlog.Store }

func (failingStore) Append(context.Context, runlog.Record) error { return errors.New("disk full") }
func (failingStore) Close() error                                { return nil }

func ptr[T any](v T) *T { return &v }

func day(tasks ...planner.Task) planner.Input {
	return planner.Input{
		PlanID:               7,
		WorkDay:              planner.Clock{Start: "09:00", End: "18:00"},
		Meal:                 planner.Clock{Start: "12:00", End: "14:00"},
		MealTaskTemplateName: "Meal",
		Tasks:                tasks,
	}
}

func partialDay() planner.Input {
	return day(
		planner.Task{ID: 1, TemplateID: 1, ZoneID: 1, SpaceID: 10, DurationMin: ptr(30)},
		planner.Task{ID: 2, TemplateID: 2, ZoneID: 1, DurationMin: ptr(30)},
	)
}

type fixture struct {
	svc  *Service
	sink *recordSink
	pub  *mqtt.MockPublisher
	path string
}

func newFixture(t *testing.T, edit func(*config.Config)) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.RunLog = runlog.Config{Backend: runlog.BackendJSONL, Path: filepath.Join(t.TempDir(), "runs.jsonl")}
	if edit != nil {
		edit(cfg)
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	f := &fixture{sink: &recordSink{}, pub: mqtt.NewMockPublisher(), path: cfg.RunLog.Path}
	svc, err := New(cfg, WithSink(f.sink), WithPublisher(f.pub), WithLogger(logger.NopLogger{}))
	require.NoError(t, err)
	ids := 0
	svc.newRunID = func() string {
		ids++
		return fmt.Sprintf("run-%d", ids)
	}
	f.svc = svc
	t.Cleanup(func() { _ = svc.Close() })
	return f
}

func (f *fixture) records(t *testing.T) []runlog.Record {
	t.Helper()
	st, err := runlog.NewJSONLStore(f.path)
	require.NoError(t, err)
	defer st.Close()
	recs, err := st.Query(context.Background(), runlog.Query{})
	require.NoError(t, err)
	return recs
}

func TestServiceSolveReportsRun(t *testing.T) {
	f := newFixture(t, nil)
	placements := f.svc.Placements().Subscribe()

	run, err := f.svc.Solve(context.Background(), partialDay())
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, planner.OutcomePartial, run.Outcome)
	require.Len(t, run.Result.Unplanned, 1)

	require.NoError(t, f.svc.Close())

	require.Len(t, f.sink.solves, 1)
	ev := f.sink.solves[0]
	assert.Equal(t, "run-1", ev.RunID)
	assert.Equal(t, 7, ev.PlanID)
	assert.Equal(t, planner.OutcomePartial, ev.Outcome)
	assert.Equal(t, 1, ev.Planned)
	assert.Equal(t, 1, ev.Unplanned)
	require.Len(t, f.sink.unplanned, 1)
	assert.Equal(t, 2, f.sink.unplanned[0].TaskID)
	assert.Equal(t, planner.CodeMissingSpace, f.sink.unplanned[0].Code)
	assert.True(t, f.sink.closed)

	require.Equal(t, 1, f.pub.Count())
	msg := f.pub.Messages[coremqtt.PlanTopic("", 7)]
	assert.Equal(t, "run-1", msg.RunID)
	assert.Equal(t, planner.OutcomePartial, msg.Outcome)
	assert.True(t, f.pub.Closed)

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "run-1", recs[0].RunID)
	assert.Equal(t, 1, recs[0].Planned)
	assert.Equal(t, []string{planner.CodeMissingSpace}, recs[0].Reasons)

	placed := map[int]bool{}
	for e := range placements {
		assert.Equal(t, "run-1", e.RunID)
		placed[e.TaskID] = e.Placed
	}
	assert.True(t, placed[1])
	assert.False(t, placed[2])
}

func TestServiceStrictRejection(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Solver.Strict = true })

	run, err := f.svc.Solve(context.Background(), partialDay())
	require.Error(t, err)
	assert.ErrorIs(t, err, planner.ErrInfeasible)
	assert.Equal(t, planner.OutcomeInfeasible, run.Outcome)
	assert.False(t, run.Result.Feasible)
	require.NoError(t, f.svc.Close())

	assert.Equal(t, 1, f.pub.Count(), "rejections are published")
	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Equal(t, planner.OutcomeInfeasible, recs[0].Outcome)
	assert.NotEmpty(t, recs[0].Error)
}

func TestServiceCanceledSolve(t *testing.T) {
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(nil)

	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := f.svc.Solve(ctx, partialDay())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, planner.OutcomeError, run.Outcome)
	require.NoError(t, f.svc.Close())

	assert.Zero(t, f.pub.Count(), "failed solves are not published")
	assert.Empty(t, mon.errs, "cancellation is not an incident")
	recs := f.records(t)
	require.Len(t, recs, 1, "the run is still logged")
	assert.Equal(t, planner.OutcomeError, recs[0].Outcome)
}

func TestServiceRunLogFailureIsCaptured(t *testing.T) {
	mon := &recordMonitor{}
	coremon.Init(mon)
	defer coremon.Init(nil)

	cfg := &config.Config{}
	cfg.RunLog.Backend = runlog.BackendNone
	cfg.SetDefaults()
	svc, err := New(cfg, WithStore(failingStore{}), WithSink(coremetrics.NopSink{}), WithLogger(logger.NopLogger{}))
	require.NoError(t, err)
	defer svc.Close()

	_, err = svc.Solve(context.Background(), partialDay())
	require.NoError(t, err, "reporting failures do not fail the solve")
	require.Len(t, mon.errs, 1)
	assert.Equal(t, "runlog", mon.tags[0]["module"])
	assert.Equal(t, "7", mon.tags[0]["plan_id"])
}

func TestServiceWithoutRunLog(t *testing.T) {
	cfg := &config.Config{}
	cfg.RunLog.Backend = runlog.BackendNone
	cfg.SetDefaults()
	svc, err := New(cfg, WithLogger(logger.NopLogger{}))
	require.NoError(t, err)
	assert.Nil(t, svc.Store())

	run, err := svc.Solve(context.Background(), partialDay())
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close(), "close is idempotent")
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.RunLog.Backend = "redis"
	_, err := New(cfg, WithLogger(logger.NopLogger{}))
	assert.Error(t, err)

	cfg = &config.Config{}
	cfg.SetDefaults()
	cfg.RunLog.Backend = runlog.BackendNone
	cfg.Metrics.Sinks = append(cfg.Metrics.Sinks, factory.ModuleConfig{Type: "statsd"})
	_, err = New(cfg, WithLogger(logger.NopLogger{}))
	assert.Error(t, err)
}
