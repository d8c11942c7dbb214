// Package app wires the solver to its outer surfaces: run log, metrics,
// MQTT publication and error monitoring.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/showplan/config"
	coremetrics "github.com/kilianp07/showplan/core/metrics"
	coremon "github.com/kilianp07/showplan/core/monitoring"
	coremqtt "github.com/kilianp07/showplan/core/mqtt"
	"github.com/kilianp07/showplan/core/planner"
	"github.com/kilianp07/showplan/core/planner/runlog"
	"github.com/kilianp07/showplan/infra/logger"
	"github.com/kilianp07/showplan/infra/metrics"
	"github.com/kilianp07/showplan/infra/mqtt"
	"github.com/kilianp07/showplan/internal/eventbus"
)

// Run is the outcome of one Service.Solve call.
type Run struct {
	ID       string
	Outcome  string
	Result   planner.Result
	Duration time.Duration
}

// Service solves production days and reports every run.
type Service struct {
	solver     config.SolverConfig
	log        logger.Logger
	sink       coremetrics.MetricsSink
	store      runlog.Store
	publisher  coremqtt.Publisher
	solves     *eventbus.TypedBus[coremetrics.SolveEvent]
	placements *eventbus.TypedBus[planner.PlacementEvent]
	collected  <-chan struct{}
	cancel     context.CancelFunc
	closeOnce  sync.Once
	newRunID   func() string
}

// Option overrides a collaborator built from the configuration.
type Option func(*Service)

// WithSink replaces the configured metrics sinks.
func WithSink(s coremetrics.MetricsSink) Option { return func(svc *Service) { svc.sink = s } }

// WithStore replaces the configured run log.
func WithStore(s runlog.Store) Option { return func(svc *Service) { svc.store = s } }

// WithPublisher replaces the configured MQTT publisher.
func WithPublisher(p coremqtt.Publisher) Option { return func(svc *Service) { svc.publisher = p } }

// WithLogger replaces the service logger.
func WithLogger(l logger.Logger) Option { return func(svc *Service) { svc.log = l } }

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	svc := &Service{
		solver:     cfg.Solver,
		solves:     eventbus.NewTyped[coremetrics.SolveEvent](),
		placements: eventbus.NewTypedWithBuffer[planner.PlacementEvent](256),
		newRunID:   uuid.NewString,
	}
	for _, o := range opts {
		o(svc)
	}
	if svc.log == nil {
		svc.log = logger.New("service")
	}

	var err error
	if svc.sink == nil {
		if svc.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}
	if svc.store == nil {
		if svc.store, err = runlog.Open(cfg.RunLog); err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
	}
	if svc.publisher == nil && cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			svc.closeStore()
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
		svc.publisher = pub
	}

	ctx, cancel := context.WithCancel(context.Background())
	svc.cancel = cancel
	svc.collected = metrics.StartEventCollector(ctx, svc.solves, svc.sink)
	return svc, nil
}

// Placements exposes the per-task events of every solve. Subscribers that
// fall behind miss events.
func (s *Service) Placements() *eventbus.TypedBus[planner.PlacementEvent] { return s.placements }

// Store returns the run log, nil when disabled.
func (s *Service) Store() runlog.Store { return s.store }

// Solve plans in and reports the run. The returned error is the solver's;
// reporting failures are logged and sent to monitoring.
func (s *Service) Solve(ctx context.Context, in planner.Input) (Run, error) {
	run := Run{ID: s.newRunID()}
	log := s.log
	if zl, ok := log.(*logger.ZerologLogger); ok {
		log = zl.With("run_id", run.ID)
	}
	opts := s.solver.Options(log, run.ID)
	opts.Events = s.placements

	began := time.Now()
	res, err := planner.Solve(ctx, in, opts)
	run.Duration = time.Since(began)
	run.Result = res
	run.Outcome = planner.Outcome(res, err)

	tags := map[string]string{"run_id": run.ID, "plan_id": strconv.Itoa(in.PlanID)}
	if run.Outcome == planner.OutcomeError && !errors.Is(err, context.Canceled) {
		coremon.CaptureException(err, withModule(tags, "planner"))
	}

	s.recordMetrics(in, run)
	s.appendRecord(ctx, in, run, err, tags)
	if run.Outcome != planner.OutcomeError {
		s.publish(ctx, in, run)
	}
	return run, err
}

func (s *Service) recordMetrics(in planner.Input, run Run) {
	now := time.Now()
	gapCount, gapMinutes, _ := run.Result.MainZoneGaps()
	s.solves.Publish(coremetrics.SolveEvent{
		RunID:      run.ID,
		PlanID:     in.PlanID,
		Outcome:    run.Outcome,
		Planned:    len(run.Result.PlannedTasks),
		Unplanned:  len(run.Result.Unplanned),
		Warnings:   len(run.Result.Warnings),
		GapCount:   gapCount,
		GapMinutes: gapMinutes,
		Duration:   run.Duration,
		Time:       now,
	})

	rec, ok := s.sink.(coremetrics.UnplannedRecorder)
	if !ok || len(run.Result.Unplanned) == 0 {
		return
	}
	evs := make([]coremetrics.UnplannedEvent, 0, len(run.Result.Unplanned))
	for _, u := range run.Result.Unplanned {
		evs = append(evs, coremetrics.UnplannedEvent{
			RunID: run.ID, PlanID: in.PlanID, TaskID: u.TaskID, Code: u.Reason.Code, Time: now,
		})
	}
	if err := rec.RecordUnplanned(evs); err != nil {
		s.log.Warnf("record unplanned tasks of %s: %v", run.ID, err)
	}
}

func (s *Service) appendRecord(ctx context.Context, in planner.Input, run Run, solveErr error, tags map[string]string) {
	if s.store == nil {
		return
	}
	rec, err := runlog.NewRecord(run.ID, in, run.Result, solveErr, run.Duration)
	if err == nil {
		err = s.store.Append(context.WithoutCancel(ctx), rec)
	}
	if err != nil {
		s.log.Errorf("append run %s: %v", run.ID, err)
		coremon.CaptureException(err, withModule(tags, "runlog"))
	}
}

func (s *Service) publish(ctx context.Context, in planner.Input, run Run) {
	if s.publisher == nil {
		return
	}
	msg := coremqtt.PlanMessage{
		RunID:       run.ID,
		PlanID:      in.PlanID,
		Outcome:     run.Outcome,
		PublishedAt: time.Now().UTC(),
		Result:      run.Result,
	}
	// The publisher reports its own failures to monitoring.
	if err := s.publisher.PublishPlan(ctx, msg); err != nil {
		s.log.Errorf("publish plan %d: %v", in.PlanID, err)
	}
}

// Close flushes pending metrics and releases every collaborator.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.solves.Close()
		<-s.collected
		s.cancel()
		s.placements.Close()
		if s.publisher != nil {
			s.publisher.Close()
		}
		if c, ok := s.sink.(interface{ Close() }); ok {
			c.Close()
		}
		err = s.closeStore()
	})
	return err
}

func (s *Service) closeStore() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func withModule(tags map[string]string, module string) map[string]string {
	out := maps.Clone(tags)
	out["module"] = module
	return out
}
