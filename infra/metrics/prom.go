package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/showplan/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records solve runs in Prometheus metrics.
type PromSink struct {
	runs       *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	unplanned  *prometheus.CounterVec
	planned    prometheus.Gauge
	gapMinutes prometheus.Gauge
}

// NewPromSink registers solver metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "showplan_service_solves_total",
		Help: "Total number of solve runs by outcome",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "showplan_service_solve_duration_seconds",
		Help:    "Wall time of a solve run",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	unplanned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "showplan_service_unplanned_tasks_total",
		Help: "Tasks left unplanned, by reason code",
	}, []string{"code"})
	planned := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "showplan_last_planned_tasks",
		Help: "Planned tasks in the most recent run",
	})
	gapMinutes := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "showplan_last_main_zone_gap_minutes",
		Help: "Idle minutes between main zone tasks in the most recent run",
	})

	var err error
	if runs, err = register(reg, runs); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if unplanned, err = register(reg, unplanned); err != nil {
		return nil, err
	}
	if planned, err = register(reg, planned); err != nil {
		return nil, err
	}
	if gapMinutes, err = register(reg, gapMinutes); err != nil {
		return nil, err
	}
	return &PromSink{runs: runs, duration: duration, unplanned: unplanned, planned: planned, gapMinutes: gapMinutes}, nil
}

// register returns the collector already registered under the same
// descriptor, if any.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordSolve updates the run counters and the last-run gauges.
func (s *PromSink) RecordSolve(ev coremetrics.SolveEvent) error {
	s.runs.WithLabelValues(ev.Outcome).Inc()
	s.duration.WithLabelValues(ev.Outcome).Observe(ev.Duration.Seconds())
	s.planned.Set(float64(ev.Planned))
	s.gapMinutes.Set(float64(ev.GapMinutes))
	return nil
}

// RecordUnplanned counts unplanned tasks per reason code.
func (s *PromSink) RecordUnplanned(evs []coremetrics.UnplannedEvent) error {
	for _, ev := range evs {
		s.unplanned.WithLabelValues(ev.Code).Inc()
	}
	return nil
}
