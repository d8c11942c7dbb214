package planner

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveDuration            *prometheus.HistogramVec
	solveRuns                *prometheus.CounterVec
	unplannedTasks           *prometheus.CounterVec
	searchCandidates         prometheus.Counter
	placementBudgetExhausted prometheus.Counter
	mealBudgetExhausted      prometheus.Counter
	directorBudgetExhausted  prometheus.Counter
	directorRollbacks        prometheus.Counter
	mainZoneGapMinutes       prometheus.Gauge
)

type collectors struct {
	duration  *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	unplanned *prometheus.CounterVec
	cands     prometheus.Counter
	placement prometheus.Counter
	meal      prometheus.Counter
	director  prometheus.Counter
	rollbacks prometheus.Counter
	gaps      prometheus.Gauge
}

// newCollectors creates new metric collectors.
func newCollectors() collectors {
	return collectors{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "showplan_solve_duration_seconds",
				Help:    "Wall time of one solve",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		runs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showplan_solve_total",
				Help: "Number of solves by outcome",
			},
			[]string{"outcome"},
		),
		unplanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "showplan_unplanned_tasks_total",
				Help: "Number of tasks left unplanned by reason code",
			},
			[]string{"code"},
		),
		cands: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showplan_search_candidates_total",
			Help: "Number of greedy runs evaluated by the outer search",
		}),
		placement: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showplan_placement_budget_exhausted_total",
			Help: "Number of task placements that hit the iteration cap",
		}),
		meal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showplan_meal_budget_exhausted_total",
			Help: "Number of meal searches that hit the node cap",
		}),
		director: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showplan_director_budget_exhausted_total",
			Help: "Number of continuity passes that hit the iteration cap",
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showplan_director_rollbacks_total",
			Help: "Number of continuity passes rolled back after an overlap",
		}),
		gaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showplan_main_zone_gap_minutes",
			Help: "Idle minutes left in the main zone by the last solve",
		}),
	}
}

func (c collectors) install() {
	solveDuration = c.duration
	solveRuns = c.runs
	unplannedTasks = c.unplanned
	searchCandidates = c.cands
	placementBudgetExhausted = c.placement
	mealBudgetExhausted = c.meal
	directorBudgetExhausted = c.director
	directorRollbacks = c.rollbacks
	mainZoneGapMinutes = c.gaps
}

func init() {
	newCollectors().install()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers planner metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		solveDuration, solveRuns, unplannedTasks, searchCandidates,
		placementBudgetExhausted, mealBudgetExhausted, directorBudgetExhausted,
		directorRollbacks, mainZoneGapMinutes,
	)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	newCollectors().install()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
