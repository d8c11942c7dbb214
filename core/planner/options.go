package planner

import (
	"runtime"

	"github.com/kilianp07/showplan/core/logger"
	"github.com/kilianp07/showplan/core/meals"
	"github.com/kilianp07/showplan/internal/eventbus"
)

// Default iteration caps and search sizes.
const (
	DefaultPlacementBudget   = 20_000
	DefaultDirectorBudget    = 300
	DefaultDirectorGapBudget = 50
	DefaultMealNodeBudget    = 200_000
	DefaultGateAttempts      = 60
	DefaultMealCandidates    = 10
)

// Options tunes one Solve call. The zero value is usable.
type Options struct {
	Logger logger.Logger
	// Events receives one PlacementEvent per committed or failed task of the
	// winning run. Nil disables publication.
	Events *eventbus.TypedBus[PlacementEvent]
	// RunID stamps log lines and events.
	RunID string

	MealDuration        int
	MealMaxSimultaneous int

	PlacementBudget   int
	DirectorBudget    int
	DirectorGapBudget int
	MealNodeBudget    int

	GateAttempts   int
	MealCandidates int
	// SearchWorkers bounds the goroutines evaluating outer-search
	// candidates. Values <= 1 run candidates sequentially.
	SearchWorkers int

	// Strict rejects the whole plan when any task stays unplanned.
	Strict bool
}

func (o Options) withDefaults() Options {
	o.Logger = logger.OrNop(o.Logger)
	if o.MealDuration <= 0 {
		o.MealDuration = meals.DefaultDuration
	}
	if o.MealMaxSimultaneous <= 0 {
		o.MealMaxSimultaneous = meals.DefaultMaxSimultaneous
	}
	if o.PlacementBudget <= 0 {
		o.PlacementBudget = DefaultPlacementBudget
	}
	if o.DirectorBudget <= 0 {
		o.DirectorBudget = DefaultDirectorBudget
	}
	if o.DirectorGapBudget <= 0 {
		o.DirectorGapBudget = DefaultDirectorGapBudget
	}
	if o.MealNodeBudget <= 0 {
		o.MealNodeBudget = DefaultMealNodeBudget
	}
	if o.GateAttempts <= 0 {
		o.GateAttempts = DefaultGateAttempts
	}
	if o.MealCandidates <= 0 {
		o.MealCandidates = DefaultMealCandidates
	}
	if o.SearchWorkers < 0 {
		o.SearchWorkers = runtime.GOMAXPROCS(0)
	}
	return o
}

// PlacementEvent reports the outcome of one task in the selected run.
type PlacementEvent struct {
	RunID   string `json:"runId,omitempty"`
	TaskID  int    `json:"taskId"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	SpaceID int    `json:"spaceId,omitempty"`
	Placed  bool   `json:"placed"`
	Code    string `json:"code,omitempty"`
}
