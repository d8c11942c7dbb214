package config

import (
	"fmt"

	"github.com/kilianp07/showplan/core/logger"
	"github.com/kilianp07/showplan/core/meals"
	"github.com/kilianp07/showplan/core/planner"
)

// SolverConfig tunes the search budgets and the meal model.
type SolverConfig struct {
	MealDurationMinutes int  `json:"meal_duration_minutes"`
	MealMaxSimultaneous int  `json:"meal_max_simultaneous"`
	PlacementBudget     int  `json:"placement_budget"`
	DirectorBudget      int  `json:"director_budget"`
	DirectorGapBudget   int  `json:"director_gap_budget"`
	MealNodeBudget      int  `json:"meal_node_budget"`
	GateAttempts        int  `json:"gate_attempts"`
	MealCandidates      int  `json:"meal_candidates"`
	SearchWorkers       int  `json:"search_workers"`
	Strict              bool `json:"strict"`
}

// SetDefaults populates unset fields. SearchWorkers keeps zero, which
// evaluates candidates sequentially.
func (c *SolverConfig) SetDefaults() {
	if c.MealDurationMinutes == 0 {
		c.MealDurationMinutes = meals.DefaultDuration
	}
	if c.MealMaxSimultaneous == 0 {
		c.MealMaxSimultaneous = meals.DefaultMaxSimultaneous
	}
	if c.PlacementBudget == 0 {
		c.PlacementBudget = planner.DefaultPlacementBudget
	}
	if c.DirectorBudget == 0 {
		c.DirectorBudget = planner.DefaultDirectorBudget
	}
	if c.DirectorGapBudget == 0 {
		c.DirectorGapBudget = planner.DefaultDirectorGapBudget
	}
	if c.MealNodeBudget == 0 {
		c.MealNodeBudget = planner.DefaultMealNodeBudget
	}
	if c.GateAttempts == 0 {
		c.GateAttempts = planner.DefaultGateAttempts
	}
	if c.MealCandidates == 0 {
		c.MealCandidates = planner.DefaultMealCandidates
	}
}

// Validate rejects negative budgets and meal settings.
func (c SolverConfig) Validate() error {
	fields := []struct {
		name string
		v    int
	}{
		{"meal_duration_minutes", c.MealDurationMinutes},
		{"meal_max_simultaneous", c.MealMaxSimultaneous},
		{"placement_budget", c.PlacementBudget},
		{"director_budget", c.DirectorBudget},
		{"director_gap_budget", c.DirectorGapBudget},
		{"meal_node_budget", c.MealNodeBudget},
		{"gate_attempts", c.GateAttempts},
		{"meal_candidates", c.MealCandidates},
	}
	for _, f := range fields {
		if f.v <= 0 {
			return fmt.Errorf("solver: %s must be positive, got %d", f.name, f.v)
		}
	}
	if c.SearchWorkers < -1 {
		return fmt.Errorf("solver: search_workers must be >= -1, got %d", c.SearchWorkers)
	}
	return nil
}

// Options maps the section onto planner options. A SearchWorkers of -1
// uses one worker per CPU.
func (c SolverConfig) Options(log logger.Logger, runID string) planner.Options {
	return planner.Options{
		Logger:              log,
		RunID:               runID,
		MealDuration:        c.MealDurationMinutes,
		MealMaxSimultaneous: c.MealMaxSimultaneous,
		PlacementBudget:     c.PlacementBudget,
		DirectorBudget:      c.DirectorBudget,
		DirectorGapBudget:   c.DirectorGapBudget,
		MealNodeBudget:      c.MealNodeBudget,
		GateAttempts:        c.GateAttempts,
		MealCandidates:      c.MealCandidates,
		SearchWorkers:       c.SearchWorkers,
		Strict:              c.Strict,
	}
}
