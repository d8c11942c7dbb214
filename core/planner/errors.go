package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/showplan/core/budget"
)

// Reason codes. Hard codes reject the whole plan; soft codes mark one task
// unplanned or become warnings.
const (
	CodeInvalidInput             = "INVALID_INPUT"
	CodeRequiresConfiguration    = "REQUIRES_CONFIGURATION"
	CodeAllTasksExcluded         = "ALL_TASKS_EXCLUDED"
	CodeDependencyMissing        = "DEPENDENCY_MISSING"
	CodeDependencyCycle          = "DEPENDENCY_CYCLE"
	CodeDependencyNotScheduled   = "DEPENDENCY_NOT_SCHEDULED"
	CodeMissingSpace             = "MISSING_SPACE"
	CodeContestantNoAvailability = "CONTESTANT_NO_AVAILABILITY"
	CodeContestantNotAvailable   = "CONTESTANT_NOT_AVAILABLE"
	CodeNoTime                   = "NO_TIME"
	CodeMaxIter                  = "MAX_ITER"
	CodeMealContestantNoFit      = "MEAL_CONTESTANT_NO_FIT"
	CodeMealZoneNoFit            = "MEAL_ZONE_NO_FIT"
	CodeSpaceBreakNoFit          = "SPACE_BREAK_NO_FIT"
	CodeItinerantBreakNoFit      = "ITINERANT_BREAK_NO_FIT"
	CodeContestantOverlap        = "CONTESTANT_OVERLAP"
	CodeResourceOverlap          = "RESOURCE_OVERLAP"
	CodeNoSelectionPossible      = "V2_NO_SELECTION_POSSIBLE"

	CodeMainZoneNoIdle           = "MAIN_ZONE_NO_IDLE_NOT_ACHIEVABLE"
	CodeStartGatingLimited       = "MAIN_ZONE_START_GATING_LIMITED"
	CodeNoIdleRolledBack         = "MAIN_ZONE_NO_IDLE_ROLLED_BACK"
	CodeGapsRemain               = "MAIN_ZONE_GAPS_REMAIN"
	CodeGapStatsAvailable        = "MAIN_ZONE_GAP_STATS_AVAILABLE"
	CodeNoGapsNotFullyAchieved   = "MAIN_ZONE_NO_GAPS_NOT_FULLY_ACHIEVED"
	CodeItinerantWrapNotFeasible = "ITINERANT_WRAP_NOT_FEASIBLE"
	CodeNoTasksPlannedSummary    = "NO_TASKS_PLANNED_SUMMARY"
)

// Insight codes.
const (
	InsightGapStats          = "MAIN_ZONE_GAP_STATS"
	InsightLookahead         = "V2_LOOKAHEAD"
	InsightTemplateSwitch    = "V2_MAIN_TEMPLATE_SWITCH"
	InsightScoringDiagnostic = "V2_SCORING_DIAGNOSTIC"
	InsightMealChoice        = "V2_MEAL_CHOICE"
	InsightGateChoice        = "V2_GATE_CHOICE"
)

var (
	// ErrInvalidInput reports a malformed input snapshot.
	ErrInvalidInput = errors.New("invalid planner input")
	// ErrInfeasible is wrapped by *InfeasibleError.
	ErrInfeasible = errors.New("plan infeasible")
	// ErrSearchBudgetExceeded is the single outcome of every exhausted
	// iteration cap.
	ErrSearchBudgetExceeded = budget.ErrExceeded
)

// InfeasibleError carries the hard reasons of a rejected plan.
type InfeasibleError struct {
	Reasons []Reason
}

func (e *InfeasibleError) Error() string {
	codes := make([]string, 0, len(e.Reasons))
	for _, r := range e.Reasons {
		codes = append(codes, r.Code)
	}
	return fmt.Sprintf("%v: %s", ErrInfeasible, strings.Join(codes, ", "))
}

func (e *InfeasibleError) Unwrap() error { return ErrInfeasible }

// HasCode reports whether one of the reasons carries code.
func (e *InfeasibleError) HasCode(code string) bool {
	for _, r := range e.Reasons {
		if r.Code == code {
			return true
		}
	}
	return false
}

func invalidInput(msg string) *InfeasibleError {
	return &InfeasibleError{Reasons: []Reason{{Code: CodeInvalidInput, Message: msg}}}
}
