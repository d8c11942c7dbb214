package planner

import (
	"context"

	"github.com/kilianp07/showplan/core/logger"
	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

// run is one greedy pass for a fixed (gate, meal start) pair.
type run struct {
	p    *plan
	opts Options
	log  logger.Logger
	st   *SchedulerState

	gate      int
	mealStart int

	warnings  []Reason
	unplanned []Unplanned
	events    []PlacementEvent

	diag      scoringDiagnostic
	lookahead lookaheadStats
	switches  []templateSwitch
	samples   int
}

func newRun(p *plan, opts Options, gate, mealStart int) *run {
	return &run{
		p:         p,
		opts:      opts,
		log:       opts.Logger,
		st:        newState(),
		gate:      gate,
		mealStart: mealStart,
		diag:      newScoringDiagnostic(),
	}
}

// outcome is the raw product of a run before result assembly.
type outcome struct {
	r    *run
	hard []Reason
	err  error
}

func (o outcome) feasible() bool { return o.err == nil && len(o.hard) == 0 }

// execute runs every stage. Hard reasons stop the run; err is reserved for
// context cancellation.
func (r *run) execute(ctx context.Context) outcome {
	r.preloadFixed()
	stages := []func(context.Context) ([]Reason, error){
		r.placeZoneMeals,
		r.placeResourceBreaks,
		r.placeContestantMeals,
		r.placeTasks,
	}
	for _, stage := range stages {
		hard, err := stage(ctx)
		if err != nil {
			return outcome{r: r, err: err}
		}
		if len(hard) > 0 {
			return outcome{r: r, hard: hard}
		}
	}
	r.postPass()
	if hard := r.validate(); len(hard) > 0 {
		return outcome{r: r, hard: hard}
	}
	return outcome{r: r}
}

// preloadFixed occupies the timeline with every task that already has
// immovable times.
func (r *run) preloadFixed() {
	for _, ti := range r.p.all {
		if !ti.fixed {
			continue
		}
		pl := placement{
			Start:     ti.fixedAt.Start,
			End:       ti.fixedAt.End,
			Space:     ti.space,
			Resources: append([]int(nil), ti.AssignedResourceIDs...),
		}
		if ti.BreakKind == BreakItinerantMeal {
			pl.Space = 0
		}
		r.st.record(ti, pl)
		if ti.meal {
			if ti.contestant > 0 {
				r.st.meals = append(r.st.meals, occupancy.Interval{Start: pl.Start, End: pl.End, TaskID: ti.ID})
			} else if ti.ZoneID > 0 {
				r.st.occ.Insert(occupancy.ZoneMeal, ti.ZoneID, occupancy.Interval{Start: pl.Start, End: pl.End, TaskID: ti.ID})
			}
		}
	}
}

// depsEnd returns the latest end among the prerequisites of ti and whether
// every prerequisite is settled.
func (r *run) depsEnd(ti *taskInfo) (int, bool) {
	end := r.p.day.Start
	for _, d := range ti.deps {
		dt, known := r.p.tasks[d]
		if !known {
			continue
		}
		if pl, ok := r.st.planned[d]; ok {
			end = max(end, pl.End)
			continue
		}
		if dt.inProgressOrDone() || dt.Status == StatusCancelled {
			continue
		}
		return end, false
	}
	return end, true
}

func (r *run) missingDeps(ti *taskInfo) []*taskInfo {
	var out []*taskInfo
	for _, d := range ti.deps {
		dt, known := r.p.tasks[d]
		if !known || r.st.isPlanned(d) || dt.inProgressOrDone() || dt.Status == StatusCancelled {
			continue
		}
		out = append(out, dt)
	}
	return out
}

func (r *run) mealWindow() timegrid.Window {
	return timegrid.Window{Start: timegrid.SnapUp(max(r.p.meal.Start, r.mealStart)), End: r.p.meal.End}
}

func (r *run) inMainZone(ti *taskInfo) bool {
	return r.p.w.mainZoneID > 0 && ti.zone == r.p.w.mainZoneID
}

func (r *run) emit(ti *taskInfo, pl placement, code string) {
	r.events = append(r.events, PlacementEvent{
		RunID:   r.opts.RunID,
		TaskID:  ti.ID,
		Start:   pl.Start,
		End:     pl.End,
		SpaceID: pl.Space,
		Placed:  code == "",
		Code:    code,
	})
}

func (r *run) warn(w Reason) { r.warnings = append(r.warnings, w) }
