package planner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/showplan/core/budget"
	"github.com/kilianp07/showplan/core/meals"
	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

const maxBlockingIntervals = 5

// placeContestantMeals assigns every pending contestant meal through the
// backtracking meal search and commits the result.
func (r *run) placeContestantMeals(ctx context.Context) ([]Reason, error) {
	mw := r.mealWindow()
	dur := r.p.mealDur
	maxSim := r.p.mealMaxSim

	var cands []meals.Candidate
	byTask := make(map[int]*taskInfo)
	for _, ti := range r.p.order {
		if !ti.meal || ti.contestant <= 0 || ti.immovable {
			continue
		}
		eff, _ := r.p.effective(ti.contestant)
		w := timegrid.Window{
			Start: timegrid.SnapUp(max(mw.Start, eff.Start)),
			End:   min(mw.End, eff.End),
		}
		set := r.st.occ.Set(occupancy.Contestant, ti.contestant)
		cands = append(cands, meals.Candidate{
			TaskID:           ti.ID,
			ContestantID:     ti.contestant,
			ContestantName:   strings.TrimSpace(ti.ContestantName),
			Window:           w,
			OccupancyMinutes: meals.OccupancyMinutes(set, w),
			Starts:           meals.ViableStarts(w, dur, maxSim, set, r.st.meals),
		})
		byTask[ti.ID] = ti
	}
	if len(cands) == 0 {
		return nil, nil
	}

	prob := meals.Problem{
		Window:          mw,
		Duration:        dur,
		MaxSimultaneous: maxSim,
		Fixed:           append([]occupancy.Interval(nil), r.st.meals...),
		Candidates:      cands,
		NodeBudget:      r.opts.MealNodeBudget,
	}
	assigned, err := meals.Solve(ctx, prob)
	if err != nil {
		var nf *meals.NoFitError
		switch {
		case errors.As(err, &nf):
			d := prob.Diagnose(nf)
			d.BlockingIntervals = r.blockingIntervals(nf.Candidate)
			return []Reason{r.mealFailure(byTask[nf.Candidate.TaskID], d)}, nil
		case errors.Is(err, budget.ErrExceeded):
			mealBudgetExhausted.Inc()
			d := prob.BaseDiagnostic()
			d.FailReason = meals.ReasonSearchExhausted
			return []Reason{r.mealFailure(nil, d)}, nil
		default:
			return nil, err
		}
	}

	for _, a := range assigned {
		ti := byTask[a.TaskID]
		pl := placement{Start: a.Start, End: a.End, Space: ti.space}
		r.st.record(ti, pl)
		r.st.meals = append(r.st.meals, occupancy.Interval{Start: a.Start, End: a.End, TaskID: a.TaskID})
		r.emit(ti, pl, "")
		if r.inMainZone(ti) {
			r.requestReset()
		}
	}

	if err := meals.Validate(mw, maxSim, r.st.meals); err != nil {
		var ce *meals.CapacityError
		if !errors.As(err, &ce) {
			return nil, err
		}
		d := prob.BaseDiagnostic()
		d.FailReason = meals.ReasonPostAssignment
		d.Bucket = timegrid.Format(ce.Bucket)
		d.Count = ce.Count
		return []Reason{r.mealFailure(nil, d)}, nil
	}
	r.log.Debugf("meals: %d contestant meals assigned in %s-%s", len(assigned), timegrid.Format(mw.Start), timegrid.Format(mw.End))
	return nil, nil
}

func (r *run) mealFailure(ti *taskInfo, d meals.Diagnostic) Reason {
	msg := fmt.Sprintf("contestant meals do not fit in %s-%s (%s)", d.WindowStart, d.WindowEnd, d.FailReason)
	if d.FailingContestantName != "" {
		msg = fmt.Sprintf("meal of %q does not fit in %s-%s (%s)", d.FailingContestantName, d.WindowStart, d.WindowEnd, d.FailReason)
	}
	reason := Reason{Code: CodeMealContestantNoFit, Message: msg, Details: d}
	if ti != nil {
		reason.TaskID = ti.ID
		reason = r.p.reasonFor(ti, reason)
	}
	return reason
}

// blockingIntervals names the contestant occupations overlapping the meal
// window of c.
func (r *run) blockingIntervals(c meals.Candidate) []string {
	var out []string
	for _, it := range r.st.occ.Set(occupancy.Contestant, c.ContestantID).Overlapping(c.Window.Start, c.Window.End) {
		if len(out) == maxBlockingIntervals {
			break
		}
		name := fmt.Sprintf("task #%d", it.TaskID)
		if ti, ok := r.p.tasks[it.TaskID]; ok {
			name = ti.label()
		}
		out = append(out, fmt.Sprintf("%s %s-%s", name, timegrid.Format(it.Start), timegrid.Format(it.End)))
	}
	return out
}
