package scenarios

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/kilianp07/showplan/core/meals"
	"github.com/kilianp07/showplan/core/planner"
	"github.com/kilianp07/showplan/core/timegrid"
)

// Report is the outcome of one scenario.
type Report struct {
	Name     string
	Failures []string
	Result   planner.Result
	Err      error
}

// Passed reports whether every expectation held.
func (r Report) Passed() bool { return len(r.Failures) == 0 }

func (r *Report) failf(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}

// Run solves the scenario with opts and checks its expectations.
func Run(ctx context.Context, sc *Scenario, opts planner.Options) Report {
	rep := Report{Name: sc.Name}
	if len(sc.Plan) > 0 {
		rep.Result = planner.Result{Feasible: true, HardFeasible: true, PlannedTasks: sc.Plan}
	} else {
		opts.Strict = opts.Strict || sc.Strict
		rep.Result, rep.Err = planner.Solve(ctx, sc.Input, opts)
		if rep.Err != nil && !errors.Is(rep.Err, planner.ErrInfeasible) {
			rep.failf("solve: %v", rep.Err)
			return rep
		}
	}
	exp := sc.Expected
	res := rep.Result

	if got := errorLabel(rep.Err); got != exp.Error {
		rep.failf("error: want %q, got %q", exp.Error, got)
	}
	if exp.Feasible != nil && *exp.Feasible != res.Feasible {
		rep.failf("feasible: want %v, got %v", *exp.Feasible, res.Feasible)
	}
	if exp.Complete != nil && *exp.Complete != res.Complete {
		rep.failf("complete: want %v, got %v", *exp.Complete, res.Complete)
	}
	if exp.Reasons != nil {
		if got := codes(res.Reasons); !slices.Equal(got, exp.Reasons) {
			rep.failf("reasons: want %v, got %v", exp.Reasons, got)
		}
	}
	for id, want := range exp.Slots {
		p, ok := res.Planned(id)
		if !ok {
			rep.failf("task %d: want slot %s, not planned", id, want)
			continue
		}
		if got := p.StartPlanned + "-" + p.EndPlanned; got != want {
			rep.failf("task %d: want slot %s, got %s", id, want, got)
		}
	}
	checkUnplanned(&rep, res, exp.Unplanned)
	for _, code := range exp.Warnings {
		if _, ok := res.Warning(code); !ok {
			rep.failf("warning %s missing", code)
		}
	}
	if exp.CapacityImpossible != nil {
		checkMealDiagnostic(&rep, res, *exp.CapacityImpossible)
	}
	if exp.Gaps != nil {
		checkGaps(&rep, sc.Input, res, exp.Gaps)
	}
	return rep
}

func errorLabel(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, planner.ErrInfeasible):
		return planner.OutcomeInfeasible
	default:
		return planner.OutcomeError
	}
}

func codes(rs []planner.Reason) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Code
	}
	return out
}

func checkUnplanned(rep *Report, res planner.Result, want map[int]string) {
	if want == nil {
		return
	}
	got := make(map[int]string, len(res.Unplanned))
	for _, u := range res.Unplanned {
		got[u.TaskID] = u.Reason.Code
	}
	for id, code := range want {
		if got[id] != code {
			rep.failf("task %d: want unplanned %s, got %q", id, code, got[id])
		}
	}
	for id, code := range got {
		if _, ok := want[id]; !ok {
			rep.failf("task %d: unexpectedly unplanned (%s)", id, code)
		}
	}
}

func checkMealDiagnostic(rep *Report, res planner.Result, want bool) {
	for _, r := range res.Reasons {
		if d, ok := r.Details.(meals.Diagnostic); ok {
			if d.IsCapacityImpossible != want {
				rep.failf("meal capacity impossible: want %v, got %v", want, d.IsCapacityImpossible)
			}
			return
		}
	}
	rep.failf("no meal diagnostic among reasons %v", codes(res.Reasons))
}

func checkGaps(rep *Report, in planner.Input, res planner.Result, want []GapExpectation) {
	gaps, err := planner.ComputeMainZoneGaps(in, res)
	if err != nil {
		rep.failf("compute gaps: %v", err)
		return
	}
	if len(gaps) != len(want) {
		rep.failf("gaps: want %d, got %d", len(want), len(gaps))
		return
	}
	for i, g := range gaps {
		w := want[i]
		got := fmt.Sprintf("%d %s-%s", g.SpaceID, timegrid.Format(g.Start), timegrid.Format(g.End))
		if exp := fmt.Sprintf("%d %s-%s", w.Space, w.Start, w.End); got != exp {
			rep.failf("gap %d: want %s, got %s", i, exp, got)
			continue
		}
		ex, err := planner.ExplainGap(in, res, g)
		if err != nil {
			rep.failf("explain gap %d: %v", i, err)
			continue
		}
		if w.Code != "" && !strings.EqualFold(ex.Code, w.Code) {
			rep.failf("gap %d: want %s, got %s (%s)", i, w.Code, ex.Code, ex.Message)
		}
	}
}
