package planner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/showplan/core/timegrid"
)

// Solve plans one production day. A rejected plan is returned as a Result
// with Feasible false alongside an *InfeasibleError. Context cancellation is
// returned unchanged.
func Solve(ctx context.Context, in Input, opts Options) (Result, error) {
	opts = opts.withDefaults()
	began := time.Now()
	res, err := solve(ctx, in, opts)

	label := Outcome(res, err)
	solveDuration.WithLabelValues(label).Observe(time.Since(began).Seconds())
	solveRuns.WithLabelValues(label).Inc()
	for _, u := range res.Unplanned {
		unplannedTasks.WithLabelValues(u.Reason.Code).Inc()
	}
	opts.Logger.Infof("solve %s finished in %s: %s, %d planned, %d unplanned, %d warnings",
		opts.RunID, time.Since(began).Round(time.Millisecond), label,
		len(res.PlannedTasks), len(res.Unplanned), len(res.Warnings))
	return res, err
}

// Outcome labels a solve: complete, partial, infeasible or error.
func Outcome(res Result, err error) string {
	switch {
	case err != nil && errors.Is(err, ErrInfeasible):
		return OutcomeInfeasible
	case err != nil:
		return OutcomeError
	case !res.Complete:
		return OutcomePartial
	default:
		return OutcomeComplete
	}
}

// Solve outcomes.
const (
	OutcomeComplete   = "complete"
	OutcomePartial    = "partial"
	OutcomeInfeasible = "infeasible"
	OutcomeError      = "error"
)

func solve(ctx context.Context, in Input, opts Options) (Result, error) {
	in.Tasks = slices.Clone(in.Tasks)
	p, err := buildPlan(&in, opts)
	if err != nil {
		return rejected(p, err)
	}
	if err := ctx.Err(); err != nil {
		return infeasibleResult(nil), err
	}

	var (
		best  *candidate
		meal  mealChoice
		gateI gateChoice
	)
	if p.w.hardNoGaps(&in) {
		best, meal, gateI, err = search(ctx, p, opts)
	} else {
		best, meal, gateI, err = baseline(ctx, p, opts)
	}
	if err != nil {
		return infeasibleResult(nil), err
	}
	if !best.out.feasible() {
		return rejected(p, &InfeasibleError{Reasons: best.out.hard})
	}

	r := best.out.r
	res := r.assemble()
	if gateI.search {
		if r.placedCount() == 0 && pendingWork(p) {
			return rejected(p, &InfeasibleError{Reasons: []Reason{{
				Code:    CodeNoSelectionPossible,
				Message: "no gate or meal candidate could plan any pending task",
				Details: map[string]any{"attempts": gateI.Attempts},
			}}})
		}
		if best.stats.gaps > 0 {
			res.Warnings = dedupeWarnings(append(res.Warnings, Reason{
				Code: CodeNoGapsNotFullyAchieved,
				Message: fmt.Sprintf("best candidate still leaves %d gap(s) totalling %d min in the main zone",
					best.stats.gaps, best.stats.gapMinutes),
				Details: map[string]any{"gapCount": best.stats.gaps, "totalGapMinutes": best.stats.gapMinutes},
			}))
		}
	}
	res.Insights = append(res.Insights,
		Insight{Code: InsightMealChoice, Details: meal},
		Insight{Code: InsightGateChoice, Details: gateI},
	)

	if opts.Strict && len(res.Unplanned) > 0 {
		return rejected(p, &InfeasibleError{Reasons: slices.Clone(res.Reasons)})
	}
	if opts.Events != nil {
		for _, e := range r.events {
			opts.Events.Publish(e)
		}
	}
	return res, nil
}

// rejected builds the whole-plan rejection for err. Normalizer warnings are
// kept, nothing partial is.
func rejected(p *plan, err error) (Result, error) {
	var ie *InfeasibleError
	if !errors.As(err, &ie) {
		return infeasibleResult(nil), err
	}
	res := infeasibleResult(ie.Reasons)
	if p != nil {
		res.Warnings = dedupeWarnings(p.warnings)
	}
	return res, ie
}

// pendingWork reports whether a solvable task still needs a slot.
func pendingWork(p *plan) bool {
	for _, ti := range p.solvable {
		if !ti.fixed && !ti.inProgressOrDone() && ti.Status != StatusCancelled {
			return true
		}
	}
	return false
}

// mealChoice feeds the V2_MEAL_CHOICE insight.
type mealChoice struct {
	ChosenMealStart string   `json:"chosenMealStart"`
	Candidates      []string `json:"candidates"`
	Attempts        int      `json:"attempts"`
}

// gateChoice feeds the V2_GATE_CHOICE insight.
type gateChoice struct {
	ChosenGate      *string `json:"chosenGate"`
	Attempts        int     `json:"attempts"`
	GapCount        int     `json:"gapCount"`
	TotalGapMinutes int     `json:"totalGapMinutes"`
	MainSwitches    int     `json:"mainSwitches"`

	search bool
}

// candidate is one (meal start, gate) pair of the outer search.
type candidate struct {
	idx   int
	gate  int
	meal  int
	out   outcome
	stats runStats
}

// better reports whether c ranks before o: feasible first, then fewer main
// zone gaps, fewer gap minutes, fewer template switches, the earlier gate and
// finally the enumeration order.
func (c *candidate) better(o *candidate) bool {
	cf, of := c.out.feasible(), o.out.feasible()
	if cf != of {
		return cf
	}
	if !cf {
		return c.idx < o.idx
	}
	if c.stats.gaps != o.stats.gaps {
		return c.stats.gaps < o.stats.gaps
	}
	if c.stats.gapMinutes != o.stats.gapMinutes {
		return c.stats.gapMinutes < o.stats.gapMinutes
	}
	if c.stats.switches != o.stats.switches {
		return c.stats.switches < o.stats.switches
	}
	if c.gate != o.gate {
		return c.gate < o.gate
	}
	return c.idx < o.idx
}

func (c *candidate) perfect() bool {
	return c.out.feasible() && c.stats.gaps == 0 && c.stats.switches == 0
}

func baseline(ctx context.Context, p *plan, opts Options) (*candidate, mealChoice, gateChoice, error) {
	c := &candidate{gate: 0, meal: p.meal.Start}
	r := newRun(p, opts, c.gate, c.meal)
	c.out = r.execute(ctx)
	if c.out.err != nil {
		return nil, mealChoice{}, gateChoice{}, c.out.err
	}
	c.stats = r.stats()
	searchCandidates.Inc()
	start := timegrid.Format(p.meal.Start)
	return c,
		mealChoice{ChosenMealStart: start, Candidates: []string{start}, Attempts: 1},
		gateChoice{Attempts: 1, GapCount: c.stats.gaps, TotalGapMinutes: c.stats.gapMinutes, MainSwitches: c.stats.switches},
		nil
}

// search runs the greedy pass for every (meal start, gate) pair in order and
// keeps the best ranked run. Batches of SearchWorkers candidates run
// concurrently; results are folded in enumeration order and the first
// perfect run ends the search, so the winner does not depend on the worker
// count.
func search(ctx context.Context, p *plan, opts Options) (*candidate, mealChoice, gateChoice, error) {
	mealStarts := p.mealStarts(opts.MealCandidates)
	gates := p.gates(opts.GateAttempts)
	cands := make([]candidate, 0, len(mealStarts)*len(gates))
	for _, m := range mealStarts {
		for _, g := range gates {
			cands = append(cands, candidate{idx: len(cands), gate: g, meal: m})
		}
	}

	workers := max(1, opts.SearchWorkers)
	var best *candidate
	evaluated := 0
search:
	for lo := 0; lo < len(cands); lo += workers {
		if err := ctx.Err(); err != nil {
			return nil, mealChoice{}, gateChoice{}, err
		}
		hi := min(len(cands), lo+workers)
		g, gctx := errgroup.WithContext(ctx)
		for i := lo; i < hi; i++ {
			c := &cands[i]
			g.Go(func() error {
				r := newRun(p, opts, c.gate, c.meal)
				c.out = r.execute(gctx)
				if c.out.err != nil {
					return c.out.err
				}
				c.stats = r.stats()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, mealChoice{}, gateChoice{}, err
		}
		searchCandidates.Add(float64(hi - lo))
		for i := lo; i < hi; i++ {
			c := &cands[i]
			evaluated++
			if best == nil || c.better(best) {
				if best != nil {
					best.out.r = nil
				}
				best = c
			} else {
				c.out.r = nil
			}
			if c.perfect() {
				break search
			}
		}
	}

	opts.Logger.Debugw("outer search done", map[string]any{
		"run": opts.RunID, "evaluated": evaluated, "gate": timegrid.Format(best.gate),
		"meal": timegrid.Format(best.meal), "gaps": best.stats.gaps, "switches": best.stats.switches,
	})
	labels := make([]string, 0, len(mealStarts))
	for _, m := range mealStarts {
		labels = append(labels, timegrid.Format(m))
	}
	chosen := timegrid.Format(best.gate)
	return best,
		mealChoice{ChosenMealStart: timegrid.Format(best.meal), Candidates: labels, Attempts: evaluated},
		gateChoice{
			ChosenGate:      &chosen,
			Attempts:        evaluated,
			GapCount:        best.stats.gaps,
			TotalGapMinutes: best.stats.gapMinutes,
			MainSwitches:    best.stats.switches,
			search:          true,
		},
		nil
}

// mealStarts spreads at most limit meal window starts evenly over the meal
// window and always includes the latest start that still fits.
func (p *plan) mealStarts(limit int) []int {
	first := timegrid.SnapUp(p.meal.Start)
	latest := timegrid.SnapDown(p.meal.End - p.mealDur)
	if latest <= first {
		return []int{first}
	}
	step := max(timegrid.Grid, timegrid.SnapDown((latest-first)/max(1, limit-1)))
	var out []int
	for m := first; m <= latest && len(out) < limit; m += step {
		out = append(out, m)
	}
	if out[len(out)-1] != latest {
		out = append(out, latest)
	}
	return out
}

// gates lists the earliest allowed main zone starts, from the start of the
// day in grid steps.
func (p *plan) gates(limit int) []int {
	var out []int
	for g := timegrid.SnapUp(p.day.Start); g <= p.day.End && len(out) < limit; g += timegrid.Grid {
		out = append(out, g)
	}
	if len(out) == 0 {
		out = append(out, p.day.Start)
	}
	return out
}
