package planner

import (
	"fmt"

	"github.com/kilianp07/showplan/core/budget"
	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

const (
	gatingLoops      = 2
	maxGatingSamples = 3
)

// postPass runs the continuity optimizer in director mode and re-syncs
// itinerant wraps. Any overlap introduced by the optimizer rolls the state
// back to the greedy result; overlaps already present before the pass do not.
func (r *run) postPass() {
	if !r.p.w.director {
		r.syncWraps()
		return
	}
	snap := r.st.Clone()
	keep := len(r.warnings)
	before := conflictPairs(r.overlaps(occupancy.Contestant, occupancy.Resource, occupancy.Space))
	r.directorPass()
	r.syncWraps()
	introduced := newConflicts(before, r.overlaps(occupancy.Contestant, occupancy.Resource, occupancy.Space))
	if len(introduced) == 0 {
		return
	}
	directorRollbacks.Inc()
	r.log.Warnf("continuity pass introduced %d overlaps, rolling back", len(introduced))
	r.st = snap
	r.warnings = r.warnings[:keep]
	r.warn(Reason{
		Code:    CodeNoIdleRolledBack,
		Message: fmt.Sprintf("main zone continuity pass rolled back after %d overlaps", len(introduced)),
		Details: map[string]any{"overlaps": len(introduced)},
	})
	r.syncWraps()
}

// conflictPair identifies an overlap by entity and the two owning tasks,
// independent of where the intervals sit.
type conflictPair struct {
	kind occupancy.Kind
	key  int
	a, b int
}

func pairOf(c occupancy.Conflict) conflictPair {
	a, b := c.A.TaskID, c.B.TaskID
	if a > b {
		a, b = b, a
	}
	return conflictPair{kind: c.Kind, key: c.Key, a: a, b: b}
}

func conflictPairs(cs []occupancy.Conflict) map[conflictPair]bool {
	out := make(map[conflictPair]bool, len(cs))
	for _, c := range cs {
		out[pairOf(c)] = true
	}
	return out
}

// newConflicts returns the conflicts of after whose task pair was not
// already overlapping in before.
func newConflicts(before map[conflictPair]bool, after []occupancy.Conflict) []occupancy.Conflict {
	var out []occupancy.Conflict
	for _, c := range after {
		if !before[pairOf(c)] {
			out = append(out, c)
		}
	}
	return out
}

// directorPass compacts every main zone space, gates the start of the day
// and then closes the largest gaps one by one.
func (r *run) directorPass() {
	for _, sid := range r.p.mainSpaces {
		r.compactSpace(sid)
	}
	if r.p.w.finishEarly == 0 {
		gating := budget.New("start gating", r.opts.DirectorBudget)
		for loop := 0; loop < gatingLoops; loop++ {
			for _, sid := range r.p.mainSpaces {
				r.gateStart(sid, gating)
			}
		}
	}
	attempts := r.closeGaps()

	remaining := r.mainZoneGaps()
	if len(remaining) == 0 {
		return
	}
	total := 0
	blockers := make([]GapExplanation, 0, len(remaining))
	for _, g := range remaining {
		total += g.Minutes()
		ex := r.explainGap(g)
		if a, ok := attempts[g.key()]; ok {
			ex.RelocationAttempted = true
			ex.RelocationSucceeded = a
		}
		blockers = append(blockers, ex)
	}
	r.warn(Reason{
		Code:    CodeMainZoneNoIdle,
		Message: fmt.Sprintf("main zone keeps %d idle gap(s) totalling %d min", len(remaining), total),
		Details: map[string]any{"gaps": viewGaps(remaining), "blockers": blockers},
	})
}

// rowsOf returns the non-meal tasks planned in a space, in time order.
func (r *run) rowsOf(space int) []*taskInfo {
	var rows []*taskInfo
	for _, id := range r.st.plannedIn(space) {
		if ti := r.p.tasks[id]; ti != nil && !ti.meal {
			rows = append(rows, ti)
		}
	}
	return rows
}

// compactSpace moves every movable task of a space to its earliest feasible
// start, keeping immovable tasks as anchors.
func (r *run) compactSpace(space int) {
	for _, ti := range r.rowsOf(space) {
		if !r.movable(ti) {
			continue
		}
		cur := r.st.planned[ti.ID].Start
		for t := r.earliestStart(ti); t < cur; t += timegrid.Grid {
			if r.canPlaceAt(ti, t) {
				r.st.move(ti, t)
				break
			}
		}
	}
}

// gateStart shifts the movable tasks opening the day in a space to the
// right so that they end where the first anchor starts.
func (r *run) gateStart(space int, gating *budget.Counter) {
	rows := r.rowsOf(space)
	anchor := -1
	for i, ti := range rows {
		if !r.movable(ti) {
			anchor = i
			break
		}
	}
	if anchor <= 0 {
		return
	}
	first := 0
	anchorStart := r.st.planned[rows[anchor].ID].Start
	delta := anchorStart - r.st.planned[rows[anchor-1].ID].End
	if delta < timegrid.Grid {
		return
	}

	perGap := budget.New("start gating gap", r.opts.DirectorGapBudget)
	moved := make([]*taskInfo, 0, anchor-first)
	for i := anchor - 1; i >= first; i-- {
		ti := rows[i]
		if gating.Spend() != nil || perGap.Spend() != nil {
			r.rollbackShift(moved, delta)
			return
		}
		to := r.st.planned[ti.ID].Start + delta
		if !r.canPlaceAt(ti, to) {
			r.rollbackShift(moved, delta)
			r.gatingLimited(space, ti, rows[anchor], delta)
			return
		}
		r.st.move(ti, to)
		moved = append(moved, ti)
	}
}

func (r *run) rollbackShift(moved []*taskInfo, delta int) {
	for i := len(moved) - 1; i >= 0; i-- {
		ti := moved[i]
		r.st.move(ti, r.st.planned[ti.ID].Start-delta)
	}
}

func (r *run) gatingLimited(space int, ti, anchor *taskInfo, delta int) {
	if r.samples >= maxGatingSamples {
		return
	}
	r.samples++
	r.warn(r.p.reasonFor(ti, Reason{
		Code:   CodeStartGatingLimited,
		TaskID: ti.ID,
		Message: fmt.Sprintf("%s could not be delayed %d min to run up to %s in space %s",
			ti.label(), delta, anchor.label(), r.p.spaceLabel(space)),
		Details: map[string]any{"spaceId": space, "taskId": ti.ID, "anchorTaskId": anchor.ID, "shiftMinutes": delta},
	}))
}

// closeGaps repeatedly pulls the task after the largest gap to the gap
// start, relocating contestant or resource blockers when needed. It returns
// the relocation outcome per gap.
func (r *run) closeGaps() map[gapKey]bool {
	attempts := make(map[gapKey]bool)
	skip := make(map[gapKey]bool)
	global := budget.New("director", r.opts.DirectorBudget)
	for global.Spend() == nil {
		g, ok := r.largestGap(skip)
		if !ok {
			break
		}
		if !r.closeGap(g, attempts) {
			skip[g.key()] = true
		}
	}
	if global.Exhausted() {
		directorBudgetExhausted.Inc()
	}
	return attempts
}

func (r *run) closeGap(g Gap, attempts map[gapKey]bool) bool {
	next := r.p.tasks[g.AfterTaskID]
	perGap := budget.New("director gap", r.opts.DirectorGapBudget)
	for perGap.Spend() == nil {
		if r.movable(next) && r.canPlaceAt(next, g.Start) {
			r.st.move(next, g.Start)
			return true
		}
		ex := r.explainGap(g)
		if ex.Code != GapContestantBusy && ex.Code != GapResourceBusy {
			return false
		}
		blocker := r.p.tasks[ex.BlockingTaskID]
		if !r.movable(blocker) {
			return false
		}
		pl := r.st.planned[next.ID]
		need := timegrid.Window{Start: g.Start, End: g.Start + pl.End - pl.Start}
		to, ok := r.relocationTarget(blocker, need)
		attempts[g.key()] = ok
		if !ok {
			return false
		}
		r.log.Debugw("relocate blocker", map[string]any{
			"gapSpace": g.SpaceID, "gapStart": timegrid.Format(g.Start), "blocker": blocker.ID, "to": timegrid.Format(to),
		})
		r.st.move(blocker, to)
	}
	return false
}
