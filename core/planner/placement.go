package planner

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/showplan/core/budget"
	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/resources"
	"github.com/kilianp07/showplan/core/timegrid"
)

// placeTasks is the greedy loop over pending non-meal tasks.
func (r *run) placeTasks(ctx context.Context) ([]Reason, error) {
	var pending []*taskInfo
	for _, ti := range r.p.order {
		if ti.meal || ti.resBreak || ti.immovable || ti.Status == StatusCancelled || r.st.isPlanned(ti.ID) {
			continue
		}
		pending = append(pending, ti)
	}
	r.st.resetArmed = r.st.resetRequested

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ready := r.ready(pending)
		if len(ready) == 0 {
			ti := pending[0]
			pending = pending[1:]
			reason := r.notScheduled(ti)
			if ti.locked || r.forced(ti) {
				return []Reason{reason}, nil
			}
			r.fail(ti, reason)
			continue
		}

		if r.p.w.director && r.mainStarted() {
			if ti, ok := r.fillExactGap(ready); ok {
				pending = without(pending, ti)
				continue
			}
		}

		pick := r.selectTask(ready, pending)
		pending = without(pending, pick)
		pl, reason, _ := r.findSlot(pick, 0, false)
		if reason != nil {
			r.fail(pick, *reason)
			continue
		}
		r.commit(pick, pl)
	}
	return nil, nil
}

func without(list []*taskInfo, ti *taskInfo) []*taskInfo {
	for i, t := range list {
		if t == ti {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

func (r *run) ready(pending []*taskInfo) []*taskInfo {
	var out []*taskInfo
	for _, ti := range pending {
		if _, ok := r.depsEnd(ti); ok {
			out = append(out, ti)
		}
	}
	return out
}

func (r *run) forced(ti *taskInfo) bool {
	_, fs := r.p.forcedStart[ti.ID]
	_, fe := r.p.forcedEnd[ti.ID]
	return fs || fe
}

func (r *run) mainStarted() bool {
	_, ok := r.st.lastEndByZone[r.p.w.mainZoneID]
	return ok
}

type missingDependency struct {
	TaskID       int    `json:"taskId"`
	Name         string `json:"name"`
	ContestantID int    `json:"contestantId,omitempty"`
}

func (r *run) notScheduled(ti *taskInfo) Reason {
	missing := r.missingDeps(ti)
	ids := make([]int, 0, len(missing))
	deps := make([]missingDependency, 0, len(missing))
	names := ""
	for i, dt := range missing {
		ids = append(ids, dt.ID)
		deps = append(deps, missingDependency{TaskID: dt.ID, Name: dt.label(), ContestantID: dt.contestant})
		if i > 0 {
			names += ", "
		}
		names += dt.label()
	}
	return r.p.reasonFor(ti, Reason{
		Code:    CodeDependencyNotScheduled,
		TaskID:  ti.ID,
		Message: fmt.Sprintf("%s waits for %s, which could not be scheduled", ti.label(), names),
		Details: map[string]any{
			"missingDependencyTaskIds": ids,
			"missingDependencies":      deps,
		},
	})
}

func (r *run) fail(ti *taskInfo, reason Reason) {
	r.unplanned = append(r.unplanned, Unplanned{TaskID: ti.ID, Reason: reason})
	r.emit(ti, placement{}, reason.Code)
	r.log.Debugf("task %d unplanned: %s", ti.ID, reason.Code)
}

func (r *run) softReason(ti *taskInfo, code, msg string, details any) *Reason {
	reason := r.p.reasonFor(ti, Reason{Code: code, TaskID: ti.ID, Message: msg, Details: details})
	return &reason
}

func (r *run) resourceFree(pid, start, dur int) bool {
	return r.st.occ.Free(occupancy.Resource, pid, start, dur)
}

// earliestStart is the lower bound of ti before any occupancy is looked at.
func (r *run) earliestStart(ti *taskInfo) int {
	depsEnd, _ := r.depsEnd(ti)
	start := timegrid.SnapUp(max(r.p.day.Start, depsEnd))
	if fs, ok := r.p.forcedStart[ti.ID]; ok {
		start = max(start, fs)
	}
	if eff, declared := r.p.effective(ti.contestant); declared {
		start = max(start, timegrid.SnapUp(eff.Start))
	}
	if r.gate > 0 && r.inMainZone(ti) {
		start = max(start, r.gate)
	}
	return start
}

// findSlot searches the earliest feasible placement of ti. With exact set,
// only exactAt is tried and a miss returns ok == false without a reason.
func (r *run) findSlot(ti *taskInfo, exactAt int, exact bool) (pl placement, reason *Reason, ok bool) {
	p := r.p
	if ti.space <= 0 && !ti.arrival && !ti.departure {
		return pl, r.softReason(ti, CodeMissingSpace, fmt.Sprintf("%s has no space", ti.label()), nil), false
	}
	eff, declared := p.effective(ti.contestant)
	if declared && eff.Empty() {
		return pl, r.softReason(ti, CodeContestantNoAvailability,
			fmt.Sprintf("%s: contestant %d is not available during the work day", ti.label(), ti.contestant),
			map[string]any{"contestantId": ti.contestant}), false
	}

	start := r.earliestStart(ti)
	var allow func(int) bool
	if ti.wrap {
		if inner, aligned, found := r.alignWrap(ti, start); found {
			start = aligned
			allow = func(id int) bool { return id == inner }
		}
	}
	if exact {
		if exactAt < start {
			return pl, nil, false
		}
		start = exactAt
	}
	origin := start
	dur := ti.dur
	occ := r.st.occ
	steps := budget.New("placement", r.opts.PlacementBudget)

	for {
		if err := steps.Spend(); err != nil {
			placementBudgetExhausted.Inc()
			return pl, r.softReason(ti, CodeMaxIter,
				fmt.Sprintf("%s: %v", ti.label(), err),
				map[string]any{"iterations": r.opts.PlacementBudget}), false
		}
		if exact && start != origin {
			return pl, nil, false
		}
		if ti.space > 0 {
			if s := occ.Set(occupancy.Space, ti.space).EarliestGapAllowing(start, dur, allow); s != start {
				start = s
				continue
			}
		}
		if ti.zone > 0 {
			if s := occ.EarliestGap(occupancy.ZoneMeal, ti.zone, start, dur); s != start {
				start = s
				continue
			}
		}
		if ti.contestant > 0 {
			if s := occ.Set(occupancy.Contestant, ti.contestant).EarliestGapAllowing(start, dur, allow); s != start {
				start = s
				continue
			}
		}
		if declared && start+dur > eff.End {
			return pl, r.softReason(ti, CodeContestantNotAvailable,
				fmt.Sprintf("%s: contestant %d leaves at %s", ti.label(), ti.contestant, timegrid.Format(eff.End)),
				map[string]any{"contestantId": ti.contestant, "availableUntil": timegrid.Format(eff.End)}), false
		}
		if fe, forced := p.forcedEnd[ti.ID]; forced {
			want := fe - dur
			if want < start {
				return pl, r.noTime(ti, start), false
			}
			if want > start {
				if exact {
					return pl, nil, false
				}
				start = want
				continue
			}
		}
		if start+dur > p.day.End {
			return pl, r.noTime(ti, start), false
		}
		if ti.team > 0 {
			if s := occ.EarliestGap(occupancy.Itinerant, ti.team, start, dur); s != start {
				start = s
				continue
			}
		}
		var res []int
		if !ti.req.Empty() {
			got, err := p.catalog.Allocate(resources.Request{
				Requirement: ti.req,
				SpaceID:     ti.space,
				ZoneID:      ti.zone,
				Start:       start,
				Duration:    dur,
			}, r.resourceFree)
			if err != nil {
				start += timegrid.Grid
				continue
			}
			res = got
		}
		return placement{Start: start, End: start + dur, Space: ti.space, Resources: res}, nil, true
	}
}

func (r *run) noTime(ti *taskInfo, at int) *Reason {
	return r.softReason(ti, CodeNoTime,
		fmt.Sprintf("%s (%d min) does not fit between %s and the end of the work day at %s",
			ti.label(), ti.dur, timegrid.Format(at), timegrid.Format(r.p.day.End)),
		map[string]any{"earliestStart": timegrid.Format(at)})
}

// alignWrap moves the start of an itinerant task onto the nearest eligible
// interval of the same contestant in the same space so that it wraps it.
func (r *run) alignWrap(ti *taskInfo, start int) (inner, aligned int, ok bool) {
	if ti.contestant <= 0 || ti.space <= 0 {
		return 0, 0, false
	}
	best, bestDist := -1, 0
	for _, it := range r.st.occ.Set(occupancy.Contestant, ti.contestant).Intervals() {
		if it.TaskID == ti.ID {
			continue
		}
		other, known := r.p.tasks[it.TaskID]
		if !known || !r.wrapPartner(other) {
			continue
		}
		if pl := r.st.planned[it.TaskID]; pl.Space != ti.space {
			continue
		}
		a := timegrid.SnapDown(it.Start - floorHalf(ti.dur-(it.End-it.Start)))
		if a < start {
			continue
		}
		dist := a - start
		if best < 0 || dist < bestDist || (dist == bestDist && it.TaskID < inner) {
			best, bestDist, inner, aligned = it.TaskID, dist, it.TaskID, a
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	r.st.wrapInner[ti.ID] = inner
	return inner, aligned, true
}

func floorHalf(v int) int {
	if v < 0 {
		return -((-v + 1) / 2)
	}
	return v / 2
}

// wrapPartner reports whether t may be wrapped by an itinerant task.
func (r *run) wrapPartner(t *taskInfo) bool {
	return !t.IsManualBlock && !t.protected && !t.wrap
}

// commit stores pl for ti and updates grouping and continuity memory.
func (r *run) commit(ti *taskInfo, pl placement) {
	r.st.record(ti, pl)
	key := ""
	if cfg, ok := r.p.w.grouping(ti.space, r.p.spaceZone[ti.space]); ok {
		key = cfg.key
	}
	prev := r.st.activeTemplate[ti.zone]
	r.st.noteTemplate(ti.zone, key, ti.TemplateID)
	if r.inMainZone(ti) {
		if prev > 0 && ti.TemplateID > 0 && prev != ti.TemplateID {
			r.switches = append(r.switches, templateSwitch{
				TaskID: ti.ID,
				At:     timegrid.Format(pl.Start),
				From:   prev,
				To:     ti.TemplateID,
			})
		}
		r.st.resetArmed = false
	}
	r.emit(ti, pl, "")
}

// fillExactGap places a ready main-zone task exactly at the start of the
// current main-zone gap when one fits.
func (r *run) fillExactGap(ready []*taskInfo) (*taskInfo, bool) {
	g, ok := r.currentMainGap()
	if !ok {
		return nil, false
	}
	cands := make([]*taskInfo, 0, len(ready))
	for _, ti := range ready {
		if r.inMainZone(ti) && ti.space == g.SpaceID && ti.dur <= g.End-g.Start {
			cands = append(cands, ti)
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return r.p.rank[cands[i].ID] < r.p.rank[cands[j].ID] })
	for _, ti := range cands {
		pl, _, ok := r.findSlot(ti, g.Start, true)
		if !ok {
			continue
		}
		r.diag.ExactFills++
		r.log.Debugw("exact gap fill", map[string]any{
			"task": ti.ID, "space": g.SpaceID, "start": timegrid.Format(g.Start), "end": timegrid.Format(g.End),
		})
		r.commit(ti, pl)
		return ti, true
	}
	return nil, false
}

// currentMainGap is the earliest idle stretch between two tasks of a main
// zone space.
func (r *run) currentMainGap() (Gap, bool) {
	var best Gap
	found := false
	for _, sid := range r.p.mainSpaces {
		gaps := spaceGaps(sid, r.st.occ.Set(occupancy.Space, sid).Intervals())
		if len(gaps) == 0 {
			continue
		}
		if !found || gaps[0].Start < best.Start {
			best, found = gaps[0], true
		}
	}
	return best, found
}
