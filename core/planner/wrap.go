package planner

import (
	"fmt"
	"sort"

	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

// Blocker classes of an infeasible wrap.
const (
	wrapTimeWindow     = "TIME_WINDOW"
	wrapContestantBusy = "CONTESTANT_BUSY"
	wrapSpaceBusy      = "SPACE_BUSY"
	wrapTeamBusy       = "ITINERANT_TEAM_BUSY"
	wrapResourceBusy   = "RESOURCE_BUSY"
	wrapZoneMealBreak  = "ZONE_MEAL_BREAK"
	wrapLocked         = "LOCKED"
)

// wrapAllowed reports whether a and b form the sanctioned itinerant wrap
// pair: same contestant, same space, neither protected, at most one
// itinerant, and recorded as partners.
func (r *run) wrapAllowed(a, b int) bool {
	if r.st.wrapInner[a] != b && r.st.wrapInner[b] != a {
		return false
	}
	ta, okA := r.p.tasks[a]
	tb, okB := r.p.tasks[b]
	if !okA || !okB {
		return false
	}
	if ta.contestant <= 0 || ta.contestant != tb.contestant {
		return false
	}
	pa, pb := r.st.planned[a], r.st.planned[b]
	if pa.Space <= 0 || pa.Space != pb.Space {
		return false
	}
	if ta.protected || tb.protected || ta.IsManualBlock || tb.IsManualBlock {
		return false
	}
	return !(ta.wrap && tb.wrap)
}

// wrapExtent returns the padding added around the inner task and the part
// of it placed before the inner start.
func wrapExtent(dur int) (extra, pre int) {
	extra = max(timegrid.Grid, timegrid.SnapUp(max(10, dur)))
	return extra, timegrid.SnapDown(extra / 2)
}

// syncWraps realigns every planned itinerant wrap around its inner task.
func (r *run) syncWraps() {
	warned := make(map[int]bool)
	for _, w := range r.warnings {
		if w.Code == CodeItinerantWrapNotFeasible {
			warned[w.TaskID] = true
		}
	}
	for _, ti := range r.p.order {
		if !ti.wrap || ti.immovable || ti.fixed || !r.st.isPlanned(ti.ID) {
			continue
		}
		inner := r.pickInner(ti)
		if inner == nil {
			continue
		}
		ip := r.st.planned[inner.ID]
		extra, pre := wrapExtent(ti.dur)
		start, end := ip.Start-pre, ip.End+extra-pre

		cur := r.st.planned[ti.ID]
		if cur.Start == start && cur.End == end {
			r.st.wrapInner[ti.ID] = inner.ID
			continue
		}
		prevInner, hadInner := r.st.wrapInner[ti.ID]
		r.st.wrapInner[ti.ID] = inner.ID
		class := r.wrapBlocker(ti, start, end)
		if class == "" {
			r.st.vacate(ti)
			cur.Start, cur.End = start, end
			r.st.planned[ti.ID] = cur
			r.st.occupy(ti, cur)
			continue
		}
		if hadInner {
			r.st.wrapInner[ti.ID] = prevInner
		} else {
			delete(r.st.wrapInner, ti.ID)
		}
		if inner.immovable {
			class = wrapLocked
		}
		if warned[ti.ID] {
			continue
		}
		warned[ti.ID] = true
		r.warn(r.p.reasonFor(ti, Reason{
			Code:   CodeItinerantWrapNotFeasible,
			TaskID: ti.ID,
			Message: fmt.Sprintf("%s cannot wrap %s %s-%s (%s)",
				ti.label(), inner.label(), timegrid.Format(start), timegrid.Format(end), class),
			Details: map[string]any{"taskId": ti.ID, "innerTaskId": inner.ID, "blocker": class},
		}))
	}
}

// pickInner chooses the task an itinerant wrap should surround: the recorded
// partner when still eligible, else the best overlapping candidate.
func (r *run) pickInner(ti *taskInfo) *taskInfo {
	cur := r.st.planned[ti.ID]
	type cand struct {
		t        *taskInfo
		overlap  int
		distance int
	}
	var cands []cand
	for _, it := range r.st.occ.Set(occupancy.Contestant, ti.contestant).Intervals() {
		if it.TaskID == ti.ID {
			continue
		}
		other, ok := r.p.tasks[it.TaskID]
		if !ok || !r.wrapPartner(other) || r.st.planned[it.TaskID].Space != cur.Space {
			continue
		}
		if it.TaskID == r.st.wrapInner[ti.ID] {
			return other
		}
		d := it.Start - cur.Start
		if d < 0 {
			d = -d
		}
		cands = append(cands, cand{
			t:        other,
			overlap:  max(0, min(it.End, cur.End)-max(it.Start, cur.Start)),
			distance: d,
		})
	}
	if len(cands) == 0 {
		return nil
	}
	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.overlap != b.overlap {
			return a.overlap > b.overlap
		}
		if a.distance != b.distance {
			return a.distance < b.distance
		}
		return a.t.ID < b.t.ID
	})
	return cands[0].t
}

// wrapBlocker returns the class of the first constraint preventing ti from
// running over [start, end), or "" when the wrap fits.
func (r *run) wrapBlocker(ti *taskInfo, start, end int) string {
	eff, declared := r.p.effective(ti.contestant)
	depsEnd, settled := r.depsEnd(ti)
	switch {
	case start < r.p.day.Start || end > r.p.day.End:
		return wrapTimeWindow
	case declared && (start < eff.Start || end > eff.End):
		return wrapTimeWindow
	case !settled || start < depsEnd:
		return wrapTimeWindow
	}
	for _, d := range r.p.dependents[ti.ID] {
		if dp, ok := r.st.planned[d]; ok && dp.Start < end {
			return wrapTimeWindow
		}
	}
	pl := r.st.planned[ti.ID]
	if _, busy := r.busyAt(occupancy.Contestant, ti.contestant, start, end, ti.ID); busy {
		return wrapContestantBusy
	}
	if _, busy := r.busyAt(occupancy.Space, pl.Space, start, end, ti.ID); busy {
		return wrapSpaceBusy
	}
	if _, busy := r.busyAt(occupancy.Itinerant, ti.team, start, end, ti.ID); busy {
		return wrapTeamBusy
	}
	for _, res := range pl.Resources {
		if _, busy := r.busyAt(occupancy.Resource, res, start, end, ti.ID); busy {
			return wrapResourceBusy
		}
	}
	if _, busy := r.busyAt(occupancy.ZoneMeal, ti.zone, start, end, ti.ID); busy {
		return wrapZoneMealBreak
	}
	return ""
}
