package planner

import (
	"fmt"
	"slices"
	"sort"

	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

// Gap explanation codes, in the order they are checked.
const (
	GapInProgressOrDone = "IN_PROGRESS_OR_DONE"
	GapLockedTask       = "LOCKED_TASK"
	GapTimeWindow       = "TIME_WINDOW"
	GapHardDependency   = "HARD_DEPENDENCY"
	GapContestantBusy   = "CONTESTANT_BUSY"
	GapResourceBusy     = "RESOURCE_BUSY"
	GapOther            = "OTHER"
)

// relocationReach bounds how far a blocker is moved to free a gap.
const relocationReach = 120

// Gap is an idle stretch between two consecutive tasks of one space.
type Gap struct {
	SpaceID      int `json:"spaceId"`
	Start        int `json:"start"`
	End          int `json:"end"`
	BeforeTaskID int `json:"beforeTaskId"`
	AfterTaskID  int `json:"afterTaskId"`
}

// Minutes is the length of the gap.
func (g Gap) Minutes() int { return g.End - g.Start }

type gapKey struct{ space, start, after int }

func (g Gap) key() gapKey { return gapKey{g.SpaceID, g.Start, g.AfterTaskID} }

// GapExplanation tells why a gap could not be closed.
type GapExplanation struct {
	Code                string `json:"code"`
	SpaceID             int    `json:"spaceId"`
	GapStart            string `json:"gapStart"`
	GapEnd              string `json:"gapEnd"`
	BlockedTaskID       int    `json:"blockedTaskId,omitempty"`
	BlockingTaskID      int    `json:"blockingTaskId,omitempty"`
	BlockingLabel       string `json:"blockingLabel,omitempty"`
	BlockingStart       string `json:"blockingStart,omitempty"`
	BlockingEnd         string `json:"blockingEnd,omitempty"`
	Entity              string `json:"entity,omitempty"`
	Replannable         bool   `json:"replannable"`
	RelocationAttempted bool   `json:"relocationAttempted"`
	RelocationSucceeded bool   `json:"relocationSucceeded"`
	Message             string `json:"message"`
}

// spaceGaps lists the gaps of one space. Overlapping intervals are merged
// first so wraps never open a gap.
func spaceGaps(space int, items []occupancy.Interval) []Gap {
	if len(items) == 0 {
		return nil
	}
	var out []Gap
	end, before := items[0].End, items[0].TaskID
	for _, it := range items[1:] {
		if it.Start-end >= timegrid.Grid {
			out = append(out, Gap{SpaceID: space, Start: end, End: it.Start, BeforeTaskID: before, AfterTaskID: it.TaskID})
		}
		if it.End > end {
			end, before = it.End, it.TaskID
		}
	}
	return out
}

// mainZoneGaps lists the gaps of every main zone space, by space then time.
func (r *run) mainZoneGaps() []Gap {
	var out []Gap
	for _, sid := range r.p.mainSpaces {
		out = append(out, spaceGaps(sid, r.st.occ.Set(occupancy.Space, sid).Intervals())...)
	}
	return out
}

// largestGap returns the longest gap not in skip. Ties pick the earliest.
func (r *run) largestGap(skip map[gapKey]bool) (Gap, bool) {
	var best Gap
	found := false
	for _, g := range r.mainZoneGaps() {
		if skip[g.key()] {
			continue
		}
		if !found || g.Minutes() > best.Minutes() || (g.Minutes() == best.Minutes() && g.Start < best.Start) {
			best, found = g, true
		}
	}
	return best, found
}

// movable reports whether the continuity pass may shift a planned task.
func (r *run) movable(ti *taskInfo) bool {
	if ti == nil || ti.immovable || ti.fixed || ti.meal || ti.resBreak || r.forced(ti) {
		return false
	}
	return r.st.isPlanned(ti.ID)
}

// busyAt returns the first interval of an entity overlapping [start, end)
// owned by another task, skipping sanctioned wrap partners of self.
func (r *run) busyAt(kind occupancy.Kind, key, start, end, self int) (occupancy.Interval, bool) {
	if key <= 0 {
		return occupancy.Interval{}, false
	}
	for _, it := range r.st.occ.Set(kind, key).Overlapping(start, end) {
		if it.TaskID == self {
			continue
		}
		if kind != occupancy.Resource && kind != occupancy.Itinerant && r.wrapAllowed(self, it.TaskID) {
			continue
		}
		return it, true
	}
	return occupancy.Interval{}, false
}

// canPlaceAt reports whether planned task ti could run from start without
// breaking any hard constraint.
func (r *run) canPlaceAt(ti *taskInfo, start int) bool {
	pl, ok := r.st.planned[ti.ID]
	if !ok || !timegrid.Aligned(start) {
		return false
	}
	end := start + (pl.End - pl.Start)
	if start < r.p.day.Start || end > r.p.day.End {
		return false
	}
	if eff, declared := r.p.effective(ti.contestant); declared && (start < eff.Start || end > eff.End) {
		return false
	}
	if r.gate > 0 && r.inMainZone(ti) && start < r.gate {
		return false
	}
	if depsEnd, settled := r.depsEnd(ti); !settled || start < depsEnd {
		return false
	}
	for _, d := range r.p.dependents[ti.ID] {
		if dp, ok := r.st.planned[d]; ok && dp.Start < end {
			return false
		}
	}
	if _, busy := r.busyAt(occupancy.Contestant, ti.contestant, start, end, ti.ID); busy {
		return false
	}
	if _, busy := r.busyAt(occupancy.Space, pl.Space, start, end, ti.ID); busy {
		return false
	}
	if _, busy := r.busyAt(occupancy.Itinerant, ti.team, start, end, ti.ID); busy {
		return false
	}
	if _, busy := r.busyAt(occupancy.ZoneMeal, ti.zone, start, end, ti.ID); busy {
		return false
	}
	for _, res := range pl.Resources {
		if _, busy := r.busyAt(occupancy.Resource, res, start, end, ti.ID); busy {
			return false
		}
	}
	return true
}

// relocationTarget finds a new start for blocker b that keeps it clear of
// need. Later starts are tried first.
func (r *run) relocationTarget(b *taskInfo, need timegrid.Window) (int, bool) {
	pl := r.st.planned[b.ID]
	dur := pl.End - pl.Start
	for t := max(pl.Start+timegrid.Grid, need.End); t <= pl.Start+relocationReach; t += timegrid.Grid {
		if r.canPlaceAt(b, t) {
			return t, true
		}
	}
	for t := min(pl.Start-timegrid.Grid, timegrid.SnapDown(need.Start-dur)); t >= pl.Start-relocationReach; t -= timegrid.Grid {
		if r.canPlaceAt(b, t) {
			return t, true
		}
	}
	return 0, false
}

// explainGap classifies why the task after g could not start at g.Start.
func (r *run) explainGap(g Gap) GapExplanation {
	ex := GapExplanation{
		Code:          GapOther,
		SpaceID:       g.SpaceID,
		GapStart:      timegrid.Format(g.Start),
		GapEnd:        timegrid.Format(g.End),
		BlockedTaskID: g.AfterTaskID,
	}
	next, ok := r.p.tasks[g.AfterTaskID]
	if !ok {
		ex.Message = fmt.Sprintf("gap %s-%s has no following task", ex.GapStart, ex.GapEnd)
		return ex
	}
	pl := r.st.planned[next.ID]
	dur := pl.End - pl.Start
	want := timegrid.Window{Start: g.Start, End: g.Start + dur}

	blockBy := func(code string, it occupancy.Interval, entity string) GapExplanation {
		ex.Code = code
		ex.BlockingTaskID = it.TaskID
		ex.BlockingStart = timegrid.Format(it.Start)
		ex.BlockingEnd = timegrid.Format(it.End)
		ex.Entity = entity
		if bt, ok := r.p.tasks[it.TaskID]; ok {
			ex.BlockingLabel = bt.label()
			ex.Replannable = r.movable(bt)
		}
		return ex
	}
	self := occupancy.Interval{Start: pl.Start, End: pl.End, TaskID: next.ID}

	switch {
	case next.inProgressOrDone():
		ex = blockBy(GapInProgressOrDone, self, "")
		ex.Message = fmt.Sprintf("%s is already %s", next.label(), next.Status)
		return ex
	case next.immovable:
		ex = blockBy(GapLockedTask, self, "")
		ex.Message = fmt.Sprintf("%s is locked at %s", next.label(), ex.BlockingStart)
		return ex
	}

	if lo, ok := r.lowerBound(next); ok && lo > g.Start {
		ex = blockBy(GapTimeWindow, self, "")
		ex.Message = fmt.Sprintf("%s cannot start before %s", next.label(), timegrid.Format(lo))
		return ex
	}

	if dep, end := r.latestDependency(next); dep != nil && end > g.Start {
		ex = blockBy(GapHardDependency, occupancy.Interval{Start: r.st.planned[dep.ID].Start, End: end, TaskID: dep.ID}, "")
		ex.Message = fmt.Sprintf("%s waits for %s, which ends at %s", next.label(), dep.label(), timegrid.Format(end))
		return ex
	}

	if it, busy := r.busyAt(occupancy.Contestant, next.contestant, want.Start, want.End, next.ID); busy {
		ex = blockBy(GapContestantBusy, it, fmt.Sprintf("contestant:%d", next.contestant))
		ex.Message = fmt.Sprintf("contestant of %s is busy with %s %s-%s", next.label(), ex.BlockingLabel, ex.BlockingStart, ex.BlockingEnd)
		return ex
	}

	for _, res := range pl.Resources {
		if it, busy := r.busyAt(occupancy.Resource, res, want.Start, want.End, next.ID); busy {
			ex = blockBy(GapResourceBusy, it, fmt.Sprintf("resource:%d", res))
			ex.Message = fmt.Sprintf("resource %d needed by %s is used by %s %s-%s", res, next.label(), ex.BlockingLabel, ex.BlockingStart, ex.BlockingEnd)
			return ex
		}
	}

	if it, busy := r.busyAt(occupancy.Space, g.SpaceID, want.Start, want.End, next.ID); busy {
		ex = blockBy(GapOther, it, fmt.Sprintf("space:%d", g.SpaceID))
		ex.Message = fmt.Sprintf("space %s is busy with %s", r.p.spaceLabel(g.SpaceID), ex.BlockingLabel)
		return ex
	}
	ex.Message = fmt.Sprintf("%s could not move to %s", next.label(), ex.GapStart)
	return ex
}

// lowerBound is the earliest start imposed on ti by windows and gates.
func (r *run) lowerBound(ti *taskInfo) (int, bool) {
	lo, ok := 0, false
	raise := func(v int) {
		if !ok || v > lo {
			lo, ok = v, true
		}
	}
	if fs, forced := r.p.forcedStart[ti.ID]; forced {
		raise(fs)
	}
	if ti.hasWinLo {
		raise(ti.window.Start)
	}
	if eff, declared := r.p.effective(ti.contestant); declared {
		raise(eff.Start)
	}
	if r.gate > 0 && r.inMainZone(ti) {
		raise(r.gate)
	}
	return lo, ok
}

func (r *run) latestDependency(ti *taskInfo) (*taskInfo, int) {
	var dep *taskInfo
	end := 0
	for _, d := range ti.deps {
		if pl, ok := r.st.planned[d]; ok && pl.End > end {
			dep, end = r.p.tasks[d], pl.End
		}
	}
	return dep, end
}

// gapView is the JSON shape of a gap inside warnings and insights.
type gapView struct {
	SpaceID     int    `json:"spaceId"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Minutes     int    `json:"minutes"`
	AfterTaskID int    `json:"afterTaskId"`
}

func viewGaps(gaps []Gap) []gapView {
	out := make([]gapView, 0, len(gaps))
	for _, g := range gaps {
		out = append(out, gapView{
			SpaceID:     g.SpaceID,
			Start:       timegrid.Format(g.Start),
			End:         timegrid.Format(g.End),
			Minutes:     g.Minutes(),
			AfterTaskID: g.AfterTaskID,
		})
	}
	return out
}

// replay rebuilds the occupancy of a solved plan.
func replay(in Input, res Result) (*run, error) {
	in.Tasks = slices.Clone(in.Tasks)
	opts := Options{}.withDefaults()
	p, err := buildPlan(&in, opts)
	if err != nil {
		return nil, err
	}
	r := newRun(p, opts, 0, p.meal.Start)
	planned := slices.Clone(res.PlannedTasks)
	sort.Slice(planned, func(i, j int) bool { return planned[i].TaskID < planned[j].TaskID })
	for _, pt := range planned {
		ti, ok := p.tasks[pt.TaskID]
		if !ok {
			return nil, fmt.Errorf("%w: planned task %d is not part of the input", ErrInvalidInput, pt.TaskID)
		}
		s, err := timegrid.Parse(pt.StartPlanned)
		if err != nil {
			return nil, fmt.Errorf("%w: task %d start: %v", ErrInvalidInput, pt.TaskID, err)
		}
		e, err := timegrid.Parse(pt.EndPlanned)
		if err != nil {
			return nil, fmt.Errorf("%w: task %d end: %v", ErrInvalidInput, pt.TaskID, err)
		}
		pl := placement{Start: s, End: e, Resources: pt.AssignedResources}
		if pt.AssignedSpace != nil {
			pl.Space = *pt.AssignedSpace
		}
		r.st.record(ti, pl)
		if ti.meal && ti.contestant <= 0 {
			r.st.occ.Insert(occupancy.ZoneMeal, ti.ZoneID, occupancy.Interval{Start: s, End: e, TaskID: ti.ID})
		}
	}
	return r, nil
}

// ComputeMainZoneGaps lists the idle stretches between consecutive tasks of
// every main zone space of a solved plan.
func ComputeMainZoneGaps(in Input, res Result) ([]Gap, error) {
	r, err := replay(in, res)
	if err != nil {
		return nil, err
	}
	return r.mainZoneGaps(), nil
}

// ExplainGap classifies why g could not be closed in a solved plan.
func ExplainGap(in Input, res Result, g Gap) (GapExplanation, error) {
	r, err := replay(in, res)
	if err != nil {
		return GapExplanation{}, err
	}
	return r.explainGap(g), nil
}
