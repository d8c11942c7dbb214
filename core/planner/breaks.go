package planner

import (
	"context"
	"fmt"

	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

// placeZoneMeals stacks contestant-less meal blocks from the meal start inside
// the zone meal set of their zone.
func (r *run) placeZoneMeals(_ context.Context) ([]Reason, error) {
	win := r.mealWindow()
	dur := r.p.mealDur
	for _, ti := range r.p.order {
		if !ti.meal || ti.contestant > 0 || ti.immovable {
			continue
		}
		start := r.st.occ.EarliestGap(occupancy.ZoneMeal, ti.ZoneID, win.Start, dur)
		if start+dur > win.End {
			return []Reason{r.p.reasonFor(ti, Reason{
				Code:    CodeMealZoneNoFit,
				TaskID:  ti.ID,
				Message: fmt.Sprintf("zone meal %s does not fit between %s and %s", ti.label(), timegrid.Format(win.Start), timegrid.Format(win.End)),
				Details: map[string]any{"taskId": ti.ID, "zoneId": ti.ZoneID},
			})}, nil
		}
		pl := placement{Start: start, End: start + dur, Space: ti.space}
		r.st.occ.Insert(occupancy.ZoneMeal, ti.ZoneID, occupancy.Interval{Start: pl.Start, End: pl.End, TaskID: ti.ID})
		r.st.record(ti, pl)
		r.emit(ti, pl, "")
		if r.p.w.mainZoneID > 0 && ti.ZoneID == r.p.w.mainZoneID {
			r.requestReset()
		}
	}
	return nil, nil
}

// placeResourceBreaks places space and itinerant team meals inside their
// fixed window, or the meal window when none is set.
func (r *run) placeResourceBreaks(_ context.Context) ([]Reason, error) {
	for _, ti := range r.p.order {
		if !ti.resBreak || ti.immovable {
			continue
		}
		win := r.mealWindow()
		if ti.hasWinLo && ti.hasWinHi {
			win = ti.window
		}
		start := timegrid.SnapUp(win.Start)
		pl := placement{}
		code := CodeSpaceBreakNoFit
		switch ti.BreakKind {
		case BreakSpaceMeal:
			start = r.st.occ.EarliestGap(occupancy.Space, ti.space, start, ti.dur)
			pl.Space = ti.space
		case BreakItinerantMeal:
			code = CodeItinerantBreakNoFit
			start = r.st.occ.EarliestGap(occupancy.Itinerant, ti.team, start, ti.dur)
		}
		if start+ti.dur > win.End {
			return []Reason{r.p.reasonFor(ti, Reason{
				Code:   code,
				TaskID: ti.ID,
				Message: fmt.Sprintf("%s (%d min) does not fit between %s and %s",
					ti.label(), ti.dur, timegrid.Format(win.Start), timegrid.Format(win.End)),
				Details: map[string]any{
					"taskId":      ti.ID,
					"windowStart": timegrid.Format(win.Start),
					"windowEnd":   timegrid.Format(win.End),
				},
			})}, nil
		}
		pl.Start, pl.End = start, start+ti.dur
		r.st.record(ti, pl)
		r.emit(ti, pl, "")
		if r.inMainZone(ti) {
			r.requestReset()
		}
	}
	return nil, nil
}

func (r *run) requestReset() {
	r.st.resetRequested = true
	r.st.resetTemplate(r.p.w.mainZoneID)
}
