package planner

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/showplan/core/timegrid"
)

const topReasonLimit = 5

// gapStats feeds the MAIN_ZONE_GAP_STATS insight.
type gapStats struct {
	ZoneID           int              `json:"zoneId"`
	SpacesConsidered []int            `json:"spacesConsidered"`
	TotalGaps        int              `json:"totalGaps"`
	TotalGapMinutes  int              `json:"totalGapMinutes"`
	MeanGapMinutes   float64          `json:"meanGapMinutes"`
	StdDevGapMinutes float64          `json:"stddevGapMinutes"`
	Gaps             []gapView        `json:"gaps"`
	GapReasons       []GapExplanation `json:"gapReasons"`
}

// assemble turns a finished run into a Result. Only solvable tasks are
// reported as planned.
func (r *run) assemble() Result {
	res := Result{
		PlannedTasks: r.plannedTasks(),
		Unplanned:    slices.Clone(r.unplanned),
		Insights:     []Insight{},
		Reasons:      []Reason{},
	}
	if res.Unplanned == nil {
		res.Unplanned = []Unplanned{}
	}
	warnings := append(slices.Clone(r.p.warnings), r.warnings...)

	if r.p.w.mainZoneID > 0 && len(r.p.mainSpaces) > 0 {
		gs := r.gapStats()
		mainZoneGapMinutes.Set(float64(gs.TotalGapMinutes))
		res.Insights = append(res.Insights, Insight{Code: InsightGapStats, Details: gs})
		if gs.TotalGaps > 0 {
			code := CodeGapStatsAvailable
			if r.p.w.keepBusyStrength >= DirectorThreshold {
				code = CodeGapsRemain
			}
			warnings = append(warnings, Reason{
				Code:    code,
				Message: fmt.Sprintf("main zone keeps %d gap(s) totalling %d min", gs.TotalGaps, gs.TotalGapMinutes),
				Details: map[string]any{"gaps": gs.Gaps, "reasons": gs.GapReasons},
			})
		}
		res.Insights = append(res.Insights, Insight{
			Code: InsightTemplateSwitch,
			Details: map[string]any{
				"zoneId":   r.p.w.mainZoneID,
				"switches": len(r.switches),
				"events":   r.switchEvents(),
			},
		})
	}
	if r.lookahead.Enabled {
		res.Insights = append(res.Insights, Insight{Code: InsightLookahead, Details: r.lookahead})
	}
	res.Insights = append(res.Insights, Insight{Code: InsightScoringDiagnostic, Details: r.diag})

	if len(res.Unplanned) > 0 && r.placedCount() == 0 {
		warnings = append(warnings, Reason{
			Code:    CodeNoTasksPlannedSummary,
			Message: fmt.Sprintf("no task could be planned, %d left unplanned", len(res.Unplanned)),
			Details: map[string]any{"unplanned": len(res.Unplanned), "topReasons": topReasons(res.Unplanned, topReasonLimit)},
		})
	}
	res.Warnings = dedupeWarnings(warnings)

	for _, u := range res.Unplanned {
		res.Reasons = append(res.Reasons, u.Reason)
	}
	res.Complete = len(res.Unplanned) == 0
	res.Feasible = res.Complete
	res.HardFeasible = true
	return res
}

func (r *run) plannedTasks() []PlannedTask {
	out := make([]PlannedTask, 0, len(r.st.planned))
	for id, pl := range r.st.planned {
		if _, ok := r.p.rank[id]; !ok {
			continue
		}
		pt := PlannedTask{
			TaskID:            id,
			StartPlanned:      timegrid.Format(pl.Start),
			EndPlanned:        timegrid.Format(pl.End),
			AssignedResources: append([]int{}, pl.Resources...),
		}
		if pl.Space > 0 {
			space := pl.Space
			pt.AssignedSpace = &space
		}
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := r.st.planned[out[i].TaskID].Start, r.st.planned[out[j].TaskID].Start
		if si != sj {
			return si < sj
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

// placedCount is the number of tasks this run placed itself, fixed tasks
// excluded.
func (r *run) placedCount() int {
	n := 0
	for id := range r.st.planned {
		if ti, ok := r.p.tasks[id]; ok && !ti.fixed {
			n++
		}
	}
	return n
}

func (r *run) gapStats() gapStats {
	gaps := r.mainZoneGaps()
	gs := gapStats{
		ZoneID:           r.p.w.mainZoneID,
		SpacesConsidered: slices.Clone(r.p.mainSpaces),
		TotalGaps:        len(gaps),
		Gaps:             viewGaps(gaps),
		GapReasons:       make([]GapExplanation, 0, len(gaps)),
	}
	minutes := make([]float64, 0, len(gaps))
	for _, g := range gaps {
		gs.TotalGapMinutes += g.Minutes()
		minutes = append(minutes, float64(g.Minutes()))
		gs.GapReasons = append(gs.GapReasons, r.explainGap(g))
	}
	if len(minutes) > 0 {
		gs.MeanGapMinutes = stat.Mean(minutes, nil)
	}
	if len(minutes) > 1 {
		if sd := stat.StdDev(minutes, nil); !math.IsNaN(sd) {
			gs.StdDevGapMinutes = sd
		}
	}
	return gs
}

func (r *run) switchEvents() []templateSwitch {
	if r.switches == nil {
		return []templateSwitch{}
	}
	return r.switches
}

// runStats ranks candidate runs of the outer search.
type runStats struct {
	gaps       int
	gapMinutes int
	switches   int
}

func (r *run) stats() runStats {
	var s runStats
	for _, g := range r.mainZoneGaps() {
		s.gaps++
		s.gapMinutes += g.Minutes()
	}
	s.switches = r.mainSwitchCount()
	return s
}

// mainSwitchCount counts template changes along the main zone timeline.
// Meals and breaks reset the running template.
func (r *run) mainSwitchCount() int {
	main := r.p.w.mainZoneID
	if main <= 0 {
		return 0
	}
	type row struct{ start, id int }
	var rows []row
	for id, pl := range r.st.planned {
		if ti := r.p.tasks[id]; ti != nil && ti.zone == main {
			rows = append(rows, row{pl.Start, id})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].start != rows[j].start {
			return rows[i].start < rows[j].start
		}
		return rows[i].id < rows[j].id
	})
	last, n := 0, 0
	for _, rw := range rows {
		ti := r.p.tasks[rw.id]
		if ti.meal || ti.resBreak {
			last = 0
			continue
		}
		if ti.TemplateID <= 0 {
			continue
		}
		if last > 0 && ti.TemplateID != last {
			n++
		}
		last = ti.TemplateID
	}
	return n
}
