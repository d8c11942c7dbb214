package planner

import (
	"fmt"
	"strings"

	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

// overlaps returns every non-sanctioned overlap among the given kinds.
func (r *run) overlaps(kinds ...occupancy.Kind) []occupancy.Conflict {
	var out []occupancy.Conflict
	for _, k := range kinds {
		out = append(out, r.st.occ.Conflicts(k, r.wrapAllowed)...)
	}
	return out
}

// validate rescans contestant and resource occupancy, fixed tasks included.
// Any overlap is a hard reason.
func (r *run) validate() []Reason {
	var out []Reason
	for _, kind := range []occupancy.Kind{occupancy.Contestant, occupancy.Resource} {
		code, entity := CodeContestantOverlap, "contestant"
		if kind == occupancy.Resource {
			code, entity = CodeResourceOverlap, "resource"
		}
		multi := make(map[int]bool)
		for _, c := range r.st.occ.Conflicts(kind, r.wrapAllowed) {
			if c.Count >= 3 {
				if multi[c.Key] {
					continue
				}
				multi[c.Key] = true
				ids := r.overlappingIDs(kind, c)
				out = append(out, Reason{
					Code:    code,
					TaskID:  c.A.TaskID,
					Message: fmt.Sprintf("%s %d has %d overlapping tasks around %s: %s", entity, c.Key, c.Count, timegrid.Format(c.A.Start), r.describeAll(kind, c.Key, ids)),
					Details: map[string]any{"entityId": c.Key, "taskIds": ids, "count": c.Count},
				})
				continue
			}
			out = append(out, Reason{
				Code:    code,
				TaskID:  c.A.TaskID,
				Message: fmt.Sprintf("%s %d: %s overlaps %s", entity, c.Key, r.describe(c.A), r.describe(c.B)),
				Details: map[string]any{"entityId": c.Key, "taskIds": []int{c.A.TaskID, c.B.TaskID}, "count": 2},
			})
		}
	}
	return out
}

func (r *run) overlappingIDs(kind occupancy.Kind, c occupancy.Conflict) []int {
	var ids []int
	for _, it := range r.st.occ.Set(kind, c.Key).Overlapping(c.A.Start, c.A.End) {
		ids = append(ids, it.TaskID)
	}
	return ids
}

func (r *run) describeAll(kind occupancy.Kind, key int, ids []int) string {
	parts := make([]string, 0, len(ids))
	for _, it := range r.st.occ.Set(kind, key).Intervals() {
		for _, id := range ids {
			if it.TaskID == id {
				parts = append(parts, r.describe(it))
				break
			}
		}
	}
	return strings.Join(parts, ", ")
}

// describe names a task with its side (fixed or planned) and interval.
func (r *run) describe(it occupancy.Interval) string {
	name, side := fmt.Sprintf("task #%d", it.TaskID), "planned"
	if ti, ok := r.p.tasks[it.TaskID]; ok {
		name = ti.label()
		if ti.fixed {
			side = "fixed"
		}
	}
	return fmt.Sprintf("%s (%s %s-%s)", name, side, timegrid.Format(it.Start), timegrid.Format(it.End))
}
