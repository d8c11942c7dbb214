package planner

import (
	"fmt"
	"sort"
	"strings"
)

// PlannedTask is one scheduled task.
type PlannedTask struct {
	TaskID            int    `json:"taskId" yaml:"taskId"`
	StartPlanned      string `json:"startPlanned" yaml:"startPlanned"`
	EndPlanned        string `json:"endPlanned" yaml:"endPlanned"`
	AssignedSpace     *int   `json:"assignedSpace" yaml:"assignedSpace"`
	AssignedResources []int  `json:"assignedResources" yaml:"assignedResources"`
}

// Reason is a structured hard reason or warning.
type Reason struct {
	Code        string `json:"code" yaml:"code"`
	Message     string `json:"message" yaml:"message"`
	TaskID      int    `json:"taskId,omitempty" yaml:"taskId,omitempty"`
	Details     any    `json:"details,omitempty" yaml:"details,omitempty"`
	DedupeCount int    `json:"dedupeCount,omitempty" yaml:"dedupeCount,omitempty"`

	// dedupe key parts
	templateName string
	contestantID int
}

// Unplanned pairs a task with the reason it got no slot.
type Unplanned struct {
	TaskID int    `json:"taskId" yaml:"taskId"`
	Reason Reason `json:"reason" yaml:"reason"`
}

// Insight is diagnostic telemetry attached to a result.
type Insight struct {
	Code    string `json:"code" yaml:"code"`
	Details any    `json:"details,omitempty" yaml:"details,omitempty"`
}

// Result is the outcome of a solve.
type Result struct {
	Feasible     bool          `json:"feasible" yaml:"feasible"`
	HardFeasible bool          `json:"hardFeasible" yaml:"hardFeasible"`
	Complete     bool          `json:"complete" yaml:"complete"`
	PlannedTasks []PlannedTask `json:"plannedTasks" yaml:"plannedTasks"`
	Warnings     []Reason      `json:"warnings" yaml:"warnings"`
	Unplanned    []Unplanned   `json:"unplanned" yaml:"unplanned"`
	Insights     []Insight     `json:"insights" yaml:"insights"`
	Reasons      []Reason      `json:"reasons" yaml:"reasons"`
}

// Planned returns the planned entry of a task.
func (r Result) Planned(taskID int) (PlannedTask, bool) {
	for _, p := range r.PlannedTasks {
		if p.TaskID == taskID {
			return p, true
		}
	}
	return PlannedTask{}, false
}

// Insight returns the first insight with the given code.
func (r Result) Insight(code string) (Insight, bool) {
	for _, in := range r.Insights {
		if in.Code == code {
			return in, true
		}
	}
	return Insight{}, false
}

// Warning returns the first warning with the given code.
func (r Result) Warning(code string) (Reason, bool) {
	for _, w := range r.Warnings {
		if w.Code == code {
			return w, true
		}
	}
	return Reason{}, false
}

func infeasibleResult(reasons []Reason) Result {
	return Result{
		Feasible:     false,
		HardFeasible: false,
		Complete:     false,
		PlannedTasks: []PlannedTask{},
		Warnings:     []Reason{},
		Unplanned:    []Unplanned{},
		Insights:     []Insight{},
		Reasons:      reasons,
	}
}

func warningKey(w Reason) string {
	return fmt.Sprintf("%s:%s:%d:%s", w.Code, strings.ToLower(w.templateName), w.contestantID, w.Message)
}

// dedupeWarnings folds warnings sharing code, template, contestant and message.
func dedupeWarnings(in []Reason) []Reason {
	index := make(map[string]int, len(in))
	out := make([]Reason, 0, len(in))
	for _, w := range in {
		k := warningKey(w)
		if i, ok := index[k]; ok {
			if out[i].DedupeCount == 0 {
				out[i].DedupeCount = 1
			}
			out[i].DedupeCount++
			continue
		}
		index[k] = len(out)
		out = append(out, w)
	}
	return out
}

type reasonCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}

// topReasons counts unplanned codes, most frequent first.
func topReasons(unplanned []Unplanned, limit int) []reasonCount {
	counts := make(map[string]int)
	for _, u := range unplanned {
		counts[u.Reason.Code]++
	}
	out := make([]reasonCount, 0, len(counts))
	for code, n := range counts {
		out = append(out, reasonCount{Code: code, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Code < out[j].Code
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MainZoneGaps returns the gap count and idle minutes of the main zone, or
// false when the result carries no main zone statistics.
func (r Result) MainZoneGaps() (count, minutes int, ok bool) {
	in, found := r.Insight(InsightGapStats)
	if !found {
		return 0, 0, false
	}
	gs, isStats := in.Details.(gapStats)
	if !isStats {
		return 0, 0, false
	}
	return gs.TotalGaps, gs.TotalGapMinutes, true
}
