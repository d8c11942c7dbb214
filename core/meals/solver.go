// Package meals assigns contestant meal starts inside the shared meal window
// without exceeding the number of simultaneous meals.
//
// The search is a depth-first backtracking over candidates ordered by
// scarcity, with a forward check after every tentative assignment.
package meals

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kilianp07/showplan/core/budget"
	"github.com/kilianp07/showplan/core/occupancy"
	"github.com/kilianp07/showplan/core/timegrid"
)

const (
	DefaultDuration        = 75
	DefaultMaxSimultaneous = 10
	MinDuration            = 5
)

// ErrNoFit is wrapped by *NoFitError.
var ErrNoFit = errors.New("meal does not fit")

// Candidate is a pending contestant meal.
type Candidate struct {
	TaskID           int
	ContestantID     int
	ContestantName   string
	Window           timegrid.Window
	OccupancyMinutes int
	Starts           []int
}

// Problem is one meal assignment run.
type Problem struct {
	Window          timegrid.Window
	Duration        int
	MaxSimultaneous int
	Fixed           []occupancy.Interval
	Candidates      []Candidate
	// NodeBudget caps visited search nodes. Zero means unlimited.
	NodeBudget int
}

// Assignment is a chosen meal start.
type Assignment struct {
	TaskID       int
	ContestantID int
	Start        int
	End          int
}

// NoFitError reports the first candidate the search could not place and the
// bucket counts observed at that point.
type NoFitError struct {
	Candidate Candidate
	Buckets   *Buckets
}

func (e *NoFitError) Error() string {
	return fmt.Sprintf("meal of task %d (contestant %d): %v", e.Candidate.TaskID, e.Candidate.ContestantID, ErrNoFit)
}

func (e *NoFitError) Unwrap() error { return ErrNoFit }

// ViableStarts lists the grid starts inside w where the contestant is idle
// and fewer than maxSim fixed meals run.
func ViableStarts(w timegrid.Window, dur, maxSim int, contestant occupancy.IntervalSet, fixed []occupancy.Interval) []int {
	var out []int
	for start := timegrid.SnapUp(w.Start); start <= w.End-dur; start += timegrid.Grid {
		if contestant != nil && !contestant.Free(start, dur) {
			continue
		}
		concurrent := 0
		for _, it := range fixed {
			if it.Overlaps(start, start+dur) {
				concurrent++
			}
		}
		if concurrent >= maxSim {
			continue
		}
		out = append(out, start)
	}
	return out
}

// OccupancyMinutes sums the minutes of set overlapping w.
func OccupancyMinutes(set occupancy.IntervalSet, w timegrid.Window) int {
	total := 0
	for _, it := range set.Overlapping(w.Start, w.End) {
		total += min(it.End, w.End) - max(it.Start, w.Start)
	}
	return total
}

type search struct {
	ctx     context.Context
	p       Problem
	order   []Candidate
	buckets *Buckets
	chosen  map[int]int
	nodes   *budget.Counter
	failing *NoFitError
}

// Solve assigns a start to every candidate. It returns a *NoFitError when the
// search space is exhausted and an error wrapping budget.ErrExceeded when the
// node budget runs out first.
func Solve(ctx context.Context, p Problem) ([]Assignment, error) {
	s := &search{
		ctx:     ctx,
		p:       p,
		order:   orderCandidates(p.Candidates),
		buckets: NewBuckets(p.Window),
		chosen:  make(map[int]int, len(p.Candidates)),
		nodes:   budget.New("meal search", p.NodeBudget),
	}
	for _, it := range p.Fixed {
		s.buckets.add(it.Start, it.End, 1)
	}
	for i := range s.order {
		c := &s.order[i]
		starts := append([]int(nil), c.Starts...)
		sort.SliceStable(starts, func(a, b int) bool {
			la, lb := s.buckets.Load(starts[a], p.Duration), s.buckets.Load(starts[b], p.Duration)
			if la != lb {
				return la < lb
			}
			return starts[a] < starts[b]
		})
		c.Starts = starts
	}

	ok, err := s.dfs(0)
	if err != nil {
		return nil, err
	}
	if !ok {
		if s.failing == nil && len(s.order) > 0 {
			s.failing = &NoFitError{Candidate: s.order[0], Buckets: s.buckets.Clone()}
		}
		return nil, s.failing
	}

	out := make([]Assignment, 0, len(s.order))
	for _, c := range s.order {
		start := s.chosen[c.TaskID]
		out = append(out, Assignment{TaskID: c.TaskID, ContestantID: c.ContestantID, Start: start, End: start + p.Duration})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start < out[j].Start
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out, nil
}

func orderCandidates(in []Candidate) []Candidate {
	out := append([]Candidate(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if len(a.Starts) != len(b.Starts) {
			return len(a.Starts) < len(b.Starts)
		}
		if a.Window.Minutes() != b.Window.Minutes() {
			return a.Window.Minutes() < b.Window.Minutes()
		}
		if a.OccupancyMinutes != b.OccupancyMinutes {
			return a.OccupancyMinutes > b.OccupancyMinutes
		}
		return a.TaskID < b.TaskID
	})
	return out
}

func (s *search) dfs(i int) (bool, error) {
	if i >= len(s.order) {
		return true, nil
	}
	if err := s.nodes.Spend(); err != nil {
		return false, err
	}
	if s.nodes.Used()%256 == 0 {
		if err := s.ctx.Err(); err != nil {
			return false, err
		}
	}
	c := s.order[i]
	dur, limit := s.p.Duration, s.p.MaxSimultaneous
	for _, start := range c.Starts {
		if !s.buckets.Fits(start, dur, limit) {
			continue
		}
		s.chosen[c.TaskID] = start
		s.buckets.Apply(start, dur)

		if blocked := s.firstWithoutSlot(i + 1); blocked == nil {
			ok, err := s.dfs(i + 1)
			if err != nil || ok {
				return ok, err
			}
		} else if s.failing == nil {
			s.failing = &NoFitError{Candidate: *blocked, Buckets: s.buckets.Clone()}
		}

		s.buckets.Undo(start, dur)
		delete(s.chosen, c.TaskID)
	}
	if s.failing == nil {
		s.failing = &NoFitError{Candidate: c, Buckets: s.buckets.Clone()}
	}
	return false, nil
}

// firstWithoutSlot is the forward check: the first remaining candidate with
// no start that still fits.
func (s *search) firstWithoutSlot(from int) *Candidate {
	for j := from; j < len(s.order); j++ {
		c := &s.order[j]
		found := false
		for _, start := range c.Starts {
			if s.buckets.Fits(start, s.p.Duration, s.p.MaxSimultaneous) {
				found = true
				break
			}
		}
		if !found {
			return c
		}
	}
	return nil
}
