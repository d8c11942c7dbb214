package planner

import (
	"maps"
	"sort"

	"github.com/kilianp07/showplan/core/occupancy"
)

// placement is where and when a task runs.
type placement struct {
	Start     int
	End       int
	Space     int
	Resources []int
}

type streak struct {
	template int
	count    int
}

// SchedulerState is the mutable memory of one run: occupancy, committed
// placements and the grouping/continuity bookkeeping the scoring rules read.
// A state is owned by a single goroutine.
type SchedulerState struct {
	occ     *occupancy.Model
	planned map[int]placement
	order   []int

	meals []occupancy.Interval

	lastTemplate   map[string]int
	streaks        map[string]streak
	activeTemplate map[int]int
	switches       map[int]int

	lastEndByZone map[int]int
	firstStart    map[int]int
	lastEnd       map[int]int
	lastZone      map[int]int

	resetRequested bool
	resetArmed     bool

	wrapInner map[int]int
}

func newState() *SchedulerState {
	return &SchedulerState{
		occ:            occupancy.NewModel(),
		planned:        make(map[int]placement),
		lastTemplate:   make(map[string]int),
		streaks:        make(map[string]streak),
		activeTemplate: make(map[int]int),
		switches:       make(map[int]int),
		lastEndByZone:  make(map[int]int),
		firstStart:     make(map[int]int),
		lastEnd:        make(map[int]int),
		lastZone:       make(map[int]int),
		wrapInner:      make(map[int]int),
	}
}

// Clone returns an independent deep copy.
func (s *SchedulerState) Clone() *SchedulerState {
	c := &SchedulerState{
		occ:            s.occ.Snapshot(),
		planned:        maps.Clone(s.planned),
		order:          append([]int(nil), s.order...),
		meals:          append([]occupancy.Interval(nil), s.meals...),
		lastTemplate:   maps.Clone(s.lastTemplate),
		streaks:        maps.Clone(s.streaks),
		activeTemplate: maps.Clone(s.activeTemplate),
		switches:       maps.Clone(s.switches),
		lastEndByZone:  maps.Clone(s.lastEndByZone),
		firstStart:     maps.Clone(s.firstStart),
		lastEnd:        maps.Clone(s.lastEnd),
		lastZone:       maps.Clone(s.lastZone),
		resetRequested: s.resetRequested,
		resetArmed:     s.resetArmed,
		wrapInner:      maps.Clone(s.wrapInner),
	}
	return c
}

func (s *SchedulerState) isPlanned(id int) bool {
	_, ok := s.planned[id]
	return ok
}

// occupy inserts the interval of ti into every entity it uses.
func (s *SchedulerState) occupy(ti *taskInfo, pl placement) {
	iv := occupancy.Interval{Start: pl.Start, End: pl.End, TaskID: ti.ID}
	s.occ.Insert(occupancy.Contestant, ti.contestant, iv)
	s.occ.Insert(occupancy.Space, pl.Space, iv)
	s.occ.Insert(occupancy.Itinerant, ti.team, iv)
	for _, r := range pl.Resources {
		s.occ.Insert(occupancy.Resource, r, iv)
	}
}

// vacate removes ti from every entity without forgetting its placement.
func (s *SchedulerState) vacate(ti *taskInfo) {
	pl, ok := s.planned[ti.ID]
	if !ok {
		return
	}
	s.occ.Remove(occupancy.Contestant, ti.contestant, ti.ID)
	s.occ.Remove(occupancy.Space, pl.Space, ti.ID)
	s.occ.Remove(occupancy.Itinerant, ti.team, ti.ID)
	for _, r := range pl.Resources {
		s.occ.Remove(occupancy.Resource, r, ti.ID)
	}
}

// record stores a placement and updates the per-contestant and per-zone
// memory. It does not touch template bookkeeping.
func (s *SchedulerState) record(ti *taskInfo, pl placement) {
	if _, ok := s.planned[ti.ID]; !ok {
		s.order = append(s.order, ti.ID)
	}
	s.planned[ti.ID] = pl
	s.occupy(ti, pl)
	if c := ti.contestant; c > 0 {
		if fs, ok := s.firstStart[c]; !ok || pl.Start < fs {
			s.firstStart[c] = pl.Start
		}
		if pl.End >= s.lastEnd[c] {
			s.lastEnd[c] = pl.End
			if ti.zone > 0 {
				s.lastZone[c] = ti.zone
			}
		}
	}
	if ti.zone > 0 && !ti.meal && !ti.resBreak && pl.End > s.lastEndByZone[ti.zone] {
		s.lastEndByZone[ti.zone] = pl.End
	}
}

// move relocates an already planned task keeping its space and resources.
func (s *SchedulerState) move(ti *taskInfo, start int) {
	pl, ok := s.planned[ti.ID]
	if !ok {
		return
	}
	s.vacate(ti)
	pl.End = start + (pl.End - pl.Start)
	pl.Start = start
	s.planned[ti.ID] = pl
	s.occupy(ti, pl)
}

// noteTemplate tracks the active template of a zone and the streak of a
// grouping key.
func (s *SchedulerState) noteTemplate(zone int, key string, template int) {
	if zone > 0 && template > 0 {
		if prev := s.activeTemplate[zone]; prev > 0 && prev != template {
			s.switches[zone]++
		}
		s.activeTemplate[zone] = template
	}
	if key == "" {
		return
	}
	st := s.streaks[key]
	if st.template == template {
		st.count++
	} else {
		st = streak{template: template, count: 1}
	}
	s.streaks[key] = st
	s.lastTemplate[key] = template
}

// resetTemplate forgets the active template of a zone after a meal.
func (s *SchedulerState) resetTemplate(zone int) {
	delete(s.activeTemplate, zone)
}

// plannedIn returns the planned task ids of a space in start order.
func (s *SchedulerState) plannedIn(space int) []int {
	var ids []int
	for id, pl := range s.planned {
		if pl.Space == space {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.planned[ids[i]], s.planned[ids[j]]
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return ids[i] < ids[j]
	})
	return ids
}
