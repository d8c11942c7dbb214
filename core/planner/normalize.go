package planner

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kilianp07/showplan/core/depgraph"
	"github.com/kilianp07/showplan/core/resources"
	"github.com/kilianp07/showplan/core/timegrid"
)

const (
	defaultTaskDuration  = 30
	defaultBreakDuration = 45
)

// taskInfo is a task with every derived attribute resolved once.
type taskInfo struct {
	*Task

	dur        int
	zone       int
	space      int
	contestant int
	team       int
	deps       []int

	meal      bool
	arrival   bool
	departure bool
	resBreak  bool
	protected bool
	wrap      bool

	locked    bool
	immovable bool
	fixed     bool
	fixedAt   timegrid.Window

	req resources.Requirement

	window    timegrid.Window
	hasWinLo  bool
	hasWinHi  bool
	templateL string
}

func (t *taskInfo) label() string {
	if t.templateL != "" {
		return t.templateL
	}
	return fmt.Sprintf("task #%d", t.ID)
}

func (t *taskInfo) inProgressOrDone() bool {
	return t.Status == StatusInProgress || t.Status == StatusDone
}

// plan is the immutable, normalized view of one Input. It is shared by every
// run of the outer search.
type plan struct {
	in *Input
	w  weights

	day        timegrid.Window
	meal       timegrid.Window
	mealDur    int
	mealMaxSim int

	tasks      map[int]*taskInfo
	all        []*taskInfo
	solvable   []*taskInfo
	order      []*taskInfo
	rank       map[int]int
	dependents map[int][]int
	spaceZone  map[int]int
	mainSpaces []int

	catalog     *resources.Catalog
	avail       map[int]timegrid.Window
	forcedStart map[int]int
	forcedEnd   map[int]int

	warnings []Reason
}

// MissingDependency details a DEPENDENCY_MISSING reason.
type MissingDependency struct {
	ContestantID        int    `json:"contestantId,omitempty"`
	ContestantName      string `json:"contestantName,omitempty"`
	MissingTemplateID   int    `json:"missingTemplateId"`
	MissingTemplateName string `json:"missingTemplateName"`
	MainTemplateID      int    `json:"mainTemplateId,omitempty"`
	MainTaskName        string `json:"mainTaskName"`
}

// buildPlan validates and normalizes in. On hard infeasibility it returns a
// *InfeasibleError and, when normalization got far enough, the partial plan
// so its warnings can still be reported.
func buildPlan(in *Input, opts Options) (*plan, error) {
	p := &plan{
		in:          in,
		w:           resolveWeights(in),
		tasks:       make(map[int]*taskInfo, len(in.Tasks)),
		rank:        make(map[int]int, len(in.Tasks)),
		dependents:  make(map[int][]int),
		spaceZone:   make(map[int]int),
		avail:       make(map[int]timegrid.Window),
		forcedStart: make(map[int]int),
		forcedEnd:   make(map[int]int),
	}
	if err := p.parseClocks(); err != nil {
		return nil, err
	}
	p.mealDur = timegrid.SnapUp(max(5, intOr(in.ContestantMealDurationMinutes, opts.MealDuration)))
	p.mealMaxSim = max(1, intOr(in.ContestantMealMaxSimultaneous, opts.MealMaxSimultaneous))

	if err := p.indexTasks(); err != nil {
		return nil, err
	}
	p.resolveAvailability()
	p.exclude()

	if len(p.solvable) == 0 {
		msg := "no tasks to plan"
		if len(p.warnings) > 0 {
			msg = "no plannable tasks: every task requires configuration"
		}
		return p, &InfeasibleError{Reasons: []Reason{{Code: CodeInvalidInput, Message: msg}}}
	}
	if missing := p.missingDependencies(); len(missing) > 0 {
		return p, &InfeasibleError{Reasons: missing}
	}
	if err := p.topoSort(); err != nil {
		return p, err
	}
	p.batchTransport()
	return p, nil
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func (p *plan) parseClocks() error {
	var msgs []string
	parse := func(what string, c Clock) timegrid.Window {
		if strings.TrimSpace(c.Start) == "" || strings.TrimSpace(c.End) == "" {
			msgs = append(msgs, fmt.Sprintf("missing %s", what))
			return timegrid.Window{}
		}
		s, err := timegrid.Parse(c.Start)
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("%s start: %v", what, err))
		}
		e, err := timegrid.Parse(c.End)
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("%s end: %v", what, err))
		}
		w := timegrid.Window{Start: s, End: e}
		if len(msgs) == 0 && w.Empty() {
			msgs = append(msgs, fmt.Sprintf("%s ends before it starts", what))
		}
		return w
	}
	p.day = parse("work day", p.in.WorkDay)
	p.meal = parse("meal window", p.in.Meal)
	if len(msgs) == 0 {
		return nil
	}
	reasons := make([]Reason, 0, len(msgs))
	for _, m := range msgs {
		reasons = append(reasons, Reason{Code: CodeInvalidInput, Message: m})
	}
	return &InfeasibleError{Reasons: reasons}
}

func (p *plan) isMealTask(t *Task) bool {
	if p.in.MealTaskTemplateID > 0 && t.TemplateID == p.in.MealTaskTemplateID {
		return true
	}
	name := normName(p.in.MealTaskTemplateName)
	return name != "" && normName(t.TemplateName) == name
}

func normName(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func dedupeIDs(list []int, legacy int) []int {
	seen := make(map[int]struct{}, len(list)+1)
	var out []int
	for _, id := range append(append([]int(nil), list...), legacy) {
		if id <= 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (p *plan) indexTasks() error {
	locks := make(map[int]Lock)
	for _, l := range p.in.Locks {
		if l.TaskID <= 0 || (l.Kind != LockTime && l.Kind != LockFull) {
			continue
		}
		if strings.TrimSpace(l.LockedStart) == "" || strings.TrimSpace(l.LockedEnd) == "" {
			continue
		}
		locks[l.TaskID] = l
	}

	arrival := normName(p.in.ArrivalTaskTemplateName)
	departure := normName(p.in.DepartureTaskTemplateName)

	for i := range p.in.Tasks {
		t := &p.in.Tasks[i]
		if t.ID <= 0 {
			return invalidInput(fmt.Sprintf("task at position %d has no id", i))
		}
		if _, dup := p.tasks[t.ID]; dup {
			return invalidInput(fmt.Sprintf("duplicate task id %d", t.ID))
		}
		if t.Status == "" {
			t.Status = StatusPending
		}
		ti := &taskInfo{
			Task:       t,
			space:      max(0, t.SpaceID),
			contestant: max(0, t.ContestantID),
			team:       max(0, t.ItinerantTeamID),
			deps:       dedupeIDs(t.DependsOnTaskIDs, t.DependsOnTaskID),
			meal:       p.isMealTask(t),
			resBreak:   t.BreakKind == BreakSpaceMeal || t.BreakKind == BreakItinerantMeal,
		}
		name := normName(t.TemplateName)
		ti.arrival = arrival != "" && name == arrival
		ti.departure = departure != "" && name == departure
		ti.protected = ti.meal || ti.arrival || ti.departure || t.BreakKind != BreakNone || name == "break"
		ti.wrap = ti.team > 0 && !t.IsManualBlock && !ti.protected

		ti.dur = timegrid.SnapUp(max(5, intOr(t.DurationMin, defaultTaskDuration)))
		if ti.resBreak {
			ti.dur = timegrid.SnapUp(max(1, intOr(t.DurationMin, defaultBreakDuration)))
		}

		ti.templateL = strings.TrimSpace(t.TemplateName)
		if ti.templateL == "" {
			ti.templateL = strings.TrimSpace(t.ManualTitle)
		}
		if ti.templateL == "" && t.TemplateID > 0 {
			ti.templateL = p.templateName(t.TemplateID)
		}

		if lo, ok := timegrid.ParseOptional(t.FixedWindowStart); ok {
			ti.window.Start, ti.hasWinLo = lo, true
		}
		if hi, ok := timegrid.ParseOptional(t.FixedWindowEnd); ok {
			ti.window.End, ti.hasWinHi = hi, true
		}

		l, locked := locks[t.ID]
		ti.locked = locked
		ti.immovable = ti.inProgressOrDone() || locked || t.IsManualBlock
		if ti.immovable {
			s, okS := timegrid.ParseOptional(t.StartPlanned)
			e, okE := timegrid.ParseOptional(t.EndPlanned)
			if (!okS || !okE) && locked {
				s, okS = timegrid.ParseOptional(l.LockedStart)
				e, okE = timegrid.ParseOptional(l.LockedEnd)
			}
			if okS && okE && e > s {
				ti.fixed = true
				ti.fixedAt = timegrid.Window{Start: s, End: e}
			}
		}

		p.tasks[t.ID] = ti
		p.all = append(p.all, ti)
		if t.ZoneID > 0 && ti.space > 0 {
			if _, seen := p.spaceZone[ti.space]; !seen {
				p.spaceZone[ti.space] = t.ZoneID
			}
		}
	}

	for _, ti := range p.all {
		ti.zone = ti.ZoneID
		if ti.zone <= 0 {
			ti.zone = p.spaceZone[ti.space]
		}
		ti.req = p.requirement(ti)
		for _, d := range ti.deps {
			p.dependents[d] = append(p.dependents[d], ti.ID)
		}
	}

	if main := p.w.mainZoneID; main > 0 {
		for sid, zid := range p.spaceZone {
			if zid == main {
				p.mainSpaces = append(p.mainSpaces, sid)
			}
		}
		sort.Ints(p.mainSpaces)
	}

	p.catalog = resources.NewCatalog(p.in.PlanResourceItems, p.in.ResourceItemComponents, resources.Pools{
		Zone:        p.in.ZoneResourceAssignments,
		Space:       p.in.SpaceResourceAssignments,
		SpaceParent: p.in.SpaceParentByID,
	})
	return nil
}

// requirement normalizes the task requirement. Type requirements configured
// on the space (or, failing that, the zone) apply when the task declares none.
func (p *plan) requirement(ti *taskInfo) resources.Requirement {
	req := ti.Resources.Normalize()
	if len(req.ByType) > 0 || ti.meal || ti.resBreak {
		return req
	}
	inherited := p.in.SpaceResourceTypeReqs[ti.space]
	if len(inherited) == 0 {
		inherited = p.in.ZoneResourceTypeReqs[ti.zone]
	}
	if len(inherited) == 0 {
		return req
	}
	req.ByType = inherited
	return req.Normalize()
}

func (p *plan) templateName(id int) string {
	if nm := strings.TrimSpace(p.in.TaskTemplateNameByID[id]); nm != "" {
		return nm
	}
	return fmt.Sprintf("Template %d", id)
}

func (p *plan) resolveAvailability() {
	for cid, c := range p.in.ContestantAvailabilityByID {
		s, okS := timegrid.ParseOptional(c.Start)
		e, okE := timegrid.ParseOptional(c.End)
		if !okS || !okE {
			continue
		}
		p.avail[cid] = timegrid.Window{Start: max(p.day.Start, s), End: min(p.day.End, e)}
	}
}

// effective returns the contestant window clipped to the work day and whether
// the contestant declared one.
func (p *plan) effective(contestantID int) (timegrid.Window, bool) {
	if contestantID <= 0 {
		return p.day, false
	}
	w, ok := p.avail[contestantID]
	if !ok {
		return p.day, false
	}
	return w, true
}

// exclude drops tasks without a resolvable zone and cascades to their
// dependents.
func (p *plan) exclude() {
	excluded := make(map[int]bool)
	for _, ti := range p.all {
		if ti.meal {
			continue
		}
		if ti.BreakKind == BreakSpaceMeal && ti.space > 0 {
			continue
		}
		if ti.BreakKind == BreakItinerantMeal && ti.team > 0 {
			continue
		}
		if ti.zone > 0 {
			continue
		}
		excluded[ti.ID] = true
		msg := fmt.Sprintf("requires configuration: %s has no zone", ti.label())
		if ti.space > 0 {
			msg += fmt.Sprintf(" (space %s)", p.spaceLabel(ti.space))
		}
		p.warnings = append(p.warnings, p.reasonFor(ti, Reason{
			Code:    CodeRequiresConfiguration,
			TaskID:  ti.ID,
			Message: msg,
			Details: map[string]any{"reason": "missing_zone"},
		}))
	}

	for changed := true; changed; {
		changed = false
		for _, ti := range p.all {
			if excluded[ti.ID] {
				continue
			}
			for _, d := range ti.deps {
				if !excluded[d] {
					continue
				}
				excluded[ti.ID] = true
				changed = true
				blocking := "task #" + fmt.Sprint(d)
				if bt, ok := p.tasks[d]; ok {
					blocking = bt.label()
				}
				p.warnings = append(p.warnings, p.reasonFor(ti, Reason{
					Code:    CodeRequiresConfiguration,
					TaskID:  ti.ID,
					Message: fmt.Sprintf("requires configuration: %s depends on %s, which was excluded", ti.label(), blocking),
					Details: map[string]any{"reason": "depends_on_excluded", "dependsOnTaskId": d},
				}))
				break
			}
		}
	}

	nonMeal := 0
	for _, ti := range p.all {
		if !ti.meal {
			nonMeal++
		}
	}
	if nonMeal > 0 && len(excluded) >= nonMeal {
		p.warnings = append(p.warnings, Reason{
			Code:    CodeAllTasksExcluded,
			Message: "every task was excluded, zones are probably missing on tasks or spaces",
			Details: map[string]any{"excluded": len(excluded), "total": len(p.all)},
		})
	}

	for _, ti := range p.all {
		if !excluded[ti.ID] {
			p.solvable = append(p.solvable, ti)
		}
	}
	sort.SliceStable(p.solvable, func(i, j int) bool {
		a, b := p.solvable[i], p.solvable[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.contestant != b.contestant {
			return a.contestant < b.contestant
		}
		if a.TemplateID != b.TemplateID {
			return a.TemplateID < b.TemplateID
		}
		return a.ID < b.ID
	})
	for i, ti := range p.solvable {
		p.rank[ti.ID] = i
	}
}

func (p *plan) spaceLabel(id int) string {
	if nm := strings.TrimSpace(p.in.SpaceNameByID[id]); nm != "" {
		return fmt.Sprintf("%q", nm)
	}
	return fmt.Sprintf("#%d", id)
}

// reasonFor attaches the de-duplication key parts of ti to r.
func (p *plan) reasonFor(ti *taskInfo, r Reason) Reason {
	if ti != nil {
		r.templateName = ti.TemplateName
		r.contestantID = ti.contestant
	}
	return r
}

// missingDependencies checks template-level prerequisites. For a contestant
// task only templates the contestant actually has are required.
func (p *plan) missingDependencies() []Reason {
	byContestant := make(map[int]map[int]bool)
	for _, ti := range p.all {
		if ti.contestant <= 0 || ti.TemplateID <= 0 {
			continue
		}
		if byContestant[ti.contestant] == nil {
			byContestant[ti.contestant] = make(map[int]bool)
		}
		byContestant[ti.contestant][ti.TemplateID] = true
	}

	var out []Reason
	for _, ti := range p.all {
		tpls := dedupeIDs(ti.DependsOnTemplateIDs, ti.DependsOnTemplateID)
		if len(tpls) == 0 {
			continue
		}
		resolved := make(map[int]bool, len(ti.deps))
		for _, d := range ti.deps {
			if dt, ok := p.tasks[d]; ok && dt.TemplateID > 0 {
				resolved[dt.TemplateID] = true
			}
		}
		for _, tpl := range tpls {
			if resolved[tpl] {
				continue
			}
			if ti.contestant > 0 && !byContestant[ti.contestant][tpl] {
				continue
			}
			who := "this contestant"
			switch {
			case strings.TrimSpace(ti.ContestantName) != "":
				who = fmt.Sprintf("%q", strings.TrimSpace(ti.ContestantName))
			case ti.contestant > 0:
				who = fmt.Sprintf("contestant %d", ti.contestant)
			}
			details := MissingDependency{
				ContestantID:        ti.contestant,
				ContestantName:      strings.TrimSpace(ti.ContestantName),
				MissingTemplateID:   tpl,
				MissingTemplateName: p.templateName(tpl),
				MainTemplateID:      ti.TemplateID,
				MainTaskName:        ti.label(),
			}
			out = append(out, p.reasonFor(ti, Reason{
				Code:    CodeDependencyMissing,
				TaskID:  ti.ID,
				Message: fmt.Sprintf("%s is missing %q, prerequisite of %q", who, details.MissingTemplateName, details.MainTaskName),
				Details: details,
			}))
		}
	}
	return out
}

func (p *plan) topoSort() error {
	ids := make([]int, len(p.solvable))
	for i, ti := range p.solvable {
		ids[i] = ti.ID
	}
	g, err := depgraph.New(ids)
	if err != nil {
		return invalidInput(err.Error())
	}
	for _, ti := range p.solvable {
		for _, d := range ti.deps {
			if !g.Has(d) || d == ti.ID {
				continue
			}
			if err := g.AddEdge(d, ti.ID); err != nil {
				return invalidInput(err.Error())
			}
		}
	}
	order, err := g.TopoOrder()
	if err != nil {
		var ge *depgraph.GraphError
		if errors.As(err, &ge) && errors.Is(err, depgraph.ErrCycleFound) {
			return &InfeasibleError{Reasons: []Reason{{
				Code:    CodeDependencyCycle,
				Message: "task dependencies form a cycle; break it in the task templates",
				Details: map[string]any{"taskIds": ge.Remaining},
			}}}
		}
		return invalidInput(err.Error())
	}
	p.order = make([]*taskInfo, len(order))
	for i, id := range order {
		p.order[i] = p.tasks[id]
	}
	return nil
}

func (p *plan) availStart(contestantID int) int {
	if contestantID <= 0 {
		return p.day.Start
	}
	if s, ok := timegrid.ParseOptional(p.in.ContestantAvailabilityByID[contestantID].Start); ok {
		return max(p.day.Start, s)
	}
	return p.day.Start
}

func (p *plan) availEnd(contestantID int) int {
	if contestantID <= 0 {
		return p.day.End
	}
	if e, ok := timegrid.ParseOptional(p.in.ContestantAvailabilityByID[contestantID].End); ok {
		return min(p.day.End, e)
	}
	return p.day.End
}
