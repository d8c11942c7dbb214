package planner

import (
	"sort"

	"github.com/kilianp07/showplan/core/occupancy"
)

// blockedScore marks a candidate that only the fallback pass may pick.
const blockedScore int64 = -1_000_000_000_000

const (
	templateLockBonus    = 9_000_000
	templateSwitchCost   = 7_500_000
	directorPriority     = 5_000_000
	directorGatePenalty  = 10_000_000
	minChainPenalty      = 8_000_000
	gateMinReadyMinutes  = 60
	gateMinReadyTasks    = 2
	minimizeChangesScale = 1_000
)

// scoringRule is one named term of the selection score. Rules are pure: they
// read the candidate, the state and the round and return a contribution.
type scoringRule struct {
	name string
	fn   func(c *taskInfo, st *SchedulerState, rd *round) int64
}

var scoringRules = []scoringRule{
	{"zone_template_lock", ruleZoneTemplateLock},
	{"director_main_priority", ruleDirectorMainPriority},
	{"min_chain", ruleMinChain},
	{"main_finish_early", ruleFinishEarly},
	{"main_keep_busy", ruleKeepBusy},
	{"contestant_compact", ruleCompact},
	{"space_template_match", ruleSpaceTemplateMatch},
	{"minimize_changes", ruleMinimizeChanges},
	{"stay_in_zone", ruleStayInZone},
	{"total_span", ruleTotalSpan},
	{"feed_main_unlock", ruleFeedMainUnlock},
	{"feed_main_switch", ruleFeedMainSwitch},
}

// round is the read-only context shared by every candidate of one
// selection step.
type round struct {
	p          *plan
	heuristics bool

	est      map[int]int
	keyOf    map[int]string
	byZone   map[int]map[int]int
	byKey    map[string]map[int]int
	gateMain bool

	mainReadyMinutes int
	mainReadyCount   int

	lookahead bool
	target    int
	unlock    map[int]float64
	feeders   bool
}

func (rd *round) readyCount(zone, template int) int { return rd.byZone[zone][template] }

func (rd *round) readyInKey(key string, template int) int { return rd.byKey[key][template] }

func (r *run) newRound(ready, pending []*taskInfo) *round {
	w := r.p.w
	rd := &round{
		p:          r.p,
		heuristics: true,
		est:        make(map[int]int, len(ready)),
		keyOf:      make(map[int]string, len(ready)),
		byZone:     make(map[int]map[int]int),
		byKey:      make(map[string]map[int]int),
		unlock:     make(map[int]float64),
	}
	for _, ti := range ready {
		rd.est[ti.ID] = r.estimate(ti)
		if rd.byZone[ti.zone] == nil {
			rd.byZone[ti.zone] = make(map[int]int)
		}
		rd.byZone[ti.zone][ti.TemplateID]++
		if cfg, ok := w.grouping(ti.space, r.p.spaceZone[ti.space]); ok {
			rd.keyOf[ti.ID] = cfg.key
			if rd.byKey[cfg.key] == nil {
				rd.byKey[cfg.key] = make(map[int]int)
			}
			rd.byKey[cfg.key][ti.TemplateID]++
		}
		if r.inMainZone(ti) {
			rd.mainReadyMinutes += ti.dur
			rd.mainReadyCount++
		}
	}
	rd.gateMain = w.director && !r.mainStarted() && w.keepBusyStrength >= DirectorThreshold && w.finishEarly == 0

	if w.feedMain {
		rd.target = r.st.activeTemplate[w.mainZoneID]
		if rd.target == 0 {
			rd.target = r.dominantMainTemplate(pending)
		}
		rd.lookahead = rd.target > 0
	}
	if rd.lookahead {
		for _, ti := range ready {
			if r.inMainZone(ti) {
				continue
			}
			if u := r.unlockScore(ti, rd.target); u > 0 {
				rd.unlock[ti.ID] = u
				rd.feeders = true
			}
		}
	}
	return rd
}

// estimate is a cheap start estimate used only for scoring.
func (r *run) estimate(ti *taskInfo) int {
	start := r.earliestStart(ti)
	if ti.space > 0 {
		start = r.st.occ.EarliestGap(occupancy.Space, ti.space, start, ti.dur)
	}
	if ti.contestant > 0 {
		start = r.st.occ.EarliestGap(occupancy.Contestant, ti.contestant, start, ti.dur)
	}
	return start
}

func (r *run) dominantMainTemplate(pending []*taskInfo) int {
	counts := make(map[int]int)
	for _, ti := range pending {
		if r.inMainZone(ti) && ti.TemplateID > 0 && !r.st.isPlanned(ti.ID) {
			counts[ti.TemplateID]++
		}
	}
	best, bestN := 0, 0
	for tpl, n := range counts {
		if n > bestN || (n == bestN && tpl < best) {
			best, bestN = tpl, n
		}
	}
	return best
}

// unlockScore counts pending main-zone tasks of template that depend on ti,
// directly (weight 1) or through one non-main task (weight 0.5).
func (r *run) unlockScore(ti *taskInfo, template int) float64 {
	score := 0.0
	for _, d1 := range r.p.dependents[ti.ID] {
		t1, ok := r.p.tasks[d1]
		if !ok || r.st.isPlanned(d1) {
			continue
		}
		if r.inMainZone(t1) {
			if t1.TemplateID == template {
				score++
			}
			continue
		}
		for _, d2 := range r.p.dependents[d1] {
			t2, ok := r.p.tasks[d2]
			if ok && !r.st.isPlanned(d2) && r.inMainZone(t2) && t2.TemplateID == template {
				score += 0.5
			}
		}
	}
	return score
}

// selectTask scores every ready task and returns the best one. Ties keep the
// priority order.
func (r *run) selectTask(ready, pending []*taskInfo) *taskInfo {
	ordered := append([]*taskInfo(nil), ready...)
	sort.SliceStable(ordered, func(i, j int) bool { return r.p.rank[ordered[i].ID] < r.p.rank[ordered[j].ID] })

	rd := r.newRound(ordered, pending)
	best, top := r.bestOf(ordered, rd)
	fallback := false
	if top <= blockedScore {
		rd.heuristics = false
		best, top = r.bestOf(ordered, rd)
		fallback = true
		r.diag.FallbackRounds++
	}
	r.diag.Rounds++

	breakdown := make(map[string]any, len(scoringRules)+3)
	for _, rule := range scoringRules {
		if v := rule.fn(best, r.st, rd); v != 0 {
			breakdown[rule.name] = v
			r.diag.RuleHits[rule.name]++
		}
	}
	if rd.lookahead {
		r.lookahead.Enabled = true
		r.lookahead.TargetTemplateID = rd.target
		r.lookahead.Rounds++
		if rd.unlock[best.ID] > 0 {
			r.lookahead.BoostedPicks++
		}
	}
	breakdown["task"] = best.ID
	breakdown["score"] = top
	breakdown["fallback"] = fallback
	r.log.Debugw("select task", breakdown)
	return best
}

func (r *run) bestOf(ordered []*taskInfo, rd *round) (*taskInfo, int64) {
	var best *taskInfo
	var top int64
	for _, ti := range ordered {
		var s int64
		for _, rule := range scoringRules {
			s += rule.fn(ti, r.st, rd)
		}
		if best == nil || s > top {
			best, top = ti, s
		}
	}
	return best, top
}

func ruleZoneTemplateLock(c *taskInfo, st *SchedulerState, rd *round) int64 {
	w := rd.p.w
	z := c.zone
	if z <= 0 || c.TemplateID <= 0 {
		return 0
	}
	isMain := z == w.mainZoneID
	if !(isMain && w.groupingLevel > 0) && !w.groupingEnabled(z) {
		return 0
	}
	if isMain && st.resetArmed {
		return 0
	}
	active := st.activeTemplate[z]
	if active == 0 {
		return 0
	}
	if c.TemplateID == active {
		return templateLockBonus
	}
	if rd.readyCount(z, active) == 0 {
		return 0
	}
	if rd.heuristics && st.switches[z] >= w.maxSwitches(z) {
		return blockedScore
	}
	return -templateSwitchCost
}

func ruleDirectorMainPriority(c *taskInfo, _ *SchedulerState, rd *round) int64 {
	w := rd.p.w
	if !w.director || c.zone != w.mainZoneID {
		return 0
	}
	if rd.gateMain && rd.mainReadyMinutes < gateMinReadyMinutes && rd.mainReadyCount < gateMinReadyTasks {
		return -directorGatePenalty
	}
	return directorPriority
}

func ruleMinChain(c *taskInfo, st *SchedulerState, rd *round) int64 {
	cfg, ok := rd.p.w.grouping(c.space, rd.p.spaceZone[c.space])
	if !ok {
		return 0
	}
	s := st.streaks[cfg.key]
	if s.template == 0 || s.template == c.TemplateID || s.count >= cfg.minChain {
		return 0
	}
	if rd.readyInKey(cfg.key, s.template) == 0 {
		return 0
	}
	return -minChainPenalty
}

func ruleFinishEarly(c *taskInfo, _ *SchedulerState, rd *round) int64 {
	w := rd.p.w
	if w.finishEarly == 0 || c.zone != w.mainZoneID {
		return 0
	}
	span := int64(max(1, rd.p.day.Minutes()))
	late := int64(max(0, rd.est[c.ID]-rd.p.day.Start))
	return w.finishEarly - w.finishEarly*late/span
}

func ruleKeepBusy(c *taskInfo, st *SchedulerState, rd *round) int64 {
	w := rd.p.w
	if w.keepBusy == 0 || c.zone != w.mainZoneID {
		return 0
	}
	last, ok := st.lastEndByZone[w.mainZoneID]
	if !ok {
		return 0
	}
	idle := rd.est[c.ID] - last
	if idle <= 0 {
		return w.keepBusy
	}
	return w.keepBusy - w.keepBusy*int64(min(idle, 60))/30
}

func ruleCompact(c *taskInfo, st *SchedulerState, rd *round) int64 {
	w := rd.p.w
	if w.compact == 0 || c.contestant <= 0 {
		return 0
	}
	last, ok := st.lastEnd[c.contestant]
	if !ok {
		return 0
	}
	idle := rd.est[c.ID] - last
	if idle <= 0 {
		return w.compact
	}
	return -w.compact * int64(idle) / 30
}

func ruleSpaceTemplateMatch(c *taskInfo, st *SchedulerState, rd *round) int64 {
	w := rd.p.w
	if w.groupingLevel <= 0 {
		return 0
	}
	key, ok := rd.keyOf[c.ID]
	if !ok {
		return 0
	}
	last := st.lastTemplate[key]
	switch {
	case last == 0:
		return 0
	case last == c.TemplateID:
		return w.groupingMatch
	default:
		return -w.groupingActive
	}
}

func ruleMinimizeChanges(c *taskInfo, st *SchedulerState, rd *round) int64 {
	cfg, ok := rd.p.w.grouping(c.space, rd.p.spaceZone[c.space])
	if !ok {
		return 0
	}
	s := st.streaks[cfg.key]
	if s.template == 0 {
		return 0
	}
	if s.template == c.TemplateID {
		return int64(cfg.level) * minimizeChangesScale * int64(min(s.count, cfg.minChain))
	}
	return -int64(cfg.level) * minimizeChangesScale
}

func ruleStayInZone(c *taskInfo, st *SchedulerState, rd *round) int64 {
	w := rd.p.w
	if w.stayInZone == 0 || c.contestant <= 0 {
		return 0
	}
	zone, ok := st.lastZone[c.contestant]
	if !ok {
		return 0
	}
	if zone == c.zone {
		return w.stayInZone
	}
	return -w.stayInZone
}

func ruleTotalSpan(c *taskInfo, st *SchedulerState, rd *round) int64 {
	w := rd.p.w
	if w.totalSpan == 0 || c.contestant <= 0 {
		return 0
	}
	last, ok := st.lastEnd[c.contestant]
	if !ok {
		return 0
	}
	growth := max(0, rd.est[c.ID]+c.dur-last)
	return -w.totalSpan * int64(growth) / 30
}

func ruleFeedMainUnlock(c *taskInfo, _ *SchedulerState, rd *round) int64 {
	if !rd.lookahead || !rd.heuristics || c.zone == rd.p.w.mainZoneID {
		return 0
	}
	return int64(rd.unlock[c.ID] * feedMainUnlockBonus)
}

func ruleFeedMainSwitch(c *taskInfo, st *SchedulerState, rd *round) int64 {
	main := rd.p.w.mainZoneID
	if !rd.lookahead || !rd.heuristics || !rd.feeders || c.zone != main || st.resetArmed {
		return 0
	}
	active := st.activeTemplate[main]
	if active == 0 || c.TemplateID == active {
		return 0
	}
	return -feedMainSwitchPenalty
}

// scoringDiagnostic feeds the V2_SCORING_DIAGNOSTIC insight.
type scoringDiagnostic struct {
	Rounds         int            `json:"rounds"`
	FallbackRounds int            `json:"fallbackRounds"`
	ExactFills     int            `json:"exactFills"`
	RuleHits       map[string]int `json:"ruleHits"`
}

func newScoringDiagnostic() scoringDiagnostic {
	return scoringDiagnostic{RuleHits: make(map[string]int, len(scoringRules))}
}

// lookaheadStats feeds the V2_LOOKAHEAD insight.
type lookaheadStats struct {
	Enabled          bool `json:"enabled"`
	TargetTemplateID int  `json:"targetTemplateId,omitempty"`
	Rounds           int  `json:"rounds"`
	BoostedPicks     int  `json:"boostedPicks"`
}

// templateSwitch feeds the V2_MAIN_TEMPLATE_SWITCH insight.
type templateSwitch struct {
	TaskID int    `json:"taskId"`
	At     string `json:"at"`
	From   int    `json:"fromTemplateId"`
	To     int    `json:"toTemplateId"`
}
