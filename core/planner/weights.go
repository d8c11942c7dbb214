package planner

import (
	"fmt"
	"math"
)

const (
	// DirectorThreshold is the keep-busy strength that turns on the
	// continuity optimizer.
	DirectorThreshold = 8

	feedMainUnlockBonus   = 300_000
	feedMainSwitchPenalty = 500_000
	defaultMaxSwitches    = 4
	defaultMinChain       = 4
)

// Per-level magnitudes of the friendly 0..3 settings.
var (
	finishEarlyByLevel    = [4]float64{0, 200_000, 1_000_000, 3_000_000}
	keepBusyByLevel       = [4]float64{0, 50_000, 250_000, 900_000}
	groupingMatchByLevel  = [4]float64{0, 2_000, 10_000, 30_000}
	groupingActiveByLevel = [4]float64{0, 50, 200, 600}
	compactByLevel        = [4]float64{0, 800, 3_000, 9_000}
	keepBusyStrengthLevel = [4]float64{0, 4, 7, 10}

	stayInZoneByWeight = [11]int64{0, 600, 1_200, 2_000, 3_000, 4_500, 6_000, 7_500, 9_000, 10_500, 12_000}
	totalSpanByWeight  = [11]int64{0, 200, 400, 650, 900, 1_200, 1_600, 2_000, 2_400, 2_900, 3_500}
)

// basicToAdvanced maps a friendly level to its 0..10 anchor.
var basicToAdvanced = [4]int{0, 3, 6, 9}

// MapBasicToAdvanced converts a 0..3 level into a 0..10 weight.
func MapBasicToAdvanced(level int) int {
	return basicToAdvanced[clampInt(level, 0, 3)]
}

// MapAdvancedToBasic returns the level whose anchor is closest to value.
// Ties pick the lower level.
func MapAdvancedToBasic(value int) int {
	v := clampInt(value, 0, 10)
	best, bestDist := 0, math.MaxInt
	for lvl, anchor := range basicToAdvanced {
		d := v - anchor
		if d < 0 {
			d = -d
		}
		if d < bestDist {
			best, bestDist = lvl, d
		}
	}
	return best
}

// groupingCfg is a resolved grouping container of a space.
type groupingCfg struct {
	key      string
	level    int
	minChain int
}

// weights holds every resolved scoring magnitude of one input.
type weights struct {
	mainZoneID int

	mainLevel     int
	groupingLevel int
	compactLevel  int
	finishEarlyOn bool
	keepBusyOn    bool

	finishEarly      int64
	keepBusy         int64
	keepBusyStrength int
	director         bool

	groupingMatch    int64
	groupingActive   int64
	groupingStrength int

	compact    int64
	stayInZone int64
	totalSpan  int64
	feedMain   bool

	arrivalDeparture float64

	groupingZones      map[int]bool
	groupingBySpace    map[int]GroupingConfig
	maxTemplateChanges map[int]int
}

func clampInt(v, lo, hi int) int { return max(lo, min(hi, v)) }

func levelOr(p *int, fallback int) int {
	if p == nil {
		return fallback
	}
	return clampInt(*p, 0, 3)
}

func boolOr(p *bool, fallback bool) bool {
	if p == nil {
		return fallback
	}
	return *p
}

// override returns the 0..10 input weight or fallback when absent.
func override(p *float64, fallback float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return fallback
	}
	return math.Max(0, math.Min(10, *p))
}

func resolveWeights(in *Input) weights {
	w := weights{mainZoneID: max(0, in.OptimizerMainZoneID)}

	mainFallback := 0
	if boolOr(in.OptimizerPrioritizeMainZone, false) {
		mainFallback = 2
	}
	groupingFallback := 2
	if !boolOr(in.OptimizerGroupBySpaceAndTemplate, true) {
		groupingFallback = 0
	}
	w.mainLevel = levelOr(in.OptimizerMainZonePriorityLevel, mainFallback)
	w.groupingLevel = levelOr(in.OptimizerGroupingLevel, groupingFallback)
	w.compactLevel = levelOr(in.OptimizerContestantCompactLevel, 0)
	w.finishEarlyOn = boolOr(in.OptimizerMainZoneOptFinishEarly, true)
	w.keepBusyOn = boolOr(in.OptimizerMainZoneOptKeepBusy, true)

	ow := in.OptimizerWeights
	if w.finishEarlyOn {
		base := finishEarlyByLevel[w.mainLevel]
		w.finishEarly = int64(math.Round(override(ow.MainZoneFinishEarly, base/300_000) * 300_000))
	}
	if w.keepBusyOn {
		base := keepBusyByLevel[w.mainLevel]
		w.keepBusy = int64(math.Round(override(ow.MainZoneKeepBusy, base/90_000) * 90_000))
	}
	w.keepBusyStrength = clampInt(int(math.Round(override(ow.MainZoneKeepBusy, keepBusyStrengthLevel[w.mainLevel]))), 0, 10)
	w.director = w.mainZoneID > 0 && w.keepBusyOn && w.keepBusyStrength >= DirectorThreshold

	w.groupingMatch = int64(math.Round(override(ow.GroupBySpaceTemplateMatch, groupingMatchByLevel[w.groupingLevel]/3_000) * 3_000))
	w.groupingActive = int64(math.Round(override(ow.GroupBySpaceActive, groupingActiveByLevel[w.groupingLevel]/60) * 60))
	w.groupingStrength = clampInt(int(math.Round(math.Max(override(ow.GroupBySpaceTemplateMatch, 0), override(ow.GroupBySpaceActive, 0)))), 0, 10)

	w.compact = int64(math.Round(override(ow.ContestantCompact, compactByLevel[w.compactLevel]/900) * 900))
	w.stayInZone = stayInZoneByWeight[int(math.Round(override(ow.ContestantStayInZone, 0)))]
	w.totalSpan = totalSpanByWeight[int(math.Round(override(ow.ContestantTotalSpan, 0)))]
	w.feedMain = w.mainZoneID > 0 && w.keepBusyStrength >= 9 && w.groupingStrength >= 9
	if ow.ArrivalDepartureGrouping != nil {
		w.arrivalDeparture = *ow.ArrivalDepartureGrouping
	}

	w.groupingZones = make(map[int]bool, len(in.GroupingZoneIDs))
	for _, z := range in.GroupingZoneIDs {
		if z > 0 {
			w.groupingZones[z] = true
		}
	}
	w.groupingBySpace = in.GroupingBySpaceID
	if w.groupingBySpace == nil {
		w.groupingBySpace = in.MinimizeChangesBySpace
	}
	w.maxTemplateChanges = in.MaxTemplateChangesByZoneID
	return w
}

// hardNoGaps reports whether the outer gate/meal search runs.
func (w weights) hardNoGaps(in *Input) bool {
	return boolOr(in.OptimizerMainZoneOptKeepBusy, false) &&
		in.OptimizerWeights.MainZoneKeepBusy != nil && *in.OptimizerWeights.MainZoneKeepBusy == 10
}

func (w weights) groupingEnabled(zoneID int) bool {
	return zoneID > 0 && w.groupingZones[zoneID]
}

func (w weights) maxSwitches(zoneID int) int {
	if v, ok := w.maxTemplateChanges[zoneID]; ok {
		return max(0, v)
	}
	return defaultMaxSwitches
}

// grouping returns the grouping container of a space, or false when the space
// is not grouped.
func (w weights) grouping(spaceID, zoneID int) (groupingCfg, bool) {
	if spaceID <= 0 {
		return groupingCfg{}, false
	}
	if raw, ok := w.groupingBySpace[spaceID]; ok {
		level := clampInt(raw.Level, 0, 10)
		if level <= 0 {
			return groupingCfg{}, false
		}
		minChain := defaultMinChain
		if raw.MinChain != 0 {
			minChain = clampInt(raw.MinChain, 1, 50)
		}
		key := raw.Key
		if key == "" {
			key = fmt.Sprintf("S:%d", spaceID)
		}
		return groupingCfg{key: key, level: level, minChain: minChain}, true
	}
	if !w.groupingEnabled(zoneID) || w.groupingStrength <= 0 {
		return groupingCfg{}, false
	}
	return groupingCfg{key: fmt.Sprintf("S:%d", spaceID), level: w.groupingStrength, minChain: defaultMinChain}, true
}
