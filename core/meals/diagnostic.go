package meals

import "github.com/kilianp07/showplan/core/timegrid"

// Fail reasons carried by Diagnostic.FailReason.
const (
	ReasonEffectiveWindow = "effective_window_insufficient"
	ReasonBlocked         = "fixed_occupation_or_blocks"
	ReasonSearchExhausted = "search_exhausted"
	ReasonPostAssignment  = "post_assignment_capacity_violation"
)

// Diagnostic explains a failed meal assignment.
type Diagnostic struct {
	WindowStart              string   `json:"windowStart,omitempty"`
	WindowEnd                string   `json:"windowEnd,omitempty"`
	DurationMinutes          int      `json:"durationMinutes,omitempty"`
	MaxSimultaneous          int      `json:"maxSimultaneous"`
	MealsNeeded              int      `json:"mealsNeeded"`
	CapacityTheoretical      int      `json:"capacityTheoretical"`
	FixedMealCount           int      `json:"fixedMealCount"`
	FixedMealMinutesInWindow int      `json:"fixedMealMinutesInWindow"`
	IsCapacityImpossible     bool     `json:"isCapacityImpossible"`
	FailingContestantID      int      `json:"failingContestantId,omitempty"`
	FailingContestantName    string   `json:"failingContestantName,omitempty"`
	ViableSlotsCount         int      `json:"viableSlotsCount"`
	FailReason               string   `json:"failReason"`
	BlockedByCapacity        []string `json:"blockedByCapacity,omitempty"`
	BlockingIntervals        []string `json:"blockingIntervals,omitempty"`
	Bucket                   string   `json:"bucket,omitempty"`
	Count                    int      `json:"count,omitempty"`
}

// Capacity returns how many meals the window can hold in theory.
func Capacity(w timegrid.Window, maxSim, dur int) int {
	if dur <= 0 {
		return 0
	}
	return w.Minutes() * maxSim / dur
}

// BaseDiagnostic fills the window and capacity fields for p.
func (p Problem) BaseDiagnostic() Diagnostic {
	fixedMinutes := 0
	for _, it := range p.Fixed {
		if o := min(it.End, p.Window.End) - max(it.Start, p.Window.Start); o > 0 {
			fixedMinutes += o
		}
	}
	capacity := Capacity(p.Window, p.MaxSimultaneous, p.Duration)
	return Diagnostic{
		WindowStart:              timegrid.Format(p.Window.Start),
		WindowEnd:                timegrid.Format(p.Window.End),
		DurationMinutes:          p.Duration,
		MaxSimultaneous:          p.MaxSimultaneous,
		MealsNeeded:              len(p.Candidates),
		CapacityTheoretical:      capacity,
		FixedMealCount:           len(p.Fixed),
		FixedMealMinutesInWindow: fixedMinutes,
		IsCapacityImpossible:     len(p.Candidates) > capacity,
	}
}

// Diagnose builds the diagnostic of a *NoFitError.
func (p Problem) Diagnose(e *NoFitError) Diagnostic {
	d := p.BaseDiagnostic()
	c := e.Candidate
	d.FailingContestantID = c.ContestantID
	d.FailingContestantName = c.ContestantName
	d.ViableSlotsCount = len(c.Starts)
	d.FailReason = ReasonBlocked
	if c.Window.Minutes() < p.Duration {
		d.FailReason = ReasonEffectiveWindow
	}
	if e.Buckets != nil {
		for _, t := range e.Buckets.Saturated(p.MaxSimultaneous, c.Window, 5) {
			d.BlockedByCapacity = append(d.BlockedByCapacity, timegrid.Format(t))
		}
	}
	return d
}
