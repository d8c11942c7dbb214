package metrics

import "time"

// SolveEvent summarizes one solve run.
type SolveEvent struct {
	RunID      string
	PlanID     int
	Outcome    string
	Planned    int
	Unplanned  int
	Warnings   int
	GapCount   int
	GapMinutes int
	Duration   time.Duration
	Time       time.Time
}

// MetricsSink records solve runs for observability purposes.
type MetricsSink interface {
	RecordSolve(ev SolveEvent) error
}

// UnplannedEvent is one task a run left without a slot.
type UnplannedEvent struct {
	RunID  string
	PlanID int
	TaskID int
	Code   string
	Time   time.Time
}

// UnplannedRecorder is implemented by sinks able to record unplanned tasks.
type UnplannedRecorder interface {
	RecordUnplanned(evs []UnplannedEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordSolve(SolveEvent) error             { return nil }
func (NopSink) RecordUnplanned([]UnplannedEvent) error { return nil }
