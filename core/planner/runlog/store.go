// Package runlog persists one audit record per solve run so outcomes can be
// compared across inputs and over time.
package runlog

import (
	"context"
	"time"
)

// Record captures the outcome of one solve run.
type Record struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	PlanID       int       `json:"plan_id"`
	Outcome      string    `json:"outcome"`
	Feasible     bool      `json:"feasible"`
	Complete     bool      `json:"complete"`
	Planned      int       `json:"planned"`
	Unplanned    int       `json:"unplanned"`
	Warnings     int       `json:"warnings"`
	Reasons      []string  `json:"reasons,omitempty"`
	Error        string    `json:"error,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	InputDigest  string    `json:"input_digest"`
	ResultDigest string    `json:"result_digest"`
}

// Query defines filters for retrieving records. Zero fields match anything.
type Query struct {
	Start       time.Time
	End         time.Time
	PlanID      int
	RunID       string
	Outcome     string
	InputDigest string
	// Limit keeps only the most recent matches when positive.
	Limit int
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

func (q Query) match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.PlanID != 0 && r.PlanID != q.PlanID {
		return false
	}
	if q.RunID != "" && r.RunID != q.RunID {
		return false
	}
	if q.Outcome != "" && r.Outcome != q.Outcome {
		return false
	}
	if q.InputDigest != "" && r.InputDigest != q.InputDigest {
		return false
	}
	return true
}

func (q Query) tail(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}
