package runlog

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/zeebo/blake3"

	"github.com/kilianp07/showplan/core/planner"
)

// Digest hashes the JSON encoding of v with BLAKE3. Map keys are encoded in
// sorted order, so equal values always share a digest.
func Digest(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// NewRecord summarizes a finished solve. The result digest covers the
// planned slots only, so two runs with identical plans compare equal even
// when their diagnostics differ.
func NewRecord(runID string, in planner.Input, res planner.Result, solveErr error, took time.Duration) (Record, error) {
	rec := Record{
		RunID:      runID,
		Timestamp:  time.Now().UTC(),
		PlanID:     in.PlanID,
		Outcome:    planner.Outcome(res, solveErr),
		Feasible:   res.Feasible,
		Complete:   res.Complete,
		Planned:    len(res.PlannedTasks),
		Unplanned:  len(res.Unplanned),
		Warnings:   len(res.Warnings),
		DurationMS: took.Milliseconds(),
	}
	for _, r := range res.Reasons {
		rec.Reasons = append(rec.Reasons, r.Code)
	}
	if solveErr != nil {
		rec.Error = solveErr.Error()
	}
	var err error
	if rec.InputDigest, err = Digest(in); err != nil {
		return rec, err
	}
	if rec.ResultDigest, err = Digest(res.PlannedTasks); err != nil {
		return rec, err
	}
	return rec, nil
}
