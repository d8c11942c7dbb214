package export

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/kilianp07/showplan/core/planner"
)

// Snapshot is the compact form of a solved plan. Diagnostics are left out.
type Snapshot struct {
	RunID     string                `cbor:"1,keyasint" json:"runId"`
	PlanID    int                   `cbor:"2,keyasint" json:"planId"`
	Outcome   string                `cbor:"3,keyasint" json:"outcome"`
	Planned   []planner.PlannedTask `cbor:"4,keyasint" json:"planned"`
	Unplanned map[int]string        `cbor:"5,keyasint,omitempty" json:"unplanned,omitempty"`
}

// NewSnapshot condenses res. Unplanned tasks map to their reason code.
func NewSnapshot(runID string, planID int, res planner.Result) Snapshot {
	s := Snapshot{
		RunID:   runID,
		PlanID:  planID,
		Outcome: planner.Outcome(res, nil),
		Planned: res.PlannedTasks,
	}
	if !res.Feasible {
		s.Outcome = planner.OutcomeInfeasible
	}
	if len(res.Unplanned) > 0 {
		s.Unplanned = make(map[int]string, len(res.Unplanned))
		for _, u := range res.Unplanned {
			s.Unplanned[u.TaskID] = u.Reason.Code
		}
	}
	return s
}

var encMode = func() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// WriteCBOR encodes s with deterministic CBOR, so equal snapshots are
// byte-identical.
func WriteCBOR(w io.Writer, s Snapshot) error {
	return encMode.NewEncoder(w).Encode(s)
}

// ReadCBOR decodes one snapshot.
func ReadCBOR(r io.Reader) (Snapshot, error) {
	var s Snapshot
	err := cbor.NewDecoder(r).Decode(&s)
	return s, err
}
