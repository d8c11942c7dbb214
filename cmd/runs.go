package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/showplan/core/planner/runlog"
)

var runsFlags struct {
	planID  int
	runID   string
	outcome string
	digest  string
	since   time.Duration
	limit   int
	json    bool
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded solve runs",
	Args:  cobra.NoArgs,
	RunE:  listRuns,
}

func init() {
	f := runsCmd.Flags()
	f.IntVar(&runsFlags.planID, "plan", 0, "only runs of this plan")
	f.StringVar(&runsFlags.runID, "run", "", "only this run")
	f.StringVar(&runsFlags.outcome, "outcome", "", "complete, partial, infeasible or error")
	f.StringVar(&runsFlags.digest, "input-digest", "", "only runs over this input")
	f.DurationVar(&runsFlags.since, "since", 0, "only runs younger than this")
	f.IntVarP(&runsFlags.limit, "limit", "n", 20, "most recent runs to show, 0 for all")
	f.BoolVar(&runsFlags.json, "json", false, "print records as JSON lines")
	rootCmd.AddCommand(runsCmd)
}

func listRuns(cmd *cobra.Command, _ []string) error {
	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("run log disabled (runlog.backend is none)")
	}
	defer store.Close()

	q := runlog.Query{
		PlanID:      runsFlags.planID,
		RunID:       runsFlags.runID,
		Outcome:     runsFlags.outcome,
		InputDigest: runsFlags.digest,
		Limit:       runsFlags.limit,
	}
	if runsFlags.since > 0 {
		q.Start = time.Now().Add(-runsFlags.since)
	}
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if runsFlags.json {
		enc := json.NewEncoder(out)
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tRUN\tPLAN\tOUTCOME\tPLANNED\tUNPLANNED\tMS\tINPUT\tPLAN DIGEST")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%d\t%d\t%s\t%s\n",
			r.Timestamp.Local().Format(time.DateTime), r.RunID, r.PlanID, r.Outcome,
			r.Planned, r.Unplanned, r.DurationMS, short(r.InputDigest), short(r.ResultDigest))
	}
	return tw.Flush()
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
