package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/showplan/infra/logger"
	"github.com/kilianp07/showplan/qa/scenarios"
)

var scenarioCmd = &cobra.Command{
	Use:   "scenario [dir]",
	Short: "Run the QA scenarios of a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runScenarios,
}

func init() {
	rootCmd.AddCommand(scenarioCmd)
}

func runScenarios(cmd *cobra.Command, args []string) error {
	dir := "qa/scenarios/testdata"
	if len(args) == 1 {
		dir = args[0]
	}
	scs, err := scenarios.LoadDir(dir)
	if err != nil {
		return err
	}
	opts := cfg.Solver.Options(logger.New("scenario"), "")
	out := cmd.OutOrStdout()
	failed := 0
	for _, sc := range scs {
		rep := scenarios.Run(cmd.Context(), sc, opts)
		if rep.Passed() {
			fmt.Fprintf(out, "PASS  %s\n", rep.Name)
			continue
		}
		failed++
		fmt.Fprintf(out, "FAIL  %s\n", rep.Name)
		for _, f := range rep.Failures {
			fmt.Fprintf(out, "      %s\n", f)
		}
	}
	fmt.Fprintf(out, "%d/%d scenarios passed\n", len(scs)-failed, len(scs))
	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}
