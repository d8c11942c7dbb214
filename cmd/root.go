package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/showplan/config"
	coremon "github.com/kilianp07/showplan/core/monitoring"
	"github.com/kilianp07/showplan/infra/logger"
	"github.com/kilianp07/showplan/infra/monitoring"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:               "showplan",
	Short:             "Plan TV production days",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		if cfg != nil {
			coremon.Flush(cfg.Sentry.FlushTimeout())
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func setup(*cobra.Command, []string) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Configure(cfg.Logging); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		logger.New("main").Warnf("sentry disabled: %v", err)
		return nil
	}
	coremon.Init(mon)
	return nil
}
