package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/kilianp07/showplan/app"
	coremon "github.com/kilianp07/showplan/core/monitoring"
	"github.com/kilianp07/showplan/core/planner"
	"github.com/kilianp07/showplan/core/timegrid"
	"github.com/kilianp07/showplan/infra/logger"
	"github.com/kilianp07/showplan/pkg/export"
)

var solveFlags struct {
	input        string
	format       string
	output       string
	strict       bool
	serveMetrics string
	trace        bool
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Plan one production day",
	RunE:  solve,
}

func init() {
	f := solveCmd.Flags()
	f.StringVarP(&solveFlags.input, "input", "i", "", "day file (json, jsonc or yaml)")
	f.StringVarP(&solveFlags.format, "format", "f", "json", "output format: json, csv or cbor")
	f.StringVarP(&solveFlags.output, "output", "o", "", "output file, stdout when empty")
	f.BoolVar(&solveFlags.strict, "strict", false, "reject the day when any task stays unplanned")
	f.StringVar(&solveFlags.serveMetrics, "serve-metrics", "", "serve /metrics on this address while solving")
	f.BoolVar(&solveFlags.trace, "trace", false, "log every placement of the selected run")
	_ = solveCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(solveCmd)
}

func solve(cmd *cobra.Command, _ []string) error {
	defer coremon.Recover()
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.New("solve")

	format, err := export.ParseFormat(solveFlags.format)
	if err != nil {
		return err
	}
	in, err := planner.LoadInput(solveFlags.input)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("strict") {
		cfg.Solver.Strict = solveFlags.strict
	}
	addr := cfg.Metrics.PrometheusAddr
	if solveFlags.serveMetrics != "" {
		addr = solveFlags.serveMetrics
	}
	if addr != "" {
		srv := startMetricsServer(addr, log)
		defer shutdown(srv, log)
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	var traced <-chan struct{}
	if solveFlags.trace {
		traced = tracePlacements(svc, log)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Errorf("service close: %v", err)
		}
		if traced != nil {
			<-traced
		}
	}()

	run, solveErr := svc.Solve(ctx, in)
	if errors.Is(solveErr, context.Canceled) {
		return solveErr
	}
	if err := writeResult(format, in, run); err != nil {
		return err
	}
	log.Infof("run %s: %s in %s", run.ID, run.Outcome, run.Duration.Round(time.Millisecond))
	return solveErr
}

func writeResult(format export.Format, in planner.Input, run app.Run) error {
	var w io.Writer = os.Stdout
	if solveFlags.output != "" {
		f, err := os.Create(solveFlags.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, format, in, run.Result, run.ID); err != nil {
		return fmt.Errorf("write %s: %w", format, err)
	}
	return nil
}

func tracePlacements(svc *app.Service, log logger.Logger) <-chan struct{} {
	sub := svc.Placements().Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range sub {
			if e.Placed {
				log.Infof("task %d: %s-%s space %d", e.TaskID, timegrid.Format(e.Start), timegrid.Format(e.End), e.SpaceID)
				continue
			}
			log.Infof("task %d: unplanned (%s)", e.TaskID, e.Code)
		}
	}()
	return done
}

func startMetricsServer(addr string, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("metrics server: %v", err)
		}
	}()
	log.Infof("serving metrics on %s/metrics", addr)
	return srv
}

func shutdown(srv *http.Server, log logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("metrics server shutdown: %v", err)
	}
}
