package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/showplan/core/metrics"
	"github.com/kilianp07/showplan/infra/logger"
)

// InfluxSink writes solve runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback pings the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordSolve writes one solve_run point.
func (s *InfluxSink) RecordSolve(ev coremetrics.SolveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, solvePoint(ev))
}

// RecordUnplanned writes one task_unplanned point per task.
func (s *InfluxSink) RecordUnplanned(evs []coremetrics.UnplannedEvent) error {
	if len(evs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	points := make([]*write.Point, len(evs))
	for i, ev := range evs {
		points[i] = unplannedPoint(ev)
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func solvePoint(ev coremetrics.SolveEvent) *write.Point {
	return write.NewPointWithMeasurement("solve_run").
		AddTag("plan_id", strconv.Itoa(ev.PlanID)).
		AddTag("outcome", ev.Outcome).
		AddTag("run_id", ev.RunID).
		AddField("planned", ev.Planned).
		AddField("unplanned", ev.Unplanned).
		AddField("warnings", ev.Warnings).
		AddField("gap_count", ev.GapCount).
		AddField("gap_minutes", ev.GapMinutes).
		AddField("duration_ms", ev.Duration.Milliseconds()).
		SetTime(ev.Time)
}

func unplannedPoint(ev coremetrics.UnplannedEvent) *write.Point {
	return write.NewPointWithMeasurement("task_unplanned").
		AddTag("plan_id", strconv.Itoa(ev.PlanID)).
		AddTag("code", ev.Code).
		AddTag("run_id", ev.RunID).
		AddField("task_id", ev.TaskID).
		SetTime(ev.Time)
}
