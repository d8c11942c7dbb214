package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/showplan/core/factory"
	coremetrics "github.com/kilianp07/showplan/core/metrics"
)

func captureServer(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(b)))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, &bodies
}

func TestInfluxSink_RecordSolve(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()

	now := time.Now()
	ev := coremetrics.SolveEvent{
		RunID:      "r1",
		PlanID:     7,
		Outcome:    "partial",
		Planned:    12,
		Unplanned:  2,
		Warnings:   1,
		GapCount:   3,
		GapMinutes: 45,
		Duration:   1500 * time.Millisecond,
		Time:       now,
	}
	if err := sink.RecordSolve(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("solve_run").
		AddTag("plan_id", "7").
		AddTag("outcome", "partial").
		AddTag("run_id", "r1").
		AddField("planned", 12).
		AddField("unplanned", 2).
		AddField("warnings", 1).
		AddField("gap_count", 3).
		AddField("gap_minutes", 45).
		AddField("duration_ms", int64(1500)).
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if len(*bodies) != 1 || (*bodies)[0] != exp {
		t.Errorf("unexpected bodies: %#v", *bodies)
	}
}

func TestInfluxSink_RecordUnplanned(t *testing.T) {
	srv, bodies := captureServer(t)
	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()

	if err := sink.RecordUnplanned(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if len(*bodies) != 0 {
		t.Fatalf("empty batch must not write")
	}

	now := time.Now()
	evs := []coremetrics.UnplannedEvent{
		{RunID: "r1", PlanID: 7, TaskID: 4, Code: "NO_TIME", Time: now},
		{RunID: "r1", PlanID: 7, TaskID: 9, Code: "DEPENDENCY_MISSING", Time: now},
	}
	if err := sink.RecordUnplanned(evs); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if len(*bodies) != 1 {
		t.Fatalf("expected one batched write, got %d", len(*bodies))
	}
	lines := strings.Split((*bodies)[0], "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %#v", lines)
	}
	for i, ev := range evs {
		exp := strings.TrimSpace(write.PointToLineProtocol(unplannedPoint(ev), time.Nanosecond))
		if lines[i] != exp {
			t.Errorf("line %d: got %s want %s", i, lines[i], exp)
		}
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}

func TestInfluxFactoryRequiresURLAndBucket(t *testing.T) {
	_, err := coremetrics.NewMetricsSink([]factory.ModuleConfig{{Type: "influx", Conf: map[string]any{"url": "http://influx:8086"}}})
	assert.ErrorContains(t, err, "url and bucket are required")
}
