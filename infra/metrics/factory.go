package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/showplan/core/factory"
	coremetrics "github.com/kilianp07/showplan/core/metrics"
)

type influxConf struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

func newNop(map[string]any) (coremetrics.MetricsSink, error) { return coremetrics.NopSink{}, nil }

// The /metrics listener is configured by metrics.prometheus_addr.
func newProm(map[string]any) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

func newInflux(conf map[string]any) (coremetrics.MetricsSink, error) {
	var c influxConf
	if err := factory.Decode(conf, &c); err != nil {
		return nil, err
	}
	if c.URL == "" || c.Bucket == "" {
		return nil, errors.New("influx sink: url and bucket are required")
	}
	return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
}

func init() {
	for name, f := range map[string]factory.Factory[coremetrics.MetricsSink]{
		"nop":        newNop,
		"prometheus": newProm,
		"influx":     newInflux,
	} {
		_ = coremetrics.RegisterMetricsSink(name, f)
	}
}
