package metrics

import (
	"fmt"

	"github.com/kilianp07/showplan/core/factory"
)

var sinks = factory.NewRegistry[MetricsSink]()

// RegisterMetricsSink makes a sink type available to NewMetricsSink.
func RegisterMetricsSink(name string, f factory.Factory[MetricsSink]) error {
	return sinks.Register(name, f)
}

// SinkTypes lists the registered sink types in name order.
func SinkTypes() []string { return sinks.Names() }

// NewMetricsSink builds every configured sink. An empty configuration yields
// a NopSink and a single sink is returned unwrapped. When one sink fails, the
// ones already built are closed.
func NewMetricsSink(cfgs []factory.ModuleConfig) (MetricsSink, error) {
	built := make([]MetricsSink, 0, len(cfgs))
	for i, c := range cfgs {
		s, err := sinks.Create(c)
		if err != nil {
			NewMultiSink(built...).Close()
			return nil, fmt.Errorf("metrics sink %d: %w", i, err)
		}
		built = append(built, s)
	}
	switch len(built) {
	case 0:
		return NopSink{}, nil
	case 1:
		return built[0], nil
	}
	return NewMultiSink(built...), nil
}
