// Package metrics defines the sinks solve runs are reported to. Sinks like
// PromSink and InfluxSink live in infra/metrics and register themselves in
// the sink registry; NewMetricsSink wraps several configured sinks in a
// MultiSink. StartEventCollector in infra/metrics feeds sinks from the
// application event bus.
package metrics
