// Package infra contains the adapters behind the core contracts: the zerolog
// logger, the Prometheus and InfluxDB metric sinks, the MQTT plan publisher
// and Sentry monitoring. These packages depend only on interfaces defined in
// core.
package infra
