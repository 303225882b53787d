// Package metrics defines the sinks that observe dock scheduling. Sinks like
// the Prometheus and InfluxDB implementations in infra/metrics record
// assignments, releases and sweeps and can be combined with NewMultiSink.
// NewMetricsSink returns a MultiSink automatically when several sinks are
// configured.
package metrics
