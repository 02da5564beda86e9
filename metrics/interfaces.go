// Package metrics records what the activation engine and the workflow builder do.
//
// Instruments are created against a Registry. ScrapeRegistry keeps them in an
// in-process Prometheus registry which the server exposes on /metrics and the CLI
// can print. PushRegistry buffers samples and sends them to a remote write endpoint
// when flushed, which suits one-shot commands.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Gauge holds a value that may go up or down.
type Gauge interface {
	Set(float64)
}

// Counter only goes up. Add panics on a negative delta.
type Counter interface {
	Inc()
	Add(float64)
}

// GaugeVec partitions a Gauge by label values.
type GaugeVec interface {
	With(prometheus.Labels) Gauge
}

// CounterVec partitions a Counter by label values.
type CounterVec interface {
	With(prometheus.Labels) Counter
}

// Registry is where instruments are created. Registering a name twice is an error.
type Registry interface {
	NewGauge(opts prometheus.GaugeOpts) (Gauge, error)
	NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error)
	NewCounter(opts prometheus.CounterOpts) (Counter, error)
	NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error)
}
