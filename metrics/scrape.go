package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// ScrapeRegistry keeps instruments in a private Prometheus registry alongside the Go
// runtime and process collectors.
type ScrapeRegistry struct {
	prom *prometheus.Registry
}

// NewScrapeRegistry returns a registry with the runtime collectors already registered.
func NewScrapeRegistry() (*ScrapeRegistry, error) {
	r := &ScrapeRegistry{prom: prometheus.NewRegistry()}
	if _, err := register(r.prom, "go collector", collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if _, err := register(r.prom, "process collector", collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return r, nil
}

// register adds c to reg and hands it back so callers can wrap it in one expression.
func register[C prometheus.Collector](reg *prometheus.Registry, what string, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var zero C
		return zero, fmt.Errorf("registering %s: %w", what, err)
	}
	return c, nil
}

// Handler serves the registry in the exposition format the scraper negotiates.
func (r *ScrapeRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prom, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// WriteText writes the metric families named with prefix in the text format.
func (r *ScrapeRegistry) WriteText(w io.Writer, prefix string) error {
	families, err := r.prom.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric family %q: %w", mf.GetName(), err)
		}
	}
	return nil
}

// prometheus.Gauge and prometheus.Counter satisfy Gauge and Counter as they are. The
// vectors need adapting because their With returns the concrete Prometheus types.

func (r *ScrapeRegistry) NewGauge(opts prometheus.GaugeOpts) (Gauge, error) {
	return register(r.prom, fmt.Sprintf("gauge %q", opts.Name), prometheus.NewGauge(opts))
}

func (r *ScrapeRegistry) NewCounter(opts prometheus.CounterOpts) (Counter, error) {
	return register(r.prom, fmt.Sprintf("counter %q", opts.Name), prometheus.NewCounter(opts))
}

func (r *ScrapeRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) (GaugeVec, error) {
	v, err := register(r.prom, fmt.Sprintf("gauge vec %q", opts.Name), prometheus.NewGaugeVec(opts, labels))
	if err != nil {
		return nil, err
	}
	return gaugeVec{v}, nil
}

func (r *ScrapeRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) (CounterVec, error) {
	v, err := register(r.prom, fmt.Sprintf("counter vec %q", opts.Name), prometheus.NewCounterVec(opts, labels))
	if err != nil {
		return nil, err
	}
	return counterVec{v}, nil
}

type gaugeVec struct{ *prometheus.GaugeVec }

func (v gaugeVec) With(l prometheus.Labels) Gauge { return v.GaugeVec.With(l) }

type counterVec struct{ *prometheus.CounterVec }

func (v counterVec) With(l prometheus.Labels) Counter { return v.CounterVec.With(l) }
