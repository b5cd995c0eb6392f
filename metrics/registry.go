// Package metrics exposes per-session Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric name.
const Namespace = "lockstep"

// ComponentRegistry manages metrics for a specific component. Each
// registry owns its own prometheus.Registry so several sessions can
// live in one process.
type ComponentRegistry struct {
	namespace string
	subsystem string
	registry  *prometheus.Registry
	factory   promauto.Factory
}

// NewComponentRegistry creates a registry for a component.
func NewComponentRegistry(namespace, subsystem string) *ComponentRegistry {
	reg := prometheus.NewRegistry()
	return &ComponentRegistry{
		namespace: namespace,
		subsystem: subsystem,
		registry:  reg,
		factory:   promauto.With(reg),
	}
}

// Registry returns the underlying registry, for promhttp.HandlerFor.
func (r *ComponentRegistry) Registry() *prometheus.Registry {
	return r.registry
}

// NewCounterVec creates a new counter vector with proper naming.
func (r *ComponentRegistry) NewCounterVec(opts prometheus.CounterOpts, labelNames []string) *prometheus.CounterVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.factory.NewCounterVec(opts, labelNames)
}

// NewCounter creates a new counter with proper naming.
func (r *ComponentRegistry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.factory.NewCounter(opts)
}

// NewGauge creates a new gauge with proper naming.
func (r *ComponentRegistry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.factory.NewGauge(opts)
}

// NewHistogram creates a new histogram with proper naming.
func (r *ComponentRegistry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	return r.factory.NewHistogram(opts)
}
