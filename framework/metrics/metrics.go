// Package metrics exports kernel lifecycle events as Prometheus metrics.
// A Collector is a kernel.Observer; pass it with kernel.WithObserver.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/km-arc/go-beans/framework/kernel"
)

// Collector records phase transitions and per-bean init/finalize timings.
type Collector struct {
	registry *prometheus.Registry

	phase       prometheus.Gauge
	transitions *prometheus.CounterVec
	initLatency *prometheus.HistogramVec
	finLatency  *prometheus.HistogramVec
	failures    *prometheus.CounterVec
}

var _ kernel.Observer = (*Collector)(nil)

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "beans"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.phase = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "kernel",
		Name:      "phase",
		Help:      "Current kernel phase (0=uninitialized, 1=initializing, 2=active, 3=finalizing, 4=finalized)",
	})

	c.transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "kernel",
			Name:      "phase_transitions_total",
			Help:      "Phase transitions by target phase",
		},
		[]string{"to"},
	)

	c.initLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bean",
			Name:      "init_duration_seconds",
			Help:      "Time taken by a bean initializer",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
		},
		[]string{"key", "result"},
	)

	c.finLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bean",
			Name:      "finalize_duration_seconds",
			Help:      "Time taken by a bean finalizer",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"key", "result"},
	)

	c.failures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bean",
			Name:      "failures_total",
			Help:      "Initializer and finalizer failures",
		},
		[]string{"key", "stage"},
	)

	c.registry.MustRegister(c.phase, c.transitions, c.initLatency, c.finLatency, c.failures)
	return c
}

// Registry returns the registry the collector's metrics live in.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) PhaseChanged(_ string, _, to kernel.Phase) {
	c.phase.Set(float64(to))
	c.transitions.WithLabelValues(to.String()).Inc()
}

func (c *Collector) EntryInitialized(key kernel.Key, took time.Duration, err error) {
	c.initLatency.WithLabelValues(label(key), result(err)).Observe(took.Seconds())
	if err != nil {
		c.failures.WithLabelValues(label(key), "init").Inc()
	}
}

func (c *Collector) EntryFinalized(key kernel.Key, took time.Duration, err error) {
	c.finLatency.WithLabelValues(label(key), result(err)).Observe(took.Seconds())
	if err != nil {
		c.failures.WithLabelValues(label(key), "finalize").Inc()
	}
}

func label(k kernel.Key) string {
	if k == "" {
		return "anonymous"
	}
	return string(k)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
