// Package metrics exports board activity to Prometheus.
//
// Collector implements engine.Observer: the engine reports every applied
// command and the board status after it, and the collector turns those into
// counters and gauges.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/mosaic/internal/board"
	"github.com/roach88/mosaic/internal/engine"
)

const namespace = "mosaic"

// Collector holds the board metrics registered on one registry.
type Collector struct {
	registry *prometheus.Registry

	commands    *prometheus.CounterVec
	watermark   prometheus.Gauge
	ring        prometheus.Gauge
	leases      prometheus.Gauge
	expired     prometheus.Gauge
	drawn       prometheus.Gauge
	stateGauges *prometheus.GaugeVec
}

// New creates a collector registered on a fresh registry. The registry also
// carries the Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		registry: reg,

		// Labels: op, outcome (OK or a board error code)
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "commands_total",
			Help:      "Commands applied to the board by operation and outcome",
		}, []string{"op", "outcome"}),

		watermark: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "watermark",
			Help:      "Smallest undrawn cell index",
		}),
		ring: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "ring",
			Help:      "Ring of the watermark",
		}),
		leases: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "leases",
			Help:      "Cells currently held by a lease, expired or not",
		}),
		expired: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "expired_leases",
			Help:      "Leases past their expiry and open to reclamation",
		}),
		drawn: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "drawn_cells",
			Help:      "Drawn cells, excluding the center",
		}),
		// Labels: state (idle, active, closed); 1 for the current state
		stateGauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "board",
			Name:      "state",
			Help:      "Board lifecycle state",
		}, []string{"state"}),
	}
}

// CommandApplied implements engine.Observer.
func (c *Collector) CommandApplied(op engine.Op, outcome string, status board.Status) {
	c.commands.WithLabelValues(string(op), outcome).Inc()
	c.Observe(status)
}

// Observe sets the board gauges from status.
func (c *Collector) Observe(status board.Status) {
	c.watermark.Set(float64(status.Watermark))
	c.ring.Set(float64(status.Ring))
	c.leases.Set(float64(status.Leases))
	c.expired.Set(float64(status.ExpiredLeases))
	c.drawn.Set(float64(status.Drawn))
	for _, s := range []board.State{board.StateIdle, board.StateActive, board.StateClosed} {
		v := 0.0
		if s == status.State {
			v = 1
		}
		c.stateGauges.WithLabelValues(string(s)).Set(v)
	}
}

// Registry returns the registry the collector is registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var _ engine.Observer = (*Collector)(nil)
