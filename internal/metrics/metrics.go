// Package metrics exposes a Prometheus registry of per-interface frame
// counters and a proxy state gauge, served over HTTP. Grounded on
// veesix-networks-osvbng's exporter/prometheus plugin: a dedicated
// prometheus.Registry, promhttp.HandlerFor rather than the default
// global registry, and an http.Server started in its own goroutine with
// a timed Shutdown.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kangtastic/peapod/internal/logging"
)

// State values for the ProxyState gauge.
const (
	StateInit     = 0
	StateRunning  = 1
	StateCooldown = 2
	StateExit     = 3
)

// Collector holds the counters and gauges the event loop updates as it
// receives, sends, and drops frames. A nil *Collector is safe to call
// every method on (each is a no-op), so callers that run without
// -metrics-addr don't need to guard every call site with a nil check.
type Collector struct {
	received *prometheus.CounterVec
	sent     *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	actions  *prometheus.CounterVec
	state    prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// New builds a Collector and registers its metrics with a private
// registry, not the global prometheus.DefaultRegisterer.
func New() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peapod",
			Name:      "frames_received_total",
			Help:      "EAPOL frames received, by interface.",
		}, []string{"iface"}),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peapod",
			Name:      "frames_sent_total",
			Help:      "EAPOL frames sent, by interface.",
		}, []string{"iface"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peapod",
			Name:      "frames_dropped_total",
			Help:      "EAPOL frames dropped, by interface and reason.",
		}, []string{"iface", "reason"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "peapod",
			Name:      "actions_run_total",
			Help:      "Action scripts run, by interface.",
		}, []string{"iface"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "peapod",
			Name:      "proxy_state",
			Help:      "Proxy event loop state: 0=init 1=running 2=cooldown 3=exit.",
		}),
		registry: registry,
	}

	registry.MustRegister(c.received, c.sent, c.dropped, c.actions, c.state)
	return c
}

// FrameReceived increments the receive counter for iface.
func (c *Collector) FrameReceived(iface string) {
	if c == nil {
		return
	}
	c.received.WithLabelValues(iface).Inc()
}

// FrameSent increments the send counter for iface.
func (c *Collector) FrameSent(iface string) {
	if c == nil {
		return
	}
	c.sent.WithLabelValues(iface).Inc()
}

// FrameDropped increments the drop counter for iface, tagged with reason
// ("runt", "giant", "filtered-ingress", "filtered-egress").
func (c *Collector) FrameDropped(iface, reason string) {
	if c == nil {
		return
	}
	c.dropped.WithLabelValues(iface, reason).Inc()
}

// ActionRun increments the action-script counter for iface.
func (c *Collector) ActionRun(iface string) {
	if c == nil {
		return
	}
	c.actions.WithLabelValues(iface).Inc()
}

// SetState reports the event loop's current state.
func (c *Collector) SetState(state float64) {
	if c == nil {
		return
	}
	c.state.Set(state)
}

// Serve starts an HTTP server on addr exposing the registry at /metrics.
// It returns immediately; the server runs until Shutdown is called.
func (c *Collector) Serve(addr string) {
	if c == nil {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))

	c.server = &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
}

// Shutdown stops the HTTP server started by Serve, if any.
func (c *Collector) Shutdown() {
	if c == nil || c.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = c.server.Shutdown(ctx)
}
