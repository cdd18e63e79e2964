// Package metrics exposes training metrics over HTTP in Prometheus
// format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of a training run. Each
// Metrics value registers its collectors on its own registry so that
// multiple training runs in one process never collide.
type Metrics struct {
	registry *prometheus.Registry

	Episodes      prometheus.Counter
	Steps         prometheus.Counter
	Wins          prometheus.Counter
	WinRate       prometheus.Gauge
	EpisodeReturn prometheus.Gauge
	Epsilon       prometheus.Gauge
}

// New creates and returns a new Metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Episodes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bidrl",
			Name:      "episodes_total",
			Help:      "Number of training episodes finished.",
		}),
		Steps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bidrl",
			Name:      "steps_total",
			Help:      "Number of auctions the agent has acted in.",
		}),
		Wins: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "bidrl",
			Name:      "episode_wins_total",
			Help: "Number of episodes whose cumulative reward was " +
				"positive.",
		}),
		WinRate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bidrl",
			Name:      "win_rate",
			Help:      "Rolling fraction of recent episodes won.",
		}),
		EpisodeReturn: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bidrl",
			Name:      "episode_return",
			Help:      "Cumulative reward of the last finished episode.",
		}),
		Epsilon: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bidrl",
			Name:      "epsilon",
			Help:      "Current exploration rate of the behaviour policy.",
		}),
	}
}

// Handler returns an HTTP handler serving the metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve serves the metrics at /metrics on the given address. Serve
// blocks, so it is usually run in its own goroutine.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
