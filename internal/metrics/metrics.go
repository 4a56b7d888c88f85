// Package metrics exposes the patrol's Prometheus collectors.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/snow-patrol/internal/scheduler"
	"github.com/i474232898/snow-patrol/internal/weather"
)

const namespace = "snow_patrol"

// Failure kinds for the forecast failure counter.
const (
	FailureConnection = "connection"
	FailureFatal      = "fatal"
)

// Notification outcomes.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Metrics holds the collectors, registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	polls         *prometheus.CounterVec
	failures      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	nextPoll      prometheus.Gauge
	snowing       prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		polls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Forecast polls by resulting transition.",
		}, []string{"transition"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_failures_total",
			Help:      "Failed forecast requests by kind.",
		}, []string{"kind"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "SMS notifications by outcome.",
		}, []string{"outcome"}),
		nextPoll: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "next_poll_seconds",
			Help:      "Delay chosen before the next forecast poll.",
		}),
		snowing: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snowing",
			Help:      "1 while the patrol considers it snowing.",
		}),
	}
}

// ObservePoll records the outcome of one poll.
func (m *Metrics) ObservePoll(t scheduler.Transition, delay time.Duration) {
	m.polls.WithLabelValues(string(t)).Inc()
	m.nextPoll.Set(delay.Seconds())
	if t.Snowing() {
		m.snowing.Set(1)
	} else {
		m.snowing.Set(0)
	}
}

// ForecastFailure counts a failed forecast attempt. It matches the fetcher's
// failure hook signature.
func (m *Metrics) ForecastFailure(err error) {
	kind := FailureFatal
	if errors.Is(err, weather.ErrConnection) {
		kind = FailureConnection
	}
	m.failures.WithLabelValues(kind).Inc()
}

// Notification counts one delivery attempt.
func (m *Metrics) Notification(err error) {
	outcome := OutcomeSent
	if err != nil {
		outcome = OutcomeFailed
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

// Registry exposes the private registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
