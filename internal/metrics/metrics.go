// Package metrics holds the bridge's Prometheus collectors.
//
// All recording methods are safe on a nil *Metrics, which disables metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "oscbridge"

// Directions used as the "direction" label.
const (
	DirectionOSC = "osc" // OSC → hub
	DirectionHub = "hub" // hub → OSC
)

// Metrics is the set of bridge collectors and their registry.
type Metrics struct {
	registry *prometheus.Registry

	received       *prometheus.CounterVec // by direction
	dropped        *prometheus.CounterVec // by direction and reason
	statePublished *prometheus.CounterVec // by direction
	registrations  prometheus.Counter
	oscSent        prometheus.Counter
	registrySize   prometheus.Gauge
}

// New creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages received, by direction",
		}, []string{"direction"}),

		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Messages dropped without being forwarded, by direction and reason",
		}, []string{"direction", "reason"}),

		statePublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_published_total",
			Help:      "State values published to the hub, by the side they came from",
		}, []string{"direction"}),

		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entities_registered_total",
			Help:      "Entities registered and announced through discovery",
		}),

		oscSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "osc",
			Name:      "messages_sent_total",
			Help:      "OSC messages sent to the device",
		}),

		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_entities",
			Help:      "Entities currently held in the registry",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.received,
		m.dropped,
		m.statePublished,
		m.registrations,
		m.oscSent,
		m.registrySize,
	)

	return m
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// MessageReceived counts one inbound message.
func (m *Metrics) MessageReceived(direction string) {
	if m == nil {
		return
	}
	m.received.WithLabelValues(direction).Inc()
}

// MessageDropped counts one discarded message.
func (m *Metrics) MessageDropped(direction, reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(direction, reason).Inc()
}

// StatePublished counts one state publication.
func (m *Metrics) StatePublished(direction string) {
	if m == nil {
		return
	}
	m.statePublished.WithLabelValues(direction).Inc()
}

// EntityRegistered counts a registration and records the new registry size.
func (m *Metrics) EntityRegistered(size int) {
	if m == nil {
		return
	}
	m.registrations.Inc()
	m.registrySize.Set(float64(size))
}

// OSCSent counts one message sent to the device.
func (m *Metrics) OSCSent() {
	if m == nil {
		return
	}
	m.oscSent.Inc()
}
