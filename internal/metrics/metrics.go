// Package metrics holds the Prometheus collectors shared by the session, directory and
// realtime components. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dashboard"

type Metrics struct {
	registry *prometheus.Registry

	directoryMutations *prometheus.CounterVec
	profileLookups     *prometheus.CounterVec
	gateNavigations    *prometheus.CounterVec
	realtimeEvents     *prometheus.CounterVec
	channelStatus      *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		directoryMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "directory_mutations_total",
			Help:      "Directory mutation attempts by operation and result.",
		}, []string{"op", "result"}),
		profileLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_profile_lookups_total",
			Help:      "Profile lookups by outcome (resolved, failed, stale).",
		}, []string{"outcome"}),
		gateNavigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_navigations_total",
			Help:      "Navigations issued by route gates.",
		}, []string{"target"}),
		realtimeEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "realtime_events_total",
			Help:      "Events appended to realtime windows by channel and source.",
		}, []string{"channel", "source"}),
		channelStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_channel_connected",
			Help:      "1 when the channel is connected, 0 otherwise.",
		}, []string{"channel"}),
	}
	m.registry.MustRegister(
		m.directoryMutations,
		m.profileLookups,
		m.gateNavigations,
		m.realtimeEvents,
		m.channelStatus,
		prometheus.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) DirectoryMutation(op string, ok bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if ok {
		result = "applied"
	}
	m.directoryMutations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) ProfileLookup(outcome string) {
	if m == nil {
		return
	}
	m.profileLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GateNavigation(target string) {
	if m == nil {
		return
	}
	m.gateNavigations.WithLabelValues(target).Inc()
}

func (m *Metrics) RealtimeEvent(channel, source string) {
	if m == nil {
		return
	}
	m.realtimeEvents.WithLabelValues(channel, source).Inc()
}

func (m *Metrics) ChannelConnected(channel string, connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.channelStatus.WithLabelValues(channel).Set(v)
}
