// Package metrics declares the Prometheus collectors exported by the relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections is the number of open WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chitchat_connections_active",
		Help: "The current number of open WebSocket connections.",
	})
	TotalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chitchat_connections_total",
		Help: "The total number of WebSocket connections accepted.",
	})

	// Sessions tracks the roster size split by online state.
	Sessions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chitchat_sessions",
		Help: "Sessions held by the registry.",
	}, []string{"state"})
	SessionsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chitchat_sessions_evicted_total",
		Help: "Offline sessions removed by the eviction policy.",
	})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chitchat_events_received_total",
		Help: "Inbound events accepted from clients.",
	}, []string{"event"})
	EventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chitchat_events_delivered_total",
		Help: "Outbound events queued to a client connection.",
	}, []string{"event"})
	// EventsDropped counts events discarded without delivery, by reason.
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chitchat_events_dropped_total",
		Help: "Events discarded without delivery.",
	}, []string{"reason"})
)

// Drop reasons.
const (
	ReasonUnaddressable = "unaddressable"
	ReasonMalformed     = "malformed"
	ReasonRateLimited   = "rate_limited"
	ReasonRejected      = "rejected"
	ReasonClosed        = "closed"
)

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRoster sets the session gauges from the registry counts.
func ObserveRoster(total, online int) {
	Sessions.WithLabelValues("online").Set(float64(online))
	Sessions.WithLabelValues("offline").Set(float64(total - online))
}
