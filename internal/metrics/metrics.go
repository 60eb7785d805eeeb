// Package metrics exposes prometheus collectors for the chat client.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "livechat"

// Metrics groups the client collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ConnectAttempts     prometheus.Counter
	ReconnectsScheduled prometheus.Counter
	FramesReceived      prometheus.Counter
	FramesSent          prometheus.Counter
	FramesMalformed     prometheus.Counter
	MessagesIngested    *prometheus.CounterVec
	DuplicatesDropped   prometheus.Counter
	ConnectionState     *prometheus.GaugeVec
}

// States lists the connection state label values.
var States = []string{"disconnected", "connecting", "connected"}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connect_attempts_total",
			Help:      "Connection attempts issued.",
		}),
		ReconnectsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect timers scheduled after a closure.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Inbound frames delivered by the session.",
		}),
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_sent_total",
			Help:      "Outbound frames written.",
		}),
		FramesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_malformed_total",
			Help:      "Inbound frames discarded because they could not be decoded.",
		}),
		MessagesIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "messages_ingested_total",
			Help:      "Messages appended to the transcript.",
		}, []string{"origin"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "transcript",
			Name:      "duplicates_dropped_total",
			Help:      "Messages collapsed onto an existing transcript entry.",
		}),
		ConnectionState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current connection state, 0 otherwise.",
		}, []string{"state"}),
	}
	m.registry.MustRegister(
		m.ConnectAttempts,
		m.ReconnectsScheduled,
		m.FramesReceived,
		m.FramesSent,
		m.FramesMalformed,
		m.MessagesIngested,
		m.DuplicatesDropped,
		m.ConnectionState,
	)
	m.SetState(States[0])
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetState marks state as current.
func (m *Metrics) SetState(state string) {
	if m == nil {
		return
	}
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) IncConnectAttempts() {
	if m != nil {
		m.ConnectAttempts.Inc()
	}
}

func (m *Metrics) IncReconnectsScheduled() {
	if m != nil {
		m.ReconnectsScheduled.Inc()
	}
}

func (m *Metrics) IncFramesReceived() {
	if m != nil {
		m.FramesReceived.Inc()
	}
}

func (m *Metrics) IncFramesSent() {
	if m != nil {
		m.FramesSent.Inc()
	}
}

func (m *Metrics) IncFramesMalformed() {
	if m != nil {
		m.FramesMalformed.Inc()
	}
}

// RecordIngest counts one ingest outcome. origin is "local" or "remote".
func (m *Metrics) RecordIngest(origin string, added bool) {
	if m == nil {
		return
	}
	if added {
		m.MessagesIngested.WithLabelValues(origin).Inc()
	} else {
		m.DuplicatesDropped.Inc()
	}
}
