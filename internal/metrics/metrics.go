package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialhub_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "socialhub_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WSHandshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialhub_ws_handshakes_total",
			Help: "Socket handshakes by outcome.",
		},
		[]string{"result"},
	)

	WSConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "socialhub_ws_connections_active",
			Help: "Currently open socket sessions.",
		},
	)

	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "socialhub_online_users",
			Help: "Users with at least one open session.",
		},
	)

	WSEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialhub_ws_events_total",
			Help: "Inbound socket events by name and outcome.",
		},
		[]string{"event", "result"},
	)

	WSDroppedFramesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "socialhub_ws_dropped_frames_total",
			Help: "Outbound frames dropped because a session buffer was full.",
		},
	)

	MessagesPersistedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialhub_messages_persisted_total",
			Help: "Chat messages written to storage.",
		},
		[]string{"type"},
	)

	ReceiptsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialhub_receipts_written_total",
			Help: "Message receipts upserted by status.",
		},
		[]string{"status"},
	)

	SideEffectFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialhub_side_effect_failures_total",
			Help: "Failures of non-critical tasks that follow a persisted message.",
		},
		[]string{"task"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "socialhub_notifications_total",
			Help: "Notification fanout attempts by outcome.",
		},
		[]string{"result"},
	)
)

var registerOnce sync.Once

// MustRegister registers every collector with reg. Later calls are no-ops.
func MustRegister(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		reg.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			WSHandshakesTotal,
			WSConnectionsActive,
			OnlineUsers,
			WSEventsTotal,
			WSDroppedFramesTotal,
			MessagesPersistedTotal,
			ReceiptsWrittenTotal,
			SideEffectFailuresTotal,
			NotificationsTotal,
		)
	})
}
