// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ConversationsTotal tracks conversations created.
	ConversationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_created_total",
			Help: "Total conversations created",
		},
	)

	// MessagesTotal tracks messages sent.
	MessagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messages_sent_total",
			Help: "Total messages sent",
		},
	)

	// NotificationsTotal tracks notifications emitted by kind.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_emitted_total",
			Help: "Total notifications emitted",
		},
		[]string{"type"},
	)

	// PresenceUpdatesTotal tracks presence writes by reported state.
	PresenceUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_updates_total",
			Help: "Total presence updates",
		},
		[]string{"state"},
	)

	// EventsPublishFailures tracks events that could not be published.
	EventsPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_publish_failures_total",
			Help: "Events dropped because publishing failed",
		},
		[]string{"kind"},
	)

	// PollTicksTotal tracks poller ticks by outcome.
	PollTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_ticks_total",
			Help: "Poller ticks by concern and outcome",
		},
		[]string{"concern", "outcome"},
	)

	// PollTicksSkipped tracks ticks dropped because a call was still in flight.
	PollTicksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poll_ticks_skipped_total",
			Help: "Poller ticks skipped while a previous call was in flight",
		},
		[]string{"concern"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordPresence records a presence write.
func RecordPresence(online bool) {
	state := "offline"
	if online {
		state = "online"
	}
	PresenceUpdatesTotal.WithLabelValues(state).Inc()
}

// RecordPoll records the outcome of a poller tick.
func RecordPoll(concern string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	PollTicksTotal.WithLabelValues(concern, outcome).Inc()
}
