// Package metrics exposes Prometheus collectors for the player.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream API calls
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagplayer_api_requests_total",
			Help: "Spotify Web API requests by endpoint and status class",
		},
		[]string{"endpoint", "status_class"}, // "2xx", "4xx", "5xx", "transport"
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tagplayer_api_request_duration_seconds",
			Help:    "Duration of Spotify Web API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	APIRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagplayer_api_retries_total",
			Help: "Retries issued after a retryable outcome",
		},
		[]string{"endpoint"},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagplayer_token_refreshes_total",
			Help: "Access token refresh attempts by result",
		},
		[]string{"result"},
	)

	// State machine
	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagplayer_state_transitions_total",
			Help: "State machine transitions",
		},
		[]string{"from", "to"},
	)

	CurrentState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tagplayer_state",
			Help: "1 for the active state, 0 otherwise",
		},
		[]string{"state"},
	)

	TagTaps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagplayer_tag_taps_total",
			Help: "Tag taps seen while idle by result",
		},
		[]string{"result"}, // "accepted", "debounced"
	)

	Playbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tagplayer_playbacks_total",
			Help: "Playback attempts by result",
		},
		[]string{"result"},
	)
)

// RecordAPIRequest records one upstream call. Status 0 is a transport failure.
func RecordAPIRequest(endpoint string, status int, duration time.Duration) {
	APIRequests.WithLabelValues(endpoint, StatusClass(status)).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordRetry counts one retry for endpoint.
func RecordRetry(endpoint string) {
	APIRetries.WithLabelValues(endpoint).Inc()
}

// RecordTokenRefresh counts a token exchange.
func RecordTokenRefresh(ok bool) {
	TokenRefreshes.WithLabelValues(result(ok)).Inc()
}

// RecordTransition counts a transition and moves the state gauge.
func RecordTransition(from, to string) {
	StateTransitions.WithLabelValues(from, to).Inc()
	CurrentState.WithLabelValues(from).Set(0)
	CurrentState.WithLabelValues(to).Set(1)
}

// RecordTap counts a tap seen in IDLE.
func RecordTap(accepted bool) {
	if accepted {
		TagTaps.WithLabelValues("accepted").Inc()
		return
	}
	TagTaps.WithLabelValues("debounced").Inc()
}

// RecordPlayback counts a playback attempt.
func RecordPlayback(ok bool) {
	Playbacks.WithLabelValues(result(ok)).Inc()
}

// StatusClass buckets an HTTP status into "2xx".."5xx", or "transport" for 0.
func StatusClass(status int) string {
	if status <= 0 {
		return "transport"
	}
	return strconv.Itoa(status/100) + "xx"
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
