// Package metrics holds the Prometheus collectors for the transfer pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlatformCalls counts remote platform calls.
	// Labels:
	//   - platform: "spotify", "youtube"
	//   - op: "search", "track", "playlist", "create", "add"
	//   - outcome: "ok", "empty", "error", "timeout", "rejected"
	PlatformCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_platform_calls_total",
			Help: "Total number of platform API calls",
		},
		[]string{"platform", "op", "outcome"},
	)

	// PlatformCallDuration measures platform call latency.
	PlatformCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crossfade_platform_call_duration_seconds",
			Help:    "Duration of platform API calls in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"platform", "op"},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crossfade_circuit_breaker_state",
			Help: "Circuit breaker state per platform (0 closed, 1 half-open, 2 open)",
		},
		[]string{"platform"},
	)

	// MatchOutcomes counts matcher results by the ladder stage that produced them ("none" for misses).
	MatchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_match_outcomes_total",
			Help: "Total number of track match outcomes by stage",
		},
		[]string{"source", "destination", "stage"},
	)

	// AIRequests counts AI fallback completions.
	AIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_ai_requests_total",
			Help: "Total number of AI fallback completion requests",
		},
		[]string{"outcome"},
	)

	// TokenRefreshes counts OAuth refresh attempts.
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_token_refreshes_total",
			Help: "Total number of OAuth access token refreshes",
		},
		[]string{"platform", "outcome"},
	)

	// TransfersCommitted counts committed transfers.
	TransfersCommitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_transfers_committed_total",
			Help: "Total number of committed playlist transfers",
		},
		[]string{"source", "destination"},
	)

	// TracksAddFailed counts tracks that could not be inserted into a destination playlist.
	TracksAddFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crossfade_tracks_add_failed_total",
			Help: "Total number of tracks that failed to be added to a destination playlist",
		},
		[]string{"destination"},
	)
)
