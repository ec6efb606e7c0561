// Package metrics exposes Prometheus collectors for the animation host.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monavatar_frames_total",
			Help: "Total number of engine frames advanced",
		},
	)

	FrameDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monavatar_frame_seconds",
			Help:    "Engine frame update duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		},
	)

	StateTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monavatar_state_transitions_total",
			Help: "Conversational state transitions",
		},
		[]string{"from", "to"},
	)

	LipsyncStrategy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "monavatar_lipsync_strategy",
			Help: "Currently resolved lip-sync strategy (1 = active)",
		},
		[]string{"strategy"},
	)

	LipsyncDegradations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monavatar_lipsync_degradations_total",
			Help: "Strategy degradations at utterance attach",
		},
		[]string{"from", "to"},
	)

	CueTracksRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monavatar_cue_tracks_rejected_total",
			Help: "Cue tracks discarded as invalid",
		},
	)

	PlaybackErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monavatar_playback_errors_total",
			Help: "Transient playback faults reported by audio sources",
		},
	)

	UtterancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monavatar_utterances_total",
			Help: "Utterances attached to the lip-sync engine",
		},
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "monavatar_ws_clients",
			Help: "Connected render adapter clients",
		},
	)

	WSFramesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monavatar_ws_frames_dropped_total",
			Help: "Frames dropped on slow render adapter clients",
		},
	)
)
