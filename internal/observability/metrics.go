package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ps",
		Name:      "verifications_total",
		Help:      "Total number of face verification attempts by outcome",
	}, []string{"outcome"})

	AttendanceRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ps",
		Name:      "attendance_recorded_total",
		Help:      "Total number of attendance events written",
	})

	FramesAnalyzed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ps",
		Name:      "frames_analyzed_total",
		Help:      "Total number of emotion frames analyzed by result",
	}, []string{"result"})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ps",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ps",
		Name:      "open_emotion_sessions",
		Help:      "Number of currently open emotion sessions",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ps",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ps",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)

// Verification outcomes.
const (
	OutcomeRecorded     = "recorded"
	OutcomeDeduped      = "deduped"
	OutcomeNoMatch      = "no_match"
	OutcomeNoCandidates = "no_candidates"
	OutcomeInvalidInput = "invalid_input"
	OutcomeError        = "error"
)
