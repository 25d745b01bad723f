package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aical_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aical_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aical_model_requests_total",
			Help: "Total number of language model requests by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aical_model_request_duration_seconds",
			Help:    "Time until the language model responded (headers for streams).",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation"},
	)

	EventCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aical_event_candidates_total",
			Help: "Event candidates produced by the assistant, by source and result.",
		},
		[]string{"source", "result"},
	)

	AssistantSubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aical_assistant_submissions_total",
			Help: "Assistant submissions by result.",
		},
		[]string{"result"},
	)

	CalendarEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aical_calendar_events_total",
			Help: "Calendar event mutations by operation.",
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		ModelRequestsTotal,
		ModelRequestDuration,
		EventCandidatesTotal,
		AssistantSubmissionsTotal,
		CalendarEventsTotal,
	)
}
