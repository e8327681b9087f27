package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_tokens_issued_total",
			Help: "Total number of tokens issued or refreshed.",
		},
		[]string{"flow", "result"},
	)

	PairingClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_pairing_claims_total",
			Help: "Pairing claim attempts by outcome.",
		},
		[]string{"result"},
	)

	ScreeningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_screenings_total",
			Help: "Screenshots analysed, by outcome.",
		},
		[]string{"result"},
	)

	DetectorDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "guardian_detector_duration_seconds",
			Help:    "Time spent in the detector per screenshot.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
	)

	UsageIngestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardian_usage_ingests_total",
			Help: "Usage batches ingested, by outcome.",
		},
		[]string{"result"},
	)

	InboxMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "guardian_inbox_messages_total",
			Help: "Inbox messages created by fan-out.",
		},
	)
)

// MustRegister registers every collector on the default registry with a
// constant service label. The vectors are usable before registration, so
// packages can record into them under test without a registry.
func MustRegister(serviceName string) {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"service": serviceName}, prometheus.DefaultRegisterer)
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
		TokensIssuedTotal,
		PairingClaimsTotal,
		ScreeningsTotal,
		DetectorDurationSeconds,
		UsageIngestsTotal,
		InboxMessagesTotal,
	)
}
