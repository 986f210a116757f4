package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PriceChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "price_checks_total",
			Help: "Total number of price checks by search mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of scraping provider calls in seconds, retries included",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60},
		},
		[]string{"mode", "outcome"},
	)

	ProviderRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Total number of scraping provider retries",
		},
		[]string{"mode"},
	)

	RefinementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refinements_total",
			Help: "Total number of refinement passes by result",
		},
		[]string{"result"},
	)

	NormalizedOffers = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "normalized_offers",
			Help:    "Number of offers left after normalization",
			Buckets: prometheus.LinearBuckets(0, 5, 6),
		},
		[]string{"mode"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)
