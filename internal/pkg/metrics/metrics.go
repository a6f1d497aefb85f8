package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Decisions counts ApplyForLoan outcomes; reason is empty for approvals.
	Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lendgate_decisions_total",
		Help: "Loan decisions by outcome and rejection reason",
	}, []string{"outcome", "reason"})

	Latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lendgate_latency_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	// Responses counts finished requests by route template and status class.
	Responses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lendgate_responses_total",
		Help: "HTTP responses by endpoint and status class",
	}, []string{"endpoint", "class"})

	UpstreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lendgate_upstream_errors_total",
		Help: "Failed collaborator reads by source",
	}, []string{"source"})

	Scores = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lendgate_scores",
		Help:    "Distribution of computed trust scores",
		Buckets: prometheus.LinearBuckets(0, 100, 11),
	})

	RecalcQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lendgate_recalc_queue_depth",
		Help: "Pending score recalculation jobs",
	})
)
