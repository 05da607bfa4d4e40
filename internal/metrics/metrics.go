package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendationsGenerated counts completed ranking invocations.
	RecommendationsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finpick_recommendations_generated_total",
		Help: "Number of recommendation results generated",
	})

	// RecommendationFailures counts aborted ranking invocations by cause.
	RecommendationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpick_recommendation_failures_total",
		Help: "Number of failed ranking invocations by cause",
	}, []string{"cause"})

	// RecommendationLatency observes end-to-end ranking latency.
	RecommendationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "finpick_recommendation_latency_seconds",
		Help:    "End-to-end latency of ranking invocations",
		Buckets: prometheus.DefBuckets,
	})

	// FeedbackProcessed counts feedback submissions by adaptation branch.
	FeedbackProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finpick_feedback_processed_total",
		Help: "Number of feedback submissions by adaptation branch",
	}, []string{"adaptation"})

	// InteractionPublishFailures counts interaction events that could not be
	// published to the event stream. The request path never fails on these;
	// they surface here instead.
	InteractionPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finpick_interaction_publish_failures_total",
		Help: "Number of interaction events dropped by the event stream",
	})
)
