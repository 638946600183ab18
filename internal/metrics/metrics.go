// Package metrics holds Prometheus instruments that are used across the
// service.  All collectors are registered with the global registry, so
// importing this package in main.go is enough to expose them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Form submissions by form and outcome (invalid, submitted, failed).",
		}, []string{"form", "outcome"})

	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_validation_failures_total",
			Help: "Field validation failures by form and field.",
		}, []string{"form", "field"})

	SubmissionsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "form_submissions_in_flight",
			Help: "Deliveries currently running.",
		})

	DeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "form_delivery_duration_seconds",
			Help:    "Time spent in the delivery side effect.",
			Buckets: prometheus.DefBuckets,
		}, []string{"form"})

	ActionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_action_errors_total",
			Help: "Delivery action failures by action type.",
		}, []string{"action"})

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "form_sessions_active",
			Help: "Number of form sessions currently held in memory.",
		})

	SessionCreateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_session_create_total",
			Help: "Cumulative number of form sessions created.",
		})

	SessionEvictTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "form_session_evict_total",
			Help: "Cumulative number of form sessions evicted from the cache.",
		})

	RejectedRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_rejected_requests_total",
			Help: "Posts rejected before validation, by reason.",
		}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		SubmissionsTotal,
		ValidationFailuresTotal,
		SubmissionsInFlight,
		DeliveryDuration,
		ActionErrorsTotal,
		ActiveSessions,
		SessionCreateTotal,
		SessionEvictTotal,
		RejectedRequestsTotal,
	)
}
