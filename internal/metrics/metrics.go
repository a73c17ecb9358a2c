// zhmc-go - IBM Z Hardware Management Console (HMC) Web Services API client
// Copyright 2026 zhmc-go contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package metrics exposes Prometheus counters/gauges/histograms for the
// HTTP transport, Session lifecycle, name->URI cache, notification
// receiver, auto-update engine, and the optional circuit breaker
// (SPEC_FULL.md section 2, "Metrics").
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP transport metrics (component C).
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_http_requests_total",
			Help: "Total number of HTTP requests issued to the HMC.",
		},
		[]string{"method", "status_class"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zhmc_http_request_duration_seconds",
			Help:    "Duration of HTTP requests to the HMC in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	HTTPRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_http_retries_total",
			Help: "Total number of connect/read retries performed.",
		},
		[]string{"kind"}, // "connect", "read", "redirect"
	)

	// Session lifecycle metrics (component D).
	SessionLogonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zhmc_session_logons_total",
			Help: "Total number of successful initial logons.",
		},
	)

	SessionRelogonsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zhmc_session_relogons_total",
			Help: "Total number of transparent re-logons after a 403.5 token-expired response.",
		},
	)

	SessionHostFailoversTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zhmc_session_host_failovers_total",
			Help: "Total number of times a Session fell back to a backup HMC host.",
		},
	)

	SessionBusyRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zhmc_session_busy_retries_total",
			Help: "Total number of retries performed after a 409.1/409.2 server-busy response.",
		},
	)

	JobPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_job_polls_total",
			Help: "Total number of job-status polls, by resulting status.",
		},
		[]string{"status"},
	)

	// Circuit breaker metrics, matching the teacher's CircuitBreakerState /
	// CircuitBreakerTransitions naming.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zhmc_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"host"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions.",
		},
		[]string{"host", "from", "to"},
	)

	// Name->URI cache metrics (component F).
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_cache_hits_total",
			Help: "Total number of name->URI cache hits.",
		},
		[]string{"resource_class"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_cache_misses_total",
			Help: "Total number of name->URI cache misses.",
		},
		[]string{"resource_class"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zhmc_cache_entries",
			Help: "Current number of entries held in the name->URI cache.",
		},
		[]string{"resource_class"},
	)

	// Notification receiver metrics (component E).
	NotificationsDeliveredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_notifications_delivered_total",
			Help: "Total number of notification frames delivered to callers.",
		},
		[]string{"topic"},
	)

	NotificationsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_notifications_dropped_total",
			Help: "Total number of notification frames dropped because the receiver's queue was full.",
		},
		[]string{"topic"},
	)

	NotificationReceiverReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "zhmc_notification_receiver_reconnects_total",
			Help: "Total number of STOMP reconnects performed by the notification receiver.",
		},
	)

	// Auto-update engine metrics (component G).
	AutoUpdateSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "zhmc_autoupdate_subscribers",
			Help: "Current number of resources/managers subscribed to auto-update.",
		},
	)

	AutoUpdateEventsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zhmc_autoupdate_events_applied_total",
			Help: "Total number of auto-update events applied to resources, by event type.",
		},
		[]string{"event_type"}, // "property-change", "status-change", "inventory-change"
	)
)

// StatusClass buckets an HTTP status code into the "status_class" label
// value used by HTTPRequestsTotal, e.g. 200 -> "2xx", 404 -> "4xx".
func StatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "other"
	}
}
