// Geigerhub - Radiation Telemetry Ingestion and Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/geigerhub

// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the stage and forwarder counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

var (
	// Ingestion
	IngestRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geigerhub_ingest_requests_total",
			Help: "Ingestion requests by wire format and resulting status",
		},
		[]string{"format", "status"},
	)

	// Fan-out
	FanoutStageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geigerhub_fanout_stage_total",
			Help: "Fan-out stage executions by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	FanoutDeferredInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geigerhub_fanout_deferred_in_flight",
			Help: "Deferred fan-out tasks currently running",
		},
	)

	// Forwarders
	ForwarderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geigerhub_forwarder_requests_total",
			Help: "Records sent to external mirrors by forwarder and outcome",
		},
		[]string{"forwarder", "outcome"},
	)

	ForwarderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "geigerhub_forwarder_duration_seconds",
			Help:    "Latency of external mirror calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"forwarder"},
	)

	// Breakers are per forwarder and device; this counts the ones not closed.
	CircuitBreakersTripped = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "geigerhub_forwarder_circuit_breakers_tripped",
			Help: "Open or half-open device breakers per forwarder",
		},
		[]string{"forwarder"},
	)

	// Alerts
	AlertChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geigerhub_alert_checks_total",
			Help: "Alert evaluations by result",
		},
		[]string{"result"},
	)

	// Live push
	LiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "geigerhub_live_sessions",
			Help: "Open live push sessions",
		},
	)

	LiveSessionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geigerhub_live_sessions_rejected_total",
			Help: "Live connections refused because the identity was at its session cap",
		},
	)

	LiveDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "geigerhub_live_messages_dropped_total",
			Help: "Live messages dropped because a session send buffer was full",
		},
	)

	// Calendar
	CalendarComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geigerhub_calendar_computations_total",
			Help: "Calendar computations by outcome",
		},
		[]string{"outcome"},
	)

	CalendarComputeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geigerhub_calendar_compute_duration_seconds",
			Help:    "Time spent computing a device calendar",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of requests currently being served",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordIngest counts one ingestion request by wire format and HTTP status.
func RecordIngest(format string, status int) {
	IngestRequests.WithLabelValues(format, strconv.Itoa(status)).Inc()
}

// RecordStage counts one fan-out stage outcome.
func RecordStage(stage string, err error) {
	FanoutStageTotal.WithLabelValues(stage, outcome(err)).Inc()
}

// RecordForward counts one forwarder call.
func RecordForward(forwarder string, duration time.Duration, err error) {
	ForwarderRequests.WithLabelValues(forwarder, outcome(err)).Inc()
	ForwarderDuration.WithLabelValues(forwarder).Observe(duration.Seconds())
}

// RecordCalendar counts one calendar computation.
func RecordCalendar(duration time.Duration, err error) {
	CalendarComputations.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		CalendarComputeDuration.Observe(duration.Seconds())
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
