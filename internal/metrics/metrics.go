package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric definitions for the detection core

var (
	detectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "detection",
			Name:      "breaches_total",
			Help:      "Total number of threshold breaches detected",
		},
		[]string{"type"},
	)

	evaluationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "detection",
			Name:      "evaluations_skipped_total",
			Help:      "Evaluations skipped before reaching a decision",
		},
		[]string{"reason"},
	)

	blocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "mitigation",
			Name:      "blocks_total",
			Help:      "Total number of addresses blocked",
		},
	)

	alertFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "mitigation",
			Name:      "alert_failures_total",
			Help:      "Alert deliveries that failed",
		},
	)

	mitigationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "mitigation",
			Name:      "side_effect_failures_total",
			Help:      "Mitigation side effects that failed and were logged",
		},
		[]string{"effect"},
	)

	scanEventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "carding",
			Name:      "events_processed_total",
			Help:      "Payment events processed by the decline-rate scan",
		},
	)

	scanTruncations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "carding",
			Name:      "batch_truncations_total",
			Help:      "Scans whose payment event batch hit the fetch cap",
		},
	)

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordDetection records a threshold breach by detection type.
func RecordDetection(detectionType string) {
	detectionsTotal.WithLabelValues(detectionType).Inc()
}

// RecordEvaluationSkipped records an evaluation that ended without a decision.
func RecordEvaluationSkipped(reason string) {
	evaluationsSkipped.WithLabelValues(reason).Inc()
}

// RecordBlock records a newly blocked address.
func RecordBlock() {
	blocksTotal.Inc()
}

// RecordAlertFailure records a failed alert delivery.
func RecordAlertFailure() {
	alertFailures.Inc()
}

// RecordMitigationFailure records a failed mitigation side effect.
func RecordMitigationFailure(effect string) {
	mitigationFailures.WithLabelValues(effect).Inc()
}

// RecordScanBatch records scan progress for one decline-rate run.
func RecordScanBatch(events int, truncated bool) {
	scanEventsProcessed.Add(float64(events))
	if truncated {
		scanTruncations.Inc()
	}
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path string, status int, seconds float64) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(seconds)
}
