// Package metrics provides Prometheus metrics for the sentinel engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager holds all Prometheus collectors for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion - events entering and leaving the normalizer
	eventsIngested  prometheus.Counter
	eventsRejected  *prometheus.CounterVec
	eventsDuplicate prometheus.Counter

	// Detection - corridor filtering and risk scoring
	disruptionsDetected prometheus.Counter
	routesRegistered    prometheus.Gauge
	riskScore           prometheus.Histogram

	// Decision cycle
	decisionsTotal      *prometheus.CounterVec
	actionsBlocked      *prometheus.CounterVec
	suppressionsTotal   prometheus.Counter
	reasoningLatency    prometheus.Histogram
	reasoningFallbacks  prometheus.Counter
	detectionLagSeconds prometheus.Histogram
	actionLagSeconds    prometheus.Histogram
	estimatedDaysSaved  prometheus.Counter

	// Audit trail
	auditAppendLatency prometheus.Histogram
	auditAppendErrors  prometheus.Counter

	// Operational health
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueDropped     prometheus.Counter
	sessionsActive   prometheus.Gauge
	contextStoreSize prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Process health
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "sentinel",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is flat by nature
	auto := promauto.With(m.registry)

	m.eventsIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_ingested_total",
		Help:      "Total number of raw records accepted by the normalizer",
	})

	m.eventsRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "events_rejected_total",
			Help:      "Total number of raw records rejected, by reason",
		},
		[]string{"reason"},
	)

	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_duplicate_total",
		Help:      "Total number of duplicate events dropped inside the dedup window",
	})

	m.disruptionsDetected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "disruptions_detected_total",
		Help:      "Total number of events that intersected a monitored corridor",
	})

	m.routesRegistered = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "routes_registered",
		Help:      "Current number of routes registered with the corridor index",
	})

	m.riskScore = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "risk_score",
		Help:      "Distribution of computed risk scores (0-100)",
		Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	})

	m.decisionsTotal = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "decisions_total",
			Help:      "Total number of decision cycles completed, by outcome",
		},
		[]string{"outcome"},
	)

	m.actionsBlocked = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "actions_blocked_total",
			Help:      "Total number of candidate actions blocked by the safety gate, by reason",
		},
		[]string{"reason"},
	)

	m.suppressionsTotal = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "suppressions_total",
		Help:      "Total number of disruption events coalesced during session cooldown",
	})

	m.reasoningLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reasoning_latency_milliseconds",
		Help:      "Histogram of reasoning strategy latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.reasoningFallbacks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reasoning_fallbacks_total",
		Help:      "Total number of times the deterministic fallback strategy was used",
	})

	m.detectionLagSeconds = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detection_lag_seconds",
		Help:      "Lag between event occurrence and detection (MTTD input)",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	m.actionLagSeconds = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "action_lag_seconds",
		Help:      "Lag between detection and action execution (MTTA input)",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	m.estimatedDaysSaved = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "estimated_days_saved_total",
		Help:      "Cumulative estimated transit days saved by executed mitigations",
	})

	m.auditAppendLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "audit_append_latency_milliseconds",
		Help:      "Histogram of audit append latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.auditAppendErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "audit_append_errors_total",
		Help:      "Total number of failed audit appends (triggers action halt on exhaustion)",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current size of the ingest queue (backlog indicator)",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the ingest queue",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization_ratio",
		Help:      "Ingest queue utilization (size / capacity)",
	})

	m.queueDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dropped_total",
		Help:      "Total number of records refused by the bounded ingest queue",
	})

	m.sessionsActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_active",
		Help:      "Current number of live decision sessions",
	})

	m.contextStoreSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "context_store_size",
		Help:      "Current number of events held by the context store",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "Current heap allocation in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordEventIngested increments the accepted records counter.
func RecordEventIngested() {
	globalManager.eventsIngested.Inc()
}

// RecordEventRejected increments the rejected records counter for a reason.
func RecordEventRejected(reason string) {
	globalManager.eventsRejected.WithLabelValues(reason).Inc()
}

// RecordEventDuplicate increments the duplicate events counter.
func RecordEventDuplicate() {
	globalManager.eventsDuplicate.Inc()
}

// RecordDisruptionDetected increments the detected disruptions counter.
func RecordDisruptionDetected() {
	globalManager.disruptionsDetected.Inc()
}

// UpdateRoutesRegistered sets the registered routes gauge.
func UpdateRoutesRegistered(n int) {
	globalManager.routesRegistered.Set(float64(n))
}

// RecordRiskScore observes a computed risk score.
func RecordRiskScore(score float64) {
	globalManager.riskScore.Observe(score)
}

// RecordDecision increments the decisions counter for an outcome.
func RecordDecision(outcome string) {
	globalManager.decisionsTotal.WithLabelValues(outcome).Inc()
}

// RecordActionBlocked increments the blocked actions counter for a reason.
func RecordActionBlocked(reason string) {
	globalManager.actionsBlocked.WithLabelValues(reason).Inc()
}

// RecordSuppression increments the cooldown suppressions counter.
func RecordSuppression() {
	globalManager.suppressionsTotal.Inc()
}

// RecordReasoningLatency records reasoning latency in milliseconds.
func RecordReasoningLatency(ms float64) {
	globalManager.reasoningLatency.Observe(ms)
}

// RecordReasoningFallback increments the strategy fallback counter.
func RecordReasoningFallback() {
	globalManager.reasoningFallbacks.Inc()
}

// RecordDetectionLag observes occurrence-to-detection lag in seconds.
func RecordDetectionLag(seconds float64) {
	globalManager.detectionLagSeconds.Observe(seconds)
}

// RecordActionLag observes detection-to-action lag in seconds.
func RecordActionLag(seconds float64) {
	globalManager.actionLagSeconds.Observe(seconds)
}

// RecordEstimatedDaysSaved adds to the cumulative days-saved counter.
func RecordEstimatedDaysSaved(days float64) {
	globalManager.estimatedDaysSaved.Add(days)
}

// RecordAuditAppendLatency records audit append latency in milliseconds.
func RecordAuditAppendLatency(ms float64) {
	globalManager.auditAppendLatency.Observe(ms)
}

// RecordAuditAppendError increments the failed audit appends counter.
func RecordAuditAppendError() {
	globalManager.auditAppendErrors.Inc()
}

// UpdateQueueSize sets the current ingest queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the configured ingest queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the ingest queue utilization ratio.
func UpdateQueueUtilization(ratio float64) {
	globalManager.queueUtilization.Set(ratio)
}

// RecordQueueDropped increments the refused records counter.
func RecordQueueDropped() {
	globalManager.queueDropped.Inc()
}

// UpdateSessionsActive sets the live sessions gauge.
func UpdateSessionsActive(n int) {
	globalManager.sessionsActive.Set(float64(n))
}

// UpdateContextStoreSize sets the context store size gauge.
func UpdateContextStoreSize(n int) {
	globalManager.contextStoreSize.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause observation in milliseconds.
func RecordSystemGCPauseTime(ms float64) {
	globalManager.systemGCPauseTime.Observe(ms)
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
