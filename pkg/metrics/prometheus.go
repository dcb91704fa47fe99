// Package metrics provides Prometheus metrics for the wheel service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Wheel construction
	wheelsBuilt   *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	wheelTickets  prometheus.Histogram
	buildErrors   *prometheus.CounterVec

	// Verification jobs
	verificationsSubmitted prometheus.Counter
	verificationsDuplicate prometheus.Counter
	verificationsFinished  *prometheus.CounterVec
	verificationDuration   prometheus.Histogram
	verificationSubsets    prometheus.Counter
	verificationsInFlight  prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount   prometheus.Gauge
	workerActive  prometheus.Gauge
	workerLatency prometheus.Histogram
	workerErrors  prometheus.Counter

	// Job store
	storeJobs      prometheus.Gauge
	storeLatency   *prometheus.HistogramVec
	storeEvictions prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var (
	customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // served on /healthz
	globalManager  = NewManager(WithPrometheusRegistry(customRegistry))
)

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "wheelsmith",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500, 1000, 5000, 30000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.wheelsBuilt = m.counterVec("wheels_built_total", "Wheels returned, by mode and termination reason", "mode", "termination")
	m.buildDuration = m.histogramVec("build_duration_milliseconds", "Wheel build time in milliseconds", "mode")
	m.wheelTickets = m.histogram("wheel_tickets", "Tickets per returned wheel", prometheus.ExponentialBuckets(1, 4, 10))
	m.buildErrors = m.counterVec("build_errors_total", "Rejected builds by error kind", "kind")

	m.verificationsSubmitted = m.counter("verifications_submitted_total", "Verification jobs accepted")
	m.verificationsDuplicate = m.counter("verifications_duplicate_total", "Submissions answered from an earlier request id")
	m.verificationsFinished = m.counterVec("verifications_finished_total", "Verification jobs finished, by outcome", "outcome")
	m.verificationDuration = m.histogram("verification_duration_milliseconds", "Verification run time in milliseconds", m.histogramBuckets)
	m.verificationSubsets = m.counter("verification_subsets_examined_total", "m-subsets walked by verifiers")
	m.verificationsInFlight = m.gauge("verifications_in_flight", "Verification jobs currently running")

	m.queueSize = m.gauge("queue_size", "Tasks waiting in the verification queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the verification queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue size divided by capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Tasks enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Tasks dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Enqueue attempts rejected")

	m.workerCount = m.gauge("worker_count", "Workers in the pool")
	m.workerActive = m.gauge("worker_active_count", "Workers currently running a task")
	m.workerLatency = m.histogram("worker_processing_latency_milliseconds", "Time from dequeue to job completion", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Tasks that ended with a job error")

	m.storeJobs = m.gauge("store_jobs", "Job records held by the store")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Job store operation latency", "op")
	m.storeEvictions = m.counter("store_evictions_total", "Job records dropped by retention")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap bytes in use")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordWheelBuilt records a returned wheel.
func RecordWheelBuilt(mode, termination string, tickets int, durationMs float64) {
	globalManager.wheelsBuilt.WithLabelValues(mode, termination).Inc()
	globalManager.buildDuration.WithLabelValues(mode).Observe(durationMs)
	globalManager.wheelTickets.Observe(float64(tickets))
}

// RecordBuildError counts a rejected build.
func RecordBuildError(kind string) {
	globalManager.buildErrors.WithLabelValues(kind).Inc()
}

// RecordVerificationSubmitted counts an accepted verification job.
func RecordVerificationSubmitted() {
	globalManager.verificationsSubmitted.Inc()
}

// RecordVerificationDuplicate counts a submission resolved by request id.
func RecordVerificationDuplicate() {
	globalManager.verificationsDuplicate.Inc()
}

// RecordVerificationFinished records a terminal job. outcome is pass, fail or error.
func RecordVerificationFinished(outcome string, durationMs float64) {
	globalManager.verificationsFinished.WithLabelValues(outcome).Inc()
	globalManager.verificationDuration.Observe(durationMs)
}

// RecordSubsetsExamined adds to the examined subset counter.
func RecordSubsetsExamined(n uint64) {
	globalManager.verificationSubsets.Add(float64(n))
}

// AddVerificationsInFlight moves the in-flight gauge by delta.
func AddVerificationsInFlight(delta int) {
	globalManager.verificationsInFlight.Add(float64(delta))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerActive moves the active worker gauge by delta.
func AddWorkerActive(delta int) {
	globalManager.workerActive.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateStoreJobs sets the number of stored job records.
func UpdateStoreJobs(count int) {
	globalManager.storeJobs.Set(float64(count))
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreEvictions adds n evicted job records.
func RecordStoreEvictions(n int) {
	globalManager.storeEvictions.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
