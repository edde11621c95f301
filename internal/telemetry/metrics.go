package telemetry

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics definitions
var (
	// Work queue
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "jotnar_queue_depth",
		Help: "Number of tasks currently sitting in a queue.",
	}, []string{"queue"})
	TaskRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jotnar_task_retries_total",
		Help: "Number of times a task was rescheduled after a failed claim.",
	}, []string{"queue"})

	// Build validation
	BuildAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jotnar_build_attempts_total",
		Help: "Total package build attempts, by outcome.",
	}, []string{"kind", "result"})
	BuildAttemptsPerTask = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jotnar_build_attempts_per_task",
		Help:    "Number of build attempts consumed before a task reached a terminal state.",
		Buckets: []float64{1, 2, 3, 5, 8, 10},
	}, []string{"kind"})

	// Pipeline stages
	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "jotnar_pipeline_stage_duration_seconds",
		Help:    "Wall-clock duration of a single pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	AgentIterationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jotnar_agent_iterations_total",
		Help: "Total agent-runner tool-calling turns consumed.",
	}, []string{"pipeline"})

	// Ingestion
	IngestionEnqueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "jotnar_ingestion_enqueued_total",
		Help: "Total tickets newly enqueued onto triage_queue by an ingestion sweep.",
	})
	IngestionSweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jotnar_ingestion_sweeps_total",
		Help: "Total completed ingestion sweeps, by outcome.",
	}, []string{"result"})

	// Reliability
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jotnar_errors_total",
		Help: "Total internal errors, by component and type.",
	}, []string{"component", "type"})
	MergeRequestsOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "jotnar_merge_requests_opened_total",
		Help: "Total merge requests opened, by pipeline kind.",
	}, []string{"kind"})
)

var (
	metricsOnce    sync.Once
	metricsMu      sync.Mutex
	metricsRunning bool
)

// StartMetricsServer starts an HTTP server exposing Prometheus metrics.
// It attempts to bind to the given port, trying the next 9 ports if the
// first is in use.
func StartMetricsServer(basePort int) error {
	metricsMu.Lock()
	if metricsRunning {
		metricsMu.Unlock()
		return nil
	}
	metricsRunning = true
	metricsMu.Unlock()

	metricsOnce.Do(func() {
		http.Handle("/metrics", promhttp.Handler())
	})

	var listener net.Listener
	var err error

	for i := 0; i < 10; i++ {
		port := basePort + i
		addr := ":" + strconv.Itoa(port)
		listener, err = net.Listen("tcp", addr)
		if err == nil {
			fmt.Fprintf(os.Stderr, "Starting metrics server on %s\n", addr)
			return http.Serve(listener, nil)
		}
	}

	metricsMu.Lock()
	metricsRunning = false
	metricsMu.Unlock()
	return fmt.Errorf("failed to find available port starting from %d: %w", basePort, err)
}

// API helper functions

func SetQueueDepth(queue string, depth int) {
	QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

func TrackTaskRetry(queue string) {
	TaskRetriesTotal.WithLabelValues(queue).Inc()
}

func TrackBuildAttempt(kind string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	BuildAttemptsTotal.WithLabelValues(kind, result).Inc()
}

func ObserveBuildAttemptsPerTask(kind string, attempts int) {
	BuildAttemptsPerTask.WithLabelValues(kind).Observe(float64(attempts))
}

func ObservePipelineStageDuration(stage string, seconds float64) {
	PipelineStageDuration.WithLabelValues(stage).Observe(seconds)
}

func TrackAgentIteration(pipeline string) {
	AgentIterationsTotal.WithLabelValues(pipeline).Inc()
}

func TrackIngestionEnqueued(count int) {
	IngestionEnqueuedTotal.Add(float64(count))
}

func TrackIngestionSweep(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	IngestionSweepsTotal.WithLabelValues(result).Inc()
}

func TrackError(component, errType string) {
	ErrorsTotal.WithLabelValues(component, errType).Inc()
}

func TrackMergeRequestOpened(kind string) {
	MergeRequestsOpenedTotal.WithLabelValues(kind).Inc()
}
