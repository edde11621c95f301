package telemetry

import (
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsHelpers(t *testing.T) {
	SetQueueDepth("triage_queue", 3)
	TrackTaskRetry("rebase_queue_c9s")
	TrackBuildAttempt("rebase", true)
	TrackBuildAttempt("backport", false)
	ObserveBuildAttemptsPerTask("rebase", 2)
	ObservePipelineStageDuration("build", 4.2)
	TrackAgentIteration("triage")
	TrackIngestionEnqueued(5)
	TrackIngestionSweep(true)
	TrackIngestionSweep(false)
	TrackError("pipeline", "build_failed")
	TrackMergeRequestOpened("rebase")
}

func TestStartMetricsServer(t *testing.T) {
	metricsMu.Lock()
	metricsRunning = false
	metricsMu.Unlock()

	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	basePort := l.Addr().(*net.TCPAddr).Port
	l.Close()

	go func() {
		_ = StartMetricsServer(basePort)
	}()

	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/metrics", basePort))
	if err != nil {
		t.Fatalf("Failed to request metrics: %v", err)
	}
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStartMetricsServer_Conflict(t *testing.T) {
	metricsMu.Lock()
	metricsRunning = false
	metricsMu.Unlock()

	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("Failed to find free port: %v", err)
	}
	defer l.Close()
	occupiedPort := l.Addr().(*net.TCPAddr).Port

	go func() {
		_ = StartMetricsServer(occupiedPort)
	}()

	time.Sleep(200 * time.Millisecond)

	nextPort := occupiedPort + 1
	url := fmt.Sprintf("http://localhost:%d/metrics", nextPort)

	resp, err := http.Get(url)
	if err != nil {
		resp, err = http.Get(fmt.Sprintf("http://localhost:%d/metrics", nextPort+1))
	}

	if err != nil {
		t.Fatalf("Metrics server failed to start on fallback port: %v", err)
	}
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
