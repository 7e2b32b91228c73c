package metrics_test

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/ransom-agent/ransom-agentd/internal/metrics"
)

func TestServeMetricsExposesEndpoint(t *testing.T) {
	m := metrics.NewMetrics()
	m.EventsIngestedTotal.WithLabelValues("WRITE").Inc()
	m.TrackedPIDs.Set(3)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- m.ServeMetrics(ctx, "127.0.0.1:19110") }()

	var resp *http.Response
	var err error
	for i := 0; i < 50; i++ {
		resp, err = http.Get("http://127.0.0.1:19110/healthz")
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("healthz never came up: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}

	metricsResp, err := http.Get("http://127.0.0.1:19110/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	body, _ := io.ReadAll(metricsResp.Body)
	if !contains(body, "ransom_agent_events_ingested_total") {
		t.Error("expected ransom_agent_events_ingested_total in exposition output")
	}
	if !contains(body, "ransom_agent_scorer_tracked_pids") {
		t.Error("expected ransom_agent_scorer_tracked_pids in exposition output")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("ServeMetrics did not shut down after context cancellation")
	}
}

func contains(haystack []byte, needle string) bool {
	return len(haystack) > 0 && indexOf(string(haystack), needle) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
