// Package metrics exposes Prometheus instrumentation for the agent.
//
// Endpoint: GET /metrics on a loopback-only address (configurable via
// METRICS_ADDR). Format: Prometheus text exposition, OpenMetrics compatible.
//
// Metric naming convention: ransom_agent_<subsystem>_<name>_<unit>
//
// All metrics are registered on a dedicated prometheus.Registry (not the
// default global one) to avoid collisions with other instrumented libraries
// sharing the process.
//
// Cardinality control: PID is never used as a label (unbounded cardinality);
// per-PID state is aggregated into gauges (TrackedPIDs) before recording.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric descriptors for the agent.
type Metrics struct {
	registry *prometheus.Registry

	// ─── Event ingest ─────────────────────────────────────────────────────────

	// EventsIngestedTotal counts kernel events consumed from the ring
	// buffer. Labels: event_type (EXEC, WRITE, OPEN, RENAME, UNLINK). EXIT
	// events and the agent's own events are not counted.
	EventsIngestedTotal *prometheus.CounterVec

	// EventsDroppedTotal counts events dropped before reaching the scorer.
	// Labels: reason (malformed).
	EventsDroppedTotal *prometheus.CounterVec

	// EventsWhitelistedTotal counts events suppressed by the whitelist.
	EventsWhitelistedTotal prometheus.Counter

	// ─── Scorer ───────────────────────────────────────────────────────────────

	// ScoreHistogram records the distribution of post-event risk scores.
	ScoreHistogram prometheus.Histogram

	// AlarmsTotal counts scorer alarms raised, by risk reason.
	AlarmsTotal *prometheus.CounterVec

	// TrackedPIDs is the current number of processes under active tracking.
	TrackedPIDs prometheus.Gauge

	// ─── Response ─────────────────────────────────────────────────────────────

	// KillOutcomesTotal counts Terminator outcomes. Labels: outcome
	// (killed, prevented, failed).
	KillOutcomesTotal *prometheus.CounterVec

	// KillBudgetTokensRemaining is the current kill-rate token bucket level.
	KillBudgetTokensRemaining prometheus.Gauge

	// ─── Ledger ───────────────────────────────────────────────────────────────

	// LedgerWriteLatency records BoltDB write transaction latency.
	LedgerWriteLatency prometheus.Histogram

	// LedgerEntries is the current number of incident ledger entries.
	LedgerEntries prometheus.Gauge

	// ─── Agent ────────────────────────────────────────────────────────────────

	// AgentUptimeSeconds is the number of seconds since agent start.
	AgentUptimeSeconds prometheus.Gauge

	startTime time.Time
}

// NewMetrics creates and registers all agent Prometheus metrics on a fresh
// registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		EventsIngestedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ransom_agent",
			Subsystem: "events",
			Name:      "ingested_total",
			Help:      "Total kernel events consumed from the ring buffer, by event type.",
		}, []string{"event_type"}),

		EventsDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ransom_agent",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Total events dropped before reaching the scorer.",
		}, []string{"reason"}),

		EventsWhitelistedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ransom_agent",
			Subsystem: "events",
			Name:      "whitelisted_total",
			Help:      "Total events suppressed because their process is whitelisted.",
		}),

		ScoreHistogram: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ransom_agent",
			Subsystem: "scorer",
			Name:      "score",
			Help:      "Distribution of per-process risk scores after each event.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 200, 500, 1000},
		}),

		AlarmsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ransom_agent",
			Subsystem: "scorer",
			Name:      "alarms_total",
			Help:      "Total scorer alarms raised, by risk reason.",
		}, []string{"risk_reason"}),

		TrackedPIDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ransom_agent",
			Subsystem: "scorer",
			Name:      "tracked_pids",
			Help:      "Current number of processes under active tracking.",
		}),

		KillOutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ransom_agent",
			Subsystem: "response",
			Name:      "kill_outcomes_total",
			Help:      "Total Terminator invocations, by outcome.",
		}, []string{"outcome"}),

		KillBudgetTokensRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ransom_agent",
			Subsystem: "response",
			Name:      "kill_budget_tokens_remaining",
			Help:      "Current kill-rate token bucket level.",
		}),

		LedgerWriteLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ransom_agent",
			Subsystem: "ledger",
			Name:      "write_latency_seconds",
			Help:      "BoltDB write transaction latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),

		LedgerEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ransom_agent",
			Subsystem: "ledger",
			Name:      "entries",
			Help:      "Current number of incident ledger entries.",
		}),

		AgentUptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ransom_agent",
			Subsystem: "agent",
			Name:      "uptime_seconds",
			Help:      "Number of seconds since the agent started.",
		}),
	}

	reg.MustRegister(
		m.EventsIngestedTotal,
		m.EventsDroppedTotal,
		m.EventsWhitelistedTotal,
		m.ScoreHistogram,
		m.AlarmsTotal,
		m.TrackedPIDs,
		m.KillOutcomesTotal,
		m.KillBudgetTokensRemaining,
		m.LedgerWriteLatency,
		m.LedgerEntries,
		m.AgentUptimeSeconds,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// ServeMetrics starts the Prometheus HTTP metrics server on addr and blocks
// until ctx is cancelled or the server fails. addr should be loopback-only
// (e.g. "127.0.0.1:9110"); this agent never exposes metrics externally.
func (m *Metrics) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go m.updateUptime(ctx)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	}
	return nil
}

func (m *Metrics) updateUptime(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.AgentUptimeSeconds.Set(time.Since(m.startTime).Seconds())
		case <-ctx.Done():
			return
		}
	}
}
