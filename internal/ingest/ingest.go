// Package ingest implements the Event Ingest Loop: the single-threaded,
// cooperative dispatcher that turns raw ring buffer records into scored,
// logged, and (when warranted) responded-to process activity.
package ingest

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ransom-agent/ransom-agentd/internal/agentlog"
	"github.com/ransom-agent/ransom-agentd/internal/bpfring"
	"github.com/ransom-agent/ransom-agentd/internal/config"
	"github.com/ransom-agent/ransom-agentd/internal/kevent"
	"github.com/ransom-agent/ransom-agentd/internal/metrics"
	"github.com/ransom-agent/ransom-agentd/internal/procstate"
	"github.com/ransom-agent/ransom-agentd/internal/response"
	"github.com/ransom-agent/ransom-agentd/internal/scorer"
	"github.com/ransom-agent/ransom-agentd/internal/whitelist"
)

// EventReader is the minimal surface the ingest loop needs from a ring
// buffer transport. *bpfring.Reader satisfies it; tests supply a fake.
type EventReader interface {
	Read() (kevent.Event, error)
}

// Loop owns every resource touched by the single ingest goroutine: the ring
// buffer reader, process state table, whitelist, scorer, and response
// controller. None of these are safe for concurrent use from outside the
// loop — that is the point of the single-owner design.
type Loop struct {
	reader    EventReader
	states    *procstate.Manager
	whitelist *whitelist.Whitelist
	heuristic scorer.Heuristic
	responder *response.Controller
	log       *agentlog.Logger
	metrics   *metrics.Metrics
	cfg       config.Config
	ownPID    uint32
}

// New builds a Loop ready to Run.
func New(
	reader EventReader,
	wl *whitelist.Whitelist,
	heuristic scorer.Heuristic,
	responder *response.Controller,
	log *agentlog.Logger,
	m *metrics.Metrics,
	cfg config.Config,
) *Loop {
	if m != nil {
		responder.SetMetrics(m)
	}
	return &Loop{
		reader:    reader,
		states:    procstate.NewManager(),
		whitelist: wl,
		heuristic: heuristic,
		responder: responder,
		log:       log,
		metrics:   m,
		cfg:       cfg,
		ownPID:    uint32(os.Getpid()),
	}
}

// Run polls the ring buffer until ctx is cancelled or the transport reports
// an unrecoverable error. Each record runs the full seven-step dispatch
// before the next record is read — no two events interleave.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.states.Drain()
			return nil
		default:
		}

		event, err := l.reader.Read()
		if err != nil {
			if errors.Is(err, bpfring.ErrTimeout) {
				continue
			}
			if errors.Is(err, bpfring.ErrMalformedEvent) {
				// A corrupted record is dropped, not fatal: it is never a
				// reason to stop detecting.
				if l.metrics != nil {
					l.metrics.EventsDroppedTotal.WithLabelValues("malformed").Inc()
				}
				continue
			}
			l.log.Error("ring buffer reader failed", zap.Error(err))
			l.states.Drain()
			return err
		}

		l.dispatch(event, time.Now())
	}
}

// dispatch implements the seven ordered, short-circuiting steps: self-PID
// filter, EXIT cleanup, state lookup, whitelist check, audit, score, respond.
func (l *Loop) dispatch(e kevent.Event, now time.Time) {
	// 1. Self-PID filter: prevents a feedback loop where our own log
	// writes would be observed as new WRITE events.
	if e.PID == l.ownPID {
		return
	}

	// 2. EXIT tears down state and returns; no further processing.
	if e.Type == kevent.TypeExit {
		l.states.Remove(e.PID)
		if l.metrics != nil {
			l.metrics.TrackedPIDs.Set(float64(l.states.Len()))
		}
		return
	}

	if l.metrics != nil {
		l.metrics.EventsIngestedTotal.WithLabelValues(e.Type.String()).Inc()
	}

	// 3. Get-or-create process state.
	stats := l.states.GetOrCreate(e.PID, e.Comm, now)
	if l.metrics != nil {
		l.metrics.TrackedPIDs.Set(float64(l.states.Len()))
	}

	// 4. Whitelist short-circuit: no audit, no score.
	if l.whitelist.Contains(stats.Comm) {
		if l.metrics != nil {
			l.metrics.EventsWhitelistedTotal.Inc()
		}
		return
	}

	// 5. Audit every non-whitelisted event.
	l.log.LogAudit(e.Type.String(), e.PID, e.PPID, e.UID, stats.Comm, e.Filename)

	// 6. Score.
	report := l.heuristic.Apply(stats, e, l.cfg, now)
	if l.metrics != nil {
		l.metrics.ScoreHistogram.Observe(float64(report.NewScore))
	}

	// 7. Respond to an alarm.
	if report.IsAlarm {
		if l.metrics != nil {
			l.metrics.AlarmsTotal.WithLabelValues(scorer.FormatReason(report)).Inc()
		}
		l.responder.React(stats, e, report.RiskReason, report.NewScore)
	}
}
