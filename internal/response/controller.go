package response

import (
	"go.uber.org/zap"

	"github.com/ransom-agent/ransom-agentd/internal/agentlog"
	"github.com/ransom-agent/ransom-agentd/internal/kevent"
	"github.com/ransom-agent/ransom-agentd/internal/ledger"
	"github.com/ransom-agent/ransom-agentd/internal/metrics"
	"github.com/ransom-agent/ransom-agentd/internal/procstate"
)

// Alert type strings written to the alert log and incident ledger.
const (
	AlertRansomwareDetected = "RANSOMWARE_DETECTED"
	AlertProcessKilled      = "PROCESS_KILLED"
	AlertKillFailed         = "KILL_FAILED"
	AlertKillPrevented      = "KILL_PREVENTED"
)

// Controller is the Response Controller: it always logs an alarm and alert
// record, and when active-blocking is enabled, hands the process to the
// Terminator.
type Controller struct {
	log            *agentlog.Logger
	terminator     *Terminator
	activeBlocking bool
	ledger         *ledger.DB // optional; nil disables ledger mirroring
	metrics        *metrics.Metrics // optional; nil disables kill-outcome metrics
}

// SetMetrics attaches a metrics sink for kill-outcome counters and the
// kill-budget gauge. Optional; omit to run without metrics.
func (c *Controller) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

// NewController builds a Controller. ledgerDB may be nil to disable incident
// ledger mirroring.
func NewController(log *agentlog.Logger, terminator *Terminator, activeBlocking bool, ledgerDB *ledger.DB) *Controller {
	return &Controller{
		log:            log,
		terminator:     terminator,
		activeBlocking: activeBlocking,
		ledger:         ledgerDB,
	}
}

// React implements the Response Controller contract: always emit an ALARM
// log line and a RANSOMWARE_DETECTED alert; if active-blocking is enabled,
// invoke the Terminator and emit the outcome as a further alert.
func (c *Controller) React(s *procstate.Stats, e kevent.Event, riskReason string, score int) {
	c.log.Alarm("ransomware behavior detected",
		zap.Uint32("pid", s.PID),
		zap.String("comm", s.Comm),
		zap.String("risk_reason", riskReason),
		zap.Int("score", score),
	)
	c.emit(AlertRansomwareDetected, s, e, riskReason, score)

	if !c.activeBlocking {
		return
	}

	res := c.terminator.Terminate(int32(s.PID), s.Comm)
	switch res.Outcome {
	case OutcomeKilled:
		c.emit(AlertProcessKilled, s, e, riskReason, score)
		c.observeOutcome("killed")
	case OutcomeFailed:
		c.emit(AlertKillFailed, s, e, res.Reason, score)
		c.observeOutcome("failed")
	case OutcomePrevented:
		c.emit(AlertKillPrevented, s, e, res.Reason, score)
		c.observeOutcome("prevented")
	}

	if c.metrics != nil && c.terminator.budget != nil {
		c.metrics.KillBudgetTokensRemaining.Set(float64(c.terminator.budget.Remaining()))
	}
}

func (c *Controller) observeOutcome(outcome string) {
	if c.metrics != nil {
		c.metrics.KillOutcomesTotal.WithLabelValues(outcome).Inc()
	}
}

// emit writes an alert record to the alert log and, if enabled, mirrors it
// into the incident ledger. A ledger write failure is logged and never
// blocks the response path.
func (c *Controller) emit(alertType string, s *procstate.Stats, e kevent.Event, riskReason string, score int) {
	c.log.LogAlert(alertType, s.PID, e.PPID, e.UID, s.Comm, e.Filename, riskReason, score)

	if c.ledger == nil {
		return
	}
	entry := ledger.Entry{
		PID:        s.PID,
		PPID:       e.PPID,
		UID:        e.UID,
		Comm:       s.Comm,
		Filename:   e.Filename,
		RiskReason: riskReason,
		Score:      score,
		Outcome:    alertType,
	}
	if err := c.ledger.Append(entry); err != nil {
		c.log.Warn("incident ledger write failed", zap.Error(err))
	}
}
