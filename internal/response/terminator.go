// Package response implements the Response Controller: the component that
// turns a scorer alarm into a logged alert and, when active-blocking mode is
// enabled, an attempt to terminate the offending process.
package response

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/ransom-agent/ransom-agentd/internal/whitelist"
)

// Outcome classifies what happened when the controller handled an alarm.
type Outcome int

const (
	// OutcomeAlertOnly means no termination was attempted, either because
	// active-blocking is disabled or the alarm is informational only.
	OutcomeAlertOnly Outcome = iota
	// OutcomePrevented means termination was attempted but a safety filter
	// or the kill budget blocked it.
	OutcomePrevented
	// OutcomeKilled means SIGKILL was delivered successfully.
	OutcomeKilled
	// OutcomeFailed means SIGKILL delivery itself returned an error (the
	// process likely already exited).
	OutcomeFailed
)

// Result describes the outcome of a single Terminate call, with enough
// detail for the caller to log an alert and update metrics.
type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

// Reasons reported on KILL_PREVENTED alerts.
const (
	ReasonCriticalProcess = "Critical System Process Protection"
	ReasonWhitelisted     = "Whitelisted Process Protection"
	ReasonBudgetExhausted = "Kill-Rate Budget Exhausted"
)

// Terminator sends SIGKILL to processes flagged by the scorer, subject to
// safety filters that can never be bypassed by configuration: a PID of 0 or
// 1 is never a legitimate target, and a whitelisted command is re-checked
// here even though it should already have been filtered upstream, because a
// comm can be reused by a different binary between the whitelist check at
// ingest time and an alarm firing later in the same process's lifetime.
type Terminator struct {
	whitelist *whitelist.Whitelist
	budget    *KillBudget
	kill      func(pid int, sig unix.Signal) error
}

// NewTerminator builds a Terminator. budget may be nil to disable kill-rate
// limiting (unbounded kills). config.Validate rejects a KILL_BUDGET_CAPACITY
// below 1, so the agent itself always passes a non-nil budget.
func NewTerminator(wl *whitelist.Whitelist, budget *KillBudget) *Terminator {
	return &Terminator{
		whitelist: wl,
		budget:    budget,
		kill:      unix.Kill,
	}
}

// Terminate attempts to kill pid, running it through the critical-process
// filter and comm through the whitelist first, then checking the kill
// budget, then delivering SIGKILL. Filters run in this fixed order:
// critical-process protection, whitelist protection, kill-rate budget. The
// first one that blocks the attempt decides the Result; the filters after
// it are not evaluated.
func (t *Terminator) Terminate(pid int32, comm string) Result {
	if pid <= 1 {
		return Result{Outcome: OutcomePrevented, Reason: ReasonCriticalProcess}
	}

	if t.whitelist.Contains(comm) {
		return Result{Outcome: OutcomePrevented, Reason: ReasonWhitelisted}
	}

	if t.budget != nil && !t.budget.Allow() {
		return Result{Outcome: OutcomePrevented, Reason: ReasonBudgetExhausted}
	}

	if err := t.kill(int(pid), unix.SIGKILL); err != nil {
		return Result{Outcome: OutcomeFailed, Reason: fmt.Sprintf("kill(%d): %v", pid, err), Err: err}
	}

	return Result{Outcome: OutcomeKilled, Reason: "SIGKILL delivered"}
}
