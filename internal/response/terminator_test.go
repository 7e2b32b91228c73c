package response_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ransom-agent/ransom-agentd/internal/response"
	"github.com/ransom-agent/ransom-agentd/internal/whitelist"
)

func TestTerminateRefusesPIDOneAndZero(t *testing.T) {
	term := response.NewTerminator(whitelist.New(""), nil)

	for _, pid := range []int32{0, 1} {
		res := term.Terminate(pid, "init")
		if res.Outcome != response.OutcomePrevented || res.Reason != response.ReasonCriticalProcess {
			t.Errorf("pid %d: got %+v, want critical-process prevention", pid, res)
		}
	}
}

func TestTerminateRefusesWhitelistedComm(t *testing.T) {
	term := response.NewTerminator(whitelist.New("dpkg,apt"), nil)
	res := term.Terminate(500, "dpkg")
	if res.Outcome != response.OutcomePrevented || res.Reason != response.ReasonWhitelisted {
		t.Fatalf("got %+v, want whitelist prevention", res)
	}
}

func TestTerminateRespectsExhaustedBudget(t *testing.T) {
	budget := response.NewKillBudget(1, time.Hour)
	defer budget.Close()

	term := response.NewTerminator(whitelist.New(""), budget)
	// Stub out signal delivery so the test never signals a real PID.
	response.SetKillFuncForTest(term, func(pid int, sig int) error { return nil })

	first := term.Terminate(500, "evil")
	if first.Outcome != response.OutcomeKilled {
		t.Fatalf("first kill attempt got %+v, want OutcomeKilled", first)
	}

	second := term.Terminate(501, "evil")
	if second.Outcome != response.OutcomePrevented || second.Reason != response.ReasonBudgetExhausted {
		t.Fatalf("second attempt got %+v, want budget exhaustion", second)
	}
}

func TestTerminateReportsKillFailure(t *testing.T) {
	budget := response.NewKillBudget(10, time.Hour)
	defer budget.Close()

	term := response.NewTerminator(whitelist.New(""), budget)
	response.SetKillFuncForTest(term, func(pid int, sig int) error {
		return errors.New("no such process")
	})

	res := term.Terminate(999999, "ghost")
	if res.Outcome != response.OutcomeFailed {
		t.Fatalf("got %+v, want OutcomeFailed", res)
	}
	if res.Err == nil {
		t.Error("expected Err to be set on failure")
	}
}
