package response_test

import (
	"testing"
	"time"

	"github.com/ransom-agent/ransom-agentd/internal/response"
)

func TestKillBudgetAllowsUpToCapacity(t *testing.T) {
	b := response.NewKillBudget(3, time.Hour)
	defer b.Close()

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("attempt %d: expected Allow to succeed", i)
		}
	}
	if b.Allow() {
		t.Fatal("expected 4th attempt to be denied")
	}
}

func TestKillBudgetRemainingDecrements(t *testing.T) {
	b := response.NewKillBudget(2, time.Hour)
	defer b.Close()

	if r := b.Remaining(); r != 2 {
		t.Fatalf("Remaining = %d, want 2", r)
	}
	b.Allow()
	if r := b.Remaining(); r != 1 {
		t.Fatalf("Remaining = %d, want 1", r)
	}
}
