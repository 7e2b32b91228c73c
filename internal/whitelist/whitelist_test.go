package whitelist_test

import (
	"testing"

	"github.com/ransom-agent/ransom-agentd/internal/whitelist"
)

func TestContains(t *testing.T) {
	w := whitelist.New("apt,dpkg,systemd")
	for _, name := range []string{"apt", "dpkg", "systemd"} {
		if !w.Contains(name) {
			t.Errorf("Contains(%q) = false, want true", name)
		}
	}
	if w.Contains("ransomware.exe") {
		t.Error("Contains(ransomware.exe) = true, want false")
	}
}

func TestEmptyWhitelistMatchesNothing(t *testing.T) {
	w := whitelist.New("")
	if w.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", w.Len())
	}
	if w.Contains("anything") {
		t.Error("empty whitelist should match nothing")
	}
}

func TestNoTrimming(t *testing.T) {
	w := whitelist.New("apt, dpkg")
	if w.Contains("dpkg") {
		t.Error("Contains(\"dpkg\") should be false — the token is \" dpkg\" with a leading space")
	}
	if !w.Contains(" dpkg") {
		t.Error("Contains(\" dpkg\") should be true — whitespace is not trimmed")
	}
}

func TestNilWhitelist(t *testing.T) {
	var w *whitelist.Whitelist
	if w.Contains("anything") {
		t.Error("nil Whitelist should never match")
	}
	if w.Len() != 0 {
		t.Error("nil Whitelist Len() should be 0")
	}
}
