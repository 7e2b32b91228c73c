package main

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/ransom-agent/ransom-agentd/internal/config"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns
// everything written to it.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	orig := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("io.Copy: %v", err)
	}
	return buf.String()
}

func TestPrintStartupSummaryTruncatesLongWhitelist(t *testing.T) {
	cfg := config.Defaults()
	cfg.WhitelistStr = strings.Repeat("a", 80)
	cfg.RiskThreshold = 50

	out := captureStdout(t, func() { printStartupSummary(cfg, "test-source") })

	if !strings.Contains(out, "Total 80 chars") {
		t.Fatalf("expected truncated whitelist summary with char count, got:\n%s", out)
	}
	if strings.Contains(out, strings.Repeat("a", 80)) {
		t.Fatalf("expected whitelist string to be truncated, but full string appears in output")
	}
}

func TestPrintStartupSummaryShowsEmptyWhitelist(t *testing.T) {
	cfg := config.Defaults()
	cfg.WhitelistStr = ""

	out := captureStdout(t, func() { printStartupSummary(cfg, "test-source") })

	if !strings.Contains(out, "[EMPTY]") {
		t.Fatalf("expected [EMPTY] marker for blank whitelist, got:\n%s", out)
	}
}

func TestPrintStartupSummaryShowsShortWhitelistVerbatim(t *testing.T) {
	cfg := config.Defaults()
	cfg.WhitelistStr = "systemd,sshd"

	out := captureStdout(t, func() { printStartupSummary(cfg, "test-source") })

	if !strings.Contains(out, "systemd,sshd") {
		t.Fatalf("expected short whitelist string verbatim, got:\n%s", out)
	}
}
