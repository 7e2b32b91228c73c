package response_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ransom-agent/ransom-agentd/internal/agentlog"
	"github.com/ransom-agent/ransom-agentd/internal/kevent"
	"github.com/ransom-agent/ransom-agentd/internal/procstate"
	"github.com/ransom-agent/ransom-agentd/internal/response"
	"github.com/ransom-agent/ransom-agentd/internal/whitelist"
)

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	n := 0
	for sc.Scan() {
		n++
	}
	return n
}

func lastLine(t *testing.T, path string) agentlog.AlertRecord {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	var last string
	for sc.Scan() {
		last = sc.Text()
	}
	var rec agentlog.AlertRecord
	if err := json.Unmarshal([]byte(last), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", last, err)
	}
	return rec
}

func TestReactAlertOnlyWhenBlockingDisabled(t *testing.T) {
	dir := t.TempDir()
	alertPath := filepath.Join(dir, "alerts.json")
	log, err := agentlog.New(agentlog.Config{AlertLogPath: alertPath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Sync()

	term := response.NewTerminator(whitelist.New(""), nil)
	ctrl := response.NewController(log, term, false, nil)

	s := &procstate.Stats{PID: 500, Comm: "evil"}
	ctrl.React(s, kevent.Event{Type: kevent.TypeWrite, Filename: "/etc/passwd"}, "HONEYPOT WRITE", 200)

	if n := countLines(t, alertPath); n != 1 {
		t.Fatalf("got %d alert lines, want 1 (alert-only, no termination attempt)", n)
	}
	rec := lastLine(t, alertPath)
	if rec.AlertType != response.AlertRansomwareDetected {
		t.Errorf("AlertType = %q, want %q", rec.AlertType, response.AlertRansomwareDetected)
	}
}

func TestReactPreventedOnCriticalPID(t *testing.T) {
	dir := t.TempDir()
	alertPath := filepath.Join(dir, "alerts.json")
	log, err := agentlog.New(agentlog.Config{AlertLogPath: alertPath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Sync()

	term := response.NewTerminator(whitelist.New(""), nil)
	ctrl := response.NewController(log, term, true, nil)

	s := &procstate.Stats{PID: 1, Comm: "init"}
	ctrl.React(s, kevent.Event{Type: kevent.TypeUnlink, Filename: "/etc/shadow"}, "RISK THRESHOLD EXCEEDED", 999)

	if n := countLines(t, alertPath); n != 2 {
		t.Fatalf("got %d alert lines, want 2 (detected + prevented)", n)
	}
	rec := lastLine(t, alertPath)
	if rec.AlertType != response.AlertKillPrevented || rec.RiskReason != response.ReasonCriticalProcess {
		t.Errorf("got %+v, want KILL_PREVENTED/%s", rec, response.ReasonCriticalProcess)
	}
}
