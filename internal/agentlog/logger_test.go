package agentlog_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/ransom-agent/ransom-agentd/internal/agentlog"
)

func TestLogAuditWritesValidJSONLines(t *testing.T) {
	dir := t.TempDir()
	auditPath := filepath.Join(dir, "audit.json")

	log, err := agentlog.New(agentlog.Config{AuditLogPath: auditPath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Sync()

	log.LogAudit("WRITE", 100, 1, 0, "bash", "/home/user/file.txt")
	log.LogAudit("RENAME", 100, 1, 0, "bash", "/home/user/file.txt.locked")

	f, err := os.Open(auditPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	var lines int
	for sc.Scan() {
		lines++
		var rec agentlog.AuditRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			t.Fatalf("line %d: invalid JSON: %v", lines, err)
		}
		if rec.PID != 100 {
			t.Errorf("line %d: PID = %d, want 100", lines, rec.PID)
		}
	}
	if lines != 2 {
		t.Fatalf("got %d audit lines, want 2", lines)
	}
}

func TestLogAlertWritesScoreAndReason(t *testing.T) {
	dir := t.TempDir()
	alertPath := filepath.Join(dir, "alerts.json")

	log, err := agentlog.New(agentlog.Config{AlertLogPath: alertPath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Sync()

	log.LogAlert("RANSOMWARE_DETECTED", 200, 1, 0, "evil", "/etc/passwd",
		"RISK THRESHOLD EXCEEDED", 150)

	data, err := os.ReadFile(alertPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var rec agentlog.AlertRecord
	lines := splitLines(data)
	if len(lines) != 1 {
		t.Fatalf("got %d alert lines, want 1", len(lines))
	}
	if err := json.Unmarshal(lines[0], &rec); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if rec.Score != 150 || rec.AlertType != "RANSOMWARE_DETECTED" || rec.Level != "ALARM" {
		t.Errorf("unexpected record: %+v", rec)
	}
}

func TestServiceLogFileHasNoANSIEscapes(t *testing.T) {
	dir := t.TempDir()
	servicePath := filepath.Join(dir, "service.log")

	log, err := agentlog.New(agentlog.Config{ServiceLogPath: servicePath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("hello")
	log.Warn("careful")
	log.Error("trouble")
	log.Sync()

	data, err := os.ReadFile(servicePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if strings.Contains(string(data), "\x1b[") {
		t.Fatalf("service log file must stay plain text, found an ANSI escape sequence:\n%s", data)
	}
	if !strings.Contains(string(data), "INFO") || !strings.Contains(string(data), "WARN") || !strings.Contains(string(data), "ERROR") {
		t.Fatalf("expected plain level names in service log file, got:\n%s", data)
	}
}

func TestServiceLineFormat(t *testing.T) {
	dir := t.TempDir()
	servicePath := filepath.Join(dir, "service.log")

	log, err := agentlog.New(agentlog.Config{ServiceLogPath: servicePath})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("engine ready")
	log.Alarm("ransomware behavior detected")
	log.Sync()

	data, err := os.ReadFile(servicePath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d service lines, want 2:\n%s", len(lines), data)
	}

	lineFormat := regexp.MustCompile(`^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}\] \[[A-Z]+\] \[\d+\] `)
	for i, line := range lines {
		if !lineFormat.MatchString(line) {
			t.Errorf("line %d does not match [timestamp] [LEVEL] [pid] message: %q", i+1, line)
		}
	}
	if !strings.Contains(lines[0], "[INFO]") {
		t.Errorf("first line missing [INFO]: %q", lines[0])
	}
	if !strings.Contains(lines[1], "[ALARM]") {
		t.Errorf("alarm line missing [ALARM] level: %q", lines[1])
	}
}

func TestDisabledSinksAreNoop(t *testing.T) {
	log, err := agentlog.New(agentlog.Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer log.Sync()
	// Must not panic when audit/alert paths are empty.
	log.LogAudit("WRITE", 1, 1, 0, "x", "y")
	log.LogAlert("KILL_PREVENTED", 1, 1, 0, "x", "y", "reason", 0)
}

func splitLines(data []byte) [][]byte {
	var out [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				out = append(out, data[start:i])
			}
			start = i + 1
		}
	}
	return out
}
