// Package config provides configuration loading, validation, and the
// default-search-path resolution for the detection agent.
//
// Configuration file format: line-oriented KEY=VALUE (not YAML/JSON). Lines
// starting with '#' and blank lines are ignored. Unknown keys are ignored,
// so older config files remain valid after new keys are introduced.
//
// Default search order (first existing file wins):
//
//	1. the path passed via -c/--config (fatal if it does not exist)
//	2. ./ransom.conf
//	3. /etc/ransom-bpf/ransom.conf
//	4. embedded defaults (no file found — not an error)
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Version, GitCommit, BuildTime are injected by the build via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Config is the root configuration for the detection engine.
type Config struct {
	// --- Timing & thresholds ---
	WindowSec     int
	RiskThreshold int

	// --- Risk scoring weights ---
	ScoreWrite      int
	ScoreRename     int
	ScoreUnlink     int
	ScoreHoneypot   int
	ScoreExtPenalty int

	// --- Operational flags ---
	ActiveBlocking bool
	VerboseMode    bool

	// --- Paths & strings ---
	ServiceLog    string
	AlertLog      string
	AuditLog      string
	WhitelistStr  string
	HoneypotFile  string
	ConfigPath    string

	// --- Metrics, ledger, and kill-rate limiting ---
	MetricsAddr         string
	LedgerDB            string
	LedgerRetentionDays int
	KillBudgetCapacity  int
	KillBudgetRefillSec int
	BPFPinPath          string
}

// Default log file paths.
const (
	DefaultServiceLog = "./service.log"
	DefaultAlertLog   = "./alerts.json"
	DefaultAuditLog   = "./audit.json"

	DefaultLocalConfigPath  = "ransom.conf"
	DefaultSystemConfigPath = "/etc/ransom-bpf/ransom.conf"
)

// Defaults returns a Config populated with the engine's built-in defaults.
func Defaults() Config {
	return Config{
		WindowSec:     5,
		RiskThreshold: 100,

		ScoreWrite:      2,
		ScoreRename:     20,
		ScoreUnlink:     50,
		ScoreHoneypot:   1000,
		ScoreExtPenalty: 50,

		ActiveBlocking: false,
		VerboseMode:    false,

		ServiceLog: DefaultServiceLog,
		AlertLog:   DefaultAlertLog,
		AuditLog:   DefaultAuditLog,

		MetricsAddr:         "127.0.0.1:9301",
		LedgerDB:            "/var/lib/ransom-agentd/ledger.db",
		LedgerRetentionDays: 30,
		KillBudgetCapacity:  20,
		KillBudgetRefillSec: 60,
		BPFPinPath:          "/sys/fs/bpf/ransom-agentd",
	}
}

// ResolvePath implements the default config search order described above.
// It returns the path that should be loaded and whether a file was found at
// all. cliPath is the value of -c/--config, or "" if not given.
func ResolvePath(cliPath string) (path string, found bool, err error) {
	if cliPath != "" {
		if _, statErr := os.Stat(cliPath); statErr != nil {
			return "", false, fmt.Errorf("config: specified file not found: %s", cliPath)
		}
		return cliPath, true, nil
	}
	if _, statErr := os.Stat(DefaultLocalConfigPath); statErr == nil {
		return DefaultLocalConfigPath, true, nil
	}
	if _, statErr := os.Stat(DefaultSystemConfigPath); statErr == nil {
		return DefaultSystemConfigPath, true, nil
	}
	return "", false, nil
}

// Load reads and parses a KEY=VALUE config file starting from Defaults().
// Unknown keys are ignored. Malformed lines (no '=') are skipped.
func Load(path string) (Config, error) {
	cfg := Defaults()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config.Load: open %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimRight(value, "\r\n")
		applyKV(&cfg, key, value)
	}
	if err := sc.Err(); err != nil {
		return cfg, fmt.Errorf("config.Load: read %q: %w", path, err)
	}
	return cfg, nil
}

func applyKV(cfg *Config, key, value string) {
	switch key {
	case "WINDOW_SEC":
		cfg.WindowSec = atoiOr(value, cfg.WindowSec)
	case "RISK_THRESHOLD":
		cfg.RiskThreshold = atoiOr(value, cfg.RiskThreshold)
	case "ACTIVE_BLOCKING":
		cfg.ActiveBlocking = strings.EqualFold(value, "true") || value == "1"
	case "SCORE_WRITE":
		cfg.ScoreWrite = atoiOr(value, cfg.ScoreWrite)
	case "SCORE_RENAME":
		cfg.ScoreRename = atoiOr(value, cfg.ScoreRename)
	case "SCORE_UNLINK":
		cfg.ScoreUnlink = atoiOr(value, cfg.ScoreUnlink)
	case "SCORE_HONEYPOT":
		cfg.ScoreHoneypot = atoiOr(value, cfg.ScoreHoneypot)
	case "SCORE_EXT_PENALTY":
		cfg.ScoreExtPenalty = atoiOr(value, cfg.ScoreExtPenalty)
	case "SERVICE_LOG", "LOG_FILE":
		cfg.ServiceLog = value
	case "ALERT_LOG":
		cfg.AlertLog = value
	case "AUDIT_LOG":
		cfg.AuditLog = value
	case "WHITELIST":
		cfg.WhitelistStr = value
	case "HONEYPOT_FILE":
		cfg.HoneypotFile = value
	case "METRICS_ADDR":
		cfg.MetricsAddr = value
	case "LEDGER_DB":
		cfg.LedgerDB = value
	case "LEDGER_RETENTION_DAYS":
		cfg.LedgerRetentionDays = atoiOr(value, cfg.LedgerRetentionDays)
	case "KILL_BUDGET_CAPACITY":
		cfg.KillBudgetCapacity = atoiOr(value, cfg.KillBudgetCapacity)
	case "KILL_BUDGET_REFILL_SEC":
		cfg.KillBudgetRefillSec = atoiOr(value, cfg.KillBudgetRefillSec)
	case "BPF_PIN_PATH":
		cfg.BPFPinPath = value
	}
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// Validate checks the config for internally consistent values. Returns a
// descriptive error listing every violation found, or nil.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.WindowSec < 1 {
		errs = append(errs, fmt.Sprintf("window_sec must be >= 1, got %d", cfg.WindowSec))
	}
	if cfg.RiskThreshold < 1 {
		errs = append(errs, fmt.Sprintf("risk_threshold must be >= 1, got %d", cfg.RiskThreshold))
	}
	if cfg.ScoreWrite < 0 || cfg.ScoreRename < 0 || cfg.ScoreUnlink < 0 ||
		cfg.ScoreHoneypot < 0 || cfg.ScoreExtPenalty < 0 {
		errs = append(errs, "all score_* values must be >= 0")
	}
	if cfg.KillBudgetCapacity < 1 {
		errs = append(errs, fmt.Sprintf("kill_budget_capacity must be >= 1, got %d", cfg.KillBudgetCapacity))
	}
	if cfg.KillBudgetRefillSec < 1 {
		errs = append(errs, fmt.Sprintf("kill_budget_refill_sec must be >= 1, got %d", cfg.KillBudgetRefillSec))
	}
	if cfg.LedgerRetentionDays < 0 {
		errs = append(errs, fmt.Sprintf("ledger_retention_days must be >= 0, got %d", cfg.LedgerRetentionDays))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// KillBudgetRefillPeriod returns the configured refill period as a Duration.
func (c Config) KillBudgetRefillPeriod() time.Duration {
	return time.Duration(c.KillBudgetRefillSec) * time.Second
}
