// Package agentlog implements the agent's three independent log channels:
//
//   - Service: human-readable operational log, mirrored to the console.
//   - Audit: JSON-lines record of every raw event that passed the whitelist.
//   - Alert: JSON-lines record of high-severity detections and responses.
//
// Durability: ERROR/ALARM service records and every audit/alert record are
// flushed synchronously. INFO/DEBUG/WARN service records may be buffered by
// the underlying writer and are best-effort.
package agentlog

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI color codes for the console mirror.
const (
	ansiColorReset  = "\x1b[0m"
	ansiColorRed    = "\x1b[31m"
	ansiColorGreen  = "\x1b[32m"
	ansiColorYellow = "\x1b[33m"
	ansiColorBlue   = "\x1b[34m"
)

// levelName maps zap levels to the service log's level vocabulary. zap has
// no ALARM level, so DPanicLevel is repurposed for it: the Logger is built
// without development mode, where DPanic logs and returns instead of
// panicking.
func levelName(l zapcore.Level) string {
	if l == zapcore.DPanicLevel {
		return "ALARM"
	}
	return l.CapitalString()
}

// levelColorEncoder writes the bracketed level name in that level's console
// color: INFO green, WARN yellow, ERROR/ALARM red, DEBUG blue.
func levelColorEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	var color string
	switch l {
	case zapcore.DebugLevel:
		color = ansiColorBlue
	case zapcore.InfoLevel:
		color = ansiColorGreen
	case zapcore.WarnLevel:
		color = ansiColorYellow
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		color = ansiColorRed
	default:
		color = ansiColorReset
	}
	enc.AppendString("[" + color + levelName(l) + ansiColorReset + "]")
}

// levelPlainEncoder is the file-sink counterpart: same bracketed level name,
// no color.
func levelPlainEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + levelName(l) + "]")
}

// bracketNameEncoder renders the logger name (the agent's own PID) as the
// third bracketed column of the service line.
func bracketNameEncoder(name string, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + name + "]")
}

// Logger owns the three log sinks for the agent's lifetime.
type Logger struct {
	service *zap.Logger
	sync    func() error

	audit *fileSink
	alert *fileSink
}

// fileSink is a simple append-mode file writer; every write is followed by
// an fsync so a record is durable before the call returns.
type fileSink struct {
	f *os.File
}

func openSink(path string) (*fileSink, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("agentlog: open %q: %w", path, err)
	}
	return &fileSink{f: f}, nil
}

func (s *fileSink) writeLine(b []byte) error {
	if s == nil {
		return nil
	}
	b = append(b, '\n')
	if _, err := s.f.Write(b); err != nil {
		return err
	}
	return s.f.Sync()
}

func (s *fileSink) close() error {
	if s == nil {
		return nil
	}
	return s.f.Close()
}

// Config carries the three sink paths and the verbose flag needed to build
// a Logger. Kept separate from internal/config.Config so this package does
// not import it (avoids an import cycle with packages that log config
// errors).
type Config struct {
	ServiceLogPath string
	AuditLogPath   string
	AlertLogPath   string
	Verbose        bool
}

// New opens all three sinks and returns a ready Logger.
// A failure to open the service log falls back to console-only output with
// a warning; audit/alert open failures disable that sink only — matching
// the "recoverable runtime" error class for log-sink failures.
func New(cfg Config) (*Logger, error) {
	// Service line format: [YYYY-MM-DD HH:MM:SS.mmm] [LEVEL] [pid] message.
	// The pid column rides on zap's logger name (set below via Named).
	baseCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		NameKey:          "pid",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("[2006-01-02 15:04:05.000]"),
		EncodeName:       bracketNameEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}

	// The console mirror colors by level (INFO green, WARN yellow,
	// ERROR/ALARM red, DEBUG blue); the service log file stays plain text.
	consoleCfg := baseCfg
	consoleCfg.EncodeLevel = levelColorEncoder
	fileCfg := baseCfg
	fileCfg.EncodeLevel = levelPlainEncoder

	level := zap.InfoLevel
	if cfg.Verbose {
		level = zap.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level),
	}

	fileClose := func() error { return nil }
	var serviceOpenErr error
	if cfg.ServiceLogPath != "" {
		// An open failure degrades to console-only output; not fatal.
		if f, err := os.OpenFile(cfg.ServiceLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(fileCfg), zapcore.AddSync(f), level))
			fileClose = f.Close
		} else {
			serviceOpenErr = err
		}
	}

	core := zapcore.NewTee(cores...)
	service := zap.New(core).Named(strconv.Itoa(os.Getpid()))
	if serviceOpenErr != nil {
		service.Warn("service log file disabled, console output only", zap.Error(serviceOpenErr))
	}

	audit, err := openSink(cfg.AuditLogPath)
	if err != nil {
		service.Warn("audit log sink disabled", zap.Error(err))
	}
	alert, err := openSink(cfg.AlertLogPath)
	if err != nil {
		service.Warn("alert log sink disabled", zap.Error(err))
	}

	return &Logger{
		service: service,
		sync:    func() error { _ = service.Sync(); return fileClose() },
		audit:   audit,
		alert:   alert,
	}, nil
}

// Sync flushes and then closes all sinks; the file sinks are not usable
// afterwards. Call during graceful and crash shutdown.
func (l *Logger) Sync() {
	if l == nil {
		return
	}
	_ = l.sync()
	_ = l.audit.close()
	_ = l.alert.close()
}

func (l *Logger) Info(msg string, fields ...zap.Field)  { l.service.Info(msg, fields...) }
func (l *Logger) Debug(msg string, fields ...zap.Field) { l.service.Debug(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.service.Warn(msg, fields...) }

// Error logs and flushes: ERROR records must reach the OS before the call
// returns.
func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.service.Error(msg, fields...)
	_ = l.service.Sync()
}

// Alarm logs a service-level ALARM message, always flushed. Rendered at
// zap's DPanic level, which the encoders print as ALARM; the logger is not
// in development mode, so DPanic does not panic.
func (l *Logger) Alarm(msg string, fields ...zap.Field) {
	l.service.DPanic(msg, fields...)
	_ = l.service.Sync()
}

// AuditRecord is the exact JSON schema written to the audit log.
type AuditRecord struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	PID       uint32 `json:"pid"`
	PPID      uint32 `json:"ppid"`
	UID       uint32 `json:"uid"`
	Comm      string `json:"comm"`
	Filename  string `json:"filename"`
}

// LogAudit appends a raw-event record to the audit log. A disabled or
// failed sink is a silent no-op (audit logging is best-effort, never
// blocking the detection pipeline).
func (l *Logger) LogAudit(eventType string, pid, ppid, uid uint32, comm, filename string) {
	if l.audit == nil {
		return
	}
	rec := AuditRecord{
		Timestamp: timestamp(),
		Type:      eventType,
		PID:       pid,
		PPID:      ppid,
		UID:       uid,
		Comm:      comm,
		Filename:  filename,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := l.audit.writeLine(b); err != nil {
		l.service.Warn("audit log write failed", zap.Error(err))
	}
}

// AlertRecord is the exact JSON schema written to the alert log.
type AlertRecord struct {
	Timestamp  string `json:"timestamp"`
	Level      string `json:"level"`
	AlertType  string `json:"alert_type"`
	PID        uint32 `json:"pid"`
	PPID       uint32 `json:"ppid"`
	UID        uint32 `json:"uid"`
	Comm       string `json:"comm"`
	Filename   string `json:"filename"`
	RiskReason string `json:"risk_reason"`
	Score      int    `json:"score"`
}

// LogAlert appends a high-severity alert record to the alert log. Always
// flushed synchronously (fileSink.writeLine calls fsync).
func (l *Logger) LogAlert(alertType string, pid, ppid, uid uint32, comm, filename, riskReason string, score int) {
	if l.alert == nil {
		return
	}
	rec := AlertRecord{
		Timestamp:  timestamp(),
		Level:      "ALARM",
		AlertType:  alertType,
		PID:        pid,
		PPID:       ppid,
		UID:        uid,
		Comm:       comm,
		Filename:   filename,
		RiskReason: riskReason,
		Score:      score,
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := l.alert.writeLine(b); err != nil {
		l.service.Warn("alert log write failed", zap.Error(err))
	}
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000")
}
