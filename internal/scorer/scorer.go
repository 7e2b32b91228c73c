// Package scorer implements the heuristic risk-scoring algorithm at the
// heart of the detection engine.
//
// The algorithm is a deterministic function of the current process state,
// the incoming event, and the active configuration: given the same inputs
// it always produces the same Report. There is no statistical model,
// training phase, or hidden state beyond what is visible in ProcessStats.
package scorer

import (
	"math"
	"strings"
	"time"

	"github.com/ransom-agent/ransom-agentd/internal/config"
	"github.com/ransom-agent/ransom-agentd/internal/kevent"
	"github.com/ransom-agent/ransom-agentd/internal/procstate"
)

// suspiciousExtensions are file suffixes strongly associated with
// ransomware encryption payloads.
var suspiciousExtensions = []string{
	".locked", ".enc", ".cry", ".crypto", ".crypted", ".wanna", ".dark",
}

// Report describes the outcome of scoring a single event against a
// process's current state.
type Report struct {
	ScoreGained int
	NewScore    int
	RiskReason  string
	IsAlarm     bool
}

// Heuristic scores one event against a process's tracked state, mutating
// the process's CurrentScore (and burst counters) in place and returning a
// Report describing what happened. Implementations must be deterministic.
type Heuristic interface {
	Apply(s *procstate.Stats, e kevent.Event, cfg config.Config, now time.Time) Report
}

// Default is the built-in heuristic: time decay, per-event-type weights,
// honeypot bonus, directory-sensitivity multipliers, and extension penalties
// feeding a single cumulative score per process.
type Default struct{}

// Apply implements Heuristic.
func (Default) Apply(s *procstate.Stats, e kevent.Event, cfg config.Config, now time.Time) Report {
	applyDecay(s, now)

	scoreGained := 0
	riskReason := ""

	switch e.Type {
	case kevent.TypeWrite:
		s.WriteBurst++
		s.TotalWriteCount++
		scoreGained = cfg.ScoreWrite
		if isHoneypotAccess(e.Filename, cfg.HoneypotFile) {
			scoreGained += cfg.ScoreHoneypot
			riskReason = "HONEYPOT WRITE"
		}

	case kevent.TypeRename:
		s.RenameBurst++
		scoreGained = cfg.ScoreRename
		if isHoneypotAccess(e.Filename, cfg.HoneypotFile) {
			scoreGained += cfg.ScoreHoneypot
			riskReason = "HONEYPOT RENAME"
		}

	case kevent.TypeUnlink:
		scoreGained = cfg.ScoreUnlink

	case kevent.TypeOpen:
		if isHoneypotAccess(e.Filename, cfg.HoneypotFile) {
			scoreGained += cfg.ScoreHoneypot
			riskReason = "HONEYPOT ACCESS"
		}
	}

	// Directory sensitivity multiplier.
	multiplier := pathMultiplier(e.Filename)
	scoreGained = int(float64(scoreGained) * multiplier)

	// Suspicious extension penalty.
	if (e.Type == kevent.TypeRename || e.Type == kevent.TypeWrite) && hasSuspiciousExtension(e.Filename) {
		scoreGained += cfg.ScoreExtPenalty
		if riskReason == "" {
			riskReason = "SUSPICIOUS EXTENSION"
		}
	}

	s.CurrentScore += scoreGained
	if s.CurrentScore > math.MaxInt32 {
		s.CurrentScore = math.MaxInt32
	}

	isAlarm := false
	if riskReason == "" {
		if s.CurrentScore >= cfg.RiskThreshold {
			isAlarm = true
			riskReason = "RISK THRESHOLD EXCEEDED"
		}
	} else if s.CurrentScore >= cfg.RiskThreshold {
		isAlarm = true
	}

	report := Report{
		ScoreGained: scoreGained,
		NewScore:    s.CurrentScore,
		RiskReason:  riskReason,
		IsAlarm:     isAlarm,
	}

	if isAlarm {
		s.CurrentScore = 0
		s.WriteBurst = 0
		s.RenameBurst = 0
		s.LastDecayTime = now
	}

	return report
}

// applyDecay reduces CurrentScore by 10% per elapsed second since the last
// decay, flooring to at least 1 point removed whenever the score is
// positive and the computed decay would otherwise round to zero. Burst
// counters reset once the score reaches zero.
func applyDecay(s *procstate.Stats, now time.Time) {
	diff := now.Sub(s.LastDecayTime).Seconds()
	if diff < 1.0 {
		return
	}

	decayAmount := int(float64(s.CurrentScore) * 0.10 * diff)
	if s.CurrentScore > 0 && decayAmount == 0 {
		decayAmount = 1
	}

	s.CurrentScore -= decayAmount
	if s.CurrentScore < 0 {
		s.CurrentScore = 0
	}
	if s.CurrentScore == 0 {
		s.WriteBurst = 0
		s.RenameBurst = 0
	}
	s.LastDecayTime = now
}

// hasSuspiciousExtension reports whether filename ends with a known
// ransomware payload extension.
func hasSuspiciousExtension(filename string) bool {
	for _, ext := range suspiciousExtensions {
		if len(filename) > len(ext) && strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

// isHoneypotAccess reports whether filename references the configured
// honeypot file. Substring match, not exact path equality, so the honeypot
// token matches regardless of the directory it was planted in.
func isHoneypotAccess(filename, honeypotFile string) bool {
	if honeypotFile == "" || filename == "" {
		return false
	}
	return strings.Contains(filename, honeypotFile)
}

// pathMultiplier returns the directory-sensitivity multiplier for filename.
func pathMultiplier(filename string) float64 {
	switch {
	case filename == "":
		return 1.0
	case strings.HasPrefix(filename, "/home"):
		return 2.0
	case strings.HasPrefix(filename, "/etc"):
		return 5.0
	case strings.HasPrefix(filename, "/var/www"):
		return 2.0
	case strings.HasPrefix(filename, "/tmp"):
		return 0.5
	default:
		return 1.0
	}
}

// FormatReason is a small helper so callers building log lines do not need
// to special-case an empty RiskReason on a non-alarm Report.
func FormatReason(r Report) string {
	if r.RiskReason == "" {
		return "none"
	}
	return r.RiskReason
}
