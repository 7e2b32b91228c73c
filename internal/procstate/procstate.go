// Package procstate tracks per-process behavioral statistics used by the
// heuristic scorer.
//
// Manager is deliberately not safe for concurrent use: the ingest loop owns
// it exclusively and calls its methods from a single goroutine. There is no
// background eviction — entries are removed only on an explicit EXIT event
// for their PID, or all at once by Drain during shutdown.
package procstate

import "time"

// Stats holds the behavioral counters and risk score for one tracked PID.
type Stats struct {
	PID  uint32
	Comm string

	TotalWriteCount uint64
	WriteBurst      uint64
	RenameBurst     uint64

	WindowStart   time.Time
	LastDecayTime time.Time

	CurrentScore int
}

// Manager is a PID-keyed table of Stats.
type Manager struct {
	procs map[uint32]*Stats
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{procs: make(map[uint32]*Stats)}
}

// maxCommLen bounds stored comm values to the kernel's TASK_COMM_LEN minus
// the trailing NUL.
const maxCommLen = 15

// GetOrCreate returns the Stats for pid, creating and initializing a new
// entry (comm, zeroed counters, timestamps set to now) if none exists yet.
func (m *Manager) GetOrCreate(pid uint32, comm string, now time.Time) *Stats {
	if s, ok := m.procs[pid]; ok {
		return s
	}
	if len(comm) > maxCommLen {
		comm = comm[:maxCommLen]
	}
	s := &Stats{
		PID:           pid,
		Comm:          comm,
		WindowStart:   now,
		LastDecayTime: now,
	}
	m.procs[pid] = s
	return s
}

// Remove deletes the tracked state for pid, if present. Idempotent.
func (m *Manager) Remove(pid uint32) {
	delete(m.procs, pid)
}

// Len returns the number of currently tracked PIDs.
func (m *Manager) Len() int {
	return len(m.procs)
}

// Drain removes and returns all tracked Stats, used only during shutdown
// for final logging/metrics flush.
func (m *Manager) Drain() []*Stats {
	out := make([]*Stats, 0, len(m.procs))
	for _, s := range m.procs {
		out = append(out, s)
	}
	m.procs = make(map[uint32]*Stats)
	return out
}
