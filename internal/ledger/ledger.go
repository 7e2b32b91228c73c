// Package ledger implements the agent's optional incident ledger: a
// persistent, read-side record of alarms and response outcomes, kept for
// operator inspection (the "ledger" CLI subcommand) and never consulted by
// the Detection Engine's scoring or response decisions.
//
// Schema (BoltDB bucket layout):
//
//	/ledger
//	    key:   fixed-width UTC RFC3339 timestamp with nanoseconds + "_" + pid (zero-padded)  [sortable]
//	    value: JSON-encoded Entry
//
// Consistency model:
//   - Single-process, single-writer (BoltDB does not support concurrent
//     writers); the ingest loop is the sole writer.
//   - All writes use ACID transactions (bbolt Tx.Commit()).
//   - Reads use read-only transactions (bbolt.View()), only from the
//     ledger CLI subcommand.
//
// Retention: PruneOld deletes entries older than the retention window; the
// agent calls it once at startup. There is no periodic pruning while the
// agent runs.
package ledger

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultDBPath is the default BoltDB file location.
	DefaultDBPath = "/var/lib/ransom-agentd/ledger.db"

	// DefaultRetentionDays is the default entry retention period.
	DefaultRetentionDays = 30

	bucketLedger = "ledger"
)

// Entry is a single incident ledger record: one alert record mirrored from
// the alert log. Outcome holds that record's alert type (RANSOMWARE_DETECTED,
// PROCESS_KILLED, KILL_FAILED or KILL_PREVENTED), so one alarm with active
// blocking produces two entries.
type Entry struct {
	Timestamp  time.Time `json:"timestamp"`
	PID        uint32    `json:"pid"`
	PPID       uint32    `json:"ppid"`
	UID        uint32    `json:"uid"`
	Comm       string    `json:"comm"`
	Filename   string    `json:"filename"`
	RiskReason string    `json:"risk_reason"`
	Score      int       `json:"score"`
	Outcome    string    `json:"outcome"`
	Reason     string    `json:"reason"`
}

// DB wraps a BoltDB instance with typed accessors for ledger entries.
type DB struct {
	db            *bolt.DB
	retentionDays int
}

// Open opens (or creates) the ledger database at path.
func Open(path string, retentionDays int) (*DB, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}

	bdb, err := bolt.Open(path, 0o600, &bolt.Options{
		Timeout:      5 * time.Second,
		FreelistType: bolt.FreelistArrayType,
	})
	if err != nil {
		return nil, fmt.Errorf("bolt.Open(%q): %w", path, err)
	}

	d := &DB{db: bdb, retentionDays: retentionDays}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketLedger))
		return err
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("ledger initialisation failed: %w", err)
	}

	return d, nil
}

// Close closes the underlying BoltDB file.
func (d *DB) Close() error {
	return d.db.Close()
}

// ledgerKey constructs a sortable BoltDB key for an entry. Format: UTC
// RFC3339 with a fixed 9-digit fractional second + "_" + PID zero-padded to
// 10 digits. Every key has the same width, so lexicographic sort equals
// chronological sort.
func ledgerKey(t time.Time, pid uint32) []byte {
	return []byte(fmt.Sprintf("%s_%010d", t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), pid))
}

// Append writes a new ledger entry in a single ACID transaction.
func (d *DB) Append(entry Entry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("Append marshal: %w", err)
	}

	key := ledgerKey(entry.Timestamp, entry.PID)
	return d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("Append bolt.Put: %w", err)
		}
		return nil
	})
}

// PruneOld deletes entries older than the configured retention window.
// Returns the number of entries deleted.
func (d *DB) PruneOld() (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -d.retentionDays)
	cutoffKey := ledgerKey(cutoff, 0)

	var deleted int
	err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		c := b.Cursor()

		var toDelete [][]byte
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if string(k) >= string(cutoffKey) {
				break
			}
			keyCopy := make([]byte, len(k))
			copy(keyCopy, k)
			toDelete = append(toDelete, keyCopy)
		}

		for _, k := range toDelete {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("PruneOld delete: %w", err)
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}

// ReadAll returns all ledger entries in chronological order. For
// operational use by the ledger CLI subcommand; never called on the event
// ingest hot path.
func (d *DB) ReadAll() ([]Entry, error) {
	var entries []Entry
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		return b.ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

// Count returns the current number of ledger entries.
func (d *DB) Count() (int, error) {
	var n int
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketLedger))
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}
