package entryhandler

import (
	"sync"
	"time"
)

// MapDirectory is a concurrency-safe, in-process LiveDirectory backed
// by a map from key to its current LogRef, plus the creation timestamp
// of the newest tombstone seen for a key. It is the directory
// cmd/cleanerd wires by default; a deployment with its own external
// key index supplies a LiveDirectory of its own instead.
type MapDirectory struct {
	mu              sync.RWMutex
	current         map[string]LogRef
	tombstoneAt     map[string]int64
	retentionWindow time.Duration
	now             func() time.Time
}

// NewMapDirectory creates an empty MapDirectory. Tombstones older than
// retentionWindow are reported expired by TombstoneExpired.
func NewMapDirectory(retentionWindow time.Duration) *MapDirectory {
	return &MapDirectory{
		current:         make(map[string]LogRef),
		tombstoneAt:     make(map[string]int64),
		retentionWindow: retentionWindow,
		now:             time.Now,
	}
}

// MarkLive records that key's current log reference is ref, an object
// write, superseding whatever ref (object or tombstone) key previously
// pointed at.
func (d *MapDirectory) MarkLive(key []byte, ref LogRef) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current[string(key)] = ref
	delete(d.tombstoneAt, string(key))
}

// MarkTombstoned records that key's current log reference is ref, a
// tombstone created at timestamp (Unix seconds).
func (d *MapDirectory) MarkTombstoned(key []byte, ref LogRef, timestamp int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.current[string(key)] = ref
	d.tombstoneAt[string(key)] = timestamp
}

// IsCurrent implements LiveDirectory: ref is current for key only if
// it is the exact location MarkLive/MarkTombstoned most recently
// recorded. A stale copy of an overwritten object sitting at its old
// ref reports false, even though key itself still has a live value
// elsewhere.
func (d *MapDirectory) IsCurrent(key []byte, ref LogRef) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	cur, ok := d.current[string(key)]
	return ok && cur == ref
}

// TombstoneExpired implements LiveDirectory: a tombstone survives until
// retentionWindow has elapsed since its creation timestamp, measured
// against the directory's clock rather than the timestamp argument's
// source, so a stale in-memory entry does not outlive reality.
func (d *MapDirectory) TombstoneExpired(key []byte, timestamp int64) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	recorded, ok := d.tombstoneAt[string(key)]
	if !ok {
		recorded = timestamp
	}
	age := d.now().Sub(time.Unix(recorded, 0))
	return age > d.retentionWindow
}
