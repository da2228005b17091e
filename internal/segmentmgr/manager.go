package segmentmgr

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dray-io/cleaner/internal/seglet"
)

// Config fixes the dimensions every segment the manager creates shares.
type Config struct {
	SegmentCapacityBytes          uint64
	SegletSizeBytes               uint64
	SurvivorSegmentsToReserve     int
	MaxCleanableMemoryUtilization int // percent, 0-100
}

// Manager owns every segment's state and the survivor reserve. All
// mutation happens under a single internal lock, matching the "segment
// manager's internal lock" the concurrency model names as the sole
// serialization point for segment state transitions.
type Manager struct {
	mu sync.Mutex

	cfg     Config
	seglets *seglet.Allocator

	segments        map[uint64]*Entry
	quarantined     map[uint64]struct{}
	survivorReserve int
}

// New creates a Manager backed by seglets, with the survivor reserve
// pre-filled to cfg.SurvivorSegmentsToReserve.
func New(cfg Config, seglets *seglet.Allocator) *Manager {
	return &Manager{
		cfg:             cfg,
		seglets:         seglets,
		segments:        make(map[uint64]*Entry),
		quarantined:     make(map[uint64]struct{}),
		survivorReserve: cfg.SurvivorSegmentsToReserve,
	}
}

func (m *Manager) segletsPerSegment() int {
	return int(m.cfg.SegmentCapacityBytes / m.cfg.SegletSizeBytes)
}

// newSegmentID derives a segment identifier from the first eight bytes
// of a random (version 4) UUID, so no shared counter is needed. IDs
// carry no creation order.
func newSegmentID() uint64 {
	id := uuid.New()
	return binary.LittleEndian.Uint64(id[:8])
}

// AdmitClosedSegment registers a segment that arrived from the write
// path already sealed, reserving its seglets from the pool. This is the
// entry point external collaborators (out of scope here) use once a
// segment transitions from OPEN to CLOSED.
func (m *Manager) AdmitClosedSegment(liveBytes uint64, creationTimestamp int64) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids, err := m.seglets.Reserve(m.segletsPerSegment())
	if err != nil {
		return nil, fmt.Errorf("segmentmgr: admit closed segment: %w", err)
	}

	e := &Entry{
		ID:                newSegmentID(),
		State:             Closed,
		Capacity:          m.cfg.SegmentCapacityBytes,
		LiveBytes:         liveBytes,
		CreationTimestamp: creationTimestamp,
		SegletIDs:         toSegletIDs(ids),
	}
	e.FreeableSeglets = m.freeableSeglets(e)
	m.segments[e.ID] = e
	return e.clone(), nil
}

func toSegletIDs(ids []seglet.ID) []uint64 {
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}

func toIDs(raw []uint64) []seglet.ID {
	out := make([]seglet.ID, len(raw))
	for i, v := range raw {
		out[i] = seglet.ID(v)
	}
	return out
}

// MarkCleanable transitions a Closed segment to Cleanable, refusing the
// transition (ErrUtilizationTooHigh) if its live-byte fraction exceeds
// the configured cap.
func (m *Manager) MarkCleanable(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.segments[id]
	if !ok {
		return ErrUnknownSegment
	}
	if e.State != Closed {
		return fmt.Errorf("%w: segment %d is %s, want CLOSED", ErrInvalidTransition, id, e.State)
	}
	if e.Utilization()*100 > float64(m.cfg.MaxCleanableMemoryUtilization) {
		return ErrUtilizationTooHigh
	}
	e.State = Cleanable
	return nil
}

// Quarantine removes a segment from future cleanable-candidate
// consideration, for use when its iterator reports a format error.
// Quarantined segments are never freed automatically; an operator-level
// repair path (out of scope here) owns their eventual disposition.
func (m *Manager) Quarantine(id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.segments[id]; !ok {
		return ErrUnknownSegment
	}
	m.quarantined[id] = struct{}{}
	return nil
}

// GetCleanableCandidates snapshots every Cleanable, non-quarantined
// segment. The returned slice is a copy; callers may sort or filter it
// freely without affecting manager state.
func (m *Manager) GetCleanableCandidates() []*Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Entry
	for id, e := range m.segments {
		if e.State != Cleanable {
			continue
		}
		if _, quarantined := m.quarantined[id]; quarantined {
			continue
		}
		out = append(out, e.clone())
	}
	return out
}

// GetSegmentToCompact returns the Cleanable segment with the greatest
// number of freeable seglets, or ok=false if none has a positive count.
func (m *Manager) GetSegmentToCompact() (entry *Entry, freeableSeglets int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var best *Entry
	for id, e := range m.segments {
		if e.State != Cleanable {
			continue
		}
		if _, quarantined := m.quarantined[id]; quarantined {
			continue
		}
		if e.FreeableSeglets <= 0 {
			continue
		}
		if best == nil || e.FreeableSeglets > best.FreeableSeglets {
			best = e
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best.clone(), best.FreeableSeglets, true
}

func (m *Manager) freeableSeglets(e *Entry) int {
	if e.LiveBytes >= e.Capacity {
		return 0
	}
	return int((e.Capacity - e.LiveBytes) / m.cfg.SegletSizeBytes)
}

// UpdateLiveBytes records a fresh live-byte count for a segment,
// recomputing its freeable-seglet count. The cleaner calls this after
// scanning a segment's entries during candidate extraction.
func (m *Manager) UpdateLiveBytes(id uint64, liveBytes uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.segments[id]
	if !ok {
		return ErrUnknownSegment
	}
	e.LiveBytes = liveBytes
	e.FreeableSeglets = m.freeableSeglets(e)
	return nil
}

// AllocateSurvivor draws a fresh appendable segment from the reserved
// survivor pool, or ErrSurvivorPoolExhausted if the reserve is empty.
func (m *Manager) AllocateSurvivor(creationTimestamp int64) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.survivorReserve <= 0 {
		return nil, ErrSurvivorPoolExhausted
	}
	ids, err := m.seglets.Reserve(m.segletsPerSegment())
	if err != nil {
		return nil, fmt.Errorf("segmentmgr: allocate survivor: %w", err)
	}

	e := &Entry{
		ID:                newSegmentID(),
		State:             Survivor,
		Capacity:          m.cfg.SegmentCapacityBytes,
		CreationTimestamp: creationTimestamp,
		SegletIDs:         toSegletIDs(ids),
	}
	m.segments[e.ID] = e
	m.survivorReserve--
	return e.clone(), nil
}

// Replenish tops up the survivor reserve by n, capped so it never
// exceeds the configured target. Callers typically invoke this once a
// pass's sources have been freed and their seglets reclaimed.
func (m *Manager) Replenish(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.survivorReserve += n
	if m.survivorReserve > m.cfg.SurvivorSegmentsToReserve {
		m.survivorReserve = m.cfg.SurvivorSegmentsToReserve
	}
}

// SurvivorReserveLevel returns the number of survivor slots currently
// available to AllocateSurvivor.
func (m *Manager) SurvivorReserveLevel() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.survivorReserve
}

// ReportCleaned atomically marks sources Freeable and survivors Closed.
// Callers must have already confirmed every survivor is durable; the
// manager does not track replication state itself.
func (m *Manager) ReportCleaned(sources []uint64, survivors []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range sources {
		e, ok := m.segments[id]
		if !ok {
			return fmt.Errorf("%w: source %d", ErrUnknownSegment, id)
		}
		if e.State != Cleanable {
			return fmt.Errorf("%w: source %d is %s, want CLEANABLE", ErrInvalidTransition, id, e.State)
		}
	}
	for _, id := range survivors {
		e, ok := m.segments[id]
		if !ok {
			return fmt.Errorf("%w: survivor %d", ErrUnknownSegment, id)
		}
		if e.State != Survivor {
			return fmt.Errorf("%w: survivor %d is %s, want SURVIVOR", ErrInvalidTransition, id, e.State)
		}
	}

	for _, id := range sources {
		m.segments[id].State = Freeable
	}
	for _, id := range survivors {
		m.segments[id].State = Closed
	}
	return nil
}

// FreeSeglets releases seglets no longer referenced by any live entry,
// used by in-memory compaction once a segment has been rewritten
// in-place. It trims the segment's trailing seglets and shrinks its
// accounted capacity to match.
func (m *Manager) FreeSeglets(id uint64, count int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.segments[id]
	if !ok {
		return ErrUnknownSegment
	}
	if count <= 0 || count > len(e.SegletIDs) {
		return fmt.Errorf("segmentmgr: cannot free %d seglets from segment %d holding %d", count, id, len(e.SegletIDs))
	}

	freed := e.SegletIDs[len(e.SegletIDs)-count:]
	e.SegletIDs = e.SegletIDs[:len(e.SegletIDs)-count]
	m.seglets.Release(toIDs(freed))

	freedBytes := uint64(count) * m.cfg.SegletSizeBytes
	e.Capacity -= freedBytes
	e.BytesFreed += freedBytes
	e.FreeableSeglets = m.freeableSeglets(e)
	return nil
}

// FreeSegment transitions a Freeable segment to Free, releasing its
// remaining seglets and replenishing the survivor reserve by one slot.
func (m *Manager) FreeSegment(id uint64) error {
	m.mu.Lock()

	e, ok := m.segments[id]
	if !ok {
		m.mu.Unlock()
		return ErrUnknownSegment
	}
	if e.State != Freeable {
		m.mu.Unlock()
		return fmt.Errorf("%w: segment %d is %s, want FREEABLE", ErrInvalidTransition, id, e.State)
	}
	m.seglets.Release(toIDs(e.SegletIDs))
	e.SegletIDs = nil
	e.State = Free
	delete(m.quarantined, id)
	m.mu.Unlock()

	m.Replenish(1)
	return nil
}

// Get returns a copy of a segment's current entry, for inspection by
// tests and metrics.
func (m *Manager) Get(id uint64) (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.segments[id]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// MemoryUtilization returns the live-byte-weighted utilization across
// every segment still resident in memory (OPEN, CLOSED, CLEANABLE,
// SURVIVOR) — the population the in-memory compaction trigger watches.
func (m *Manager) MemoryUtilization() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.utilizationOf(Open, Closed, Cleanable, Survivor)
}

// DiskUtilization returns the live-byte-weighted utilization across
// every segment still occupying backup-disk space (CLEANABLE,
// FREEABLE) — the population the on-disk cleaning trigger watches.
func (m *Manager) DiskUtilization() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.utilizationOf(Cleanable, Freeable)
}

func (m *Manager) utilizationOf(states ...State) float64 {
	want := make(map[State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}

	var liveBytes, capacity uint64
	for _, e := range m.segments {
		if !want[e.State] {
			continue
		}
		liveBytes += e.LiveBytes
		capacity += e.Capacity
	}
	if capacity == 0 {
		return 0
	}
	return float64(liveBytes) / float64(capacity)
}
