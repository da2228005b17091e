package cleaner

import (
	"errors"
	"sync"

	"github.com/dray-io/cleaner/internal/segment"
)

// ErrSegmentNotStored is returned by SegmentStore.Read when no bytes are
// on hand for the requested segment ID.
var ErrSegmentNotStored = errors.New("cleaner: segment bytes not stored")

// SegmentStore holds the byte buffers backing segments the cleaner
// operates on. internal/segmentmgr owns lifecycle bookkeeping only (IDs,
// state, seglet counts); SegmentStore is the corresponding byte-level
// storage the cleaner reads sources from and writes compaction targets
// and survivors into before they are handed to the replica manager.
type SegmentStore interface {
	Read(id uint64) (segment.Sealed, error)
	Store(sealed segment.Sealed) error
	Delete(id uint64)
}

// MemoryStore is a SegmentStore backed by an in-process map, suitable
// for a single cleaner process holding every segment resident (the
// deployment shape this repository targets; a disk- or object-backed
// SegmentStore is a straightforward extension point).
type MemoryStore struct {
	mu       sync.Mutex
	segments map[uint64]segment.Sealed
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{segments: make(map[uint64]segment.Sealed)}
}

// Read implements SegmentStore.
func (s *MemoryStore) Read(id uint64) (segment.Sealed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sealed, ok := s.segments[id]
	if !ok {
		return segment.Sealed{}, ErrSegmentNotStored
	}
	return sealed, nil
}

// Store implements SegmentStore.
func (s *MemoryStore) Store(sealed segment.Sealed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[sealed.SegmentID()] = sealed
	return nil
}

// Delete implements SegmentStore.
func (s *MemoryStore) Delete(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, id)
}
