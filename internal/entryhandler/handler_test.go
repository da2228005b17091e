package entryhandler

import (
	"testing"

	"github.com/dray-io/cleaner/internal/segment"
)

func TestRelocatorAppendSuccess(t *testing.T) {
	w := segment.NewWriter(1, 4096)
	r := NewRelocator(w)
	if !r.Append(segment.Object, []byte("payload")) {
		t.Fatalf("Append reported failure on a fresh writer")
	}
	if r.Failed() {
		t.Fatalf("Failed() true after a successful Append")
	}
}

func TestRelocatorAppendOutOfSpace(t *testing.T) {
	w := segment.NewWriter(1, segment.MinSegmentSize+segment.EntryHeaderSize+segment.FooterSize)
	r := NewRelocator(w)
	if r.Append(segment.Object, make([]byte, 64)) {
		t.Fatalf("Append succeeded on a nearly-full writer")
	}
	if !r.Failed() {
		t.Fatalf("Failed() false after an out-of-space Append")
	}
}

// fakeDirectory is a minimal in-memory LiveDirectory for tests.
type fakeDirectory struct {
	current map[string]LogRef
	expired map[string]bool
}

func (d fakeDirectory) IsCurrent(key []byte, ref LogRef) bool      { return d.current[string(key)] == ref }
func (d fakeDirectory) TombstoneExpired(key []byte, _ int64) bool { return d.expired[string(key)] }

func TestLiveDirectoryHandlerRelocatesLiveObject(t *testing.T) {
	ref := LogRef{SegmentID: 1, Offset: 0}
	dir := fakeDirectory{current: map[string]LogRef{"k1": ref}}
	h := NewLiveDirectoryHandler(dir, nil)
	w := segment.NewWriter(1, 4096)
	r := NewRelocator(w)

	payload := EncodeObjectPayload(ObjectPayload{Timestamp: 100, Key: []byte("k1"), Value: []byte("v1")})
	h.Relocate(segment.Object, payload, ref, r)

	if r.Failed() {
		t.Fatalf("Relocate reported failure for a live object")
	}
	if w.Size() <= segment.EntryHeaderSize+segment.HeaderSize {
		t.Fatalf("no entry appended for a live object")
	}
}

func TestLiveDirectoryHandlerDropsDeadObject(t *testing.T) {
	dir := fakeDirectory{current: map[string]LogRef{}}
	h := NewLiveDirectoryHandler(dir, nil)
	w := segment.NewWriter(1, 4096)
	r := NewRelocator(w)
	before := w.Size()

	payload := EncodeObjectPayload(ObjectPayload{Timestamp: 100, Key: []byte("k1"), Value: []byte("v1")})
	h.Relocate(segment.Object, payload, LogRef{SegmentID: 1, Offset: 0}, r)

	if w.Size() != before {
		t.Fatalf("entry appended for a dead object: size %d -> %d", before, w.Size())
	}
	if r.Failed() {
		t.Fatalf("declining to relocate must not be reported as Failed")
	}
}

// TestLiveDirectoryHandlerDropsSupersededObjectCopy is the
// overwrite-without-delete case: two segments each hold a copy of key
// "k1" (an older one at segment 1 and a newer one at segment 2). Only
// the copy at the directory's current ref for "k1" may survive
// cleaning; the older, superseded copy must be dropped even though the
// key itself is still live.
func TestLiveDirectoryHandlerDropsSupersededObjectCopy(t *testing.T) {
	oldRef := LogRef{SegmentID: 1, Offset: 0}
	newRef := LogRef{SegmentID: 2, Offset: 0}
	dir := fakeDirectory{current: map[string]LogRef{"k1": newRef}}
	h := NewLiveDirectoryHandler(dir, nil)

	oldPayload := EncodeObjectPayload(ObjectPayload{Timestamp: 100, Key: []byte("k1"), Value: []byte("stale")})
	newPayload := EncodeObjectPayload(ObjectPayload{Timestamp: 200, Key: []byte("k1"), Value: []byte("fresh")})

	wOld := segment.NewWriter(1, 4096)
	rOld := NewRelocator(wOld)
	h.Relocate(segment.Object, oldPayload, oldRef, rOld)
	if wOld.Size() != segment.EntryHeaderSize+segment.HeaderSize {
		t.Fatalf("superseded copy at the old ref was relocated, size = %d", wOld.Size())
	}

	wNew := segment.NewWriter(2, 4096)
	rNew := NewRelocator(wNew)
	h.Relocate(segment.Object, newPayload, newRef, rNew)
	if wNew.Size() <= segment.EntryHeaderSize+segment.HeaderSize {
		t.Fatalf("current copy at the new ref was not relocated")
	}
}

func TestLiveDirectoryHandlerKeepsUnexpiredTombstoneForDeadKey(t *testing.T) {
	ref := LogRef{SegmentID: 1, Offset: 0}
	dir := fakeDirectory{current: map[string]LogRef{"k1": ref}, expired: map[string]bool{}}
	h := NewLiveDirectoryHandler(dir, nil)
	w := segment.NewWriter(1, 4096)
	r := NewRelocator(w)
	before := w.Size()

	payload := EncodeTombstonePayload(TombstonePayload{Timestamp: 100, Key: []byte("k1")})
	h.Relocate(segment.Tombstone, payload, ref, r)

	if w.Size() == before {
		t.Fatalf("unexpired tombstone for a dead key was not relocated")
	}
}

func TestLiveDirectoryHandlerDropsExpiredTombstone(t *testing.T) {
	ref := LogRef{SegmentID: 1, Offset: 0}
	dir := fakeDirectory{current: map[string]LogRef{"k1": ref}, expired: map[string]bool{"k1": true}}
	h := NewLiveDirectoryHandler(dir, nil)
	w := segment.NewWriter(1, 4096)
	r := NewRelocator(w)
	before := w.Size()

	payload := EncodeTombstonePayload(TombstonePayload{Timestamp: 100, Key: []byte("k1")})
	h.Relocate(segment.Tombstone, payload, ref, r)

	if w.Size() != before {
		t.Fatalf("expired tombstone was relocated")
	}
}

func TestLiveDirectoryHandlerDropsTombstoneForLiveKey(t *testing.T) {
	// The directory's current ref for "k1" now points at a later object
	// write, not at this tombstone's own ref.
	tombstoneRef := LogRef{SegmentID: 1, Offset: 0}
	dir := fakeDirectory{current: map[string]LogRef{"k1": {SegmentID: 2, Offset: 0}}}
	h := NewLiveDirectoryHandler(dir, nil)
	w := segment.NewWriter(1, 4096)
	r := NewRelocator(w)
	before := w.Size()

	payload := EncodeTombstonePayload(TombstonePayload{Timestamp: 100, Key: []byte("k1")})
	h.Relocate(segment.Tombstone, payload, tombstoneRef, r)

	if w.Size() != before {
		t.Fatalf("tombstone superseded by a live object was still relocated")
	}
}

func TestPotentiallyLiveMatchesRelocateDecision(t *testing.T) {
	liveRef := LogRef{SegmentID: 1, Offset: 0}
	staleRef := LogRef{SegmentID: 9, Offset: 0}
	dir := fakeDirectory{current: map[string]LogRef{"k1": liveRef}}
	h := NewLiveDirectoryHandler(dir, nil)

	payload := EncodeObjectPayload(ObjectPayload{Timestamp: 100, Key: []byte("k1"), Value: []byte("v1")})

	if !h.PotentiallyLive(segment.Object, payload, liveRef) {
		t.Fatalf("PotentiallyLive false for the current ref")
	}
	if h.PotentiallyLive(segment.Object, payload, staleRef) {
		t.Fatalf("PotentiallyLive true for a superseded ref")
	}
}
