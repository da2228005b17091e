package entryhandler

import (
	"github.com/dray-io/cleaner/internal/codec"
	"github.com/dray-io/cleaner/internal/segment"
)

// LogRef identifies one specific entry by its log location: the
// segment it lives in and its payload offset within that segment.
// Liveness is judged against a LogRef, not against a key alone, since
// a key can have multiple physical copies (one per overwrite) sitting
// in different segments simultaneously; only the copy at the current
// reference is live.
type LogRef struct {
	SegmentID uint64
	Offset    int
}

// LiveDirectory resolves whether a given log entry is the one current
// fact for its key, and whether a tombstone has aged past its
// retention window.
type LiveDirectory interface {
	// IsCurrent reports whether ref is key's current log reference — the
	// location of key's most recent write, object or tombstone. An
	// entry whose own ref does not match has been superseded by a later
	// write to the same key and is dead regardless of what it contains.
	IsCurrent(key []byte, ref LogRef) bool
	// TombstoneExpired reports whether a tombstone for key created at
	// timestamp has outlived its retention window.
	TombstoneExpired(key []byte, timestamp int64) bool
}

// LiveDirectoryHandler is the reference Handler implementation: it
// decides OBJECT and TOMBSTONE liveness against a LiveDirectory and
// optionally compresses relocated payloads.
type LiveDirectoryHandler struct {
	dir   LiveDirectory
	codec codec.Codec
}

// NewLiveDirectoryHandler builds a handler backed by dir. c may be nil,
// in which case payloads are relocated uncompressed.
func NewLiveDirectoryHandler(dir LiveDirectory, c codec.Codec) *LiveDirectoryHandler {
	return &LiveDirectoryHandler{dir: dir, codec: c}
}

// Relocate implements Handler.
func (h *LiveDirectoryHandler) Relocate(entryType segment.EntryType, payload []byte, ref LogRef, relocator *Relocator) {
	switch entryType {
	case segment.Object:
		h.relocateObject(payload, ref, relocator)
	case segment.Tombstone:
		h.relocateTombstone(payload, ref, relocator)
	default:
		// Any other type reaching the handler is not ours to judge; the
		// cleaner never routes SEGHEADER/SEGFOOTER here.
	}
}

// PotentiallyLive implements Handler.
func (h *LiveDirectoryHandler) PotentiallyLive(entryType segment.EntryType, payload []byte, ref LogRef) bool {
	switch entryType {
	case segment.Object:
		obj, err := DecodeObjectPayload(payload)
		if err != nil {
			return false
		}
		return h.dir.IsCurrent(obj.Key, ref)
	case segment.Tombstone:
		ts, err := DecodeTombstonePayload(payload)
		if err != nil {
			return false
		}
		if !h.dir.IsCurrent(ts.Key, ref) {
			return false
		}
		return !h.dir.TombstoneExpired(ts.Key, ts.Timestamp)
	default:
		return false
	}
}

func (h *LiveDirectoryHandler) relocateObject(payload []byte, ref LogRef, relocator *Relocator) {
	obj, err := DecodeObjectPayload(payload)
	if err != nil {
		return
	}
	if !h.dir.IsCurrent(obj.Key, ref) {
		return
	}
	relocator.Append(segment.Object, h.transform(payload))
}

func (h *LiveDirectoryHandler) relocateTombstone(payload []byte, ref LogRef, relocator *Relocator) {
	ts, err := DecodeTombstonePayload(payload)
	if err != nil {
		return
	}
	// A tombstone survives only while it is still the most recent fact
	// about its key (no fresher write at a different ref exists) and
	// hasn't aged out.
	if !h.dir.IsCurrent(ts.Key, ref) {
		return
	}
	if h.dir.TombstoneExpired(ts.Key, ts.Timestamp) {
		return
	}
	relocator.Append(segment.Tombstone, h.transform(payload))
}

func (h *LiveDirectoryHandler) transform(payload []byte) []byte {
	if h.codec == nil || h.codec.Tag() == codec.None {
		return payload
	}
	compressed, err := h.codec.Compress(payload)
	if err != nil {
		return payload
	}
	return compressed
}
