package segment

import "errors"

// ErrOutOfSpace is returned by Append when the payload (plus its header)
// would not fit in the writer's remaining capacity.
var ErrOutOfSpace = errors.New("segment: out of space")

// Writer builds a segment sequentially: SEGHEADER first, then any number
// of typed entries, then Seal to append SEGFOOTER and close the segment.
type Writer struct {
	buf      []byte
	size     int // bytes written so far
	sealed   bool
	capacity uint64
}

// NewWriter allocates a fresh segment buffer of the given capacity and
// writes its SEGHEADER entry.
func NewWriter(segmentID uint64, capacity uint64) *Writer {
	w := &Writer{
		buf:      make([]byte, capacity),
		capacity: capacity,
	}
	hdrPayload := make([]byte, HeaderSize)
	encodeHeader(hdrPayload, Header{SegmentID: segmentID, SegmentCapacity: capacity})
	// SEGHEADER is written directly; it always fits because NewWriter's
	// caller is responsible for requesting a capacity >= MinSegmentSize.
	w.appendRaw(SegHeader, hdrPayload)
	return w
}

// Remaining returns the number of bytes still available for entries,
// reserving room for the eventual SEGFOOTER.
func (w *Writer) Remaining() int {
	free := len(w.buf) - w.size - EntryHeaderSize - FooterSize
	if free < 0 {
		return 0
	}
	return free
}

// Append writes a typed entry with the given payload. Returns
// ErrOutOfSpace (and writes nothing) if there is insufficient remaining
// capacity; callers should seal the current writer and retry against a
// fresh one.
func (w *Writer) Append(entryType EntryType, payload []byte) error {
	if w.sealed {
		panic("segment: Append called on a sealed writer")
	}
	if EntryHeaderSize+len(payload) > w.Remaining() {
		return ErrOutOfSpace
	}
	w.appendRaw(entryType, payload)
	return nil
}

func (w *Writer) appendRaw(entryType EntryType, payload []byte) {
	start := w.size
	hdr := EntryHeader{
		Type:     entryType,
		Length:   uint32(len(payload)),
		Checksum: entryChecksum(entryType, 0, uint32(len(payload)), payload),
	}
	encodeEntryHeader(w.buf[start:start+EntryHeaderSize], hdr)
	copy(w.buf[start+EntryHeaderSize:], payload)
	w.size = start + EntryHeaderSize + len(payload)
}

// Seal appends the SEGFOOTER entry and returns the buffer truncated to
// the bytes written; the unused tail is dropped (the seglets it occupied
// are returned to the allocator by the caller). The SEGHEADER's
// SegmentCapacity is first rewritten to that sealed length, so the
// result passes the iterator's capacity check. The footer's checksum
// covers every byte written before it, including the rewritten header.
func (w *Writer) Seal() Sealed {
	if w.sealed {
		panic("segment: Seal called twice")
	}
	w.capacity = uint64(w.size + EntryHeaderSize + FooterSize)
	hdrPayload := w.buf[EntryHeaderSize : EntryHeaderSize+HeaderSize]
	encodeHeader(hdrPayload, Header{SegmentID: w.segmentID(), SegmentCapacity: w.capacity})
	encodeEntryHeader(w.buf[:EntryHeaderSize], EntryHeader{
		Type:     SegHeader,
		Length:   uint32(HeaderSize),
		Checksum: entryChecksum(SegHeader, 0, uint32(HeaderSize), hdrPayload),
	})
	checksum := segmentChecksum(w.buf[:w.size])
	footerPayload := make([]byte, FooterSize)
	encodeFooter(footerPayload, Footer{SegmentChecksum: checksum})
	w.appendRaw(SegFooter, footerPayload)
	w.sealed = true
	return Sealed{buf: w.buf[:w.size], segmentID: w.segmentID()}
}

func (w *Writer) segmentID() uint64 {
	return decodeHeader(w.buf[EntryHeaderSize : EntryHeaderSize+HeaderSize]).SegmentID
}

// Size returns the number of bytes written so far, including the
// SEGHEADER and, once sealed, the SEGFOOTER.
func (w *Writer) Size() int {
	return w.size
}

// Sealed is an immutable, closed segment buffer ready for replication and
// iteration.
type Sealed struct {
	buf       []byte
	segmentID uint64
}

// Bytes returns the sealed segment's full byte buffer.
func (s Sealed) Bytes() []byte { return s.buf }

// SegmentID returns the segment identifier carried in the SEGHEADER.
func (s Sealed) SegmentID() uint64 { return s.segmentID }

// Iterator returns a fresh Iterator over the sealed segment's bytes.
func (s Sealed) Iterator() (*Iterator, error) { return New(s.buf) }
