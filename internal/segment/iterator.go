package segment

// Iterator produces a finite, restartable forward sequence of entries
// over a fixed-capacity buffer, stopping on SEGFOOTER, on an invalid next
// entry, or on buffer exhaustion. See the package doc for the wire layout.
type Iterator struct {
	buf       []byte
	cursor    int // byte offset of the current entry's header, or -1 if none
	sawFooter bool
}

// New validates buf's layout and returns an Iterator positioned at the
// first entry (the SEGHEADER). Any validation failure is a hard format
// error: the iterator is not returned and must not be used.
func New(buf []byte) (*Iterator, error) {
	if len(buf) < MinSegmentSize {
		return nil, ErrBufferTooSmall
	}

	first := decodeEntryHeader(buf)
	if first.Type != SegHeader {
		return nil, ErrFirstEntryNotHeader
	}
	if first.Length != HeaderSize {
		return nil, ErrHeaderLengthMismatch
	}
	if !entryFits(buf, 0, first.Length) {
		return nil, ErrTruncatedEntry
	}

	hdr := decodeHeader(buf[EntryHeaderSize : EntryHeaderSize+HeaderSize])
	if hdr.SegmentCapacity != uint64(len(buf)) {
		return nil, ErrCapacityMismatch
	}

	return &Iterator{buf: buf, cursor: 0}, nil
}

// entryFits reports whether an entry starting at start with the given
// payload length fits entirely within buf. A negative start is an
// internal invariant violation, not bad data, and panics rather than
// returning false.
func entryFits(buf []byte, start int, length uint32) bool {
	if start < 0 {
		panic("segment: entry_start before buffer start")
	}
	if start+EntryHeaderSize > len(buf) {
		return false
	}
	last := uint64(start) + uint64(EntryHeaderSize) + uint64(length) - 1
	return last <= uint64(len(buf)-1)
}

// Done reports whether iteration has terminated: a SEGFOOTER has been
// observed, the next entry was invalid, or the buffer was exhausted.
func (it *Iterator) Done() bool {
	return it.sawFooter || it.cursor < 0
}

func (it *Iterator) header() EntryHeader {
	if it.Done() {
		panic("segment: accessor called while iterator is done")
	}
	return decodeEntryHeader(it.buf[it.cursor:])
}

// Type returns the current entry's type. Panics if Done.
func (it *Iterator) Type() EntryType {
	return it.header().Type
}

// Length returns the current entry's payload length. Panics if Done.
func (it *Iterator) Length() uint32 {
	return it.header().Length
}

// Checksum returns the current entry's stored checksum. Panics if Done.
func (it *Iterator) Checksum() uint32 {
	return it.header().Checksum
}

// Offset returns the current entry's payload offset relative to the
// buffer start. Panics if Done.
func (it *Iterator) Offset() int {
	return it.cursor + EntryHeaderSize
}

// Payload returns a slice over the current entry's payload bytes. The
// slice aliases the underlying buffer; callers must not retain it past
// the buffer's lifetime. Panics if Done.
func (it *Iterator) Payload() []byte {
	h := it.header()
	start := it.cursor + EntryHeaderSize
	return it.buf[start : start+int(h.Length)]
}

// VerifyChecksum reports whether the current entry's stored checksum
// matches its computed checksum over type/reserved/length/payload.
// Panics if Done.
func (it *Iterator) VerifyChecksum() bool {
	h := it.header()
	want := entryChecksum(h.Type, h.Reserved, h.Length, it.Payload())
	return want == h.Checksum
}

// Header decodes the SEGHEADER payload. Valid to call at any point in an
// Iterator's life, including after Done, since the header is read once at
// construction and does not change.
func (it *Iterator) Header() Header {
	return decodeHeader(it.buf[EntryHeaderSize : EntryHeaderSize+HeaderSize])
}

// Next advances the iterator to the next entry. After observing a
// SEGFOOTER entry, calling Next marks the iterator Done without moving
// the cursor off the footer. After an invalid next entry, the iterator
// becomes Done and the cursor is discarded.
func (it *Iterator) Next() {
	if it.cursor < 0 {
		return
	}

	cur := decodeEntryHeader(it.buf[it.cursor:])
	if cur.Type == SegFooter {
		it.sawFooter = true
		return
	}

	next := it.cursor + EntryHeaderSize + int(cur.Length)
	if next+EntryHeaderSize > len(it.buf) || !entryFits(it.buf, next, peekLength(it.buf, next)) {
		it.cursor = -1
		return
	}
	it.cursor = next
}

// peekLength reads the length field of the entry header at start without
// the full bounds check entryFits performs; callers must have already
// confirmed start+EntryHeaderSize <= len(buf).
func peekLength(buf []byte, start int) uint32 {
	return decodeEntryHeader(buf[start:]).Length
}
