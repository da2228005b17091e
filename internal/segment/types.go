// Package segment implements the bit-exact on-wire layout of log entries
// within a fixed-capacity buffer, and the bounded forward-only iterator
// over that layout.
//
// A segment is laid out as:
//
//	EntryHeader(SegHeader) Header
//	{ EntryHeader(T) Payload(T) }*
//	EntryHeader(SegFooter) Footer
//
// All multi-byte fields are little-endian.
package segment

import "encoding/binary"

// EntryType tags the payload that follows an EntryHeader. The set is
// extensible; SegHeader and SegFooter are the two structural types and
// are reserved.
type EntryType uint8

const (
	// Invalid marks an entry that failed validation or was never written.
	Invalid EntryType = 0
	// SegHeader must be the first entry of every segment.
	SegHeader EntryType = 1
	// SegFooter terminates iteration when present.
	SegFooter EntryType = 2
	// Object carries a live key-value payload.
	Object EntryType = 3
	// Tombstone records a deletion of a key written in an earlier segment.
	Tombstone EntryType = 4
)

func (t EntryType) String() string {
	switch t {
	case SegHeader:
		return "SEGHEADER"
	case SegFooter:
		return "SEGFOOTER"
	case Object:
		return "OBJECT"
	case Tombstone:
		return "TOMBSTONE"
	default:
		return "INVALID"
	}
}

const (
	// EntryHeaderSize is sizeof(EntryHeader): type(1) + reserved(1) + length(4) + checksum(4).
	EntryHeaderSize = 10
	// HeaderSize is sizeof(Header): segmentId(8) + segmentCapacity(8).
	HeaderSize = 16
	// FooterSize is sizeof(Footer): segmentChecksum(4).
	FooterSize = 4
	// MinSegmentSize is the smallest buffer an Iterator will accept:
	// just enough for the mandatory SEGHEADER entry.
	MinSegmentSize = EntryHeaderSize + HeaderSize
)

// EntryHeader is the fixed-size prefix written before every entry's payload.
type EntryHeader struct {
	Type     EntryType
	Reserved byte
	Length   uint32
	Checksum uint32
}

// encodeEntryHeader writes h into buf[0:EntryHeaderSize].
func encodeEntryHeader(buf []byte, h EntryHeader) {
	buf[0] = byte(h.Type)
	buf[1] = h.Reserved
	binary.LittleEndian.PutUint32(buf[2:6], h.Length)
	binary.LittleEndian.PutUint32(buf[6:10], h.Checksum)
}

func decodeEntryHeader(buf []byte) EntryHeader {
	return EntryHeader{
		Type:     EntryType(buf[0]),
		Reserved: buf[1],
		Length:   binary.LittleEndian.Uint32(buf[2:6]),
		Checksum: binary.LittleEndian.Uint32(buf[6:10]),
	}
}

// Header is the payload of the initial SEGHEADER entry.
type Header struct {
	SegmentID       uint64
	SegmentCapacity uint64
}

func encodeHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint64(buf[0:8], h.SegmentID)
	binary.LittleEndian.PutUint64(buf[8:16], h.SegmentCapacity)
}

func decodeHeader(buf []byte) Header {
	return Header{
		SegmentID:       binary.LittleEndian.Uint64(buf[0:8]),
		SegmentCapacity: binary.LittleEndian.Uint64(buf[8:16]),
	}
}

// Footer is the payload of the terminal SEGFOOTER entry.
type Footer struct {
	SegmentChecksum uint32
}

func encodeFooter(buf []byte, f Footer) {
	binary.LittleEndian.PutUint32(buf[0:4], f.SegmentChecksum)
}

func decodeFooter(buf []byte) Footer {
	return Footer{SegmentChecksum: binary.LittleEndian.Uint32(buf[0:4])}
}
