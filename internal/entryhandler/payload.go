package entryhandler

import (
	"encoding/binary"
	"errors"
)

// ErrPayloadTooShort is returned by the Decode functions when a payload
// is shorter than its fixed envelope.
var ErrPayloadTooShort = errors.New("entryhandler: payload shorter than its envelope")

// ObjectPayload is the wire envelope LiveDirectoryHandler expects for
// OBJECT entries: an 8-byte little-endian creation timestamp, a 2-byte
// key length, the key, then the value.
type ObjectPayload struct {
	Timestamp int64
	Key       []byte
	Value     []byte
}

// EncodeObjectPayload serializes p into a segment entry payload.
func EncodeObjectPayload(p ObjectPayload) []byte {
	buf := make([]byte, 8+2+len(p.Key)+len(p.Value))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(p.Timestamp))
	binary.LittleEndian.PutUint16(buf[8:10], uint16(len(p.Key)))
	copy(buf[10:10+len(p.Key)], p.Key)
	copy(buf[10+len(p.Key):], p.Value)
	return buf
}

// DecodeObjectPayload parses an OBJECT entry's payload.
func DecodeObjectPayload(buf []byte) (ObjectPayload, error) {
	if len(buf) < 10 {
		return ObjectPayload{}, ErrPayloadTooShort
	}
	keyLen := int(binary.LittleEndian.Uint16(buf[8:10]))
	if len(buf) < 10+keyLen {
		return ObjectPayload{}, ErrPayloadTooShort
	}
	return ObjectPayload{
		Timestamp: int64(binary.LittleEndian.Uint64(buf[0:8])),
		Key:       buf[10 : 10+keyLen],
		Value:     buf[10+keyLen:],
	}, nil
}

// TombstonePayload is the wire envelope for TOMBSTONE entries: an
// 8-byte little-endian creation timestamp followed by the covered key.
type TombstonePayload struct {
	Timestamp int64
	Key       []byte
}

// EncodeTombstonePayload serializes p into a segment entry payload.
func EncodeTombstonePayload(p TombstonePayload) []byte {
	buf := make([]byte, 8+len(p.Key))
	binary.LittleEndian.PutUint64(buf[0:8], uint64(p.Timestamp))
	copy(buf[8:], p.Key)
	return buf
}

// DecodeTombstonePayload parses a TOMBSTONE entry's payload.
func DecodeTombstonePayload(buf []byte) (TombstonePayload, error) {
	if len(buf) < 8 {
		return TombstonePayload{}, ErrPayloadTooShort
	}
	return TombstonePayload{
		Timestamp: int64(binary.LittleEndian.Uint64(buf[0:8])),
		Key:       buf[8:],
	}, nil
}

// PeekTimestamp reads the leading 8-byte little-endian creation
// timestamp shared by both ObjectPayload and TombstonePayload's wire
// envelopes, without decoding the rest of the payload. Callers doing
// age-based sorting across mixed entry types use this instead of a
// type-specific Decode.
func PeekTimestamp(buf []byte) (int64, error) {
	if len(buf) < 8 {
		return 0, ErrPayloadTooShort
	}
	return int64(binary.LittleEndian.Uint64(buf[0:8])), nil
}
