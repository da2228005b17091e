package segment

import "hash/crc32"

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// entryChecksum computes the checksum an EntryHeader's Checksum field must
// hold: CRC32C over the type/reserved/length fields followed by the
// payload. The checksum field itself is excluded so the value is
// computable before it is known.
func entryChecksum(entryType EntryType, reserved byte, length uint32, payload []byte) uint32 {
	var lenBuf [4]byte
	crc := crc32.Update(0, castagnoli, []byte{byte(entryType), reserved})
	putUint32LE(lenBuf[:], length)
	crc = crc32.Update(crc, castagnoli, lenBuf[:])
	crc = crc32.Update(crc, castagnoli, payload)
	return crc
}

// segmentChecksum computes the checksum a Footer's SegmentChecksum field
// must hold: CRC32C over every byte written before the footer entry.
func segmentChecksum(written []byte) uint32 {
	return crc32.Checksum(written, castagnoli)
}

func putUint32LE(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}
