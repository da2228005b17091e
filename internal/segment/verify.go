package segment

import "errors"

// ErrNoFooter is returned by VerifySegmentChecksum when the segment has
// no SEGFOOTER entry to verify against (iteration stopped early).
var ErrNoFooter = errors.New("segment: no SEGFOOTER present")

// VerifySegmentChecksum walks buf to the SEGFOOTER entry and reports
// whether the footer's stored checksum matches the checksum of every byte
// that precedes it. Returns ErrNoFooter if iteration never reaches a
// footer (truncated or corrupt segment).
func VerifySegmentChecksum(buf []byte) (bool, error) {
	it, err := New(buf)
	if err != nil {
		return false, err
	}
	for !it.Done() {
		if it.Type() == SegFooter {
			footer := decodeFooter(it.Payload())
			got := segmentChecksum(buf[:it.Offset()-EntryHeaderSize])
			return got == footer.SegmentChecksum, nil
		}
		it.Next()
	}
	return false, ErrNoFooter
}
