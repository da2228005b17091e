package segment

import "errors"

// Format errors returned by New. All are recoverable: the caller should
// treat the segment as not cleanable and quarantine it, never crash.
var (
	ErrBufferTooSmall      = errors.New("segment: buffer smaller than a bare SEGHEADER entry")
	ErrFirstEntryNotHeader = errors.New("segment: first entry is not SEGHEADER")
	ErrHeaderLengthMismatch = errors.New("segment: SEGHEADER entry length does not match sizeof(Header)")
	ErrTruncatedEntry      = errors.New("segment: entry would overrun the buffer")
	ErrCapacityMismatch    = errors.New("segment: declared segmentCapacity does not match buffer length")
)
