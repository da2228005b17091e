package segmentmgr

import "errors"

var (
	// ErrSurvivorPoolExhausted is returned by AllocateSurvivor when the
	// reserve has no quota left. Callers must wait for the reserve to be
	// replenished, not treat this as fatal.
	ErrSurvivorPoolExhausted = errors.New("segmentmgr: survivor reserve exhausted")
	// ErrUnknownSegment is returned when an operation names a segment ID
	// the manager has no record of.
	ErrUnknownSegment = errors.New("segmentmgr: unknown segment")
	// ErrInvalidTransition is returned when a requested state change does
	// not follow the lifecycle's monotonic ordering.
	ErrInvalidTransition = errors.New("segmentmgr: invalid state transition")
	// ErrUtilizationTooHigh is returned by MarkCleanable when a segment's
	// live-byte fraction exceeds MaxCleanableMemoryUtilizationPct.
	ErrUtilizationTooHigh = errors.New("segmentmgr: utilization exceeds cleanable cap")
)
