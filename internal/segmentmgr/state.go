// Package segmentmgr owns every segment's lifecycle: allocation, state
// transitions, the reserved survivor pool, and the candidate set the
// cleaner selects from. It is the only component permitted to mutate
// segment state; all other packages hold non-owning references bounded
// to a single cleaning pass.
package segmentmgr

// State is a segment's position in its lifecycle. Transitions are
// monotonic except that Survivor returns to Closed once sealed.
type State int

const (
	// Open segments are appendable by live writers.
	Open State = iota
	// Closed segments are immutable and durable or pending durability.
	Closed
	// Cleanable segments are candidates for the cleaner.
	Cleanable
	// Survivor segments are being produced by an in-progress cleaning pass.
	Survivor
	// Freeable segments have been cleaned and await seglet reclamation.
	Freeable
	// Free segments hold no live data; their seglets have been reclaimed.
	Free
)

func (s State) String() string {
	switch s {
	case Open:
		return "OPEN"
	case Closed:
		return "CLOSED"
	case Cleanable:
		return "CLEANABLE"
	case Survivor:
		return "SURVIVOR"
	case Freeable:
		return "FREEABLE"
	case Free:
		return "FREE"
	default:
		return "UNKNOWN"
	}
}

// Entry is the segment manager's bookkeeping record for one segment. The
// cleaner receives copies of Entry by pointer for the duration of a pass
// but must never mutate its fields directly.
type Entry struct {
	ID                uint64
	State             State
	Capacity          uint64
	LiveBytes         uint64
	BytesAppended     uint64
	BytesFreed        uint64
	CreationTimestamp int64
	SegletIDs         []uint64
	FreeableSeglets   int
}

// Utilization returns the fraction of Capacity currently occupied by
// live bytes (LiveBytes / Capacity), or 0 when Capacity is 0. A fully
// live segment reports 1.
func (e *Entry) Utilization() float64 {
	if e.Capacity == 0 {
		return 0
	}
	return float64(e.LiveBytes) / float64(e.Capacity)
}

// clone returns a shallow copy safe to hand to a caller outside the
// manager's lock: SegletIDs is copied so the caller cannot alias the
// manager's slice.
func (e *Entry) clone() *Entry {
	c := *e
	c.SegletIDs = append([]uint64(nil), e.SegletIDs...)
	return &c
}
