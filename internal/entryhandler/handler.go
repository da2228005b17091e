// Package entryhandler defines the per-entry liveness and relocation
// callback the cleaner invokes while walking a segment, plus a
// LiveDirectory-backed reference implementation.
package entryhandler

import "github.com/dray-io/cleaner/internal/segment"

// Handler decides, for each visited entry, whether it survives cleaning
// and if so relocates it into the current survivor via relocator. ref
// identifies the entry's own log location, which is what liveness is
// actually judged against: a key's liveness is a property of one
// specific (segment, offset), not of the key alone. Declining to call
// relocator.Append is how an implementation marks an entry dead; there
// is no separate "skip" method.
type Handler interface {
	Relocate(entryType segment.EntryType, payload []byte, ref LogRef, relocator *Relocator)

	// PotentiallyLive offers a cheap liveness pre-filter ahead of the
	// full Relocate path, for a caller deciding whether an entry is even
	// worth carrying forward into later cleaning stages. A false return
	// is a firm guarantee the entry is dead; a true return is not a
	// promise that Relocate will actually append it.
	PotentiallyLive(entryType segment.EntryType, payload []byte, ref LogRef) bool
}

// Relocator wraps the survivor segment currently being filled. Append
// reports whether the write succeeded; a false return means the
// survivor had insufficient remaining capacity and Failed will report
// true for the rest of this call.
type Relocator struct {
	writer *segment.Writer
	failed bool
}

// NewRelocator wraps writer for use by a single Handler.Relocate call.
func NewRelocator(writer *segment.Writer) *Relocator {
	return &Relocator{writer: writer}
}

// Append writes entryType/payload into the wrapped survivor. Returns
// false (and sets Failed) on out-of-space; the cleaner is responsible
// for sealing the survivor, allocating a fresh one, and retrying the
// same entry against a new Relocator.
func (r *Relocator) Append(entryType segment.EntryType, payload []byte) bool {
	if err := r.writer.Append(entryType, payload); err != nil {
		r.failed = true
		return false
	}
	return true
}

// Failed reports whether any Append call on this Relocator ran out of
// space; once set it stays set.
func (r *Relocator) Failed() bool {
	return r.failed
}
