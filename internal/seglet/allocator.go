// Package seglet tracks ownership of a fixed pool of fixed-size seglets:
// the disk-space units that back segments. A segment's capacity is always
// an integer number of seglets; the allocator only counts slots, it does
// not carry their bytes.
package seglet

import (
	"errors"
	"fmt"
	"sync"
)

// ID identifies a single seglet slot within a pool.
type ID uint64

// ErrPoolExhausted is returned by Reserve when fewer than the requested
// number of seglets remain unowned.
var ErrPoolExhausted = errors.New("seglet: pool exhausted")

// Allocator owns a fixed pool of poolSize seglets and tracks which are
// currently reserved by a caller. It enforces that outstanding seglets
// never exceed the pool size.
type Allocator struct {
	mu          sync.Mutex
	poolSize    int
	outstanding map[ID]struct{}
	next        ID
}

// New creates an Allocator over a pool of poolSize seglets, none reserved.
func New(poolSize int) *Allocator {
	if poolSize < 0 {
		panic("seglet: negative poolSize")
	}
	return &Allocator{
		poolSize:    poolSize,
		outstanding: make(map[ID]struct{}, poolSize),
	}
}

// Reserve hands out k fresh seglet IDs, or ErrPoolExhausted (and no IDs)
// if fewer than k remain available.
func (a *Allocator) Reserve(k int) ([]ID, error) {
	if k < 0 {
		panic("seglet: negative reservation count")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.outstanding)+k > a.poolSize {
		return nil, fmt.Errorf("%w: have %d free, want %d", ErrPoolExhausted, a.poolSize-len(a.outstanding), k)
	}

	ids := make([]ID, k)
	for i := 0; i < k; i++ {
		id := a.next
		a.next++
		a.outstanding[id] = struct{}{}
		ids[i] = id
	}
	return ids, nil
}

// Release returns ids to the pool. Releasing an ID not currently
// outstanding is a precondition violation and panics: it indicates a bug
// in the caller's bookkeeping, not a recoverable runtime condition.
func (a *Allocator) Release(ids []ID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, id := range ids {
		if _, ok := a.outstanding[id]; !ok {
			panic(fmt.Sprintf("seglet: release of id %d not currently outstanding", id))
		}
		delete(a.outstanding, id)
	}
}

// Outstanding returns the number of seglets currently reserved.
func (a *Allocator) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.outstanding)
}

// PoolSize returns the total number of seglets in the pool.
func (a *Allocator) PoolSize() int {
	return a.poolSize
}
