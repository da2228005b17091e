package cleaner

import (
	"sort"

	"github.com/dray-io/cleaner/internal/segmentmgr"
)

// Comparator orders cleanable segments by cost-benefit score:
//
//	u     = live-byte fraction of the segment
//	age   = now - creationTimestamp
//	score = ((1 - u) * age) / (1 + u)
//
// Higher score sorts first. Per the stability requirement, every
// input (live bytes, creation timestamp, now) is snapshotted once at
// construction; no field is re-read from the underlying entries during
// sorting, so the ordering is well-defined even if the segment manager's
// view of these segments changes concurrently.
type Comparator struct {
	scored []scoredCandidate
}

type scoredCandidate struct {
	entry *segmentmgr.Entry
	score float64
}

// NewComparator snapshots candidates against now and computes every
// score up front.
func NewComparator(now int64, candidates []*segmentmgr.Entry) *Comparator {
	scored := make([]scoredCandidate, len(candidates))
	for i, e := range candidates {
		scored[i] = scoredCandidate{entry: e, score: score(e, now)}
	}
	return &Comparator{scored: scored}
}

func score(e *segmentmgr.Entry, now int64) float64 {
	u := e.Utilization()
	age := float64(now - e.CreationTimestamp)
	return ((1 - u) * age) / (1 + u)
}

// Sorted returns the candidates in descending score order. The sort is
// stable so segments with equal scores keep their original relative
// order across repeated calls.
func (c *Comparator) Sorted() []*segmentmgr.Entry {
	ordered := make([]scoredCandidate, len(c.scored))
	copy(ordered, c.scored)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].score > ordered[j].score
	})
	out := make([]*segmentmgr.Entry, len(ordered))
	for i, sc := range ordered {
		out[i] = sc.entry
	}
	return out
}

// ScoreOf returns the snapshotted score for id, or 0, false if id was
// not part of this comparator's candidate set.
func (c *Comparator) ScoreOf(id uint64) (float64, bool) {
	for _, sc := range c.scored {
		if sc.entry.ID == id {
			return sc.score, true
		}
	}
	return 0, false
}
