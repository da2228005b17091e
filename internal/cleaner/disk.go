package cleaner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dray-io/cleaner/internal/entryhandler"
	"github.com/dray-io/cleaner/internal/metrics"
	"github.com/dray-io/cleaner/internal/replica"
	"github.com/dray-io/cleaner/internal/segment"
	"github.com/dray-io/cleaner/internal/segmentmgr"
)

// liveEntry is a deferred relocation task extracted from a source
// segment during S2: the entry's type, its own log location (needed to
// judge liveness at relocation time), its embedded creation timestamp
// for the S3 age sort, and the payload bytes it carries.
type liveEntry struct {
	sourceID  uint64
	offset    int
	entryType segment.EntryType
	timestamp int64
	payload   []byte
}

func (le liveEntry) ref() entryhandler.LogRef {
	return entryhandler.LogRef{SegmentID: le.sourceID, Offset: le.offset}
}

// doDiskCleaning implements §4.6.3's five stages. Returns cleaned=false
// if there were no candidates to select from.
func (e *Engine) doDiskCleaning(ctx context.Context) (cleaned bool, err error) {
	candidates := e.snapshotCandidates()
	if len(candidates) == 0 {
		return false, nil
	}

	sources := e.selectSources(candidates)
	if len(sources) == 0 {
		return false, nil
	}

	entries, quarantined := e.extractLiveEntries(sources)
	sources = removeQuarantined(sources, quarantined)
	if len(sources) == 0 {
		return false, nil
	}

	sortByTimestampAscending(entries)

	survivors, survivorSealed, err := e.relocateAll(ctx, entries)
	if err != nil {
		return false, err
	}

	if err := e.durableHandOff(ctx, survivorSealed); err != nil {
		return false, err
	}

	if err := e.finishPass(sources, survivors); err != nil {
		return false, err
	}
	e.metrics.RecordPassCompleted(metrics.ModeOnDisk)
	return true, nil
}

// selectSources implements S1: sort by cost-benefit score, take sources
// in order until combined live bytes reach the per-pass budget.
func (e *Engine) selectSources(candidates []*segmentmgr.Entry) []*segmentmgr.Entry {
	cmp := NewComparator(e.nowUnix(), candidates)
	sorted := cmp.Sorted()

	budget := uint64(e.cfg.MaxLiveSegmentsPerDiskPass) * e.cfg.SegmentCapacityBytes
	var liveBudget uint64
	var sources []*segmentmgr.Entry
	for _, c := range sorted {
		if liveBudget >= budget {
			break
		}
		sources = append(sources, c)
		liveBudget += c.LiveBytes
	}
	return sources
}

// extractLiveEntries implements S2: read each selected source's
// entries, cheaply consulting the handler on each OBJECT/TOMBSTONE
// entry's own log location and recording only the ones it reports as
// potentially live as liveEntry tasks. This is what keeps a dead,
// superseded copy of an overwritten key from ever reaching S3/S4: the
// handler's answer is ref-specific, not merely key-specific, so only
// the one copy actually sitting at the key's current reference passes
// the filter. Sources whose iterator reports a format error are
// quarantined and returned separately so the caller can drop them from
// the pass.
func (e *Engine) extractLiveEntries(sources []*segmentmgr.Entry) (entries []liveEntry, quarantined map[uint64]bool) {
	quarantined = make(map[uint64]bool)
	for _, src := range sources {
		sealed, err := e.store.Read(src.ID)
		if err != nil {
			e.quarantine(src.ID, err)
			quarantined[src.ID] = true
			continue
		}
		it, err := sealed.Iterator()
		if err != nil {
			e.quarantine(src.ID, err)
			quarantined[src.ID] = true
			continue
		}
		for ; !it.Done(); it.Next() {
			if it.Type() != segment.Object && it.Type() != segment.Tombstone {
				continue
			}
			payload := it.Payload()
			ts, tsErr := entryhandler.PeekTimestamp(payload)
			if tsErr != nil {
				continue
			}
			ref := entryhandler.LogRef{SegmentID: src.ID, Offset: it.Offset()}
			if !e.handler.PotentiallyLive(it.Type(), payload, ref) {
				continue
			}
			entries = append(entries, liveEntry{
				sourceID:  src.ID,
				offset:    it.Offset(),
				entryType: it.Type(),
				timestamp: ts,
				payload:   payload,
			})
		}
	}
	return entries, quarantined
}

func removeQuarantined(sources []*segmentmgr.Entry, quarantined map[uint64]bool) []*segmentmgr.Entry {
	if len(quarantined) == 0 {
		return sources
	}
	out := make([]*segmentmgr.Entry, 0, len(sources))
	for _, s := range sources {
		if !quarantined[s.ID] {
			out = append(out, s)
		}
	}
	return out
}

// sortByTimestampAscending implements S3.
func sortByTimestampAscending(entries []liveEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].timestamp < entries[j].timestamp
	})
}

type sealedSurvivor struct {
	id     uint64
	sealed segment.Sealed
}

// relocateAll implements S4: relocate every entry in order into
// survivors drawn from the reserve, sealing and replacing the current
// survivor whenever it runs out of space.
func (e *Engine) relocateAll(ctx context.Context, entries []liveEntry) (survivorIDs []uint64, sealed []sealedSurvivor, err error) {
	if len(entries) == 0 {
		return nil, nil, nil
	}

	current, err := e.allocateSurvivorWithWait(ctx)
	if err != nil {
		return nil, nil, err
	}
	writer := segment.NewWriter(current.ID, current.Capacity)
	survivorIDs = append(survivorIDs, current.ID)

	for _, le := range entries {
		for {
			res := relocateEntry(e.handler, le.entryType, le.payload, le.ref(), writer, e.metrics, metrics.ModeOnDisk)
			if !res.failed {
				break
			}
			sealed = append(sealed, sealedSurvivor{id: current.ID, sealed: writer.Seal()})
			e.metrics.RecordSurvivorProduced(metrics.ModeOnDisk)

			current, err = e.allocateSurvivorWithWait(ctx)
			if err != nil {
				return nil, nil, err
			}
			writer = segment.NewWriter(current.ID, current.Capacity)
			survivorIDs = append(survivorIDs, current.ID)
		}
	}

	sealed = append(sealed, sealedSurvivor{id: current.ID, sealed: writer.Seal()})
	e.metrics.RecordSurvivorProduced(metrics.ModeOnDisk)
	return survivorIDs, sealed, nil
}

// allocateSurvivorWithWait retries allocateSurvivor while the pool is
// exhausted, bounded by cfg.SurvivorWaitTimeout, realizing the
// resource-exhaustion error policy from §7: wait bounded by the
// reserve's release, never surfaced as a hard failure until the bound
// expires.
func (e *Engine) allocateSurvivorWithWait(ctx context.Context) (*segmentmgr.Entry, error) {
	deadline := time.Now().Add(e.cfg.SurvivorWaitTimeout)
	for {
		entry, err := e.segments.AllocateSurvivor(e.nowUnix())
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, segmentmgr.ErrSurvivorPoolExhausted) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: survivor pool exhausted past wait timeout", errPassAborted)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(e.cfg.SurvivorWaitPoll):
		}
	}
}

// durableHandOff implements S5's first half: submit every survivor to
// the replica manager and wait for all of them to become durable before
// any source is retired.
func (e *Engine) durableHandOff(ctx context.Context, survivors []sealedSurvivor) error {
	futures := make([]replicaWait, 0, len(survivors))
	for _, sv := range survivors {
		fut, err := e.replica.Replicate(ctx, sv.sealed)
		if err != nil {
			return fmt.Errorf("cleaner: replicate survivor %d: %w", sv.id, err)
		}
		futures = append(futures, replicaWait{id: sv.id, fut: fut})
	}
	for _, f := range futures {
		if err := f.fut.Wait(ctx); err != nil {
			return fmt.Errorf("cleaner: survivor %d did not become durable: %w", f.id, err)
		}
	}
	for _, sv := range survivors {
		if err := e.store.Store(sv.sealed); err != nil {
			return fmt.Errorf("cleaner: persist survivor %d: %w", sv.id, err)
		}
	}
	return nil
}

type replicaWait struct {
	id  uint64
	fut replica.Future
}

// finishPass implements S5's second half: atomically retire sources and
// admit survivors, then reclaim the sources' seglets now that I3 is
// satisfied (every survivor holding their bytes is durable).
func (e *Engine) finishPass(sources []*segmentmgr.Entry, survivorIDs []uint64) error {
	sourceIDs := make([]uint64, len(sources))
	for i, s := range sources {
		sourceIDs[i] = s.ID
	}

	if err := e.segments.ReportCleaned(sourceIDs, survivorIDs); err != nil {
		return fmt.Errorf("cleaner: report cleaned: %w", err)
	}

	for _, s := range sources {
		if err := e.segments.FreeSegment(s.ID); err != nil {
			e.log.Warnf("failed to free cleaned source segment", map[string]any{"segment_id": s.ID, "error": err.Error()})
			continue
		}
		e.store.Delete(s.ID)
		e.metrics.RecordSegmentCleaned(metrics.ModeOnDisk)
		e.metrics.RecordBytesFreed(metrics.ModeOnDisk, int64(s.Capacity))
	}
	return nil
}
