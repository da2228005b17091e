package cleaner

import (
	"context"

	"github.com/dray-io/cleaner/internal/entryhandler"
	"github.com/dray-io/cleaner/internal/metrics"
	"github.com/dray-io/cleaner/internal/segment"
	"github.com/dray-io/cleaner/internal/segmentmgr"
)

// doMemoryCompaction implements §4.6.2: compact the single candidate
// segment getSegmentToCompact picks, rewriting its live entries into a
// fresh same-segment buffer and returning unreferenced seglets to the
// allocator. Returns compacted=false if there was nothing to compact.
func (e *Engine) doMemoryCompaction(ctx context.Context) (writeCost float64, compacted bool, err error) {
	entry, _, ok := e.segments.GetSegmentToCompact()
	if !ok {
		return 0, false, nil
	}

	sealed, readErr := e.store.Read(entry.ID)
	if readErr != nil {
		e.quarantine(entry.ID, readErr)
		return 0, false, nil
	}
	it, iterErr := sealed.Iterator()
	if iterErr != nil {
		e.quarantine(entry.ID, iterErr)
		return 0, false, nil
	}

	target := segment.NewWriter(entry.ID, entry.Capacity)
	var liveBytes, bytesRelocated uint64

	for ; !it.Done(); it.Next() {
		switch it.Type() {
		case segment.Object, segment.Tombstone:
			ref := entryhandler.LogRef{SegmentID: entry.ID, Offset: it.Offset()}
			res := relocateEntry(e.handler, it.Type(), it.Payload(), ref, target, e.metrics, metrics.ModeInMemory)
			if res.failed {
				// The target was sized to the source's own capacity, so a
				// compaction target can never run out of space relocating a
				// strict subset of the source's own entries.
				panic("cleaner: in-memory compaction target ran out of space")
			}
			if res.appended {
				liveBytes += uint64(res.bytesAppended)
				bytesRelocated += uint64(res.bytesAppended)
			}
		}
	}

	sealedTarget := target.Seal()
	if err := e.store.Store(sealedTarget); err != nil {
		return 0, false, err
	}

	freedBytes := e.reclaimSeglets(entry, sealedTarget)
	if updErr := e.segments.UpdateLiveBytes(entry.ID, liveBytes); updErr != nil {
		return 0, false, updErr
	}

	if freedBytes > 0 {
		e.metrics.RecordBytesFreed(metrics.ModeInMemory, int64(freedBytes))
	}

	if freedBytes == 0 {
		return 0, true, nil
	}
	return float64(bytesRelocated+freedBytes) / float64(freedBytes), true, nil
}

// reclaimSeglets frees the trailing seglets the rewritten segment no
// longer needs and returns the number of bytes reclaimed.
func (e *Engine) reclaimSeglets(entry *segmentmgr.Entry, sealed segment.Sealed) uint64 {
	neededSeglets := segletsNeeded(uint64(len(sealed.Bytes())), e.cfg.SegletSizeBytes)
	originalSeglets := len(entry.SegletIDs)
	freedCount := originalSeglets - neededSeglets
	if freedCount <= 0 {
		return 0
	}
	if err := e.segments.FreeSeglets(entry.ID, freedCount); err != nil {
		return 0
	}
	return uint64(freedCount) * e.cfg.SegletSizeBytes
}

func segletsNeeded(sizeBytes, segletSize uint64) int {
	if segletSize == 0 {
		return 0
	}
	return int((sizeBytes + segletSize - 1) / segletSize)
}

func (e *Engine) quarantine(id uint64, cause error) {
	if err := e.segments.Quarantine(id); err != nil {
		e.log.Warnf("failed to quarantine segment", map[string]any{"segment_id": id, "error": err.Error()})
	}
	e.log.Warnf("segment quarantined", map[string]any{"segment_id": id, "cause": cause.Error()})
}
