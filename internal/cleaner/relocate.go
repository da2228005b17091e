package cleaner

import (
	"github.com/dray-io/cleaner/internal/entryhandler"
	"github.com/dray-io/cleaner/internal/metrics"
	"github.com/dray-io/cleaner/internal/segment"
)

// relocateResult reports what relocateEntry observed: whether the
// handler appended anything, how many bytes it wrote, and whether the
// attempt failed for lack of survivor capacity.
type relocateResult struct {
	appended      bool
	bytesAppended int
	failed        bool
}

// relocateEntry offers one entry, at its own log location ref, to
// handler and reports the outcome, updating the metrics bag for the
// given mode. This realizes the template relocateEntry helper both
// in-memory compaction and on-disk cleaning share: the only thing that
// differs between call sites is which metrics mode the observation is
// filed under.
func relocateEntry(handler entryhandler.Handler, entryType segment.EntryType, payload []byte, ref entryhandler.LogRef, writer *segment.Writer, m *metrics.CleanerMetrics, mode metrics.Mode) relocateResult {
	before := writer.Size()
	relocator := entryhandler.NewRelocator(writer)
	handler.Relocate(entryType, payload, ref, relocator)
	after := writer.Size()

	res := relocateResult{
		appended:      after > before,
		bytesAppended: after - before,
		failed:        relocator.Failed(),
	}
	m.RecordRelocation(mode, res.appended, int64(res.bytesAppended))
	return res
}
