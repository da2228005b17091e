package cleaner

import (
	"context"
	"sync"
	"time"

	"github.com/dray-io/cleaner/internal/entryhandler"
	"github.com/dray-io/cleaner/internal/logging"
	"github.com/dray-io/cleaner/internal/metrics"
	"github.com/dray-io/cleaner/internal/replica"
	"github.com/dray-io/cleaner/internal/segmentmgr"
)

// Config carries seven of the cleaner's externally tunable knobs plus
// the segment dimensions it needs to reason about capacity. The other
// two (MaxCleanableMemoryUtilization, SurvivorSegmentsToReserve) are
// set on segmentmgr.Config.
type Config struct {
	SegmentCapacityBytes uint64
	SegletSizeBytes      uint64

	WriteCostThreshold         float64
	DisableInMemoryCleaning    bool
	NumThreads                 int
	MinMemoryUtilization       int // percent, 0-100
	MinDiskUtilization         int // percent, 0-100
	MaxLiveSegmentsPerDiskPass int
	PollInterval               time.Duration

	// SurvivorWaitTimeout bounds how long a disk pass blocks in
	// allocateSurvivor before aborting the pass with errPassAborted. It
	// realizes §5's "suspension point... bounded by the reserve's
	// release" without blocking a worker forever on a pool that never
	// recovers.
	SurvivorWaitTimeout time.Duration
	SurvivorWaitPoll    time.Duration
}

// Engine holds every collaborator the cleaner's policy needs and the
// state shared across its worker threads: the candidate snapshot lock
// and the rolling write-cost estimate.
type Engine struct {
	cfg     Config
	segments *segmentmgr.Manager
	store   SegmentStore
	handler entryhandler.Handler
	replica replica.Manager
	metrics *metrics.CleanerMetrics
	log     *logging.Logger

	now func() int64

	// candidatesLock guards nothing but the act of snapshotting the
	// candidate list from the segment manager; per §5 it is never held
	// across I/O or relocation.
	candidatesLock sync.Mutex

	wcMu             sync.Mutex
	rollingWriteCost float64
}

// New creates an Engine. log may be nil.
func New(cfg Config, segments *segmentmgr.Manager, store SegmentStore, handler entryhandler.Handler, repl replica.Manager, m *metrics.CleanerMetrics, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.DefaultLogger()
	}
	if cfg.SurvivorWaitPoll == 0 {
		cfg.SurvivorWaitPoll = time.Millisecond
	}
	return &Engine{
		cfg:      cfg,
		segments: segments,
		store:    store,
		handler:  handler,
		replica:  repl,
		metrics:  m,
		log:      log,
		now:      func() int64 { return time.Now().Unix() },
	}
}

func (e *Engine) nowUnix() int64 {
	return e.now()
}

// snapshotCandidates takes candidatesLock only long enough to pull a
// fresh copy of the cleanable set from the segment manager.
func (e *Engine) snapshotCandidates() []*segmentmgr.Entry {
	e.candidatesLock.Lock()
	defer e.candidatesLock.Unlock()
	return e.segments.GetCleanableCandidates()
}

// RunOnce executes a single iteration of the top-level loop (§4.6.1):
// it snapshots utilization, runs at most one stage, and reports whether
// any work was found. Workers call this in a loop, sleeping cfg.PollInterval
// between iterations that return didWork=false.
func (e *Engine) RunOnce(ctx context.Context) (didWork bool, err error) {
	memUtil := e.segments.MemoryUtilization() * 100
	diskUtil := e.segments.DiskUtilization() * 100

	forceDisk := e.forcedDiskPass()

	if !forceDisk && memUtil >= float64(e.cfg.MinMemoryUtilization) && !e.cfg.DisableInMemoryCleaning {
		writeCost, compacted, err := e.doMemoryCompaction(ctx)
		if err != nil {
			return false, err
		}
		if compacted {
			e.metrics.RecordDoWorkTick()
			e.accumulateWriteCost(writeCost)
			return true, nil
		}
	}

	if forceDisk || diskUtil >= float64(e.cfg.MinDiskUtilization) {
		cleaned, err := e.doDiskCleaning(ctx)
		if err != nil {
			return false, err
		}
		if cleaned {
			e.metrics.RecordDoWorkTick()
			e.resetWriteCost()
			return true, nil
		}
	}

	e.metrics.RecordSleepTick()
	return false, nil
}

func (e *Engine) accumulateWriteCost(writeCost float64) {
	e.wcMu.Lock()
	e.rollingWriteCost += writeCost
	e.wcMu.Unlock()
}

func (e *Engine) resetWriteCost() {
	e.wcMu.Lock()
	e.rollingWriteCost = 0
	e.wcMu.Unlock()
}

// forcedDiskPass reports whether the rolling write cost has exceeded
// writeCostThreshold, per §4.6.5.
func (e *Engine) forcedDiskPass() bool {
	e.wcMu.Lock()
	defer e.wcMu.Unlock()
	return e.rollingWriteCost > e.cfg.WriteCostThreshold
}
