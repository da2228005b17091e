package metrics

import (
	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mode distinguishes in-memory compaction metrics from on-disk cleaning
// metrics, mirroring the original implementation's separate InMemory and
// OnDisk metric bags.
type Mode string

const (
	ModeInMemory Mode = "in_memory"
	ModeOnDisk   Mode = "on_disk"
)

// CleanerMetrics holds the cleaner-wide cycle counters and the per-mode
// relocation/byte/segment/survivor/pass counters.
type CleanerMetrics struct {
	DoWorkTicks      prometheus.Counter
	DoWorkSleepTicks prometheus.Counter
	ThreadsActive    prometheus.Gauge

	RelocationCallbacksTotal *prometheus.CounterVec
	RelocationAppendsTotal   *prometheus.CounterVec
	BytesRelocatedTotal      *prometheus.CounterVec
	BytesFreedTotal          *prometheus.CounterVec
	SegmentsCleanedTotal     *prometheus.CounterVec
	SurvivorsProducedTotal   *prometheus.CounterVec
	PassesCompletedTotal     *prometheus.CounterVec
}

// NewCleanerMetrics creates and registers cleaner metrics with the
// default registry.
func NewCleanerMetrics() *CleanerMetrics {
	return &CleanerMetrics{
		DoWorkTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "do_work_ticks_total",
			Help:      "Total number of top-level loop iterations that found work to do.",
		}),
		DoWorkSleepTicks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "do_work_sleep_ticks_total",
			Help:      "Total number of top-level loop iterations that found no work and slept.",
		}),
		ThreadsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "threads_active",
			Help:      "Number of cleaner worker goroutines currently running.",
		}),
		RelocationCallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "relocation_callbacks_total",
			Help:      "Total entries visited and offered to the entry handler, by mode.",
		}, []string{"mode"}),
		RelocationAppendsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "relocation_appends_total",
			Help:      "Total successful survivor appends, by mode.",
		}, []string{"mode"}),
		BytesRelocatedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "bytes_relocated_total",
			Help:      "Total payload bytes relocated into survivors, by mode.",
		}, []string{"mode"}),
		BytesFreedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "bytes_freed_total",
			Help:      "Total bytes reclaimed from freed seglets, by mode.",
		}, []string{"mode"}),
		SegmentsCleanedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "segments_cleaned_total",
			Help:      "Total source segments cleaned, by mode.",
		}, []string{"mode"}),
		SurvivorsProducedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "survivors_produced_total",
			Help:      "Total survivor segments sealed, by mode.",
		}, []string{"mode"}),
		PassesCompletedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cleaner",
			Subsystem: "engine",
			Name:      "passes_completed_total",
			Help:      "Total cleaning passes completed, by mode.",
		}, []string{"mode"}),
	}
}

// NewCleanerMetricsWithRegistry creates cleaner metrics registered with
// a custom registry, for test isolation.
func NewCleanerMetricsWithRegistry(reg prometheus.Registerer) *CleanerMetrics {
	doWorkTicks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "do_work_ticks_total",
		Help: "Total number of top-level loop iterations that found work to do.",
	})
	doWorkSleepTicks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "do_work_sleep_ticks_total",
		Help: "Total number of top-level loop iterations that found no work and slept.",
	})
	threadsActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "threads_active",
		Help: "Number of cleaner worker goroutines currently running.",
	})
	relocationCallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "relocation_callbacks_total",
		Help: "Total entries visited and offered to the entry handler, by mode.",
	}, []string{"mode"})
	relocationAppends := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "relocation_appends_total",
		Help: "Total successful survivor appends, by mode.",
	}, []string{"mode"})
	bytesRelocated := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "bytes_relocated_total",
		Help: "Total payload bytes relocated into survivors, by mode.",
	}, []string{"mode"})
	bytesFreed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "bytes_freed_total",
		Help: "Total bytes reclaimed from freed seglets, by mode.",
	}, []string{"mode"})
	segmentsCleaned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "segments_cleaned_total",
		Help: "Total source segments cleaned, by mode.",
	}, []string{"mode"})
	survivorsProduced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "survivors_produced_total",
		Help: "Total survivor segments sealed, by mode.",
	}, []string{"mode"})
	passesCompleted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cleaner", Subsystem: "engine", Name: "passes_completed_total",
		Help: "Total cleaning passes completed, by mode.",
	}, []string{"mode"})

	reg.MustRegister(doWorkTicks, doWorkSleepTicks, threadsActive,
		relocationCallbacks, relocationAppends, bytesRelocated, bytesFreed,
		segmentsCleaned, survivorsProduced, passesCompleted)

	return &CleanerMetrics{
		DoWorkTicks:               doWorkTicks,
		DoWorkSleepTicks:          doWorkSleepTicks,
		ThreadsActive:             threadsActive,
		RelocationCallbacksTotal:  relocationCallbacks,
		RelocationAppendsTotal:    relocationAppends,
		BytesRelocatedTotal:       bytesRelocated,
		BytesFreedTotal:           bytesFreed,
		SegmentsCleanedTotal:      segmentsCleaned,
		SurvivorsProducedTotal:    survivorsProduced,
		PassesCompletedTotal:      passesCompleted,
	}
}

// RecordDoWorkTick increments the work-found counter.
func (m *CleanerMetrics) RecordDoWorkTick() { m.DoWorkTicks.Inc() }

// RecordSleepTick increments the idle-sleep counter.
func (m *CleanerMetrics) RecordSleepTick() { m.DoWorkSleepTicks.Inc() }

// SetThreadsActive reports the current worker count.
func (m *CleanerMetrics) SetThreadsActive(n int) { m.ThreadsActive.Set(float64(n)) }

// RecordRelocation records a single entry visited by relocateEntry: one
// callback, and if appended is true, one append plus its payload bytes.
func (m *CleanerMetrics) RecordRelocation(mode Mode, appended bool, payloadBytes int64) {
	label := string(mode)
	m.RelocationCallbacksTotal.WithLabelValues(label).Inc()
	if appended {
		m.RelocationAppendsTotal.WithLabelValues(label).Inc()
		m.BytesRelocatedTotal.WithLabelValues(label).Add(float64(payloadBytes))
	}
}

// RecordBytesFreed records bytes reclaimed from freed seglets.
func (m *CleanerMetrics) RecordBytesFreed(mode Mode, n int64) {
	m.BytesFreedTotal.WithLabelValues(string(mode)).Add(float64(n))
}

// RecordSegmentCleaned records one source segment cleaned.
func (m *CleanerMetrics) RecordSegmentCleaned(mode Mode) {
	m.SegmentsCleanedTotal.WithLabelValues(string(mode)).Inc()
}

// RecordSurvivorProduced records one survivor sealed.
func (m *CleanerMetrics) RecordSurvivorProduced(mode Mode) {
	m.SurvivorsProducedTotal.WithLabelValues(string(mode)).Inc()
}

// RecordPassCompleted records one cleaning pass finishing.
func (m *CleanerMetrics) RecordPassCompleted(mode Mode) {
	m.PassesCompletedTotal.WithLabelValues(string(mode)).Inc()
}

// ModeSnapshot is a flat, immutable read of one mode's counters.
type ModeSnapshot struct {
	RelocationCallbacks uint64
	RelocationAppends   uint64
	BytesRelocated      uint64
	BytesFreed          uint64
	SegmentsCleaned     uint64
	SurvivorsProduced   uint64
	PassesCompleted     uint64
}

// Snapshot is a flat, immutable read of every cleaner metric. Each
// series is read on its own through Write, with no lock across the
// reads, so the result is not atomic: an update that lands while
// Snapshot runs can show in some fields and not in others.
type Snapshot struct {
	DoWorkTicks      uint64
	DoWorkSleepTicks uint64
	ThreadsActive    int
	InMemory         ModeSnapshot
	OnDisk           ModeSnapshot
}

// Snapshot reads every metric into a flat struct.
func (m *CleanerMetrics) Snapshot() Snapshot {
	return Snapshot{
		DoWorkTicks:      readCounter(m.DoWorkTicks),
		DoWorkSleepTicks: readCounter(m.DoWorkSleepTicks),
		ThreadsActive:    int(readGauge(m.ThreadsActive)),
		InMemory:         m.modeSnapshot(ModeInMemory),
		OnDisk:           m.modeSnapshot(ModeOnDisk),
	}
}

func (m *CleanerMetrics) modeSnapshot(mode Mode) ModeSnapshot {
	label := string(mode)
	return ModeSnapshot{
		RelocationCallbacks: readCounterVec(m.RelocationCallbacksTotal, label),
		RelocationAppends:   readCounterVec(m.RelocationAppendsTotal, label),
		BytesRelocated:      readCounterVec(m.BytesRelocatedTotal, label),
		BytesFreed:          readCounterVec(m.BytesFreedTotal, label),
		SegmentsCleaned:     readCounterVec(m.SegmentsCleanedTotal, label),
		SurvivorsProduced:   readCounterVec(m.SurvivorsProducedTotal, label),
		PassesCompleted:     readCounterVec(m.PassesCompletedTotal, label),
	}
}

func readCounter(c prometheus.Counter) uint64 {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0
	}
	return uint64(metric.GetCounter().GetValue())
}

func readGauge(g prometheus.Gauge) float64 {
	var metric dto.Metric
	if err := g.Write(&metric); err != nil {
		return 0
	}
	return metric.GetGauge().GetValue()
}

func readCounterVec(cv *prometheus.CounterVec, label string) uint64 {
	var metric dto.Metric
	if err := cv.WithLabelValues(label).Write(&metric); err != nil {
		return 0
	}
	return uint64(metric.GetCounter().GetValue())
}
