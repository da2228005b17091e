package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dray-io/cleaner/internal/cleaner"
	"github.com/dray-io/cleaner/internal/codec"
	"github.com/dray-io/cleaner/internal/config"
	"github.com/dray-io/cleaner/internal/entryhandler"
	"github.com/dray-io/cleaner/internal/logging"
	"github.com/dray-io/cleaner/internal/metrics"
	"github.com/dray-io/cleaner/internal/objectstore/s3"
	"github.com/dray-io/cleaner/internal/replica"
	"github.com/dray-io/cleaner/internal/replica/inproc"
	"github.com/dray-io/cleaner/internal/replica/s3backed"
	"github.com/dray-io/cleaner/internal/segmentmgr"
	"github.com/dray-io/cleaner/internal/seglet"
	"github.com/dray-io/cleaner/internal/server"
)

// CleanerdOptions carries everything needed to build a Cleanerd.
type CleanerdOptions struct {
	Config    *config.Config
	Logger    *logging.Logger
	WorkerID  string
	Version   string
	GitCommit string
	BuildTime string
}

// Cleanerd wires the cleaner engine's collaborators together and runs
// them as a long-lived process: a worker pool driving cleaner passes
// plus a health/metrics HTTP endpoint.
type Cleanerd struct {
	opts   CleanerdOptions
	logger *logging.Logger

	segments *segmentmgr.Manager
	pool     *cleaner.Pool
	health   *server.HealthServer

	mu      sync.Mutex
	started bool
}

// NewCleanerd constructs a Cleanerd from opts, building the seglet
// allocator, segment manager, entry handler, replica manager, and
// metrics registry the engine needs, then the engine and its worker
// pool.
func NewCleanerd(opts CleanerdOptions) (*Cleanerd, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	poolSize := estimateSegletPoolSize(cfg)
	alloc := seglet.New(poolSize)

	segments := segmentmgr.New(segmentmgr.Config{
		SegmentCapacityBytes:          cfg.Segment.SegmentCapacityBytes,
		SegletSizeBytes:               cfg.Segment.SegletSizeBytes,
		SurvivorSegmentsToReserve:     cfg.Cleaner.SurvivorSegmentsToReserve,
		MaxCleanableMemoryUtilization: cfg.Cleaner.MaxCleanableMemoryUtilization,
	}, alloc)

	c, err := codec.ParseTag(cfg.Cleaner.Codec)
	if err != nil {
		return nil, fmt.Errorf("cleanerd: %w", err)
	}
	entryCodec, err := codec.ForTag(c)
	if err != nil {
		return nil, fmt.Errorf("cleanerd: %w", err)
	}

	dir := entryhandler.NewMapDirectory(24 * time.Hour)
	handler := entryhandler.NewLiveDirectoryHandler(dir, entryCodec)

	repl, err := buildReplicaManager(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("cleanerd: %w", err)
	}

	store := cleaner.NewMemoryStore()
	m := metrics.NewCleanerMetrics()

	engine := cleaner.New(cleaner.Config{
		SegmentCapacityBytes:       cfg.Segment.SegmentCapacityBytes,
		SegletSizeBytes:            cfg.Segment.SegletSizeBytes,
		WriteCostThreshold:         cfg.Cleaner.WriteCostThreshold,
		DisableInMemoryCleaning:    cfg.Cleaner.DisableInMemoryCleaning,
		NumThreads:                 cfg.Cleaner.NumThreads,
		MinMemoryUtilization:       cfg.Cleaner.MinMemoryUtilization,
		MinDiskUtilization:         cfg.Cleaner.MinDiskUtilization,
		MaxLiveSegmentsPerDiskPass: cfg.Cleaner.MaxLiveSegmentsPerDiskPass,
		PollInterval:               time.Duration(cfg.Cleaner.PollIntervalMicros) * time.Microsecond,
		SurvivorWaitTimeout:        30 * time.Second,
		SurvivorWaitPoll:           5 * time.Millisecond,
	}, segments, store, handler, repl, m, logger.With(map[string]any{"worker_id": opts.WorkerID}))

	health := server.NewHealthServer(cfg.Observability.MetricsAddr, logger)
	health.RegisterHandler("/metrics", promhttp.Handler())

	return &Cleanerd{
		opts:     opts,
		logger:   logger,
		segments: segments,
		pool:     cleaner.NewPool(engine),
		health:   health,
	}, nil
}

// estimateSegletPoolSize sizes the seglet pool generously enough to
// hold both the cleanable working set and the survivor reserve: one
// segment's worth of seglets for each segment of the per-pass disk
// limit, each reserved survivor, and ten more as headroom.
func estimateSegletPoolSize(cfg *config.Config) int {
	if cfg.Segment.SegletSizeBytes == 0 {
		return 0
	}
	segletsPerSegment := cfg.Segment.SegmentCapacityBytes / cfg.Segment.SegletSizeBytes
	working := uint64(cfg.Cleaner.MaxLiveSegmentsPerDiskPass+cfg.Cleaner.SurvivorSegmentsToReserve+10) * segletsPerSegment
	return int(working)
}

func buildReplicaManager(cfg *config.Config, logger *logging.Logger) (replica.Manager, error) {
	if cfg.Replica.Bucket == "" {
		return inproc.New(), nil
	}

	store, err := s3.New(context.Background(), s3.Config{
		Bucket:          cfg.Replica.Bucket,
		Region:          cfg.Replica.Region,
		Endpoint:        cfg.Replica.Endpoint,
		AccessKeyID:     cfg.Replica.AccessKey,
		SecretAccessKey: cfg.Replica.SecretKey,
		UsePathStyle:    cfg.Replica.Endpoint != "",
	})
	if err != nil {
		return nil, fmt.Errorf("build s3 replica store: %w", err)
	}
	return s3backed.New(store, cfg.Replica.KeyPrefix, logger), nil
}

// Start runs the health server and worker pool until ctx is canceled.
// It blocks until ctx is done, then returns nil (Shutdown performs the
// actual teardown once the caller observes this return or a signal).
func (c *Cleanerd) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("cleanerd: already started")
	}
	c.started = true
	c.mu.Unlock()

	if err := c.health.Start(); err != nil {
		return fmt.Errorf("cleanerd: start health server: %w", err)
	}
	c.health.RegisterGoroutine("cleaner-pool")

	c.pool.Start()
	c.logger.Infof("cleaner daemon started", map[string]any{"worker_id": c.opts.WorkerID, "health_addr": c.health.Addr()})

	<-ctx.Done()
	return nil
}

// Shutdown stops the worker pool and health server, waiting for
// in-flight passes to finish.
func (c *Cleanerd) Shutdown(ctx context.Context) error {
	c.health.SetShuttingDown()
	c.health.UnregisterGoroutine("cleaner-pool")

	done := make(chan struct{})
	go func() {
		c.pool.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return c.health.Close()
}

// HealthServerAddr returns the address the health server is listening
// on, or empty if it has not started yet.
func (c *Cleanerd) HealthServerAddr() string {
	return c.health.Addr()
}
