package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dray-io/cleaner/internal/config"
	"github.com/dray-io/cleaner/internal/logging"
)

func testOptions() CleanerdOptions {
	cfg := config.Default()
	cfg.Segment.SegmentCapacityBytes = 4096
	cfg.Segment.SegletSizeBytes = 512
	cfg.Cleaner.PollIntervalMicros = 1000
	cfg.Observability.MetricsAddr = "127.0.0.1:0"
	return CleanerdOptions{
		Config:   cfg,
		Logger:   logging.DefaultLogger(),
		WorkerID: "test-worker",
	}
}

// TestCleanerdLifecycle builds a single Cleanerd (metrics register
// against the global prometheus registry, so only one instance may
// exist per test binary run) and exercises construction, serving
// /healthz, and graceful shutdown against it.
func TestCleanerdLifecycle(t *testing.T) {
	d, err := NewCleanerd(testOptions())
	if err != nil {
		t.Fatalf("NewCleanerd: %v", err)
	}
	if d.pool == nil {
		t.Fatalf("pool not constructed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- d.Start(ctx) }()

	addr := waitForHealthAddr(t, d)

	resp, err := http.Get("http://" + addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.StatusCode)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := d.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(time.Second):
		t.Fatalf("Start did not return after ctx cancellation")
	}
}

func waitForHealthAddr(t *testing.T, d *Cleanerd) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		addr := d.HealthServerAddr()
		if addr != "" && addr != d.opts.Config.Observability.MetricsAddr {
			return addr
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("health server did not bind in time")
	return ""
}
