package cleaner

import (
	"context"
	"sync"
	"time"
)

// Pool runs cfg.NumThreads worker goroutines against a shared Engine,
// each independently looping the top-level policy (§4.6.1). Passes are
// independent across workers; the segment manager linearizes segment
// state changes, so no additional cross-worker coordination is needed
// beyond the Engine's own candidatesLock.
type Pool struct {
	engine *Engine

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewPool creates a worker pool driving engine.
func NewPool(engine *Engine) *Pool {
	return &Pool{engine: engine}
}

// Start launches cfg.NumThreads worker goroutines. Calling Start on an
// already-running pool is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	n := p.engine.cfg.NumThreads
	if n <= 0 {
		n = 1
	}
	p.mu.Unlock()

	p.engine.metrics.SetThreadsActive(n)
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop sets the shared cancellation flag and waits for every worker to
// finish its in-flight pass and exit. Per §5's cancellation policy, an
// in-flight pass always runs to completion before a worker observes
// stopCh.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	p.engine.metrics.SetThreadsActive(0)

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

func (p *Pool) run() {
	defer p.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		didWork, err := p.engine.RunOnce(ctx)
		if err != nil {
			p.engine.log.Errorf("cleaner pass failed", map[string]any{"error": err.Error()})
		}
		if didWork {
			continue
		}

		select {
		case <-p.stopCh:
			return
		case <-time.After(p.engine.cfg.PollInterval):
		}
	}
}
