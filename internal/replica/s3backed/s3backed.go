// Package s3backed ships sealed survivor segments to an S3-compatible
// bucket via internal/objectstore, retrying indefinitely on failure per
// the cleaner's replication error policy.
package s3backed

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dray-io/cleaner/internal/logging"
	"github.com/dray-io/cleaner/internal/objectstore"
	"github.com/dray-io/cleaner/internal/replica"
	"github.com/dray-io/cleaner/internal/segment"
)

// RetryBackoff is the delay between upload attempts after a failure.
// It is a var, not a const, so tests can shrink it.
var RetryBackoff = 500 * time.Millisecond

// Manager uploads sealed segments to an objectstore.Store under
// keyPrefix, naming each object by segment ID and a fresh UUID so
// retried uploads of the same segment never collide.
type Manager struct {
	store     objectstore.Store
	keyPrefix string
	log       *logging.Logger
}

// New creates a Manager backed by store. log may be nil.
func New(store objectstore.Store, keyPrefix string, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.DefaultLogger()
	}
	return &Manager{store: store, keyPrefix: keyPrefix, log: log}
}

// Replicate implements replica.Manager. The upload runs in a background
// goroutine; Future.Wait blocks until it succeeds or ctx is canceled.
func (m *Manager) Replicate(ctx context.Context, sealed segment.Sealed) (replica.Future, error) {
	key := fmt.Sprintf("%s%d/%s.seg", m.keyPrefix, sealed.SegmentID(), uuid.New())
	fut := &future{done: make(chan struct{})}
	go m.upload(ctx, key, sealed, fut)
	return fut, nil
}

func (m *Manager) upload(ctx context.Context, key string, sealed segment.Sealed, fut *future) {
	log := m.log.WithSegment(sealed.SegmentID())
	attempt := 0
	for {
		attempt++
		body := sealed.Bytes()
		err := m.store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/octet-stream")
		if err == nil {
			fut.resolve(nil)
			return
		}
		if ctx.Err() != nil {
			fut.resolve(ctx.Err())
			return
		}
		log.Errorf("survivor upload failed, retrying", map[string]any{"key": key, "attempt": attempt, "error": err.Error()})

		select {
		case <-time.After(RetryBackoff):
		case <-ctx.Done():
			fut.resolve(ctx.Err())
			return
		}
	}
}

type future struct {
	once sync.Once
	done chan struct{}
	err  error
}

func (f *future) resolve(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Wait implements replica.Future.
func (f *future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
