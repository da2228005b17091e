// Package replica defines the interface the cleaner uses to ship sealed
// survivor segments to remote replicas and learn when they are durable.
package replica

import (
	"context"

	"github.com/dray-io/cleaner/internal/segment"
)

// Manager ships sealed segments to remote replicas. The cleaner must
// not free a source segment until every Future covering a survivor
// derived from it has resolved.
type Manager interface {
	Replicate(ctx context.Context, sealed segment.Sealed) (Future, error)
}

// Future resolves once its segment is durable on every required
// replica. Wait blocks until durability is confirmed or ctx is done.
type Future interface {
	Wait(ctx context.Context) error
}
