package inproc

import (
	"context"
	"testing"

	"github.com/dray-io/cleaner/internal/segment"
)

func TestReplicateResolvesImmediately(t *testing.T) {
	w := segment.NewWriter(1, 4096)
	sealed := w.Seal()

	m := New()
	fut, err := m.Replicate(context.Background(), sealed)
	if err != nil {
		t.Fatalf("Replicate: %v", err)
	}
	if err := fut.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}
