// Package dedupe tracks in-flight work so duplicates can be collapsed.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records pending IDs so the same unit of work is not scheduled
// twice concurrently.
type Deduper interface {
	// SeenAndRecord atomically checks whether id is pending and records it
	// if not. Returns true if id was already pending.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes id from the pending set once its work has completed
	// (or failed to be scheduled), allowing it to be recorded again.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of currently pending IDs.
	Size() int64
}

// pendingSet implements Deduper with a mutex-guarded set. Entries are
// removed by Unrecord when their work completes, so the set stays bounded
// by the number of distinct in-flight IDs.
type pendingSet struct {
	mu      sync.Mutex
	pending map[string]struct{}
}

// NewPendingSet creates an empty Deduper.
func NewPendingSet() Deduper {
	return &pendingSet{pending: make(map[string]struct{})}
}

func (p *pendingSet) SeenAndRecord(_ context.Context, id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[id]; ok {
		return true
	}
	p.pending[id] = struct{}{}
	return false
}

func (p *pendingSet) Unrecord(_ context.Context, id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, id)
}

func (p *pendingSet) Size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.pending))
}
