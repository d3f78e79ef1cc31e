package curation

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/wizard"
)

// SelectionChange is broadcast once per externally visible selection
// change, carrying the live selection of both surfaces.
type SelectionChange struct {
	Primary   []cluster.ID
	Secondary []cluster.ID
}

// SaveRequest is a snapshot of every explicitly written metadata value,
// emitted when a save is requested. Persistence itself is up to the
// listener.
type SaveRequest struct {
	// Groups maps explicitly grouped clusters to their group value.
	Groups map[cluster.ID]string
	// Labels holds the other fields' explicit values, keyed by field.
	Labels map[string]map[cluster.ID]string
}

// registry is a typed listener list. Removal is idempotent and safe
// while an emit is walking the list; removed handlers are compacted
// after each emit.
type registry[T any] struct {
	mu   sync.Mutex
	subs []*handler[T]
}

type handler[T any] struct {
	fn      func(T)
	removed atomic.Bool
}

func (r *registry[T]) add(fn func(T)) (remove func()) {
	h := &handler[T]{fn: fn}
	r.mu.Lock()
	r.subs = append(r.subs, h)
	r.mu.Unlock()
	return func() { h.removed.Store(true) }
}

func (r *registry[T]) emit(v T) {
	r.mu.Lock()
	snapshot := slices.Clone(r.subs)
	r.mu.Unlock()

	for _, h := range snapshot {
		if !h.removed.Load() {
			h.fn(v)
		}
	}

	r.mu.Lock()
	r.subs = slices.DeleteFunc(r.subs, func(h *handler[T]) bool { return h.removed.Load() })
	r.mu.Unlock()
}

// updateSource adapts the update registry to the sequencer's outcome
// notifier, so a coordinator task completes on the first update
// published after it starts.
type updateSource struct {
	reg *registry[cluster.UpdateInfo]
}

func (u updateSource) OnOutcome(fn func(wizard.Outcome)) (remove func()) {
	return u.reg.add(func(up cluster.UpdateInfo) {
		fn(wizard.Outcome{Update: &up})
	})
}
