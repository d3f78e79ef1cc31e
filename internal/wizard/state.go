package wizard

import (
	"slices"

	"github.com/roach88/curator/internal/cluster"
)

// SelectionState is the resolved answer to "what is selected": the
// primary selection and its next candidate, and the secondary selection
// and its next candidate. A nil slice and an empty slice are the same
// absent state.
type SelectionState struct {
	Primary       []cluster.ID
	PrimaryNext   *cluster.ID
	Secondary     []cluster.ID
	SecondaryNext *cluster.ID
}

// Equal reports whether two states describe the same selection.
func (s SelectionState) Equal(o SelectionState) bool {
	return idsEqual(s.Primary, o.Primary) &&
		idPtrEqual(s.PrimaryNext, o.PrimaryNext) &&
		idsEqual(s.Secondary, o.Secondary) &&
		idPtrEqual(s.SecondaryNext, o.SecondaryNext)
}

func idsEqual(a, b []cluster.ID) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return slices.Equal(a, b)
}

func idPtrEqual(a, b *cluster.ID) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

// Resolver reconstructs selection state from the history log. Nothing
// caches the current selection; the log is the single source.
type Resolver struct {
	log *Log
}

// NewResolver builds a resolver over the given log.
func NewResolver(log *Log) *Resolver {
	return &Resolver{log: log}
}

// Resolve returns the selection state implied by the whole log.
func (r *Resolver) Resolve() SelectionState {
	return r.ResolveBefore(0)
}

// ResolveBefore returns the selection state as of immediately before
// the entry with the given sequence number; zero means the whole log.
//
// The scan walks backward. The most recent qualifying secondary entry
// resolves the secondary pair; the most recent qualifying primary entry
// resolves the primary pair and ends the scan, because a primary
// selection causally precedes and bounds the secondary selection that
// matters. A secondary selection never followed by one resolves as
// absent. An entry without a selection outcome (a replay marker)
// resolves its surface as absent.
func (r *Resolver) ResolveBefore(seq int64) SelectionState {
	var (
		state             SelectionState
		secondaryResolved bool
	)

	entries := r.log.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if seq > 0 && e.Seq >= seq {
			continue
		}
		if !e.Kind.resolvesSelection() {
			continue
		}
		switch e.Target {
		case TargetSecondary:
			if !secondaryResolved {
				state.Secondary, state.SecondaryNext = selectionOf(e)
				secondaryResolved = true
			}
		case TargetPrimary:
			state.Primary, state.PrimaryNext = selectionOf(e)
			return state
		}
	}
	return state
}

func selectionOf(e *Entry) ([]cluster.ID, *cluster.ID) {
	sel := e.Outcome.Selection
	if sel == nil {
		return nil, nil
	}
	ids := slices.Clone(sel.Selected)
	if sel.Next == nil {
		return ids, nil
	}
	next := *sel.Next
	return ids, &next
}
