package cluster

import (
	"errors"
	"slices"
)

// ErrNoOutcome rejects committing a checkpoint without any outcome.
var ErrNoOutcome = errors.New("commit needs at least one outcome")

// Mark captures both stores immediately before a mutation. Marks are
// opaque; callers obtain one from Checkpoint and hand it back to Commit.
type Mark struct {
	assign assignState
	meta   metaState
}

// UndoHistory records checkpoint pairs around each mutation of the
// assignment and metadata stores and replays them for undo and redo.
//
// Undoing does not discard history until the next Commit, which
// truncates the redo tail. Steps carry at most two outcomes; combining
// a third is unsupported.
type UndoHistory struct {
	assign *Assignment
	meta   *Metadata
	steps  []undoStep
	pos    int
}

type undoStep struct {
	before Mark
	after  Mark
	ups    []UpdateInfo
}

// NewUndoHistory wraps the two stores every step checkpoints.
func NewUndoHistory(a *Assignment, m *Metadata) *UndoHistory {
	return &UndoHistory{assign: a, meta: m}
}

// Checkpoint snapshots both stores. Call before mutating.
func (h *UndoHistory) Checkpoint() Mark {
	return Mark{assign: h.assign.snapshot(), meta: h.meta.snapshot()}
}

// Commit records one completed mutation: the state before it (mark),
// the state now, and the forward outcome(s) it produced. Any redo tail
// is discarded.
func (h *UndoHistory) Commit(mark Mark, ups ...UpdateInfo) error {
	if len(ups) == 0 {
		return ErrNoOutcome
	}
	if len(ups) > 2 {
		return ErrTooManyOutcomes
	}
	h.steps = h.steps[:h.pos]
	h.steps = append(h.steps, undoStep{
		before: mark,
		after:  h.Checkpoint(),
		ups:    slices.Clone(ups),
	})
	h.pos++
	return nil
}

// Undo restores the state before the most recent applied step and
// returns the inverse outcome. With nothing to undo it returns a
// zero-value replay outcome so callers still resolve follow-up
// selection instead of failing.
func (h *UndoHistory) Undo() (UpdateInfo, error) {
	if h.pos == 0 {
		return UpdateInfo{Kind: OpReplay, Replay: true}, nil
	}
	step := h.steps[h.pos-1]
	h.restore(step.before)
	h.pos--

	inverted := make([]UpdateInfo, len(step.ups))
	for i, up := range step.ups {
		inverted[i] = invert(up)
	}
	out, err := Combine(inverted...)
	if err != nil {
		return UpdateInfo{}, err
	}
	return out, nil
}

// Redo re-applies the most recently undone step and returns its forward
// outcome marked as replay. With nothing to redo it returns a
// zero-value replay outcome.
func (h *UndoHistory) Redo() (UpdateInfo, error) {
	if h.pos == len(h.steps) {
		return UpdateInfo{Kind: OpReplay, Replay: true}, nil
	}
	step := h.steps[h.pos]
	h.restore(step.after)
	h.pos++

	out, err := Combine(step.ups...)
	if err != nil {
		return UpdateInfo{}, err
	}
	out.Kind = OpReplay
	out.Replay = true
	return out, nil
}

// CanUndo reports whether an applied step remains.
func (h *UndoHistory) CanUndo() bool { return h.pos > 0 }

// CanRedo reports whether an undone step remains.
func (h *UndoHistory) CanRedo() bool { return h.pos < len(h.steps) }

// Depth returns the number of recorded steps, applied or not.
func (h *UndoHistory) Depth() int { return len(h.steps) }

func (h *UndoHistory) restore(m Mark) {
	h.assign.restore(m.assign)
	h.meta.restore(m.meta)
}

// invert swaps an outcome's direction: clusters the step created are
// deleted by the reversal and vice versa. Metadata reversals keep the
// changed ids so surfaces re-read them, but drop the written value,
// which varies per id after restore.
func invert(up UpdateInfo) UpdateInfo {
	return UpdateInfo{
		Added:           slices.Clone(up.Deleted),
		Deleted:         SortedIDs(up.Added),
		Kind:            OpReplay,
		Field:           up.Field,
		MetadataChanged: slices.Clone(up.MetadataChanged),
		Replay:          true,
	}
}
