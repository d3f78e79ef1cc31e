package wizard

import (
	"slices"

	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/view"
)

// Target names the component a task runs against.
type Target int

const (
	// TargetInvalid is the zero target; tasks must carry a real one.
	TargetInvalid Target = iota
	// TargetPrimary is the main cluster surface.
	TargetPrimary
	// TargetSecondary is the dependent similarity surface.
	TargetSecondary
	// TargetCoordinator is the action bridge that mutates the stores.
	TargetCoordinator
)

// String returns the target's log name.
func (t Target) String() string {
	switch t {
	case TargetPrimary:
		return "primary"
	case TargetSecondary:
		return "secondary"
	case TargetCoordinator:
		return "coordinator"
	default:
		return "invalid"
	}
}

// Kind is the closed set of task kinds. Unknown kinds are rejected when
// a task is built, not discovered when it runs.
type Kind int

const (
	// KindInvalid is the zero kind.
	KindInvalid Kind = iota
	// KindSelect selects explicit rows on a surface.
	KindSelect
	// KindNext advances a surface's selection one unmasked row.
	KindNext
	// KindPrevious moves a surface's selection one unmasked row back.
	KindPrevious
	// KindFirst selects a surface's first unmasked row.
	KindFirst
	// KindMerge combines clusters into one new cluster.
	KindMerge
	// KindSplit extracts elements into new clusters.
	KindSplit
	// KindMove writes the reserved group field.
	KindMove
	// KindLabel writes a non-reserved metadata field.
	KindLabel
	// KindUndo restores the state before the last mutation.
	KindUndo
	// KindRedo re-applies the last undone mutation.
	KindRedo
)

// String returns the kind's log name.
func (k Kind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindNext:
		return "next"
	case KindPrevious:
		return "previous"
	case KindFirst:
		return "first"
	case KindMerge:
		return "merge"
	case KindSplit:
		return "split"
	case KindMove:
		return "move"
	case KindLabel:
		return "label"
	case KindUndo:
		return "undo"
	case KindRedo:
		return "redo"
	default:
		return "invalid"
	}
}

// viewKind reports whether k runs on a selection surface.
func (k Kind) viewKind() bool {
	switch k {
	case KindSelect, KindNext, KindPrevious, KindFirst:
		return true
	default:
		return false
	}
}

// coordinatorKind reports whether k runs on the coordinator.
func (k Kind) coordinatorKind() bool {
	switch k {
	case KindMerge, KindSplit, KindMove, KindLabel, KindUndo, KindRedo:
		return true
	default:
		return false
	}
}

// resolvesSelection reports whether a completed entry of this kind can
// resolve a surface's selection during the backward scan. First does
// not: its surface echo, recorded as a select, does.
func (k Kind) resolvesSelection() bool {
	switch k {
	case KindSelect, KindNext, KindPrevious:
		return true
	default:
		return false
	}
}

// structural reports whether k mutates data rather than navigating or
// replaying. The undo rule anchors on the most recent structural entry.
func (k Kind) structural() bool {
	switch k {
	case KindMerge, KindSplit, KindMove, KindLabel:
		return true
	default:
		return false
	}
}

// Task is one pending action. Created at enqueue time, consumed at
// dequeue time, never mutated in between.
type Task struct {
	Target Target
	Kind   Kind

	// Clusters holds the cluster ids a select or mutation names.
	Clusters []cluster.ID
	// Elements holds the element ids a split extracts.
	Elements []cluster.Element
	// Field and Value carry a metadata write (move, label).
	Field string
	Value string
	// Quiet marks a selection that must not trigger dependent-surface
	// rebuilds or a selection-changed broadcast.
	Quiet bool

	// Token correlates a trigger with its follow-up chain. Assigned at
	// enqueue when empty; follow-ups inherit the completed task's token.
	Token string
}

// Validate rejects malformed tasks: unknown targets or kinds, and
// kind/target mismatches.
func (t Task) Validate() error {
	switch t.Target {
	case TargetPrimary, TargetSecondary:
		if !t.Kind.viewKind() {
			return newInvalidTaskError(t, "kind cannot run on a surface")
		}
	case TargetCoordinator:
		if !t.Kind.coordinatorKind() {
			return newInvalidTaskError(t, "kind cannot run on the coordinator")
		}
	default:
		return newInvalidTaskError(t, "unknown target")
	}
	return nil
}

// equivalent reports structural identity for duplicate suppression:
// target and token are ignored so a surface echo collapses with the
// task record it mirrors.
func (t Task) equivalent(o Task) bool {
	return t.Kind == o.Kind &&
		slices.Equal(t.Clusters, o.Clusters) &&
		slices.Equal(t.Elements, o.Elements) &&
		t.Field == o.Field &&
		t.Value == o.Value &&
		t.Quiet == o.Quiet
}

// Outcome is the result a completed task carries: a store mutation or a
// surface selection, never both. Both nil means the entry resolves as
// "nothing selected".
type Outcome struct {
	Update    *cluster.UpdateInfo
	Selection *view.SelectionResult
}

func (o Outcome) equal(other Outcome) bool {
	if (o.Update == nil) != (other.Update == nil) {
		return false
	}
	if (o.Selection == nil) != (other.Selection == nil) {
		return false
	}
	if o.Update != nil && !o.Update.Equal(*other.Update) {
		return false
	}
	if o.Selection != nil {
		a, b := *o.Selection, *other.Selection
		if !slices.Equal(a.Selected, b.Selected) || a.Quiet != b.Quiet {
			return false
		}
		if (a.Next == nil) != (b.Next == nil) {
			return false
		}
		if a.Next != nil && *a.Next != *b.Next {
			return false
		}
	}
	return true
}

// Entry is one completed task in the history log.
type Entry struct {
	Task

	// Seq is the entry's append position, starting at 1. Later entries
	// always have greater sequence numbers; nothing else orders the log.
	Seq int64

	Outcome Outcome
}
