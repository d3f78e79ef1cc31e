package wizard

import (
	"log/slog"

	"github.com/roach88/curator/internal/cluster"
)

// RuleSet derives follow-up tasks from completed entries. The dispatch
// table is closed at construction; kinds without a rule derive nothing.
type RuleSet struct {
	log      *Log
	resolver *Resolver
	logger   *slog.Logger
	rules    map[Kind]func(*Entry) []Task
}

// NewRuleSet builds the follow-up table over log and resolver.
func NewRuleSet(log *Log, resolver *Resolver, logger *slog.Logger) *RuleSet {
	if logger == nil {
		logger = slog.Default()
	}
	rs := &RuleSet{log: log, resolver: resolver, logger: logger}
	rs.rules = map[Kind]func(*Entry) []Task{
		KindMerge: rs.afterMerge,
		KindSplit: rs.afterSplit,
		KindMove:  rs.afterMove,
		KindUndo:  rs.afterUndo,
		KindRedo:  rs.afterRedo,
	}
	return rs
}

// FollowUps returns the tasks the completed entry triggers, in enqueue
// order. Entries without a rule trigger none.
func (rs *RuleSet) FollowUps(e *Entry) []Task {
	rule, ok := rs.rules[e.Kind]
	if !ok {
		rs.logger.Debug("no follow-up rule", "kind", e.Kind.String())
		return nil
	}
	return rule(e)
}

// afterMerge selects the merge product on the primary surface. When a
// secondary selection existed before the merge, that first select is
// quiet and a secondary select follows, so the selection-changed signal
// fires exactly once. A secondary selection swallowed by the merge
// moves on to its pre-merge next candidate.
func (rs *RuleSet) afterMerge(e *Entry) []Task {
	up := e.Outcome.Update
	if up == nil || len(up.Added) == 0 {
		rs.logger.Warn("merge entry without usable outcome", "seq", e.Seq)
		return nil
	}
	st := rs.resolver.ResolveBefore(e.Seq)

	tasks := []Task{{
		Target:   TargetPrimary,
		Kind:     KindSelect,
		Clusters: []cluster.ID{up.Added[0]},
		Quiet:    len(st.Secondary) > 0,
	}}
	if len(st.Secondary) == 0 {
		return tasks
	}

	secondary := st.Secondary
	if cluster.Intersects(up.Deleted, secondary) && st.SecondaryNext != nil {
		secondary = []cluster.ID{*st.SecondaryNext}
	}
	return append(tasks, Task{
		Target:   TargetSecondary,
		Kind:     KindSelect,
		Clusters: secondary,
	})
}

// afterSplit selects the newly created clusters on the primary surface.
func (rs *RuleSet) afterSplit(e *Entry) []Task {
	up := e.Outcome.Update
	if up == nil || len(up.Added) == 0 {
		rs.logger.Warn("split entry without usable outcome", "seq", e.Seq)
		return nil
	}
	return []Task{{
		Target:   TargetPrimary,
		Kind:     KindSelect,
		Clusters: up.Added,
	}}
}

// afterMove advances whichever surface held the moved clusters. Moves
// spanning both surfaces, or touching neither, advance the primary
// surface first, then the secondary. The empty set counts as contained
// in the primary selection.
func (rs *RuleSet) afterMove(e *Entry) []Task {
	up := e.Outcome.Update
	if up == nil {
		rs.logger.Warn("move entry without outcome", "seq", e.Seq)
		return nil
	}
	st := rs.resolver.ResolveBefore(e.Seq)

	switch {
	case cluster.Subset(up.MetadataChanged, st.Primary):
		return []Task{{Target: TargetPrimary, Kind: KindNext}}
	case cluster.Subset(up.MetadataChanged, st.Secondary):
		return []Task{{Target: TargetSecondary, Kind: KindNext}}
	default:
		return []Task{
			{Target: TargetPrimary, Kind: KindNext},
			{Target: TargetSecondary, Kind: KindNext},
		}
	}
}

// afterUndo restores the selection from immediately before the
// mutation this undo reverted. Navigation and replay entries never
// anchor the restore, and every unmatched undo earlier in the log has
// already consumed one structural entry from the end, so repeated
// undos walk backward through the mutations in step with the data
// stores.
func (rs *RuleSet) afterUndo(e *Entry) []Task {
	anchor := rs.undoAnchor(e.Seq)
	if anchor == nil {
		rs.logger.Debug("undo with no structural entry to restore", "seq", e.Seq)
		return nil
	}
	return rs.restoreSelection(rs.resolver.ResolveBefore(anchor.Seq))
}

// afterRedo restores the selection from immediately before the undo
// this redo reverted, skipping one undo entry per unmatched earlier
// redo.
func (rs *RuleSet) afterRedo(e *Entry) []Task {
	anchor := rs.redoAnchor(e.Seq)
	if anchor == nil {
		rs.logger.Debug("redo with no undo entry to restore", "seq", e.Seq)
		return nil
	}
	return rs.restoreSelection(rs.resolver.ResolveBefore(anchor.Seq))
}

func (rs *RuleSet) undoAnchor(before int64) *Entry {
	skip := 0
	return rs.log.Last(before, func(x *Entry) bool {
		switch {
		case x.Kind == KindUndo:
			skip++
		case x.Kind == KindRedo:
			skip--
		case x.Kind.structural():
			if skip == 0 {
				return true
			}
			skip--
		}
		return false
	})
}

func (rs *RuleSet) redoAnchor(before int64) *Entry {
	skip := 0
	return rs.log.Last(before, func(x *Entry) bool {
		switch {
		case x.Kind == KindRedo:
			skip++
		case x.Kind == KindUndo:
			if skip == 0 {
				return true
			}
			skip--
		}
		return false
	})
}

func (rs *RuleSet) restoreSelection(st SelectionState) []Task {
	tasks := []Task{{
		Target:   TargetPrimary,
		Kind:     KindSelect,
		Clusters: st.Primary,
		Quiet:    len(st.Secondary) > 0,
	}}
	if len(st.Secondary) > 0 {
		tasks = append(tasks, Task{
			Target:   TargetSecondary,
			Kind:     KindSelect,
			Clusters: st.Secondary,
		})
	}
	return tasks
}
