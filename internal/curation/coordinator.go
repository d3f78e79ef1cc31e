package curation

import (
	"fmt"
	"slices"

	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/view"
	"github.com/roach88/curator/internal/wizard"
)

// maskedGroup reports whether a group value masks its rows.
func maskedGroup(group string) bool {
	return group == GroupNoise || group == GroupMUA
}

// rowFor builds a surface row from the live stores.
func (c *Curator) rowFor(id cluster.ID) view.Row {
	return view.Row{
		ID:     id,
		Count:  c.assign.Count(id),
		Masked: maskedGroup(c.meta.Get(cluster.GroupField, id)),
	}
}

// runSurface returns the callback-mode runner for one surface.
func (c *Curator) runSurface(t *view.Table) func(wizard.Task, wizard.CompleteFunc) error {
	return func(task wizard.Task, complete wizard.CompleteFunc) error {
		var res view.SelectionResult
		switch task.Kind {
		case wizard.KindSelect:
			res = t.Select(task.Clusters, view.SelectOptions{Quiet: task.Quiet})
		case wizard.KindNext:
			res = t.Next()
		case wizard.KindPrevious:
			res = t.Previous()
		case wizard.KindFirst:
			res = t.First()
		default:
			return fmt.Errorf("surface %s cannot run %s", t.Name(), task.Kind)
		}
		complete(wizard.Outcome{Selection: &res})
		return nil
	}
}

// watchPrimary handles primary-surface selection echoes: record the
// entry, rebuild the similarity surface, and broadcast the change. The
// record collapses with the task-driven entry that caused it, so each
// selection is logged once. A quiet selection still rebuilds the
// similarity surface (the follow-up secondary select needs the fresh
// candidate rows); quiet gates only the broadcast.
func (c *Curator) watchPrimary(res view.SelectionResult) {
	c.seq.Record(wizard.Task{
		Target:   wizard.TargetPrimary,
		Kind:     wizard.KindSelect,
		Clusters: slices.Clone(res.Selected),
		Quiet:    res.Quiet,
	}, wizard.Outcome{Selection: &res})

	c.refreshSecondary(res.Selected)
	if res.Quiet {
		return
	}
	c.broadcastSelection()
}

// watchSecondary records secondary-surface echoes and always
// broadcasts: when a quiet primary select precedes it, this is the one
// signal the pair produces.
func (c *Curator) watchSecondary(res view.SelectionResult) {
	c.seq.Record(wizard.Task{
		Target:   wizard.TargetSecondary,
		Kind:     wizard.KindSelect,
		Clusters: slices.Clone(res.Selected),
		Quiet:    res.Quiet,
	}, wizard.Outcome{Selection: &res})

	c.broadcastSelection()
}

func (c *Curator) broadcastSelection() {
	c.selections.emit(SelectionChange{
		Primary:   c.primary.Selected(),
		Secondary: c.secondary.Selected(),
	})
}

// startMutation runs a coordinator task against the stores. The update
// emitted at the end doubles as the task's completion notification, so
// the whole follow-up chain drains inside the emit.
func (c *Curator) startMutation(task wizard.Task) error {
	switch task.Kind {
	case wizard.KindMerge:
		return c.applyMerge(task)
	case wizard.KindSplit:
		return c.applySplit(task)
	case wizard.KindMove, wizard.KindLabel:
		return c.applySet(task)
	case wizard.KindUndo:
		return c.applyUndo()
	case wizard.KindRedo:
		return c.applyRedo()
	default:
		return fmt.Errorf("coordinator cannot run %s", task.Kind)
	}
}

func (c *Curator) applyMerge(task wizard.Task) error {
	mark := c.undo.Checkpoint()
	up, err := c.assign.Merge(task.Clusters)
	if err != nil {
		return err
	}
	// Inherited values ride the same checkpoint as the merge itself, so
	// one undo reverts both.
	c.meta.ApplyDescendants(up.Descendants, up.LargestOld)
	if err := c.undo.Commit(mark, up); err != nil {
		return err
	}
	c.logger.Info("merged clusters", "deleted", up.Deleted, "added", up.Added)
	c.applyDeltas(up)
	c.updates.emit(up)
	return nil
}

func (c *Curator) applySplit(task wizard.Task) error {
	mark := c.undo.Checkpoint()
	up, err := c.assign.Split(task.Elements)
	if err != nil {
		return err
	}
	c.meta.ApplyDescendants(up.Descendants, up.LargestOld)
	if err := c.undo.Commit(mark, up); err != nil {
		return err
	}
	c.logger.Info("split clusters", "deleted", up.Deleted, "added", up.Added)
	c.applyDeltas(up)
	c.updates.emit(up)
	return nil
}

func (c *Curator) applySet(task wizard.Task) error {
	mark := c.undo.Checkpoint()
	up, err := c.meta.Set(task.Field, task.Clusters, task.Value)
	if err != nil {
		return err
	}
	if err := c.undo.Commit(mark, up); err != nil {
		return err
	}
	c.logger.Info("set metadata",
		"field", task.Field, "value", task.Value, "clusters", up.MetadataChanged)
	c.applyDeltas(up)
	c.updates.emit(up)
	return nil
}

func (c *Curator) applyUndo() error {
	up, err := c.undo.Undo()
	if err != nil {
		return err
	}
	c.logger.Info("undid mutation", "added", up.Added, "deleted", up.Deleted)
	c.applyDeltas(up)
	c.updates.emit(up)
	return nil
}

func (c *Curator) applyRedo() error {
	up, err := c.undo.Redo()
	if err != nil {
		return err
	}
	c.logger.Info("redid mutation", "added", up.Added, "deleted", up.Deleted)
	c.applyDeltas(up)
	c.updates.emit(up)
	return nil
}

// applyDeltas reconciles both surfaces with a store outcome: insert
// added rows, drop deleted rows, and re-mask rows whose group changed.
// Replay outcomes from undo/redo take the same path.
func (c *Curator) applyDeltas(up cluster.UpdateInfo) {
	for _, id := range up.Added {
		row := c.rowFor(id)
		c.primary.Insert(row)
		c.secondary.Insert(row)
	}
	if len(up.Deleted) > 0 {
		c.primary.Remove(up.Deleted...)
		c.secondary.Remove(up.Deleted...)
	}
	if up.Field == cluster.GroupField {
		for _, id := range up.MetadataChanged {
			masked := maskedGroup(c.meta.Get(cluster.GroupField, id))
			c.primary.SetMasked(id, masked)
			c.secondary.SetMasked(id, masked)
		}
	}
}
