package curation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/view"
	"github.com/roach88/curator/internal/wizard"
)

// Group values with special meaning. Noise and MUA rows are masked on
// the surfaces; navigation skips them.
const (
	GroupGood  = "good"
	GroupNoise = "noise"
	GroupMUA   = "mua"
)

var (
	// ErrReservedField rejects labelling through the reserved group
	// field; group changes go through Move.
	ErrReservedField = errors.New("field is reserved, use Move")

	// ErrNoStores rejects constructing a curator without both stores.
	ErrNoStores = errors.New("assignment and metadata stores are required")
)

// Curator owns one curation session: the assignment and metadata
// stores, the undo history over both, the two selection surfaces, and
// the sequencer that keeps them causally ordered.
//
// All methods must be called from one goroutine. Listener callbacks run
// on the triggering goroutine and must not call mutating triggers;
// doing so would wait on the very chain they are part of.
type Curator struct {
	logger *slog.Logger
	tokens wizard.TokenGenerator

	assign *cluster.Assignment
	meta   *cluster.Metadata
	undo   *cluster.UndoHistory

	primary   *view.Table
	secondary *view.Table

	seq        *wizard.Sequencer
	similarity Similarity

	updates    *registry[cluster.UpdateInfo]
	selections *registry[SelectionChange]
	saves      *registry[SaveRequest]
}

// Option configures a Curator.
type Option func(*Curator)

// WithLogger sets the logger shared by the curator, the sequencer and
// both surfaces.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Curator) { c.logger = logger }
}

// WithSimilarity installs the candidate ranking function for the
// secondary surface. Without one the secondary surface stays empty.
func WithSimilarity(fn Similarity) Option {
	return func(c *Curator) { c.similarity = fn }
}

// WithTokenGenerator replaces the sequencer's flow token source.
func WithTokenGenerator(gen wizard.TokenGenerator) Option {
	return func(c *Curator) { c.tokens = gen }
}

// New builds a curator over the given stores and registers both
// surfaces and the coordinator on a fresh sequencer.
func New(assign *cluster.Assignment, meta *cluster.Metadata, opts ...Option) (*Curator, error) {
	if assign == nil || meta == nil {
		return nil, ErrNoStores
	}

	c := &Curator{
		logger:     slog.Default(),
		assign:     assign,
		meta:       meta,
		undo:       cluster.NewUndoHistory(assign, meta),
		similarity: func(cluster.ID) []Candidate { return nil },
		updates:    &registry[cluster.UpdateInfo]{},
		selections: &registry[SelectionChange]{},
		saves:      &registry[SaveRequest]{},
	}
	for _, opt := range opts {
		opt(c)
	}

	rows := make([]view.Row, 0, len(assign.IDs()))
	for _, id := range assign.IDs() {
		rows = append(rows, c.rowFor(id))
	}
	c.primary = view.NewTable("clusters", rows,
		view.WithLess(view.ByID), view.WithLogger(c.logger))
	c.secondary = view.NewTable("similarity", nil, view.WithLogger(c.logger))

	seqOpts := []wizard.SequencerOption{wizard.WithLogger(c.logger)}
	if c.tokens != nil {
		seqOpts = append(seqOpts, wizard.WithTokenGenerator(c.tokens))
	}
	c.seq = wizard.NewSequencer(seqOpts...)

	if err := c.seq.Register(wizard.TargetPrimary, wizard.Registration{
		Mode: wizard.CallbackCompletion,
		Run:  c.runSurface(c.primary),
	}); err != nil {
		return nil, err
	}
	if err := c.seq.Register(wizard.TargetSecondary, wizard.Registration{
		Mode: wizard.CallbackCompletion,
		Run:  c.runSurface(c.secondary),
	}); err != nil {
		return nil, err
	}
	if err := c.seq.Register(wizard.TargetCoordinator, wizard.Registration{
		Mode:   wizard.NotificationCompletion,
		Start:  c.startMutation,
		Source: updateSource{c.updates},
	}); err != nil {
		return nil, err
	}

	c.primary.OnSelect(c.watchPrimary)
	c.secondary.OnSelect(c.watchSecondary)
	return c, nil
}

// OnSelectionChanged registers a listener for the once-per-change
// selection broadcast. The remove function is idempotent.
func (c *Curator) OnSelectionChanged(fn func(SelectionChange)) (remove func()) {
	return c.selections.add(fn)
}

// OnUpdate registers a listener for store mutation outcomes, including
// undo/redo replays.
func (c *Curator) OnUpdate(fn func(cluster.UpdateInfo)) (remove func()) {
	return c.updates.add(fn)
}

// OnSaveRequest registers a listener for save snapshots.
func (c *Curator) OnSaveRequest(fn func(SaveRequest)) (remove func()) {
	return c.saves.add(fn)
}

// Select selects clusters on the primary surface.
func (c *Curator) Select(ids ...cluster.ID) error {
	return c.seq.Submit(wizard.Task{
		Target:   wizard.TargetPrimary,
		Kind:     wizard.KindSelect,
		Clusters: cluster.UniqueIDs(ids),
	})
}

// SelectSimilar selects clusters on the secondary surface, as a click
// on a similarity row would.
func (c *Curator) SelectSimilar(ids ...cluster.ID) error {
	return c.seq.Submit(wizard.Task{
		Target:   wizard.TargetSecondary,
		Kind:     wizard.KindSelect,
		Clusters: cluster.UniqueIDs(ids),
	})
}

// Next advances the secondary selection, or selects the first primary
// row when nothing is selected yet.
func (c *Curator) Next() error {
	if len(c.seq.Resolver().Resolve().Primary) == 0 {
		return c.seq.Submit(wizard.Task{Target: wizard.TargetPrimary, Kind: wizard.KindFirst})
	}
	return c.seq.Submit(wizard.Task{Target: wizard.TargetSecondary, Kind: wizard.KindNext})
}

// Previous moves the secondary selection one row back.
func (c *Curator) Previous() error {
	return c.seq.Submit(wizard.Task{Target: wizard.TargetSecondary, Kind: wizard.KindPrevious})
}

// NextBest advances the primary selection.
func (c *Curator) NextBest() error {
	return c.seq.Submit(wizard.Task{Target: wizard.TargetPrimary, Kind: wizard.KindNext})
}

// PreviousBest moves the primary selection one row back.
func (c *Curator) PreviousBest() error {
	return c.seq.Submit(wizard.Task{Target: wizard.TargetPrimary, Kind: wizard.KindPrevious})
}

// Reset selects the first unmasked primary row.
func (c *Curator) Reset() error {
	return c.seq.Submit(wizard.Task{Target: wizard.TargetPrimary, Kind: wizard.KindFirst})
}

// Merge merges the given clusters, or the combined live selection when
// none are given. Fewer than two distinct clusters is an error.
func (c *Curator) Merge(ctx context.Context, ids ...cluster.ID) error {
	if err := c.seq.Wait(ctx); err != nil {
		return err
	}
	merged := cluster.UniqueIDs(ids)
	if len(merged) == 0 {
		st := c.seq.Resolver().Resolve()
		merged = cluster.UniqueIDs(append(st.Primary, st.Secondary...))
	}
	if len(merged) < 2 {
		return cluster.ErrMergeArity
	}
	return c.seq.Submit(wizard.Task{
		Target:   wizard.TargetCoordinator,
		Kind:     wizard.KindMerge,
		Clusters: merged,
	})
}

// Split extracts the given elements into new clusters.
func (c *Curator) Split(ctx context.Context, elements ...cluster.Element) error {
	if err := c.seq.Wait(ctx); err != nil {
		return err
	}
	return c.seq.Submit(wizard.Task{
		Target:   wizard.TargetCoordinator,
		Kind:     wizard.KindSplit,
		Elements: elements,
	})
}

// Move writes the reserved group field on the clusters the scope
// resolves to.
func (c *Curator) Move(ctx context.Context, group string, scope Scope) error {
	if err := c.seq.Wait(ctx); err != nil {
		return err
	}
	ids, err := c.scopeIDs(scope)
	if err != nil {
		return err
	}
	return c.seq.Submit(wizard.Task{
		Target:   wizard.TargetCoordinator,
		Kind:     wizard.KindMove,
		Clusters: ids,
		Field:    cluster.GroupField,
		Value:    group,
	})
}

// Label writes a non-reserved metadata field on the clusters the scope
// resolves to.
func (c *Curator) Label(ctx context.Context, field, value string, scope Scope) error {
	if field == cluster.GroupField {
		return ErrReservedField
	}
	if err := c.seq.Wait(ctx); err != nil {
		return err
	}
	ids, err := c.scopeIDs(scope)
	if err != nil {
		return err
	}
	return c.seq.Submit(wizard.Task{
		Target:   wizard.TargetCoordinator,
		Kind:     wizard.KindLabel,
		Clusters: ids,
		Field:    field,
		Value:    value,
	})
}

// Undo reverts the most recent mutation and restores the selection
// from immediately before it.
func (c *Curator) Undo(ctx context.Context) error {
	if err := c.seq.Wait(ctx); err != nil {
		return err
	}
	return c.seq.Submit(wizard.Task{Target: wizard.TargetCoordinator, Kind: wizard.KindUndo})
}

// Redo re-applies the most recently undone mutation.
func (c *Curator) Redo(ctx context.Context) error {
	if err := c.seq.Wait(ctx); err != nil {
		return err
	}
	return c.seq.Submit(wizard.Task{Target: wizard.TargetCoordinator, Kind: wizard.KindRedo})
}

// RequestSave waits for the session to settle and emits a metadata
// snapshot to the save listeners.
func (c *Curator) RequestSave(ctx context.Context) error {
	if err := c.seq.Wait(ctx); err != nil {
		return err
	}

	req := SaveRequest{
		Groups: c.meta.Values(cluster.GroupField),
		Labels: make(map[string]map[cluster.ID]string),
	}
	for _, field := range c.meta.Fields() {
		if field == cluster.GroupField {
			continue
		}
		if values := c.meta.Values(field); len(values) > 0 {
			req.Labels[field] = values
		}
	}

	c.saves.emit(req)
	c.logger.Info("save requested", "groups", len(req.Groups), "fields", len(req.Labels))
	return nil
}

// Wait blocks until every pending task and follow-up has completed.
func (c *Curator) Wait(ctx context.Context) error {
	return c.seq.Wait(ctx)
}

// Resolve returns the current selection state from the history log.
func (c *Curator) Resolve() wizard.SelectionState {
	return c.seq.Resolver().Resolve()
}

// History returns a snapshot of the completed-task log.
func (c *Curator) History() []*wizard.Entry {
	return c.seq.Log().Entries()
}

// Assignment returns the assignment store.
func (c *Curator) Assignment() *cluster.Assignment { return c.assign }

// Metadata returns the metadata store.
func (c *Curator) Metadata() *cluster.Metadata { return c.meta }

// CanUndo reports whether a mutation is available to undo.
func (c *Curator) CanUndo() bool { return c.undo.CanUndo() }

// CanRedo reports whether an undone mutation is available to redo.
func (c *Curator) CanRedo() bool { return c.undo.CanRedo() }
