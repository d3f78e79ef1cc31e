package curation

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/wizard"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestCurator builds a session over nine clusters, id i holding i
// elements numbered consecutively from zero. Cluster 1 owns element 0,
// cluster 2 owns 1 and 2, and so on; the first free cluster id is 10.
func newTestCurator(t *testing.T) *Curator {
	t.Helper()

	members := make(map[cluster.ID][]cluster.Element)
	var el cluster.Element
	for id := cluster.ID(1); id <= 9; id++ {
		elems := make([]cluster.Element, 0, int(id))
		for i := 0; i < int(id); i++ {
			elems = append(elems, el)
			el++
		}
		members[id] = elems
	}
	assign, err := cluster.NewAssignment(members)
	require.NoError(t, err)
	meta, err := cluster.NewMetadata(cluster.FieldSpec{Name: "quality"})
	require.NoError(t, err)

	c, err := New(assign, meta,
		WithLogger(testLogger()),
		WithTokenGenerator(wizard.NewFixedGenerator("flow")),
		WithSimilarity(rankAll(assign)))
	require.NoError(t, err)
	return c
}

// rankAll ranks every other live cluster in ascending id order, so any
// live cluster is always a visible candidate.
func rankAll(assign *cluster.Assignment) Similarity {
	return func(anchor cluster.ID) []Candidate {
		ids := assign.IDs()
		ranked := make([]Candidate, 0, len(ids))
		for i, id := range ids {
			if id == anchor {
				continue
			}
			ranked = append(ranked, Candidate{ID: id, Score: 1 - float64(i)/float64(len(ids))})
		}
		return ranked
	}
}

func entriesOfKind(entries []*wizard.Entry, kind wizard.Kind) []*wizard.Entry {
	var out []*wizard.Entry
	for _, e := range entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestNew_RequiresBothStores(t *testing.T) {
	assign, err := cluster.NewAssignment(map[cluster.ID][]cluster.Element{1: {0}})
	require.NoError(t, err)
	meta, err := cluster.NewMetadata()
	require.NoError(t, err)

	_, err = New(nil, meta)
	assert.ErrorIs(t, err, ErrNoStores)
	_, err = New(assign, nil)
	assert.ErrorIs(t, err, ErrNoStores)
}

func TestCurator_SelectBroadcastsOnce(t *testing.T) {
	c := newTestCurator(t)
	var changes []SelectionChange
	c.OnSelectionChanged(func(sc SelectionChange) { changes = append(changes, sc) })

	require.NoError(t, c.Select(3))

	require.Len(t, changes, 1)
	assert.Equal(t, []cluster.ID{3}, changes[0].Primary)
	assert.Empty(t, changes[0].Secondary)

	st := c.Resolve()
	assert.Equal(t, []cluster.ID{3}, st.Primary)
	require.NotNil(t, st.PrimaryNext)
	assert.Equal(t, cluster.ID(4), *st.PrimaryNext)

	// The surface echo and the task record collapse into one entry,
	// carrying the task's flow token.
	hist := c.History()
	require.Len(t, hist, 1)
	assert.NotEmpty(t, hist[0].Token)
}

func TestCurator_SelectRefreshesSimilarity(t *testing.T) {
	c := newTestCurator(t)
	require.NoError(t, c.Select(3))
	require.NoError(t, c.SelectSimilar(5))

	st := c.Resolve()
	assert.Equal(t, []cluster.ID{3}, st.Primary)
	assert.Equal(t, []cluster.ID{5}, st.Secondary)
	require.NotNil(t, st.SecondaryNext)
	assert.Equal(t, cluster.ID(6), *st.SecondaryNext)
}

func TestCurator_SelectUnknownClusterResolvesEmpty(t *testing.T) {
	c := newTestCurator(t)
	require.NoError(t, c.Select(99))
	assert.Empty(t, c.Resolve().Primary)
}

func TestCurator_NextFallsBackToFirst(t *testing.T) {
	c := newTestCurator(t)

	// With nothing selected, Next selects the first primary row.
	require.NoError(t, c.Next())
	assert.Equal(t, []cluster.ID{1}, c.Resolve().Primary)

	// With a primary selection, Next walks the similarity surface.
	require.NoError(t, c.Next())
	st := c.Resolve()
	assert.Equal(t, []cluster.ID{1}, st.Primary)
	assert.Equal(t, []cluster.ID{2}, st.Secondary)
}

func TestCurator_Navigation(t *testing.T) {
	c := newTestCurator(t)
	require.NoError(t, c.Select(3))

	require.NoError(t, c.NextBest())
	assert.Equal(t, []cluster.ID{4}, c.Resolve().Primary)

	require.NoError(t, c.PreviousBest())
	assert.Equal(t, []cluster.ID{3}, c.Resolve().Primary)

	// Candidates of 3 are [1 2 4 5 6 7 8 9]; Previous from 5 lands 4.
	require.NoError(t, c.SelectSimilar(5))
	require.NoError(t, c.Previous())
	assert.Equal(t, []cluster.ID{4}, c.Resolve().Secondary)
}

func TestCurator_MergeSelectsNewCluster(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(5))

	var changes []SelectionChange
	c.OnSelectionChanged(func(sc SelectionChange) { changes = append(changes, sc) })

	require.NoError(t, c.Merge(ctx, 5, 6))

	assert.True(t, c.Assignment().Has(10))
	assert.False(t, c.Assignment().Has(5))
	assert.False(t, c.Assignment().Has(6))
	assert.Equal(t, 11, c.Assignment().Count(10))

	st := c.Resolve()
	assert.Equal(t, []cluster.ID{10}, st.Primary)
	assert.Empty(t, st.Secondary)

	// Without a secondary selection the merge derives one loud select.
	require.Len(t, changes, 1)
	assert.Equal(t, []cluster.ID{10}, changes[0].Primary)

	hist := c.History()
	require.Len(t, hist, 3)
	assert.Equal(t, wizard.KindMerge, hist[1].Kind)
	assert.Equal(t, wizard.KindSelect, hist[2].Kind)
	assert.False(t, hist[2].Quiet)

	// The follow-up select ran under the merge's flow token.
	assert.NotEmpty(t, hist[1].Token)
	assert.Equal(t, hist[1].Token, hist[2].Token)

	assert.True(t, c.CanUndo())
}

func TestCurator_MergeKeepsUntouchedSecondary(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(5))
	require.NoError(t, c.SelectSimilar(3))

	var changes []SelectionChange
	c.OnSelectionChanged(func(sc SelectionChange) { changes = append(changes, sc) })

	require.NoError(t, c.Merge(ctx, 5, 6))

	st := c.Resolve()
	assert.Equal(t, []cluster.ID{10}, st.Primary)
	assert.Equal(t, []cluster.ID{3}, st.Secondary)

	// Two selects ran, but the quiet primary one did not broadcast: the
	// pair produces exactly one signal, after the secondary select.
	require.Len(t, changes, 1)
	assert.Equal(t, []cluster.ID{10}, changes[0].Primary)
	assert.Equal(t, []cluster.ID{3}, changes[0].Secondary)

	hist := c.History()
	selects := entriesOfKind(hist, wizard.KindSelect)
	require.Len(t, selects, 4)
	assert.Equal(t, wizard.TargetPrimary, selects[2].Target)
	assert.True(t, selects[2].Quiet)
	assert.Equal(t, wizard.TargetSecondary, selects[3].Target)
	assert.False(t, selects[3].Quiet)
}

func TestCurator_MergeReplacesSwallowedSecondary(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(5))
	// Candidates of 5 are [1 2 3 4 6 7 8 9]; selecting 6 makes 7 the
	// next candidate.
	require.NoError(t, c.SelectSimilar(6))

	var changes []SelectionChange
	c.OnSelectionChanged(func(sc SelectionChange) { changes = append(changes, sc) })

	require.NoError(t, c.Merge(ctx, 5, 6))

	st := c.Resolve()
	assert.Equal(t, []cluster.ID{10}, st.Primary)
	assert.Equal(t, []cluster.ID{7}, st.Secondary)

	require.Len(t, changes, 1)
	assert.Equal(t, []cluster.ID{7}, changes[0].Secondary)
}

func TestCurator_MergeDefaultsToLiveSelection(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(5))
	require.NoError(t, c.SelectSimilar(6))

	require.NoError(t, c.Merge(ctx))

	assert.True(t, c.Assignment().Has(10))
	assert.Equal(t, 11, c.Assignment().Count(10))
	assert.Equal(t, []cluster.ID{10}, c.Resolve().Primary)
}

func TestCurator_MergeArity(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)

	assert.ErrorIs(t, c.Merge(ctx), cluster.ErrMergeArity)
	assert.ErrorIs(t, c.Merge(ctx, 5), cluster.ErrMergeArity)
	assert.ErrorIs(t, c.Merge(ctx, 5, 5), cluster.ErrMergeArity)

	require.NoError(t, c.Select(5))
	assert.ErrorIs(t, c.Merge(ctx), cluster.ErrMergeArity)
}

func TestCurator_MergeUnknownClusterKeepsSessionUsable(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(5))
	logged := len(c.History())

	require.ErrorIs(t, c.Merge(ctx, 5, 99), cluster.ErrUnknownCluster)

	// The failed mutation never completed, so it left no entry, and
	// later triggers run normally.
	assert.Len(t, c.History(), logged)
	require.NoError(t, c.Select(3))
	assert.Equal(t, []cluster.ID{3}, c.Resolve().Primary)
	require.NoError(t, c.Merge(ctx, 3, 4))
	assert.True(t, c.Assignment().Has(10))
}

func TestCurator_SplitSelectsPieces(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(3))

	var changes []SelectionChange
	c.OnSelectionChanged(func(sc SelectionChange) { changes = append(changes, sc) })

	// Cluster 3 owns elements [3 4 5]; extracting 4 leaves [3 5].
	require.NoError(t, c.Split(ctx, 4))

	assert.False(t, c.Assignment().Has(3))
	assert.Equal(t, 1, c.Assignment().Count(10))
	assert.Equal(t, 2, c.Assignment().Count(11))

	assert.Equal(t, []cluster.ID{10, 11}, c.Resolve().Primary)
	require.Len(t, changes, 1)
	assert.Equal(t, []cluster.ID{10, 11}, changes[0].Primary)
	assert.True(t, c.CanUndo())
}

func TestCurator_MoveAdvancesPrimary(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(7, 8))

	var changes []SelectionChange
	c.OnSelectionChanged(func(sc SelectionChange) { changes = append(changes, sc) })

	require.NoError(t, c.Move(ctx, GroupNoise, ScopeBest))

	assert.Equal(t, GroupNoise, c.Metadata().Get(cluster.GroupField, 7))
	assert.Equal(t, GroupNoise, c.Metadata().Get(cluster.GroupField, 8))

	// The moved rows are masked, so the walk lands on 9.
	assert.Equal(t, []cluster.ID{9}, c.Resolve().Primary)
	require.Len(t, changes, 1)
	assert.Equal(t, []cluster.ID{9}, changes[0].Primary)

	nexts := entriesOfKind(c.History(), wizard.KindNext)
	require.Len(t, nexts, 1)
	assert.Equal(t, wizard.TargetPrimary, nexts[0].Target)
	assert.True(t, c.CanUndo())
}

func TestCurator_MoveSimilarAdvancesSecondary(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(7))
	require.NoError(t, c.SelectSimilar(5))

	require.NoError(t, c.Move(ctx, GroupNoise, ScopeSimilar))

	assert.Equal(t, GroupNoise, c.Metadata().Get(cluster.GroupField, 5))
	st := c.Resolve()
	assert.Equal(t, []cluster.ID{7}, st.Primary)
	assert.Equal(t, []cluster.ID{6}, st.Secondary)

	nexts := entriesOfKind(c.History(), wizard.KindNext)
	require.Len(t, nexts, 1)
	assert.Equal(t, wizard.TargetSecondary, nexts[0].Target)
}

func TestCurator_MoveSpanningAdvancesBoth(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(7))
	require.NoError(t, c.SelectSimilar(9))

	var changes []SelectionChange
	c.OnSelectionChanged(func(sc SelectionChange) { changes = append(changes, sc) })

	require.NoError(t, c.Move(ctx, GroupGood, ScopeAll))

	assert.Equal(t, GroupGood, c.Metadata().Get(cluster.GroupField, 7))
	assert.Equal(t, GroupGood, c.Metadata().Get(cluster.GroupField, 9))

	// Primary advanced to 8; its similarity rebuild cleared the
	// secondary selection, so the secondary walk restarted at the top.
	st := c.Resolve()
	assert.Equal(t, []cluster.ID{8}, st.Primary)
	assert.Equal(t, []cluster.ID{1}, st.Secondary)

	nexts := entriesOfKind(c.History(), wizard.KindNext)
	require.Len(t, nexts, 2)
	assert.Equal(t, wizard.TargetPrimary, nexts[0].Target)
	assert.Equal(t, wizard.TargetSecondary, nexts[1].Target)
	assert.Len(t, changes, 2)
}

func TestCurator_MoveEmptyScope(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)

	assert.ErrorIs(t, c.Move(ctx, GroupNoise, ScopeBest), ErrEmptyScope)

	require.NoError(t, c.Select(3))
	assert.ErrorIs(t, c.Move(ctx, GroupNoise, ScopeSimilar), ErrEmptyScope)
}

func TestCurator_LabelSetsFieldWithoutNavigation(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(3))

	require.NoError(t, c.Label(ctx, "quality", "high", ScopeBest))

	assert.Equal(t, "high", c.Metadata().Get("quality", 3))
	// Labelling never moves the selection.
	assert.Equal(t, []cluster.ID{3}, c.Resolve().Primary)
	assert.Empty(t, entriesOfKind(c.History(), wizard.KindNext))
	assert.True(t, c.CanUndo())
}

func TestCurator_LabelReservedField(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)

	// Rejected before scope resolution: even with nothing selected the
	// reserved field is the error that surfaces.
	assert.ErrorIs(t, c.Label(ctx, cluster.GroupField, GroupNoise, ScopeBest), ErrReservedField)
}

func TestCurator_LabelUnknownField(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(3))

	assert.ErrorIs(t, c.Label(ctx, "bogus", "x", ScopeBest), cluster.ErrUnknownField)
}

func TestCurator_UndoRestoresSelectionDespiteNavigation(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(7, 8))
	before := c.Resolve()

	require.NoError(t, c.Move(ctx, GroupNoise, ScopeBest))
	require.NoError(t, c.PreviousBest())
	require.NoError(t, c.NextBest())
	assert.Equal(t, []cluster.ID{9}, c.Resolve().Primary)

	require.NoError(t, c.Undo(ctx))

	assert.Empty(t, c.Metadata().Get(cluster.GroupField, 7))
	got := c.Resolve()
	assert.True(t, got.Equal(before), "got %+v, want %+v", got, before)
	assert.True(t, c.CanRedo())
}

func TestCurator_RedoReappliesMutation(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(7, 8))
	require.NoError(t, c.Move(ctx, GroupNoise, ScopeBest))
	afterMove := c.Resolve()

	require.NoError(t, c.Undo(ctx))
	require.NoError(t, c.Redo(ctx))

	assert.Equal(t, GroupNoise, c.Metadata().Get(cluster.GroupField, 7))
	got := c.Resolve()
	assert.True(t, got.Equal(afterMove), "got %+v, want %+v", got, afterMove)
	assert.True(t, c.CanUndo())
	assert.False(t, c.CanRedo())
}

func TestCurator_UndoRedoStaircase(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(1))

	// Three mutations, capturing the selection state before each.
	var pre []wizard.SelectionState

	pre = append(pre, c.Resolve())
	require.NoError(t, c.Merge(ctx, 1, 2))

	pre = append(pre, c.Resolve())
	require.NoError(t, c.Split(ctx, 0))

	require.NoError(t, c.Select(3, 4))
	pre = append(pre, c.Resolve())
	require.NoError(t, c.Move(ctx, GroupNoise, ScopeBest))

	post := c.Resolve()

	// Walking down the stack revisits each pre-mutation state.
	var preUndo []wizard.SelectionState
	for i := len(pre) - 1; i >= 0; i-- {
		preUndo = append(preUndo, c.Resolve())
		require.NoError(t, c.Undo(ctx))
		got := c.Resolve()
		assert.True(t, got.Equal(pre[i]), "undo to mutation %d: got %+v, want %+v", i, got, pre[i])
	}
	assert.False(t, c.CanUndo())

	// Walking back up revisits the same states in reverse.
	for i := len(preUndo) - 1; i >= 0; i-- {
		require.NoError(t, c.Redo(ctx))
		got := c.Resolve()
		assert.True(t, got.Equal(preUndo[i]), "redo to state %d: got %+v, want %+v", i, got, preUndo[i])
	}
	assert.True(t, c.Resolve().Equal(post))
	assert.False(t, c.CanRedo())
	assert.Equal(t, GroupNoise, c.Metadata().Get(cluster.GroupField, 3))
}

func TestCurator_UndoWithoutMutation(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	var changes []SelectionChange
	c.OnSelectionChanged(func(sc SelectionChange) { changes = append(changes, sc) })

	require.NoError(t, c.Undo(ctx))

	hist := c.History()
	require.Len(t, hist, 1)
	assert.Equal(t, wizard.KindUndo, hist[0].Kind)
	assert.Empty(t, changes)
	assert.True(t, c.Resolve().Equal(wizard.SelectionState{}))
}

func TestCurator_OnUpdateSeesReplays(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	var ups []cluster.UpdateInfo
	c.OnUpdate(func(up cluster.UpdateInfo) { ups = append(ups, up) })

	require.NoError(t, c.Merge(ctx, 1, 2))
	require.NoError(t, c.Undo(ctx))

	require.Len(t, ups, 2)
	assert.Equal(t, cluster.OpMerge, ups[0].Kind)
	assert.Equal(t, []cluster.ID{10}, ups[0].Added)
	assert.True(t, ups[1].Replay)
	assert.Equal(t, []cluster.ID{1, 2}, ups[1].Added)
	assert.Equal(t, []cluster.ID{10}, ups[1].Deleted)
}

func TestCurator_ListenerRemoveIsIdempotent(t *testing.T) {
	c := newTestCurator(t)
	var calls int
	remove := c.OnSelectionChanged(func(SelectionChange) { calls++ })
	remove()
	remove()

	require.NoError(t, c.Select(3))
	assert.Zero(t, calls)
}

func TestCurator_ResetSelectsFirstUnmasked(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(1))
	require.NoError(t, c.Move(ctx, GroupNoise, ScopeBest))
	require.NoError(t, c.NextBest())
	assert.Equal(t, []cluster.ID{3}, c.Resolve().Primary)

	require.NoError(t, c.Reset())

	// Cluster 1 is masked as noise, so the first row is 2.
	assert.Equal(t, []cluster.ID{2}, c.Resolve().Primary)
}

func TestCurator_RequestSaveSnapshot(t *testing.T) {
	ctx := context.Background()
	c := newTestCurator(t)
	require.NoError(t, c.Select(3))
	require.NoError(t, c.Move(ctx, GroupNoise, ScopeBest))
	require.NoError(t, c.Label(ctx, "quality", "high", ScopeBest))

	var reqs []SaveRequest
	c.OnSaveRequest(func(req SaveRequest) { reqs = append(reqs, req) })

	require.NoError(t, c.RequestSave(ctx))

	require.Len(t, reqs, 1)
	assert.Equal(t, map[cluster.ID]string{3: GroupNoise}, reqs[0].Groups)
	// The move's follow-up advanced the selection to 4 before the label.
	assert.Equal(t, map[cluster.ID]string{4: "high"}, reqs[0].Labels["quality"])
}
