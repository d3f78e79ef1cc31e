package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAssignment(t *testing.T) *Assignment {
	t.Helper()
	a, err := NewAssignment(map[ID][]Element{
		0: {100, 101},
		1: {102},
		2: {103, 104, 105},
	})
	require.NoError(t, err)
	return a
}

func TestNewAssignment_RejectsDuplicateElement(t *testing.T) {
	_, err := NewAssignment(map[ID][]Element{
		0: {100},
		1: {100},
	})
	assert.ErrorIs(t, err, ErrDuplicateElement)
}

func TestAssignment_Merge(t *testing.T) {
	a := newTestAssignment(t)

	up, err := a.Merge([]ID{0, 2})
	require.NoError(t, err)

	assert.Equal(t, []ID{3}, up.Added, "fresh id is max+1")
	assert.Equal(t, []ID{0, 2}, up.Deleted)
	assert.Equal(t, OpMerge, up.Kind)
	assert.Equal(t, ID(2), up.LargestOld, "cluster 2 had the most elements")
	assert.Equal(t, map[ID][]ID{0: {3}, 2: {3}}, up.Descendants)

	assert.False(t, a.Has(0))
	assert.False(t, a.Has(2))
	assert.Equal(t, []Element{100, 101, 103, 104, 105}, a.Elements(3))
	assert.Equal(t, []ID{1, 3}, a.IDs())
}

func TestAssignment_MergeLargestTieBreaksLow(t *testing.T) {
	a, err := NewAssignment(map[ID][]Element{4: {1, 2}, 7: {3, 4}})
	require.NoError(t, err)

	up, err := a.Merge([]ID{7, 4})
	require.NoError(t, err)
	assert.Equal(t, ID(4), up.LargestOld)
}

func TestAssignment_MergeValidation(t *testing.T) {
	a := newTestAssignment(t)

	_, err := a.Merge([]ID{1})
	assert.ErrorIs(t, err, ErrMergeArity)

	_, err = a.Merge([]ID{1, 1})
	assert.ErrorIs(t, err, ErrMergeArity)

	_, err = a.Merge([]ID{1, 99})
	assert.ErrorIs(t, err, ErrUnknownCluster)
}

func TestAssignment_SplitWithRemainder(t *testing.T) {
	a := newTestAssignment(t)

	up, err := a.Split([]Element{103, 105})
	require.NoError(t, err)

	// Extracted cluster first, remainder after.
	assert.Equal(t, []ID{3, 4}, up.Added)
	assert.Equal(t, []ID{2}, up.Deleted)
	assert.Equal(t, OpSplit, up.Kind)
	assert.Equal(t, ID(2), up.LargestOld)
	assert.Equal(t, map[ID][]ID{2: {3, 4}}, up.Descendants)

	assert.Equal(t, []Element{103, 105}, a.Elements(3))
	assert.Equal(t, []Element{104}, a.Elements(4))
	assert.False(t, a.Has(2))
}

func TestAssignment_SplitWholeClusterHasNoRemainder(t *testing.T) {
	a := newTestAssignment(t)

	up, err := a.Split([]Element{102})
	require.NoError(t, err)

	assert.Equal(t, []ID{3}, up.Added)
	assert.Equal(t, []ID{1}, up.Deleted)
	assert.Equal(t, map[ID][]ID{1: {3}}, up.Descendants)
	assert.Equal(t, []Element{102}, a.Elements(3))
}

func TestAssignment_SplitAcrossClusters(t *testing.T) {
	a := newTestAssignment(t)

	up, err := a.Split([]Element{101, 104})
	require.NoError(t, err)

	// One extracted cluster for all picked elements, one remainder per
	// touched original in ascending original order.
	assert.Equal(t, []ID{3, 4, 5}, up.Added)
	assert.Equal(t, []ID{0, 2}, up.Deleted)
	assert.Equal(t, []Element{101, 104}, a.Elements(3))
	assert.Equal(t, []Element{100}, a.Elements(4))
	assert.Equal(t, []Element{103, 105}, a.Elements(5))
	assert.Equal(t, ID(2), up.LargestOld)
}

func TestAssignment_SplitValidation(t *testing.T) {
	a := newTestAssignment(t)

	_, err := a.Split(nil)
	assert.ErrorIs(t, err, ErrNoElements)

	_, err = a.Split([]Element{999})
	assert.ErrorIs(t, err, ErrUnknownElement)
}

func TestAssignment_SnapshotRestore(t *testing.T) {
	a := newTestAssignment(t)
	snap := a.snapshot()

	_, err := a.Merge([]ID{0, 1})
	require.NoError(t, err)
	require.False(t, a.Has(0))

	a.restore(snap)
	assert.Equal(t, []ID{0, 1, 2}, a.IDs())
	assert.Equal(t, []Element{100, 101}, a.Elements(0))

	// Restore rewinds the id counter, so a replayed merge mints the
	// same id.
	up, err := a.Merge([]ID{0, 1})
	require.NoError(t, err)
	assert.Equal(t, []ID{3}, up.Added)
}
