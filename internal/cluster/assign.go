package cluster

import (
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrUnknownCluster rejects operations naming a cluster id that is
	// not in the store.
	ErrUnknownCluster = errors.New("unknown cluster")
	// ErrMergeArity rejects merges of fewer than two distinct clusters.
	ErrMergeArity = errors.New("merge needs at least two distinct clusters")
	// ErrNoElements rejects splits with an empty element set.
	ErrNoElements = errors.New("split needs at least one element")
	// ErrUnknownElement rejects splits naming an element that is not
	// assigned to any cluster.
	ErrUnknownElement = errors.New("unknown element")
	// ErrDuplicateElement rejects construction when an element appears
	// in more than one cluster.
	ErrDuplicateElement = errors.New("element assigned to more than one cluster")
)

// Assignment is the element-to-cluster assignment store. Every element
// belongs to exactly one cluster; merges and splits retire the touched
// clusters and create fresh ids, never reusing a retired one.
//
// Assignment is not safe for concurrent use. The curation engine is the
// single writer.
type Assignment struct {
	members map[ID][]Element // sorted per cluster
	owner   map[Element]ID
	next    ID
}

// NewAssignment builds a store from an initial cluster-to-elements
// mapping. Element slices are copied and sorted. An element listed under
// two clusters is an error.
func NewAssignment(members map[ID][]Element) (*Assignment, error) {
	a := &Assignment{
		members: make(map[ID][]Element, len(members)),
		owner:   make(map[Element]ID),
	}
	for id, elems := range members {
		sorted := slices.Clone(elems)
		slices.Sort(sorted)
		for _, el := range sorted {
			if prev, ok := a.owner[el]; ok {
				return nil, fmt.Errorf("element %d in clusters %d and %d: %w", el, prev, id, ErrDuplicateElement)
			}
			a.owner[el] = id
		}
		a.members[id] = sorted
		if id >= a.next {
			a.next = id + 1
		}
	}
	return a, nil
}

// IDs returns the live cluster ids, sorted.
func (a *Assignment) IDs() []ID {
	out := make([]ID, 0, len(a.members))
	for id := range a.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Has reports whether id is a live cluster.
func (a *Assignment) Has(id ID) bool {
	_, ok := a.members[id]
	return ok
}

// Count returns the number of elements in id, zero for unknown ids.
func (a *Assignment) Count(id ID) int {
	return len(a.members[id])
}

// Elements returns a copy of id's elements, sorted.
func (a *Assignment) Elements(id ID) []Element {
	return slices.Clone(a.members[id])
}

// Merge combines ids into one new cluster. The new cluster receives the
// union of the members; the originals are retired. The outcome's
// LargestOld is the contributing cluster with the most elements,
// smallest id winning ties.
func (a *Assignment) Merge(ids []ID) (UpdateInfo, error) {
	unique := UniqueIDs(ids)
	if len(unique) < 2 {
		return UpdateInfo{}, fmt.Errorf("merge of %v: %w", ids, ErrMergeArity)
	}
	for _, id := range unique {
		if !a.Has(id) {
			return UpdateInfo{}, fmt.Errorf("merge of %v: cluster %d: %w", ids, id, ErrUnknownCluster)
		}
	}

	olds := SortedIDs(unique)
	newID := a.next
	a.next++

	var union []Element
	largest := olds[0]
	descendants := make(map[ID][]ID, len(olds))
	for _, old := range olds {
		union = append(union, a.members[old]...)
		if len(a.members[old]) > len(a.members[largest]) {
			largest = old
		}
		descendants[old] = []ID{newID}
		a.retire(old)
	}
	slices.Sort(union)
	a.adopt(newID, union)

	return UpdateInfo{
		Added:       []ID{newID},
		Deleted:     olds,
		Kind:        OpMerge,
		Descendants: descendants,
		LargestOld:  largest,
	}, nil
}

// Split extracts the given elements into one new cluster. Every touched
// cluster is retired: its remaining elements, if any, move to a fresh
// remainder cluster. Added lists the extracted cluster first, then the
// remainders in ascending order of their original cluster.
func (a *Assignment) Split(elements []Element) (UpdateInfo, error) {
	if len(elements) == 0 {
		return UpdateInfo{}, ErrNoElements
	}
	picked := slices.Clone(elements)
	slices.Sort(picked)
	picked = slices.Compact(picked)

	taken := make(map[Element]struct{}, len(picked))
	touched := make(map[ID]struct{})
	for _, el := range picked {
		old, ok := a.owner[el]
		if !ok {
			return UpdateInfo{}, fmt.Errorf("element %d: %w", el, ErrUnknownElement)
		}
		taken[el] = struct{}{}
		touched[old] = struct{}{}
	}

	olds := make([]ID, 0, len(touched))
	for id := range touched {
		olds = append(olds, id)
	}
	slices.Sort(olds)

	largest := olds[0]
	for _, old := range olds {
		if len(a.members[old]) > len(a.members[largest]) {
			largest = old
		}
	}

	extracted := a.next
	a.next++
	added := []ID{extracted}
	descendants := make(map[ID][]ID, len(olds))

	for _, old := range olds {
		var rest []Element
		for _, el := range a.members[old] {
			if _, ok := taken[el]; !ok {
				rest = append(rest, el)
			}
		}
		a.retire(old)
		descendants[old] = []ID{extracted}
		if len(rest) > 0 {
			remainder := a.next
			a.next++
			a.adopt(remainder, rest)
			added = append(added, remainder)
			descendants[old] = append(descendants[old], remainder)
		}
	}
	a.adopt(extracted, picked)

	return UpdateInfo{
		Added:       added,
		Deleted:     olds,
		Kind:        OpSplit,
		Descendants: descendants,
		LargestOld:  largest,
	}, nil
}

func (a *Assignment) retire(id ID) {
	for _, el := range a.members[id] {
		delete(a.owner, el)
	}
	delete(a.members, id)
}

func (a *Assignment) adopt(id ID, elems []Element) {
	a.members[id] = elems
	for _, el := range elems {
		a.owner[el] = id
	}
}

type assignState struct {
	members map[ID][]Element
	next    ID
}

func (a *Assignment) snapshot() assignState {
	members := make(map[ID][]Element, len(a.members))
	for id, elems := range a.members {
		members[id] = slices.Clone(elems)
	}
	return assignState{members: members, next: a.next}
}

func (a *Assignment) restore(s assignState) {
	a.members = make(map[ID][]Element, len(s.members))
	a.owner = make(map[Element]ID)
	for id, elems := range s.members {
		a.adopt(id, slices.Clone(elems))
	}
	a.next = s.next
}
