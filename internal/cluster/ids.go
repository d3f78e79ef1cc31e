package cluster

import (
	"fmt"
	"slices"
	"strconv"
)

// ID identifies a cluster.
type ID int64

// Element identifies a single member element of a cluster (one spike in
// a spike-sorting dataset).
type Element int64

// ParseID converts boundary input into an ID. Input that is not a
// nonnegative integer is rejected, never coerced.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cluster id %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid cluster id %q: must be nonnegative", s)
	}
	return ID(n), nil
}

// ParseElement converts boundary input into an Element.
func ParseElement(s string) (Element, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid element id %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid element id %q: must be nonnegative", s)
	}
	return Element(n), nil
}

// SortedIDs returns a sorted copy of ids.
func SortedIDs(ids []ID) []ID {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

// UniqueIDs returns ids with duplicates removed, preserving first-seen
// order.
func UniqueIDs(ids []ID) []ID {
	seen := make(map[ID]struct{}, len(ids))
	out := make([]ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Intersects reports whether a and b share at least one id.
func Intersects(a, b []ID) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[ID]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

// Subset reports whether every id in sub is contained in super. The
// empty set is a subset of everything.
func Subset(sub, super []ID) bool {
	if len(sub) == 0 {
		return true
	}
	set := make(map[ID]struct{}, len(super))
	for _, id := range super {
		set[id] = struct{}{}
	}
	for _, id := range sub {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
