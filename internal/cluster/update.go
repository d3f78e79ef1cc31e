package cluster

import (
	"errors"
	"maps"
	"slices"
)

// OpKind tags the kind of mutation an UpdateInfo describes.
type OpKind int

const (
	// OpNone is the zero kind; a zero UpdateInfo carries no change.
	OpNone OpKind = iota
	// OpMerge records clusters combined into one new cluster.
	OpMerge
	// OpSplit records elements extracted into new clusters.
	OpSplit
	// OpMetadata records a metadata field change.
	OpMetadata
	// OpReplay records state restored by undo or redo.
	OpReplay
)

// UpdateInfo describes what one mutating operation changed. It is the
// outcome attached to completed mutation entries and the payload of
// update notifications.
type UpdateInfo struct {
	// Added holds newly created cluster ids, in creation order.
	Added []ID

	// Deleted holds retired cluster ids, sorted.
	Deleted []ID

	// Kind tags the operation.
	Kind OpKind

	// Field names the metadata field for OpMetadata outcomes.
	Field string

	// MetadataChanged holds the ids whose metadata changed, sorted.
	MetadataChanged []ID

	// MetadataValue is the value written, when uniform across ids.
	MetadataValue string

	// Descendants maps each retired cluster to the clusters that
	// inherited its elements.
	Descendants map[ID][]ID

	// LargestOld is the retired cluster with the most elements; it is
	// meaningful only when Descendants is non-empty and breaks ties
	// during metadata inheritance.
	LargestOld ID

	// Replay is true when this outcome was produced by undo or redo.
	Replay bool
}

// ErrTooManyOutcomes rejects combining more than two outcomes from one
// cycle.
var ErrTooManyOutcomes = errors.New("cannot combine more than two outcomes in one cycle")

// Description renders the operation tag: "merge", "split",
// "metadata_<field>", or "replay".
func (u UpdateInfo) Description() string {
	switch u.Kind {
	case OpMerge:
		return "merge"
	case OpSplit:
		return "split"
	case OpMetadata:
		return "metadata_" + u.Field
	case OpReplay:
		return "replay"
	default:
		return ""
	}
}

// IsZero reports whether u carries no change at all.
func (u UpdateInfo) IsZero() bool {
	return len(u.Added) == 0 && len(u.Deleted) == 0 && u.Kind == OpNone &&
		u.Field == "" && len(u.MetadataChanged) == 0 && u.MetadataValue == "" &&
		len(u.Descendants) == 0 && !u.Replay
}

// Equal reports structural equality.
func (u UpdateInfo) Equal(o UpdateInfo) bool {
	return slices.Equal(u.Added, o.Added) &&
		slices.Equal(u.Deleted, o.Deleted) &&
		u.Kind == o.Kind &&
		u.Field == o.Field &&
		slices.Equal(u.MetadataChanged, o.MetadataChanged) &&
		u.MetadataValue == o.MetadataValue &&
		maps.EqualFunc(u.Descendants, o.Descendants, slices.Equal[[]ID]) &&
		u.LargestOld == o.LargestOld &&
		u.Replay == o.Replay
}

// Combine folds the outcomes produced by one process cycle into one.
// Zero outcomes yield a zero UpdateInfo; with two, the second's
// populated fields overwrite the first's. A third outcome in the same
// cycle is unsupported.
func Combine(ups ...UpdateInfo) (UpdateInfo, error) {
	switch len(ups) {
	case 0:
		return UpdateInfo{}, nil
	case 1:
		return ups[0], nil
	case 2:
		out := ups[0]
		overlay(&out, ups[1])
		return out, nil
	default:
		return UpdateInfo{}, ErrTooManyOutcomes
	}
}

func overlay(dst *UpdateInfo, src UpdateInfo) {
	if len(src.Added) > 0 {
		dst.Added = src.Added
	}
	if len(src.Deleted) > 0 {
		dst.Deleted = src.Deleted
	}
	if src.Kind != OpNone {
		dst.Kind = src.Kind
	}
	if src.Field != "" {
		dst.Field = src.Field
	}
	if len(src.MetadataChanged) > 0 {
		dst.MetadataChanged = src.MetadataChanged
	}
	if src.MetadataValue != "" {
		dst.MetadataValue = src.MetadataValue
	}
	if len(src.Descendants) > 0 {
		dst.Descendants = src.Descendants
		dst.LargestOld = src.LargestOld
	}
	dst.Replay = dst.Replay || src.Replay
}
