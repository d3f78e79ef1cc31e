// Package view holds the selection surfaces the curation engine drives:
// an ordered table of cluster rows with single-step navigation, masked
// row skipping, and typed selection listeners.
package view

import "github.com/roach88/curator/internal/cluster"

// Row is one selectable row of a table.
type Row struct {
	// ID is the cluster the row shows.
	ID cluster.ID
	// Count is the cluster's element count.
	Count int
	// Masked rows are skipped by navigation and by the next-candidate
	// lookahead. They remain explicitly selectable.
	Masked bool
}

// SelectOptions modifies an explicit selection request.
type SelectOptions struct {
	// Quiet marks the resulting selection as internal: listeners still
	// observe it for the history record, but must not rebuild dependent
	// surfaces or broadcast a selection change. Used when a second
	// selection follows immediately and must be the one that signals.
	Quiet bool
}

// SelectionResult is what every selection or navigation call yields.
type SelectionResult struct {
	// Selected holds the rows now selected, in selection order.
	Selected []cluster.ID
	// Next is the first unmasked row after the selection, absent at the
	// end of the table or when nothing is selected.
	Next *cluster.ID
	// Quiet echoes the request option so listeners can gate reactions.
	Quiet bool
}

// SelectListener observes selection results as they happen.
type SelectListener func(SelectionResult)
