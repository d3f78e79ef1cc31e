package curation

import (
	"slices"

	"github.com/roach88/curator/internal/cluster"
	"github.com/roach88/curator/internal/view"
)

// Candidate is one scored similarity candidate.
type Candidate struct {
	ID    cluster.ID
	Score float64
}

// Similarity ranks candidates for a cluster, best first. The function
// is supplied by the embedding application and queried exactly once per
// primary-selection change, with the first selected cluster.
type Similarity func(cluster.ID) []Candidate

// refreshSecondary rebuilds the similarity surface for a new primary
// selection. The ranking order is preserved as the row order; stale
// candidates and the selected clusters themselves are dropped.
func (c *Curator) refreshSecondary(selected []cluster.ID) {
	if len(selected) == 0 {
		c.secondary.Reset(nil)
		return
	}

	ranked := c.similarity(selected[0])
	rows := make([]view.Row, 0, len(ranked))
	for _, cand := range ranked {
		if !c.assign.Has(cand.ID) || slices.Contains(selected, cand.ID) {
			continue
		}
		rows = append(rows, c.rowFor(cand.ID))
	}
	c.secondary.Reset(rows)
}
