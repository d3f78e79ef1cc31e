package dataset

import (
	"context"
	"fmt"

	"github.com/roach88/curator/internal/cluster"
)

// Neighbor is one ranked similarity candidate.
type Neighbor struct {
	ID    cluster.ID
	Score float64
}

// Contents holds everything a session loads from the dataset.
type Contents struct {
	// Members maps each cluster to its elements, sorted ascending.
	Members map[cluster.ID][]cluster.Element
	// Labels holds explicit metadata values, keyed by field name.
	Labels map[string]map[cluster.ID]string
	// Similarity ranks candidates per cluster, best first.
	Similarity map[cluster.ID][]Neighbor
}

// Load reads the whole dataset with deterministic orderings: elements
// ascending within each cluster, neighbors by descending score with
// the candidate id breaking ties.
func (s *Store) Load(ctx context.Context) (Contents, error) {
	c := Contents{
		Members:    make(map[cluster.ID][]cluster.Element),
		Labels:     make(map[string]map[cluster.ID]string),
		Similarity: make(map[cluster.ID][]Neighbor),
	}

	if err := s.loadClusters(ctx, c.Members); err != nil {
		return Contents{}, err
	}
	if err := s.loadElements(ctx, c.Members); err != nil {
		return Contents{}, err
	}
	if err := s.loadLabels(ctx, c.Labels); err != nil {
		return Contents{}, err
	}
	if err := s.loadSimilarity(ctx, c.Similarity); err != nil {
		return Contents{}, err
	}

	return c, nil
}

// loadClusters seeds the member map so clusters without elements
// survive a round trip.
func (s *Store) loadClusters(ctx context.Context, members map[cluster.ID][]cluster.Element) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM clusters ORDER BY id ASC`)
	if err != nil {
		return fmt.Errorf("query clusters: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan cluster: %w", err)
		}
		members[cluster.ID(id)] = []cluster.Element{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate clusters: %w", err)
	}
	return nil
}

func (s *Store) loadElements(ctx context.Context, members map[cluster.ID][]cluster.Element) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cluster_id FROM elements
		ORDER BY cluster_id ASC, id ASC
	`)
	if err != nil {
		return fmt.Errorf("query elements: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var el, cid int64
		if err := rows.Scan(&el, &cid); err != nil {
			return fmt.Errorf("scan element: %w", err)
		}
		id := cluster.ID(cid)
		members[id] = append(members[id], cluster.Element(el))
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate elements: %w", err)
	}
	return nil
}

func (s *Store) loadLabels(ctx context.Context, labels map[string]map[cluster.ID]string) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, field, value FROM labels
		ORDER BY field ASC, cluster_id ASC
	`)
	if err != nil {
		return fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int64
		var field, value string
		if err := rows.Scan(&cid, &field, &value); err != nil {
			return fmt.Errorf("scan label: %w", err)
		}
		if labels[field] == nil {
			labels[field] = make(map[cluster.ID]string)
		}
		labels[field][cluster.ID(cid)] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate labels: %w", err)
	}
	return nil
}

func (s *Store) loadSimilarity(ctx context.Context, sim map[cluster.ID][]Neighbor) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT cluster_id, candidate_id, score FROM similarity
		ORDER BY cluster_id ASC, score DESC, candidate_id ASC
	`)
	if err != nil {
		return fmt.Errorf("query similarity: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid, cand int64
		var score float64
		if err := rows.Scan(&cid, &cand, &score); err != nil {
			return fmt.Errorf("scan similarity: %w", err)
		}
		id := cluster.ID(cid)
		sim[id] = append(sim[id], Neighbor{ID: cluster.ID(cand), Score: score})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate similarity: %w", err)
	}
	return nil
}

// Summary describes a dataset for display.
type Summary struct {
	Clusters   int
	Elements   int
	Labels     map[string]int
	Similarity int
}

// Info reports row counts per table, label counts broken down by field.
func (s *Store) Info(ctx context.Context) (Summary, error) {
	sum := Summary{Labels: make(map[string]int)}

	counts := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM clusters`, &sum.Clusters},
		{`SELECT COUNT(*) FROM elements`, &sum.Elements},
		{`SELECT COUNT(*) FROM similarity`, &sum.Similarity},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return Summary{}, fmt.Errorf("count: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT field, COUNT(*) FROM labels
		GROUP BY field ORDER BY field ASC
	`)
	if err != nil {
		return Summary{}, fmt.Errorf("query label counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var field string
		var n int
		if err := rows.Scan(&field, &n); err != nil {
			return Summary{}, fmt.Errorf("scan label count: %w", err)
		}
		sum.Labels[field] = n
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate label counts: %w", err)
	}

	return sum, nil
}
