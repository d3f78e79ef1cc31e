package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/curator/internal/cluster"
)

// Seed inserts contents into the dataset. Rows that already exist are
// left alone, so seeding twice is a no-op.
func (s *Store) Seed(ctx context.Context, c Contents) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	ids := make([]cluster.ID, 0, len(c.Members))
	for id := range c.Members {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO clusters (id) VALUES (?)
			ON CONFLICT(id) DO NOTHING
		`, int64(id)); err != nil {
			return fmt.Errorf("seed cluster %d: %w", id, err)
		}
		elems := slices.Clone(c.Members[id])
		slices.Sort(elems)
		for _, el := range elems {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO elements (id, cluster_id) VALUES (?, ?)
				ON CONFLICT(id) DO NOTHING
			`, int64(el), int64(id)); err != nil {
				return fmt.Errorf("seed element %d: %w", el, err)
			}
		}
	}

	fields := make([]string, 0, len(c.Labels))
	for field := range c.Labels {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	for _, field := range fields {
		values := c.Labels[field]
		labeled := make([]cluster.ID, 0, len(values))
		for id := range values {
			labeled = append(labeled, id)
		}
		slices.Sort(labeled)
		for _, id := range labeled {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO labels (cluster_id, field, value) VALUES (?, ?, ?)
				ON CONFLICT(cluster_id, field) DO NOTHING
			`, int64(id), field, values[id]); err != nil {
				return fmt.Errorf("seed label %d/%q: %w", id, field, err)
			}
		}
	}

	simIDs := make([]cluster.ID, 0, len(c.Similarity))
	for id := range c.Similarity {
		simIDs = append(simIDs, id)
	}
	slices.Sort(simIDs)
	for _, id := range simIDs {
		for _, n := range c.Similarity[id] {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO similarity (cluster_id, candidate_id, score) VALUES (?, ?, ?)
				ON CONFLICT(cluster_id, candidate_id) DO NOTHING
			`, int64(id), int64(n.ID), n.Score); err != nil {
				return fmt.Errorf("seed similarity %d: %w", id, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}

// SaveSnapshot rewrites stored labels from a save snapshot. The group
// field and every field present in labels are replaced in full; fields
// the snapshot does not name keep their rows. One transaction covers
// the whole rewrite.
func (s *Store) SaveSnapshot(ctx context.Context, groups map[cluster.ID]string, labels map[string]map[cluster.ID]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := replaceField(ctx, tx, cluster.GroupField, groups); err != nil {
		return err
	}

	fields := make([]string, 0, len(labels))
	for field := range labels {
		fields = append(fields, field)
	}
	slices.Sort(fields)
	for _, field := range fields {
		if field == cluster.GroupField {
			continue
		}
		if err := replaceField(ctx, tx, field, labels[field]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save: commit: %w", err)
	}
	return nil
}

func replaceField(ctx context.Context, tx *sql.Tx, field string, values map[cluster.ID]string) error {
	if field == "" {
		return fmt.Errorf("save: empty field name")
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE field = ?`, field); err != nil {
		return fmt.Errorf("clear field %q: %w", field, err)
	}

	ids := make([]cluster.ID, 0, len(values))
	for id := range values {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO labels (cluster_id, field, value) VALUES (?, ?, ?)
		`, int64(id), field, values[id]); err != nil {
			return fmt.Errorf("write label %d/%q: %w", id, field, err)
		}
	}
	return nil
}

// Sample builds a deterministic synthetic dataset: cluster i of n holds
// i consecutively numbered elements, and similarity falls off with id
// distance. Used by the dataset init command and as a demo fixture.
func Sample(n int) Contents {
	c := Contents{
		Members:    make(map[cluster.ID][]cluster.Element, n),
		Labels:     make(map[string]map[cluster.ID]string),
		Similarity: make(map[cluster.ID][]Neighbor, n),
	}

	next := cluster.Element(0)
	for i := 1; i <= n; i++ {
		id := cluster.ID(i)
		elems := make([]cluster.Element, 0, i)
		for j := 0; j < i; j++ {
			elems = append(elems, next)
			next++
		}
		c.Members[id] = elems

		neighbors := make([]Neighbor, 0, n-1)
		for d := 1; d < n; d++ {
			score := 1 - float64(d)/float64(n)
			if i-d >= 1 {
				neighbors = append(neighbors, Neighbor{ID: cluster.ID(i - d), Score: score})
			}
			if i+d <= n {
				neighbors = append(neighbors, Neighbor{ID: cluster.ID(i + d), Score: score})
			}
		}
		c.Similarity[id] = neighbors
	}

	return c
}
