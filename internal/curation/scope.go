package curation

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/curator/internal/cluster"
)

// ErrEmptyScope rejects a metadata trigger whose scope resolves to no
// clusters.
var ErrEmptyScope = errors.New("scope resolves to no clusters")

// Scope names which live selection a metadata trigger applies to.
type Scope int

const (
	// ScopeBest targets the primary selection.
	ScopeBest Scope = iota + 1
	// ScopeSimilar targets the secondary selection.
	ScopeSimilar
	// ScopeAll targets both selections.
	ScopeAll
)

// String returns the scope's wire name.
func (s Scope) String() string {
	switch s {
	case ScopeBest:
		return "best"
	case ScopeSimilar:
		return "similar"
	case ScopeAll:
		return "all"
	default:
		return "invalid"
	}
}

// ParseScope converts a wire name to a Scope.
func ParseScope(s string) (Scope, error) {
	switch s {
	case "best":
		return ScopeBest, nil
	case "similar":
		return ScopeSimilar, nil
	case "all":
		return ScopeAll, nil
	default:
		return 0, fmt.Errorf("unknown scope %q", s)
	}
}

// scopeIDs resolves a scope against the current selection state at
// trigger time, so the metadata write targets what the user sees now,
// not what is selected when the task eventually runs.
func (c *Curator) scopeIDs(scope Scope) ([]cluster.ID, error) {
	st := c.seq.Resolver().Resolve()

	var ids []cluster.ID
	switch scope {
	case ScopeBest:
		ids = st.Primary
	case ScopeSimilar:
		ids = st.Secondary
	case ScopeAll:
		ids = append(slices.Clone(st.Primary), st.Secondary...)
	default:
		return nil, fmt.Errorf("unknown scope %d", scope)
	}

	ids = cluster.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyScope, scope)
	}
	return ids, nil
}
