package wizard

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// TokenGenerator produces flow tokens for trigger correlation.
// Implemented by UUIDv7Generator (production) and FixedGenerator
// (tests).
type TokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 flow tokens, so a
// session trace sorts by trigger time.
//
// Thread-safety: stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails, which does not happen in practice.
func (g UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined flow tokens for deterministic
// tests and golden trace comparison. When the fixed list runs out it
// keeps counting with the last token's prefix.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	prefix string
	idx    int
}

// NewFixedGenerator creates a generator that returns tokens in order
// and then continues as "<prefix>-<n>".
func NewFixedGenerator(prefix string, tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens, prefix: prefix}
}

// Generate returns the next token.
// Thread-safe: uses a mutex to protect index access.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.idx++
	if g.idx <= len(g.tokens) {
		return g.tokens[g.idx-1]
	}
	return fmt.Sprintf("%s-%04d", g.prefix, g.idx)
}
