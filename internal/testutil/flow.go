// Package testutil holds deterministic stand-ins for test runs.
package testutil

// FixedFlowGenerator returns the same flow token every time.
//
// Unlike wizard.FixedGenerator, which numbers tokens in sequence, this
// generator hands every trigger one shared token. Scenario runs use it
// when the whole session should read as a single flow.
//
// FixedFlowGenerator is stateless and safe for concurrent use.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator creates a generator for the given token.
//
// The token is typically set in the scenario YAML:
//
//	flow_token: session-1
//
// If token is empty, Generate returns "test-flow-default".
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = "test-flow-default"
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed flow token.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
