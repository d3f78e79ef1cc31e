// Package scenario provides declarative conformance testing for the
// curation engine.
//
// A scenario describes one curation session as data: the dataset to
// curate, optional similarity rankings, a sequence of trigger steps,
// and expectations over the final state. Scenarios load from YAML with
// strict decoding and an embedded CUE schema rejecting malformed
// documents before semantic checks run.
//
// # Scenario Format
//
//	name: merge-pair
//	description: "Merging the selected pair lands on the product"
//	dataset:
//	  clusters:
//	    - id: 1
//	      elements: [0]
//	    - id: 2
//	      elements: [1]
//	similarity:
//	  1: [2]
//	  2: [1]
//	steps:
//	  - action: select
//	    clusters: [1]
//	  - action: merge
//	    clusters: [1, 2]
//	expect:
//	  primary: [3]
//	  history: 3
//
// The dataset is either inline clusters or a path to a SQLite dataset
// file. Steps mirror the curator's trigger surface: select,
// click_similar, next, previous, next_best, previous_best, reset,
// merge, split, move, label, undo, redo, save, and wait. Expectation
// fields are optional; absent fields are not checked.
//
// # Deterministic Runs
//
// Scenario runs are reproducible. Flow tokens come from a fixed
// generator (sequential "flow-NNNN" tokens, or scenario.flow_token for
// every trigger) and history sequence numbers are assigned by the log
// in settlement order. Traces marshal through canonical JSON, so
// identical runs produce identical bytes for golden comparison.
//
// # Usage
//
// Load and run a scenario file:
//
//	s, err := scenario.Load("testdata/scenarios/merge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := scenario.Run(context.Background(), s)
//
// Compare a run against its golden trace in a test:
//
//	result, err := scenario.RunWithGolden(t, s)
package scenario
