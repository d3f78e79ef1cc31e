// Package curation wires the sequencing engine to the cluster stores
// and the selection surfaces.
//
// The Curator is the single entry point of a session. Triggers enqueue
// tasks on the sequencer; mutating triggers wait for the previous
// chain to settle first. The coordinator runs store operations between
// an undo checkpoint and its commit, reconciles the surfaces with the
// outcome deltas, and publishes the outcome on a typed listener
// registry, which also completes the running task. Surface selection
// echoes are recorded back into the history log, rebuild the
// similarity surface, and broadcast exactly one selection-changed
// signal per logical selection change.
package curation
