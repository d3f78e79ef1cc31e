// Package wizard implements the curation sequencing engine.
//
// The engine coordinates manual cluster reclassification across two
// dependent selection surfaces with deterministic follow-up behavior.
// Four pieces work together:
//
// Task queue:
// Externally triggered actions enter a FIFO queue and never execute
// synchronously at the trigger site. The sequencer pops one task at a
// time; exactly one task is ever mid-execution.
//
// History log:
// Every completed task is appended together with its outcome. The log
// grows for the whole session; undo and redo append restored-selection
// entries instead of deleting anything. A new entry structurally
// identical to the most recent one is suppressed, ignoring which
// surface produced it, so a task-driven selection and its surface echo
// collapse to one record.
//
// Rules:
// A closed dispatch table derives follow-up tasks from a completed
// task's outcome (merge, split, move, undo, redo). Kinds without a
// rule derive nothing. Follow-ups inherit the completed task's flow
// token and are drained before control returns to the trigger.
//
// Resolver:
// "What is selected right now" is never cached; it is reconstructed by
// scanning the log backward for the most recent selection entries of
// each surface, stopping at the first primary hit because a primary
// selection causally bounds the secondary one.
//
// Completion is asynchronous in shape: a task's runner either receives
// an explicit callback or the sequencer captures the first notification
// from the target's registered notifier, exactly once. Everything runs
// on one logical thread; concurrency is cooperative, never parallel.
package wizard
