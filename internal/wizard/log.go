package wizard

import (
	"log/slog"
	"sync"
)

// Log is the append-only record of completed tasks and their outcomes.
//
// The log grows monotonically for the session lifetime. Undo and redo
// append restored-selection entries; nothing is ever deleted, so the
// full causal chain stays replayable.
//
// A new entry structurally identical to the most recent one is
// suppressed, ignoring target and token: a task-driven selection and
// the surface echo it causes collapse to a single record.
type Log struct {
	mu      sync.RWMutex
	entries []*Entry
	nextSeq int64
	logger  *slog.Logger
}

// NewLog creates an empty log.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{nextSeq: 1, logger: logger}
}

// Append records a completed task. It returns the canonical entry and
// whether a new one was added; a consecutive structural duplicate
// returns the existing entry instead.
func (l *Log) Append(task Task, out Outcome) (*Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.entries); n > 0 {
		last := l.entries[n-1]
		if last.Task.equivalent(task) && last.Outcome.equal(out) {
			l.logger.Debug("duplicate entry suppressed",
				"kind", task.Kind.String(), "target", task.Target.String(), "seq", last.Seq)
			return last, false
		}
	}

	e := &Entry{Task: task, Seq: l.nextSeq, Outcome: out}
	l.nextSeq++
	l.entries = append(l.entries, e)
	l.logger.Debug("entry appended",
		"kind", task.Kind.String(), "target", task.Target.String(), "seq", e.Seq)
	return e, true
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns a snapshot of the log in append order.
func (l *Log) Entries() []*Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Last scans backward over entries with Seq < before and returns the
// first one matching the filter, or nil. A zero or negative before
// bounds nothing.
func (l *Log) Last(before int64, match func(*Entry) bool) *Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i >= 0; i-- {
		e := l.entries[i]
		if before > 0 && e.Seq >= before {
			continue
		}
		if match(e) {
			return e
		}
	}
	return nil
}
