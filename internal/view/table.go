package view

import (
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/roach88/curator/internal/cluster"
)

// Table is an in-memory selection surface. Rows keep the order they
// were given unless a comparator is set, in which case inserts keep the
// table sorted.
//
// Table is not safe for concurrent use; the curation engine is the
// single writer.
type Table struct {
	name   string
	logger *slog.Logger
	less   func(a, b Row) bool

	rows     []Row
	selected []cluster.ID
	subs     []*subscription
}

type subscription struct {
	fn      SelectListener
	removed atomic.Bool
}

// Option configures a Table.
type Option func(*Table)

// WithLess keeps the table sorted under the given comparator.
func WithLess(less func(a, b Row) bool) Option {
	return func(t *Table) { t.less = less }
}

// WithLogger sets the table's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) { t.logger = logger }
}

// ByID orders rows by ascending cluster id. The primary surface uses it.
func ByID(a, b Row) bool { return a.ID < b.ID }

// NewTable builds a table named for logging, holding the given rows.
func NewTable(name string, rows []Row, opts ...Option) *Table {
	t := &Table{name: name, rows: slices.Clone(rows)}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.sort()
	return t
}

// Name returns the table's log name.
func (t *Table) Name() string { return t.name }

// Len returns the row count.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns a copy of the rows in display order.
func (t *Table) Rows() []Row { return slices.Clone(t.rows) }

// Selected returns a copy of the current selection.
func (t *Table) Selected() []cluster.ID { return slices.Clone(t.selected) }

// Has reports whether id has a row.
func (t *Table) Has(id cluster.ID) bool { return t.indexOf(id) >= 0 }

// OnSelect registers a listener for every selection result. The
// returned remove function is idempotent.
func (t *Table) OnSelect(fn SelectListener) (remove func()) {
	sub := &subscription{fn: fn}
	t.subs = append(t.subs, sub)
	return func() {
		sub.removed.Store(true)
	}
}

// Select makes ids the selection, in the order given. Ids without a row
// are dropped with a warning rather than coerced into the table.
func (t *Table) Select(ids []cluster.ID, opts SelectOptions) SelectionResult {
	kept := make([]cluster.ID, 0, len(ids))
	for _, id := range ids {
		if t.indexOf(id) < 0 {
			t.logger.Warn("select of unknown row", "table", t.name, "cluster", int64(id))
			continue
		}
		kept = append(kept, id)
	}
	return t.apply(kept, opts.Quiet)
}

// Next selects the first unmasked row after the current selection. With
// no selection it behaves as First. At the end of the table the
// selection stays put.
func (t *Table) Next() SelectionResult {
	if len(t.selected) == 0 {
		return t.First()
	}
	anchor := t.lastSelectedIndex()
	for i := anchor + 1; i < len(t.rows); i++ {
		if !t.rows[i].Masked {
			return t.apply([]cluster.ID{t.rows[i].ID}, false)
		}
	}
	return t.apply(t.selected, false)
}

// Previous selects the last unmasked row before the current selection.
// With no selection it behaves as First. At the top the selection stays
// put.
func (t *Table) Previous() SelectionResult {
	if len(t.selected) == 0 {
		return t.First()
	}
	anchor := t.firstSelectedIndex()
	for i := anchor - 1; i >= 0; i-- {
		if !t.rows[i].Masked {
			return t.apply([]cluster.ID{t.rows[i].ID}, false)
		}
	}
	return t.apply(t.selected, false)
}

// First selects the first unmasked row, or clears the selection when
// every row is masked or the table is empty.
func (t *Table) First() SelectionResult {
	for _, row := range t.rows {
		if !row.Masked {
			return t.apply([]cluster.ID{row.ID}, false)
		}
	}
	return t.apply(nil, false)
}

// Reset replaces all rows and clears the selection without emitting.
func (t *Table) Reset(rows []Row) {
	t.rows = slices.Clone(rows)
	t.selected = nil
	t.sort()
}

// Insert adds a row, replacing any existing row with the same id.
func (t *Table) Insert(row Row) {
	if i := t.indexOf(row.ID); i >= 0 {
		t.rows[i] = row
	} else {
		t.rows = append(t.rows, row)
	}
	t.sort()
}

// Remove drops the rows for ids and prunes them from the selection.
func (t *Table) Remove(ids ...cluster.ID) {
	drop := make(map[cluster.ID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	t.rows = slices.DeleteFunc(t.rows, func(r Row) bool {
		_, ok := drop[r.ID]
		return ok
	})
	t.selected = slices.DeleteFunc(t.selected, func(id cluster.ID) bool {
		_, ok := drop[id]
		return ok
	})
}

// SetMasked updates the masked flag of id's row, if present.
func (t *Table) SetMasked(id cluster.ID, masked bool) {
	if i := t.indexOf(id); i >= 0 {
		t.rows[i].Masked = masked
	}
}

func (t *Table) apply(ids []cluster.ID, quiet bool) SelectionResult {
	t.selected = slices.Clone(ids)
	res := SelectionResult{
		Selected: slices.Clone(ids),
		Next:     t.nextCandidate(),
		Quiet:    quiet,
	}
	t.logger.Debug("selection applied",
		"table", t.name, "selected", len(res.Selected), "quiet", quiet)
	t.emit(res)
	return res
}

func (t *Table) nextCandidate() *cluster.ID {
	if len(t.selected) == 0 {
		return nil
	}
	for i := t.lastSelectedIndex() + 1; i < len(t.rows); i++ {
		if !t.rows[i].Masked {
			id := t.rows[i].ID
			return &id
		}
	}
	return nil
}

func (t *Table) emit(res SelectionResult) {
	subs := slices.Clone(t.subs)
	for _, sub := range subs {
		if sub.removed.Load() {
			continue
		}
		sub.fn(res)
	}
	t.subs = slices.DeleteFunc(t.subs, func(s *subscription) bool {
		return s.removed.Load()
	})
}

func (t *Table) indexOf(id cluster.ID) int {
	return slices.IndexFunc(t.rows, func(r Row) bool { return r.ID == id })
}

func (t *Table) lastSelectedIndex() int {
	last := -1
	for _, id := range t.selected {
		if i := t.indexOf(id); i > last {
			last = i
		}
	}
	return last
}

func (t *Table) firstSelectedIndex() int {
	first := len(t.rows)
	for _, id := range t.selected {
		if i := t.indexOf(id); i >= 0 && i < first {
			first = i
		}
	}
	return first
}

func (t *Table) sort() {
	if t.less == nil {
		return
	}
	slices.SortStableFunc(t.rows, func(a, b Row) int {
		switch {
		case t.less(a, b):
			return -1
		case t.less(b, a):
			return 1
		default:
			return 0
		}
	})
}
