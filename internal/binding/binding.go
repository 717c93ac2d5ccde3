package binding

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// Binding is the in-memory working set of rows for one backing table.
//
// A binding is created over a fixed column set, filled either by Load (rows
// selected through the executor) or NewEmpty (a fresh, not-yet-persisted
// row set), mutated through Set/AppendRow/InsertRow/DeleteRow, and
// committed with Store.
//
// NOT thread-safe: a binding belongs to a single caller.
type Binding struct {
	exec   Executor
	logger *slog.Logger

	table     string
	columns   []string
	uniqueKey string // "" when the table has no reliable unique key
	formulas  []Formula

	rows   [][]any
	filter *Filter // last load filter; nil until loaded (ad hoc rows)
	limit  int

	changes []Change
	prior   []Change // change log as it stood after the last Store
	isNew   bool
	lastKey int64 // last key generated by an insert
}

// Option configures a Binding.
type Option func(*Binding)

// WithUniqueKey declares the single-column primary key of the table.
// Without it, Store always deletes and reinserts instead of updating.
func WithUniqueKey(column string) Option {
	return func(b *Binding) {
		b.uniqueKey = column
	}
}

// WithFormulas attaches post-store formulas, evaluated row by row after
// every successful Store.
func WithFormulas(formulas ...Formula) Option {
	return func(b *Binding) {
		b.formulas = append(b.formulas, formulas...)
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Binding) {
		b.logger = logger
	}
}

// New creates a binding for table over the given column set.
// The column set is fixed for the binding's lifetime.
func New(exec Executor, table string, columns []string, opts ...Option) *Binding {
	b := &Binding{
		exec:    exec,
		logger:  slog.Default(),
		table:   table,
		columns: slices.Clone(columns),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Table returns the name of the backing table.
func (b *Binding) Table() string { return b.table }

// Columns returns the binding's column set.
func (b *Binding) Columns() []string { return slices.Clone(b.columns) }

// UniqueKey returns the declared key column, or "" for keyless tables.
func (b *Binding) UniqueKey() string { return b.uniqueKey }

// IsNew reports whether the binding represents rows that do not yet exist
// in the backing store.
func (b *Binding) IsNew() bool { return b.isNew }

// Filter returns the last load filter, or nil if the binding was never
// loaded.
func (b *Binding) Filter() *Filter { return b.filter }

// LastGeneratedKey returns the key assigned by the most recent insert, or 0.
func (b *Binding) LastGeneratedKey() int64 { return b.lastKey }

// Len returns the current row count.
func (b *Binding) Len() int { return len(b.rows) }

// Changes returns the pending change log.
func (b *Binding) Changes() []Change { return slices.Clone(b.changes) }

// PriorChanges returns the change log as it stood immediately after the
// most recent Store.
func (b *Binding) PriorChanges() []Change { return slices.Clone(b.prior) }

// Load discards the current rows and change log, selects the rows matching
// filter through the executor, and records the filter for later stores.
// limit <= 0 means no limit. Partial results are never kept: on executor
// failure the binding is left empty and unfiltered.
func (b *Binding) Load(ctx context.Context, filter *Filter, limit int) error {
	b.rows = nil
	b.changes = nil
	b.filter = nil
	b.isNew = false

	rows, err := b.exec.Select(ctx, b.table, b.columns, filter, limit)
	if err != nil {
		return queryError(b.table, "select", err)
	}

	b.rows = rows
	b.filter = filter
	b.limit = limit
	return nil
}

// NewEmpty resets the binding to a fresh, not-yet-persisted state. Unless
// blank is true, one all-nil row is appended so the binding is never
// observably empty right after creation.
func (b *Binding) NewEmpty(blank bool) {
	b.rows = nil
	b.changes = nil
	b.filter = nil
	b.isNew = true
	if !blank {
		b.appendBlank()
	}
}

// Adopt installs rows as the binding's loaded state without recording any
// change, as if they had come from a plain filtered load. Used by special
// selections that assemble their row set outside an equi-join (for example
// the self-referencing chain walk). The filter, which may be nil, is what
// later keyless stores and reloads run against.
func (b *Binding) Adopt(rows [][]any, filter *Filter) {
	b.rows = make([][]any, len(rows))
	for i, row := range rows {
		b.rows[i] = slices.Clone(row)
	}
	b.changes = nil
	b.filter = filter
	b.isNew = false
}

// appendBlank appends an all-nil row and records it as an Append.
func (b *Binding) appendBlank() {
	row := make([]any, len(b.columns))
	b.rows = append(b.rows, row)
	b.changes = append(b.changes, Append{Row: slices.Clone(row)})
}

// Get returns the requested columns of one row, or of every row when
// rowIndex < 0. An empty columns list selects every column. Out-of-range
// indexes fail silently with an empty result.
func (b *Binding) Get(rowIndex int, columns ...string) [][]any {
	if rowIndex >= len(b.rows) {
		return nil
	}
	rows := b.rows
	if rowIndex >= 0 {
		rows = b.rows[rowIndex : rowIndex+1]
	}

	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		if len(columns) == 0 {
			out = append(out, slices.Clone(row))
			continue
		}
		vals := make([]any, 0, len(columns))
		for _, c := range columns {
			if i := b.columnIndex(c); i >= 0 {
				vals = append(vals, row[i])
			}
		}
		out = append(out, vals)
	}
	return out
}

// Value returns one column of one row. ok is false for unknown columns and
// out-of-range indexes.
func (b *Binding) Value(column string, rowIndex int) (value any, ok bool) {
	i := b.columnIndex(column)
	if i < 0 || rowIndex < 0 || rowIndex >= len(b.rows) {
		return nil, false
	}
	return b.rows[rowIndex][i], true
}

// Set writes value into column of the row at rowIndex and records the edit.
// If rowIndex is beyond the current row count, blank rows are appended
// first. Repeated edits of the same row merge into one pending Replace.
func (b *Binding) Set(column string, value any, rowIndex int) error {
	ci := b.columnIndex(column)
	if ci < 0 {
		return columnError(b.table, "set", column)
	}
	if rowIndex < 0 {
		return arityError(b.table, "set", len(b.rows), rowIndex)
	}
	for rowIndex >= len(b.rows) {
		b.appendBlank()
	}

	prev := b.rows[rowIndex][ci]
	b.rows[rowIndex][ci] = value

	if i := pendingReplace(b.changes, rowIndex); i >= 0 {
		r := b.changes[i].(Replace)
		if _, seen := r.Original[column]; !seen {
			r.Original[column] = prev
		}
		r.Updated[column] = value
		b.changes[i] = r
		return nil
	}
	b.changes = append(b.changes, Replace{
		At:       rowIndex,
		Original: map[string]any{column: prev},
		Updated:  map[string]any{column: value},
	})
	return nil
}

// AppendRow adds a row at the end of the row set.
func (b *Binding) AppendRow(row []any) error {
	if len(row) != len(b.columns) {
		return arityError(b.table, "append", len(b.columns), len(row))
	}
	row = slices.Clone(row)
	b.rows = append(b.rows, row)
	b.changes = append(b.changes, Append{Row: slices.Clone(row)})
	return nil
}

// InsertRow adds a row at position at.
func (b *Binding) InsertRow(at int, row []any) error {
	if len(row) != len(b.columns) {
		return arityError(b.table, "insert", len(b.columns), len(row))
	}
	if at < 0 || at > len(b.rows) {
		return arityError(b.table, "insert", len(b.rows), at)
	}
	row = slices.Clone(row)
	b.changes = shiftReplaces(b.changes, at, +1)
	b.rows = slices.Insert(b.rows, at, row)
	b.changes = append(b.changes, Insert{At: at, Row: slices.Clone(row)})
	return nil
}

// DeleteRow removes the row at position at, retaining its original values
// in the change log.
func (b *Binding) DeleteRow(at int) error {
	if at < 0 || at >= len(b.rows) {
		return arityError(b.table, "delete", len(b.rows), at)
	}
	orig := slices.Clone(b.rows[at])
	b.changes = shiftReplaces(b.changes, at, -1)
	b.rows = slices.Delete(b.rows, at, at+1)
	b.changes = append(b.changes, Delete{At: at, Original: orig})
	return nil
}

// HasChanged reports whether any pending change touches one of the given
// columns, or whether any change exists at all when no column is named.
// Falls back to the prior change log when the current log is empty, so the
// question remains answerable right after a Store.
func (b *Binding) HasChanged(columns ...string) bool {
	log := b.changes
	if len(log) == 0 {
		log = b.prior
	}
	if len(columns) == 0 {
		return len(log) > 0
	}
	for _, c := range log {
		for _, col := range columns {
			if touches(c, col) {
				return true
			}
		}
	}
	return false
}

// Store commits the pending changes to the backing table.
//
// Keyed tables are diffed row by row: rows with an empty key are inserted
// and stamped with the generated key, keyed rows are updated, and deleted
// rows are removed (by key, or by the last load filter when the binding
// emptied). Keyless tables are deleted by the original load filter and
// reinserted wholesale, then reloaded so store-side defaults are picked up.
//
// Afterward the change log moves into the prior log and any attached
// formulas run; formula edits trigger one more store.
//
// A binding with no pending changes issues zero statements. Statement
// failures abort the remaining steps; already-issued statements stay
// committed (no rollback).
func (b *Binding) Store(ctx context.Context) error {
	return b.store(ctx, true)
}

func (b *Binding) store(ctx context.Context, runFormulas bool) error {
	if len(b.changes) == 0 {
		return nil
	}

	var err error
	if b.uniqueKey != "" {
		err = b.storeKeyed(ctx)
	} else {
		err = b.storeKeyless(ctx)
	}
	if err != nil {
		return err
	}

	b.prior = b.changes
	b.changes = nil
	b.isNew = false

	if runFormulas && len(b.formulas) > 0 {
		if err := b.applyFormulas(); err != nil {
			return err
		}
		if b.HasChanged() && len(b.changes) > 0 {
			return b.store(ctx, false)
		}
	}
	return nil
}

// storeKeyed inserts keyless rows, updates keyed rows, and issues
// deletions for removed rows.
func (b *Binding) storeKeyed(ctx context.Context) error {
	ki := b.columnIndex(b.uniqueKey)
	if ki < 0 {
		return fmt.Errorf("%s store: unique key column %q not in column set", b.table, b.uniqueKey)
	}

	var inserted, updated, deleted int
	cols, _ := b.withoutColumn(ki, nil)

	for _, row := range b.rows {
		if keyEmpty(row[ki]) {
			_, vals := b.withoutColumn(ki, row)
			key, err := b.exec.Insert(ctx, b.table, cols, [][]any{vals})
			if err != nil {
				return queryError(b.table, "insert", err)
			}
			b.lastKey = key
			row[ki] = key
			inserted++
		} else {
			_, vals := b.withoutColumn(ki, row)
			f := KeyFilter(b.uniqueKey, row[ki])
			if err := b.exec.Update(ctx, b.table, cols, vals, f); err != nil {
				return queryError(b.table, "update", err)
			}
			updated++
		}
	}

	n, err := b.storeDeletions(ctx, ki)
	if err != nil {
		return err
	}
	deleted += n

	b.logger.Debug("stored keyed binding",
		"table", b.table, "inserted", inserted, "updated", updated, "deleted", deleted)
	return nil
}

// storeDeletions persists Delete changes. Keyed originals are removed by
// key; a binding that emptied since its last load is cleared with the
// original load filter instead.
func (b *Binding) storeDeletions(ctx context.Context, ki int) (int, error) {
	var deletes []Delete
	for _, c := range b.changes {
		if d, ok := c.(Delete); ok {
			deletes = append(deletes, d)
		}
	}
	if len(deletes) == 0 {
		return 0, nil
	}

	if len(b.rows) == 0 && b.filter != nil {
		if err := b.exec.Delete(ctx, b.table, b.filter); err != nil {
			return 0, queryError(b.table, "delete", err)
		}
		return len(deletes), nil
	}

	n := 0
	for _, d := range deletes {
		if keyEmpty(d.Original[ki]) {
			continue // never persisted
		}
		if err := b.exec.Delete(ctx, b.table, KeyFilter(b.uniqueKey, d.Original[ki])); err != nil {
			return n, queryError(b.table, "delete", err)
		}
		n++
	}
	return n, nil
}

// storeKeyless replaces the previously loaded rows with the current row
// set. No in-place diffing is attempted for keyless tables.
func (b *Binding) storeKeyless(ctx context.Context) error {
	replace := b.filter != nil && !b.isNew
	if replace {
		// The delete targets the original load filter, never one derived
		// from the current data.
		if err := b.exec.Delete(ctx, b.table, b.filter); err != nil {
			return queryError(b.table, "delete", err)
		}
	}
	if len(b.rows) > 0 {
		if _, err := b.exec.Insert(ctx, b.table, b.columns, b.rows); err != nil {
			return queryError(b.table, "insert", err)
		}
	}

	// Reload so in-memory state matches any store-side defaults.
	if b.filter != nil {
		rows, err := b.exec.Select(ctx, b.table, b.columns, b.filter, b.limit)
		if err != nil {
			return queryError(b.table, "select", err)
		}
		b.rows = rows
	}

	b.logger.Debug("stored keyless binding",
		"table", b.table, "rows", len(b.rows), "replaced", replace)
	return nil
}

// applyFormulas evaluates every formula against every row, recording edits
// through Set so the follow-up store sees them as ordinary changes.
func (b *Binding) applyFormulas() error {
	for i := range b.rows {
		for _, f := range b.formulas {
			v, err := eval(f.Expr, b.columns, b.rows[i])
			if err != nil {
				return fmt.Errorf("%s formula %s: %w", b.table, f.Column, err)
			}
			cur, _ := b.Value(f.Column, i)
			if cur == v {
				continue
			}
			if err := b.Set(f.Column, v, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Binding) columnIndex(column string) int {
	return slices.Index(b.columns, column)
}

// withoutColumn returns the column set and, when row is non-nil, the row
// values with position i removed.
func (b *Binding) withoutColumn(i int, row []any) ([]string, []any) {
	cols := make([]string, 0, len(b.columns)-1)
	var vals []any
	if row != nil {
		vals = make([]any, 0, len(row)-1)
	}
	for j := range b.columns {
		if j == i {
			continue
		}
		cols = append(cols, b.columns[j])
		if row != nil {
			vals = append(vals, row[j])
		}
	}
	return cols, vals
}

// keyEmpty reports whether a key value counts as "not yet assigned".
// Generated keys start at 1, so zero means unassigned.
func keyEmpty(v any) bool {
	switch k := v.(type) {
	case nil:
		return true
	case string:
		return k == ""
	case int:
		return k == 0
	case int64:
		return k == 0
	default:
		return false
	}
}
