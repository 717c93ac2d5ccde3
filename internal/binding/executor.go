package binding

import "context"

// Filter is a resolved WHERE fragment with bound parameters and an optional
// ORDER BY fragment. Values are always carried as parameters, never
// interpolated into Where.
type Filter struct {
	Where string
	Args  []any
	Order string
}

// KeyFilter returns a filter matching a single row by its key column.
func KeyFilter(column string, key any) *Filter {
	return &Filter{Where: column + " = ?", Args: []any{key}}
}

// Executor is the store contract the engine consumes. Implementations are
// opaque synchronous executors of single statements against a named table;
// a statement may fail but never partially applies.
//
// The engine never builds SQL itself and never escapes values: filters
// carry parameters, and the executor is responsible for binding them.
type Executor interface {
	// Select returns the requested columns of the rows matching filter.
	// A nil filter selects every row. limit <= 0 means no limit.
	Select(ctx context.Context, table string, columns []string, filter *Filter, limit int) ([][]any, error)

	// Insert appends rows to the table and returns the last generated key.
	Insert(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Update assigns values to columns on every row matching filter.
	Update(ctx context.Context, table string, columns []string, values []any, filter *Filter) error

	// Delete removes the rows matching filter.
	Delete(ctx context.Context, table string, filter *Filter) error

	// Execute runs a raw statement, returning result rows if it produced any.
	Execute(ctx context.Context, statement string, args ...any) ([][]any, error)
}
