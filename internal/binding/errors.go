package binding

import (
	"errors"
	"fmt"
)

// ArityError reports a row/column count mismatch or an out-of-range row
// index. It is a local precondition violation: the offending operation is
// rejected before anything reaches the store, and the change log is left
// untouched.
type ArityError struct {
	// Table is the backing table of the binding.
	Table string

	// Op is the operation that was rejected ("append", "insert", "delete", "set").
	Op string

	// Column names the offending column for column-level violations.
	Column string

	// Want is the expected count (column count for rows, row count for indexes).
	Want int

	// Got is the offending count or index.
	Got int
}

// Error implements the error interface.
func (e *ArityError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s %s: unknown column %q", e.Table, e.Op, e.Column)
	}
	return fmt.Sprintf("%s %s: arity mismatch (want %d, got %d)", e.Table, e.Op, e.Want, e.Got)
}

// QueryError reports a statement the store executor rejected. The executor's
// error is wrapped unmodified and never retried.
type QueryError struct {
	// Table is the backing table of the statement.
	Table string

	// Op is the statement kind ("select", "insert", "update", "delete").
	Op string

	// Err is the executor's error.
	Err error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Table, e.Op, e.Err)
}

// Unwrap returns the executor's error for errors.Is/As chains.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// IsArityError returns true if the error is an arity violation.
// Uses errors.As to handle wrapped errors.
func IsArityError(err error) bool {
	var ae *ArityError
	return errors.As(err, &ae)
}

// IsQueryError returns true if the error is a rejected store statement.
// Uses errors.As to handle wrapped errors.
func IsQueryError(err error) bool {
	var qe *QueryError
	return errors.As(err, &qe)
}

func arityError(table, op string, want, got int) *ArityError {
	return &ArityError{Table: table, Op: op, Want: want, Got: got}
}

func columnError(table, op, column string) *ArityError {
	return &ArityError{Table: table, Op: op, Column: column}
}

func queryError(table, op string, err error) *QueryError {
	return &QueryError{Table: table, Op: op, Err: err}
}
