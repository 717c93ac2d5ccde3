package record

import (
	"errors"
	"fmt"
)

// CycleError reports a special self-referencing walk that revisited a row
// it had already seen at an unexpected position. Correct data never
// triggers it; the guard exists so corrupted next-pointers cannot hang the
// engine.
type CycleError struct {
	// Selection names the special selection being walked.
	Selection string

	// Key is the row key that was revisited.
	Key any
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("selection %s: walk revisited row %v", e.Selection, e.Key)
}

// IsCycleError returns true if the error is a revisited-row guard.
// Uses errors.As to handle wrapped errors.
func IsCycleError(err error) bool {
	var ce *CycleError
	return errors.As(err, &ce)
}

// UnknownSelectionError reports a selection name the definition does not
// declare.
type UnknownSelectionError struct {
	Record    string
	Selection string
}

// Error implements the error interface.
func (e *UnknownSelectionError) Error() string {
	return fmt.Sprintf("record %s has no selection %q", e.Record, e.Selection)
}
