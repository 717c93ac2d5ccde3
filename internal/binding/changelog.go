package binding

// Change represents one recorded mutation of a binding's row set.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern enables exhaustive type switches in Store and
// HasChanged without string/maps polymorphism in the records themselves.
//
// Change types:
//   - Append: a row added at the end
//   - Insert: a row added at a position
//   - Replace: per-row column edits, merged across repeated Set calls
//   - Delete: a row removed, original values retained
type Change interface {
	changeNode() // Marker method - seals interface to this package
}

// Append records a row added at the end of the row set.
type Append struct {
	Row []any
}

func (Append) changeNode() {}

// Insert records a row added at position At.
type Insert struct {
	At  int
	Row []any
}

func (Insert) changeNode() {}

// Replace records pending column edits for the row at position At.
//
// Original holds the value each column had before its first edit in this
// log; Updated holds the latest value. Carrying the originals lets later
// diffing answer "did column X change" without re-reading the store.
type Replace struct {
	At       int
	Original map[string]any
	Updated  map[string]any
}

func (Replace) changeNode() {}

// Delete records a row removed from position At. Original retains the full
// row as it stood when deleted.
type Delete struct {
	At       int
	Original []any
}

func (Delete) changeNode() {}

// touches reports whether a change affects the given column. Row-level
// changes (Append, Insert, Delete) touch every column; Replace touches only
// the columns it edited.
func touches(c Change, column string) bool {
	if column == "" {
		return true
	}
	switch ch := c.(type) {
	case Replace:
		_, ok := ch.Updated[column]
		return ok
	case *Replace:
		_, ok := ch.Updated[column]
		return ok
	default:
		return true
	}
}

// pendingReplace finds the pending Replace entry for a row, if any.
// Returns the index into the log, or -1.
func pendingReplace(log []Change, at int) int {
	for i := len(log) - 1; i >= 0; i-- {
		if r, ok := log[i].(Replace); ok && r.At == at {
			return i
		}
	}
	return -1
}

// shiftReplaces adjusts the row positions of pending Replace entries after a
// structural change. delta is +1 for an insert at position at, -1 for a
// delete. A Replace for the deleted row itself is dropped: the Delete entry
// carries the full original row.
func shiftReplaces(log []Change, at, delta int) []Change {
	out := log[:0]
	for _, c := range log {
		r, ok := c.(Replace)
		if !ok {
			out = append(out, c)
			continue
		}
		switch {
		case delta < 0 && r.At == at:
			// Row deleted - superseded by the Delete entry.
			continue
		case delta < 0 && r.At > at:
			r.At--
		case delta > 0 && r.At >= at:
			r.At++
		}
		out = append(out, r)
	}
	return out
}
