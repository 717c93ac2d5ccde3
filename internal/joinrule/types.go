package joinrule

// Rule wires one dependent selection of an aggregate record to its root.
type Rule struct {
	// Table is the dependent selection's backing table.
	Table string

	// Columns optionally pre-supplies the table's column set. When empty,
	// the column set is discovered from the store.
	Columns []string

	// UniqueKey names the dependent table's single-column primary key, or
	// "" when the table has no reliable key.
	UniqueKey string

	// Filter is the declarative filter tree. Ignored when Verbatim is set.
	Filter Node

	// Verbatim, when non-empty, is used as the filter as-is, without
	// resolution or compilation.
	Verbatim string

	// Order is an optional ORDER BY fragment embedded in the rule.
	Order string

	// BackpropColumn names a dependent column whose store-generated value
	// must be written back into the root after the dependent is stored.
	BackpropColumn string

	// BackpropTarget names the root column receiving the back-propagated
	// value. Defaults to the root's key column when empty.
	BackpropTarget string
}

// Node represents a filter tree node.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern enables exhaustive type switches in the
// resolver and the SQL compiler.
//
// Node types:
//   - Clause: column <op> rhs
//   - And: every child must hold
//   - Or: at least one child must hold
type Node interface {
	filterNode() // Marker method - seals interface to this package
}

// Op is a clause comparison operator. The set is closed.
type Op string

const (
	OpEquals    Op = "="
	OpGreaterEq Op = ">="
	OpLessEq    Op = "<="
	OpLike      Op = "LIKE"
)

// Clause compares one dependent column against a right-hand side.
type Clause struct {
	Column string
	Op     Op
	RHS    RHS
}

func (Clause) filterNode() {}

// And holds when every child node holds. Empty means always true.
type And struct {
	Nodes []Node
}

func (And) filterNode() {}

// Or holds when at least one child node holds.
type Or struct {
	Nodes []Node
}

func (Or) filterNode() {}

// RHS is a clause right-hand side: a literal or a cross-selection
// reference.
//
// This is a sealed interface - only types in this package implement it.
type RHS interface {
	rhsNode() // Marker method - seals interface to this package
}

// Literal is a constant right-hand side. The value is carried as a bound
// parameter all the way to the store, never interpolated.
type Literal struct {
	Value any
}

func (Literal) rhsNode() {}

// Ref references another selection's current value of a column. With
// Negate set, the resolved numeric value is sign-flipped.
type Ref struct {
	Selection string
	Column    string
	Negate    bool
}

func (Ref) rhsNode() {}
