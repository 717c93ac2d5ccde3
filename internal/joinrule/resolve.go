package joinrule

import (
	"errors"
	"fmt"
)

// Source supplies current values for cross-selection references during
// resolution. Implemented by the aggregate record.
//
// Value returns ok=false when the referenced value is not yet known (for
// example the main key of a record that has never been stored).
type Source interface {
	Value(selection, column string) (value any, ok bool, err error)
}

// UnresolvedError reports a rule whose cross-selection reference could not
// be resolved yet. The dependent selection is not loadable until the
// referenced value exists; this is not a hard failure.
type UnresolvedError struct {
	// Selection and Column identify the unresolved reference.
	Selection string
	Column    string
}

// Error implements the error interface.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("join rule unresolved: %s.%s has no value yet", e.Selection, e.Column)
}

// IsUnresolved returns true if the error marks a not-yet-resolvable rule.
// Uses errors.As to handle wrapped errors.
func IsUnresolved(err error) bool {
	var ue *UnresolvedError
	return errors.As(err, &ue)
}

// Resolved is a rule's filter tree with every reference replaced by its
// current value, ready for compilation.
type Resolved struct {
	// Filter contains literal right-hand sides only. Nil when Verbatim is
	// set or the rule had no filter.
	Filter Node

	// Verbatim carries the rule's raw filter unchanged, if any.
	Verbatim string

	// Order is the rule's ORDER BY fragment, if any.
	Order string
}

// Resolve evaluates a rule against the record's known values. A verbatim
// rule passes through untouched; otherwise every Ref in the filter tree is
// replaced with a Literal of the referenced selection's current value.
//
// Returns UnresolvedError when a referenced value is not yet known.
func Resolve(rule *Rule, src Source) (*Resolved, error) {
	if rule.Verbatim != "" {
		return &Resolved{Verbatim: rule.Verbatim, Order: rule.Order}, nil
	}
	if rule.Filter == nil {
		return &Resolved{Order: rule.Order}, nil
	}

	filter, err := resolveNode(rule.Filter, src)
	if err != nil {
		return nil, err
	}
	return &Resolved{Filter: filter, Order: rule.Order}, nil
}

func resolveNode(n Node, src Source) (Node, error) {
	switch node := n.(type) {
	case Clause:
		return resolveClause(node, src)
	case *Clause:
		return resolveClause(*node, src)
	case And:
		nodes, err := resolveNodes(node.Nodes, src)
		if err != nil {
			return nil, err
		}
		return And{Nodes: nodes}, nil
	case *And:
		return resolveNode(*node, src)
	case Or:
		nodes, err := resolveNodes(node.Nodes, src)
		if err != nil {
			return nil, err
		}
		return Or{Nodes: nodes}, nil
	case *Or:
		return resolveNode(*node, src)
	default:
		return nil, fmt.Errorf("unsupported filter node type: %T", n)
	}
}

func resolveNodes(nodes []Node, src Source) ([]Node, error) {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		r, err := resolveNode(n, src)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func resolveClause(c Clause, src Source) (Node, error) {
	ref, ok := asRef(c.RHS)
	if !ok {
		return c, nil // literal right-hand side, used as-is
	}

	value, known, err := src.Value(ref.Selection, ref.Column)
	if err != nil {
		return nil, err
	}
	if !known {
		return nil, &UnresolvedError{Selection: ref.Selection, Column: ref.Column}
	}
	if ref.Negate {
		value, err = negate(value)
		if err != nil {
			return nil, fmt.Errorf("resolve %s.%s: %w", ref.Selection, ref.Column, err)
		}
	}
	return Clause{Column: c.Column, Op: c.Op, RHS: Literal{Value: value}}, nil
}

// negate sign-flips a resolved numeric value.
func negate(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return -n, nil
	case int64:
		return -n, nil
	case float64:
		return -n, nil
	default:
		return nil, fmt.Errorf("cannot negate value of type %T", v)
	}
}

// References returns the first clause of the rule's filter whose right-hand
// side references the given selection and column. Used by the aggregate
// record to decide which dependents receive a freshly generated main key,
// and into which dependent column (the clause's left side) it goes.
func References(rule *Rule, selection, column string) (clause *Clause, found bool) {
	if rule.Verbatim != "" || rule.Filter == nil {
		return nil, false
	}
	return findRef(rule.Filter, selection, column)
}

func findRef(n Node, selection, column string) (*Clause, bool) {
	switch node := n.(type) {
	case Clause:
		if r, ok := asRef(node.RHS); ok && r.Selection == selection && r.Column == column {
			return &node, true
		}
	case *Clause:
		return findRef(*node, selection, column)
	case And:
		for _, child := range node.Nodes {
			if c, ok := findRef(child, selection, column); ok {
				return c, true
			}
		}
	case *And:
		return findRef(*node, selection, column)
	case Or:
		for _, child := range node.Nodes {
			if c, ok := findRef(child, selection, column); ok {
				return c, true
			}
		}
	case *Or:
		return findRef(*node, selection, column)
	}
	return nil, false
}

func asRef(rhs RHS) (Ref, bool) {
	switch r := rhs.(type) {
	case Ref:
		return r, true
	case *Ref:
		return *r, true
	default:
		return Ref{}, false
	}
}
