package binding

import (
	"fmt"
	"strings"
)

// Formula is a post-store column assignment. After every successful Store,
// each formula is evaluated row by row and its result assigned to Column;
// if any assignment changed a value, the binding is stored once more.
type Formula struct {
	Column string
	Expr   Expr
}

// Expr represents a formula expression over columns of the same row.
//
// This is a sealed interface - only types in this package implement it.
//
// Expr types:
//   - Column: value of another column in the row
//   - Literal: a constant
//   - Concat: string concatenation of sub-expressions
//   - Add: integer sum of sub-expressions
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Column evaluates to the row's current value of the named column.
type Column struct {
	Name string
}

func (Column) exprNode() {}

// Literal evaluates to a constant value.
type Literal struct {
	Value any
}

func (Literal) exprNode() {}

// Concat evaluates to the string concatenation of its parts.
type Concat struct {
	Parts []Expr
}

func (Concat) exprNode() {}

// Add evaluates to the int64 sum of its terms. Terms must evaluate to
// integers; nil counts as zero.
type Add struct {
	Terms []Expr
}

func (Add) exprNode() {}

// eval evaluates an expression against one row.
func eval(e Expr, columns []string, row []any) (any, error) {
	switch expr := e.(type) {
	case Column:
		for i, c := range columns {
			if c == expr.Name {
				return row[i], nil
			}
		}
		return nil, fmt.Errorf("formula references unknown column %q", expr.Name)
	case Literal:
		return expr.Value, nil
	case Concat:
		var sb strings.Builder
		for _, p := range expr.Parts {
			v, err := eval(p, columns, row)
			if err != nil {
				return nil, err
			}
			if v != nil {
				fmt.Fprint(&sb, v)
			}
		}
		return sb.String(), nil
	case Add:
		var sum int64
		for _, t := range expr.Terms {
			v, err := eval(t, columns, row)
			if err != nil {
				return nil, err
			}
			n, err := asInt64(v)
			if err != nil {
				return nil, err
			}
			sum += n
		}
		return sum, nil
	default:
		return nil, fmt.Errorf("unsupported formula expression type: %T", e)
	}
}

// asInt64 coerces integer-ish values for Add. nil counts as zero.
func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("formula term is not an integer: %T", v)
	}
}
