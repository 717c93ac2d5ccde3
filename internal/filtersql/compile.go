package filtersql

import (
	"fmt"
	"strings"

	"github.com/aknob/AfpMaster-sub002/internal/binding"
	"github.com/aknob/AfpMaster-sub002/internal/joinrule"
)

// Compile turns a resolved rule into an executable filter. The tree must
// contain literal right-hand sides only; an unresolved Ref is a
// programming error and fails compilation.
func Compile(r *joinrule.Resolved) (*binding.Filter, error) {
	if r.Verbatim != "" {
		return &binding.Filter{Where: r.Verbatim, Order: r.Order}, nil
	}
	if r.Filter == nil {
		return &binding.Filter{Order: r.Order}, nil
	}

	where, args, err := compileNode(r.Filter)
	if err != nil {
		return nil, err
	}
	return &binding.Filter{Where: where, Args: args, Order: r.Order}, nil
}

func compileNode(n joinrule.Node) (string, []any, error) {
	switch node := n.(type) {
	case joinrule.Clause:
		return compileClause(node)
	case *joinrule.Clause:
		return compileClause(*node)
	case joinrule.And:
		return compileGroup(node.Nodes, " AND ")
	case *joinrule.And:
		return compileGroup(node.Nodes, " AND ")
	case joinrule.Or:
		return compileGroup(node.Nodes, " OR ")
	case *joinrule.Or:
		return compileGroup(node.Nodes, " OR ")
	default:
		return "", nil, fmt.Errorf("unsupported filter node type: %T", n)
	}
}

// compileClause emits "column <op> ?" with the literal as a parameter.
func compileClause(c joinrule.Clause) (string, []any, error) {
	switch c.Op {
	case joinrule.OpEquals, joinrule.OpGreaterEq, joinrule.OpLessEq, joinrule.OpLike:
	default:
		return "", nil, fmt.Errorf("unsupported clause operator: %q", c.Op)
	}

	lit, ok := c.RHS.(joinrule.Literal)
	if !ok {
		if p, isPtr := c.RHS.(*joinrule.Literal); isPtr {
			lit, ok = *p, true
		}
	}
	if !ok {
		return "", nil, fmt.Errorf("clause on %s still carries an unresolved reference", c.Column)
	}

	return fmt.Sprintf("%s %s ?", c.Column, c.Op), []any{lit.Value}, nil
}

// compileGroup joins child fragments with a connector, parenthesizing each
// child so And/Or nesting keeps its declared precedence. An empty group is
// always true.
func compileGroup(nodes []joinrule.Node, connector string) (string, []any, error) {
	if len(nodes) == 0 {
		return "1 = 1", nil, nil // vacuous truth
	}
	if len(nodes) == 1 {
		return compileNode(nodes[0])
	}

	var parts []string
	var allArgs []any
	for _, n := range nodes {
		sql, args, err := compileNode(n)
		if err != nil {
			return "", nil, err
		}
		if isGroup(n) {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		allArgs = append(allArgs, args...)
	}
	return strings.Join(parts, connector), allArgs, nil
}

func isGroup(n joinrule.Node) bool {
	switch n.(type) {
	case joinrule.And, *joinrule.And, joinrule.Or, *joinrule.Or:
		return true
	default:
		return false
	}
}
