package record

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aknob/AfpMaster-sub002/internal/binding"
	"github.com/aknob/AfpMaster-sub002/internal/joinrule"
)

// Definitions files declare entity types in YAML:
//
//	records:
//	  - name: event
//	    table: event
//	    key: id
//	    selections:
//	      positions:
//	        table: event_position
//	        key: id
//	        order: pos_no
//	        filter:
//	          all:
//	            - column: event_id
//	              op: eq
//	              ref: main.id
//	      payments:
//	        table: event_payment
//	        backprop: { column: id, target: last_payment_id }
//	        filter:
//	          all:
//	            - { column: event_id, op: eq, ref: main.id }
//	            - { column: kind, op: eq, value: incoming }
//	    formulas:
//	      - column: gross_cents
//	        add:
//	          - column: net_cents
//	          - column: tax_cents
//
// A ref of the form "-main.id" sign-flips the referenced value. A selection
// may carry "verbatim" instead of "filter" to bypass the declarative layer.

type defsFile struct {
	Records []defYAML `yaml:"records"`
}

type defYAML struct {
	Name       string                 `yaml:"name"`
	Table      string                 `yaml:"table"`
	Key        string                 `yaml:"key"`
	Columns    []string               `yaml:"columns,omitempty"`
	Selections map[string]ruleYAML    `yaml:"selections,omitempty"`
	Formulas   []formulaYAML          `yaml:"formulas,omitempty"`
}

type ruleYAML struct {
	Table    string        `yaml:"table"`
	Key      string        `yaml:"key,omitempty"`
	Columns  []string      `yaml:"columns,omitempty"`
	Order    string        `yaml:"order,omitempty"`
	Verbatim string        `yaml:"verbatim,omitempty"`
	Filter   *nodeYAML     `yaml:"filter,omitempty"`
	Backprop *backpropYAML `yaml:"backprop,omitempty"`
	Formulas []formulaYAML `yaml:"formulas,omitempty"`
}

type backpropYAML struct {
	Column string `yaml:"column"`
	Target string `yaml:"target,omitempty"`
}

type nodeYAML struct {
	All []nodeYAML `yaml:"all,omitempty"`
	Any []nodeYAML `yaml:"any,omitempty"`

	Column string `yaml:"column,omitempty"`
	Op     string `yaml:"op,omitempty"`
	Value  any    `yaml:"value,omitempty"`
	Ref    string `yaml:"ref,omitempty"`
}

type formulaYAML struct {
	Column string     `yaml:"column"`
	Expr   exprYAML   `yaml:",inline"`
}

type exprYAML struct {
	From   string     `yaml:"from,omitempty"`  // copy another column
	Value  any        `yaml:"value,omitempty"` // constant
	Concat []exprYAML `yaml:"concat,omitempty"`
	Add    []exprYAML `yaml:"add,omitempty"`
}

// LoadDefinitions reads and validates an entity-definitions file.
func LoadDefinitions(path string) ([]*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions parses and validates YAML entity definitions.
func ParseDefinitions(data []byte) ([]*Definition, error) {
	var file defsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	if len(file.Records) == 0 {
		return nil, fmt.Errorf("parse definitions: no records declared")
	}

	seen := make(map[string]bool)
	defs := make([]*Definition, 0, len(file.Records))
	for _, d := range file.Records {
		if seen[d.Name] {
			return nil, fmt.Errorf("parse definitions: duplicate record %q", d.Name)
		}
		seen[d.Name] = true

		def, err := d.toDefinition()
		if err != nil {
			return nil, err
		}
		if err := def.Validate(); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func (d defYAML) toDefinition() (*Definition, error) {
	def := &Definition{
		Name:      d.Name,
		Table:     d.Table,
		KeyColumn: d.Key,
		Columns:   d.Columns,
		Rules:     make(map[string]*joinrule.Rule, len(d.Selections)),
		Formulas:  make(map[string][]binding.Formula),
	}

	if len(d.Formulas) > 0 {
		formulas, err := toFormulas(d.Name, MainSelection, d.Formulas)
		if err != nil {
			return nil, err
		}
		def.Formulas[MainSelection] = formulas
	}

	for name, ry := range d.Selections {
		rule, err := ry.toRule(d.Name, name)
		if err != nil {
			return nil, err
		}
		def.Rules[name] = rule

		if len(ry.Formulas) > 0 {
			formulas, err := toFormulas(d.Name, name, ry.Formulas)
			if err != nil {
				return nil, err
			}
			def.Formulas[name] = formulas
		}
	}
	return def, nil
}

func (r ruleYAML) toRule(record, selection string) (*joinrule.Rule, error) {
	rule := &joinrule.Rule{
		Table:     r.Table,
		Columns:   r.Columns,
		UniqueKey: r.Key,
		Order:     r.Order,
		Verbatim:  r.Verbatim,
	}
	if r.Backprop != nil {
		rule.BackpropColumn = r.Backprop.Column
		rule.BackpropTarget = r.Backprop.Target
	}
	if r.Filter != nil {
		if r.Verbatim != "" {
			return nil, fmt.Errorf("definition %s: selection %s declares both filter and verbatim", record, selection)
		}
		node, err := r.Filter.toNode(record, selection)
		if err != nil {
			return nil, err
		}
		rule.Filter = node
	}
	return rule, nil
}

func (n nodeYAML) toNode(record, selection string) (joinrule.Node, error) {
	switch {
	case len(n.All) > 0:
		nodes, err := toNodes(record, selection, n.All)
		if err != nil {
			return nil, err
		}
		return joinrule.And{Nodes: nodes}, nil
	case len(n.Any) > 0:
		nodes, err := toNodes(record, selection, n.Any)
		if err != nil {
			return nil, err
		}
		return joinrule.Or{Nodes: nodes}, nil
	}

	op, err := toOp(n.Op)
	if err != nil {
		return nil, fmt.Errorf("definition %s: selection %s: %w", record, selection, err)
	}
	if n.Column == "" {
		return nil, fmt.Errorf("definition %s: selection %s: clause without column", record, selection)
	}

	var rhs joinrule.RHS
	switch {
	case n.Ref != "" && n.Value != nil:
		return nil, fmt.Errorf("definition %s: selection %s: clause on %s has both ref and value",
			record, selection, n.Column)
	case n.Ref != "":
		ref, err := toRef(n.Ref)
		if err != nil {
			return nil, fmt.Errorf("definition %s: selection %s: %w", record, selection, err)
		}
		rhs = ref
	default:
		rhs = joinrule.Literal{Value: n.Value}
	}

	return joinrule.Clause{Column: n.Column, Op: op, RHS: rhs}, nil
}

func toNodes(record, selection string, in []nodeYAML) ([]joinrule.Node, error) {
	out := make([]joinrule.Node, 0, len(in))
	for _, n := range in {
		node, err := n.toNode(record, selection)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

func toOp(s string) (joinrule.Op, error) {
	switch s {
	case "eq", "":
		return joinrule.OpEquals, nil
	case "ge":
		return joinrule.OpGreaterEq, nil
	case "le":
		return joinrule.OpLessEq, nil
	case "like":
		return joinrule.OpLike, nil
	default:
		return "", fmt.Errorf("unknown operator %q (eq, ge, le, like)", s)
	}
}

// toRef parses "selection.column", with an optional leading "-" for
// sign-flipped references.
func toRef(s string) (joinrule.Ref, error) {
	ref := joinrule.Ref{}
	if strings.HasPrefix(s, "-") {
		ref.Negate = true
		s = s[1:]
	}
	sel, col, ok := strings.Cut(s, ".")
	if !ok || sel == "" || col == "" {
		return joinrule.Ref{}, fmt.Errorf("malformed reference %q (want selection.column)", s)
	}
	ref.Selection = sel
	ref.Column = col
	return ref, nil
}

func toFormulas(record, selection string, in []formulaYAML) ([]binding.Formula, error) {
	out := make([]binding.Formula, 0, len(in))
	for _, f := range in {
		if f.Column == "" {
			return nil, fmt.Errorf("definition %s: selection %s: formula without column", record, selection)
		}
		expr, err := f.Expr.toExpr(record, selection)
		if err != nil {
			return nil, err
		}
		out = append(out, binding.Formula{Column: f.Column, Expr: expr})
	}
	return out, nil
}

func (e exprYAML) toExpr(record, selection string) (binding.Expr, error) {
	set := 0
	if e.From != "" {
		set++
	}
	if e.Value != nil {
		set++
	}
	if len(e.Concat) > 0 {
		set++
	}
	if len(e.Add) > 0 {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("definition %s: selection %s: formula expression needs exactly one of from/value/concat/add",
			record, selection)
	}

	switch {
	case e.From != "":
		return binding.Column{Name: e.From}, nil
	case e.Value != nil:
		return binding.Literal{Value: e.Value}, nil
	case len(e.Concat) > 0:
		parts, err := toExprs(record, selection, e.Concat)
		if err != nil {
			return nil, err
		}
		return binding.Concat{Parts: parts}, nil
	default:
		terms, err := toExprs(record, selection, e.Add)
		if err != nil {
			return nil, err
		}
		return binding.Add{Terms: terms}, nil
	}
}

func toExprs(record, selection string, in []exprYAML) ([]binding.Expr, error) {
	out := make([]binding.Expr, 0, len(in))
	for _, e := range in {
		expr, err := e.toExpr(record, selection)
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
	}
	return out, nil
}
